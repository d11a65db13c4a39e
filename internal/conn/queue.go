package conn

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/auno/aobot/internal/protocol"
)

// Outgoing packet priorities. Lower sends earlier.
const (
	PriorityHigh    = 25
	PriorityDefault = 50
	PriorityLow     = 75
)

// Queue depth thresholds: warn when dispatch is falling behind, shed
// everything when the server would kick us long before we drained it.
const (
	queueWarnDepth  = 10
	queueFloodDepth = 30
)

type queuedPacket struct {
	priority int
	packet   *protocol.ClientPacket
}

// OutgoingQueue rate-limits outbound packets to stay under the server's
// flood detection. Sends are spaced by the recovery interval; after an idle
// period up to burst×recovery seconds of credit may be banked, allowing a
// short back-to-back burst.
//
// The queue is filled from the dispatch loop and drained from the
// connection's read loop, hence the lock.
type OutgoingQueue struct {
	recovery time.Duration
	burst    float64

	mu          sync.Mutex
	items       []queuedPacket
	nextAllowed time.Time
	now         func() time.Time
}

func NewOutgoingQueue(recovery time.Duration, burst float64) *OutgoingQueue {
	return &OutgoingQueue{recovery: recovery, burst: burst, now: time.Now}
}

// Enqueue adds a packet. Exceeding the flood depth clears the whole queue:
// by then the content is stale and draining it would only prolong the
// backlog.
func (q *OutgoingQueue) Enqueue(priority int, p *protocol.ClientPacket) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= queueFloodDepth {
		log.Printf("conn: outgoing queue over %d packets, clearing", queueFloodDepth)
		q.items = q.items[:0]
	} else if len(q.items) >= queueWarnDepth {
		log.Printf("conn: outgoing queue depth %d", len(q.items))
	}
	q.items = append(q.items, queuedPacket{priority: priority, packet: p})
	sort.SliceStable(q.items, func(i, j int) bool { return q.items[i].priority < q.items[j].priority })
}

// Dequeue returns the next packet if the rate limiter allows a send now,
// else nil.
func (q *OutgoingQueue) Dequeue() *protocol.ClientPacket {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	now := q.now()
	// Bank at most burst×recovery seconds of idle credit.
	floor := now.Add(-time.Duration(q.burst * float64(q.recovery)))
	if q.nextAllowed.Before(floor) {
		q.nextAllowed = floor
	}
	if q.nextAllowed.After(now) {
		return nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.nextAllowed = q.nextAllowed.Add(q.recovery)
	return item.packet
}

// Len returns the number of queued packets.
func (q *OutgoingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
