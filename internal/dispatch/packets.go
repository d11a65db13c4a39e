// Package dispatch is the bot's dispatch engine: the priority-ordered
// packet handler table, the event bus (including timer events) and the
// regex command router with access gating.
package dispatch

import (
	"log"
	"sort"

	"github.com/auno/aobot/internal/conn"
	"github.com/auno/aobot/internal/protocol"
)

// DefaultPriority is used when a handler does not care about ordering.
const DefaultPriority = 50

// PacketHandler receives one decoded server packet along with the
// connection it arrived on.
type PacketHandler func(c *conn.Conn, p protocol.ServerPacket)

type packetReg struct {
	priority int
	handler  PacketHandler
}

// PacketTable routes decoded packets to handlers sorted by (priority,
// registration order). Registration happens during single-threaded startup;
// dispatch runs on the single main loop, so no locking is required.
type PacketTable struct {
	handlers  map[uint16][]packetReg
	templates protocol.TemplateSource
}

func NewPacketTable(templates protocol.TemplateSource) *PacketTable {
	return &PacketTable{
		handlers:  make(map[uint16][]packetReg),
		templates: templates,
	}
}

// Register adds a handler for a packet type. Lower priorities run earlier;
// ties keep registration order.
func (t *PacketTable) Register(packetID uint16, priority int, handler PacketHandler) {
	regs := append(t.handlers[packetID], packetReg{priority: priority, handler: handler})
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].priority < regs[j].priority })
	t.handlers[packetID] = regs
}

// Dispatch runs all handlers for the packet in priority order. A panicking
// handler is logged and the rest still run.
func (t *PacketTable) Dispatch(c *conn.Conn, p protocol.ServerPacket) {
	p = t.preprocess(p)
	if p == nil {
		return
	}
	for _, reg := range t.handlers[p.PacketID()] {
		runPacketHandler(reg.handler, c, p)
	}
}

// preprocess applies the mandatory per-type fixups before generic handlers
// run: extended-message resolution for system and public channel messages,
// and dropping placeholder buddy packets.
func (t *PacketTable) preprocess(p protocol.ServerPacket) protocol.ServerPacket {
	switch pkt := p.(type) {
	case *protocol.SystemMessage:
		ext, err := protocol.ParseSystemMessage(pkt.NoticeID, pkt.Params, t.templates)
		if err != nil {
			log.Printf("dispatch: system message %d: %v", pkt.NoticeID, err)
		} else {
			pkt.Extended = ext
		}
	case *protocol.PublicChannelMessage:
		if protocol.IsExtendedPayload(pkt.Message) {
			ext, err := protocol.ParseExtendedPayload(pkt.Message, t.templates)
			if err != nil {
				log.Printf("dispatch: extended channel message: %v", err)
			} else {
				pkt.Extended = ext
			}
		}
	case *protocol.BuddyAdded:
		// The server emits placeholder buddy entries with a zero id.
		if pkt.CharID == 0 {
			return nil
		}
	}
	return p
}

func runPacketHandler(h PacketHandler, c *conn.Conn, p protocol.ServerPacket) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: packet %d handler panicked: %v", p.PacketID(), r)
		}
	}()
	h(c, p)
}
