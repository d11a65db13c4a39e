package dispatch

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/auno/aobot/internal/store"
)

// TimerEvent is the meta base type whose sub type encodes an interval in
// seconds; it is fired by the runtime's per-second sweep, not by packets.
const TimerEvent = "timer"

// EventHandler receives the fired event's payload.
type EventHandler func(data any)

type eventReg struct {
	name    string // stable handler name, used for persistence
	base    string
	sub     string
	handler EventHandler
	enabled bool

	// timer state
	interval time.Duration
	nextRun  time.Time
}

// EventBus is the named-event pub/sub half of the dispatch engine. Base
// types must be registered before handlers can target them; this keeps bulk
// module loading order-independent without hiding typos until fire time.
type EventBus struct {
	types    map[string]bool
	handlers []*eventReg
	cache    map[string][]*eventReg
	registry *store.Registry // nil when running without persistence
	now      func() time.Time
}

func NewEventBus(registry *store.Registry) *EventBus {
	return &EventBus{
		types:    map[string]bool{TimerEvent: true},
		cache:    make(map[string][]*eventReg),
		registry: registry,
		now:      time.Now,
	}
}

// RegisterType declares an event base type. Duplicates are a registration
// error and are skipped.
func (b *EventBus) RegisterType(base string) {
	if b.types[base] {
		log.Printf("event: type %q already registered", base)
		return
	}
	b.types[base] = true
}

// Register adds a handler for "base" or "base:sub". An unregistered base
// type logs an error and skips the handler (fail-soft, so one bad module
// cannot take down startup).
func (b *EventBus) Register(name, eventType string, handler EventHandler) {
	base, sub := splitEventType(eventType)
	if !b.types[base] {
		log.Printf("event: handler %q targets unregistered type %q, skipping", name, base)
		return
	}

	reg := &eventReg{name: name, base: base, sub: sub, handler: handler, enabled: true}
	if base == TimerEvent {
		secs, err := strconv.Atoi(sub)
		if err != nil || secs <= 0 {
			log.Printf("event: handler %q has bad timer interval %q, skipping", name, sub)
			return
		}
		reg.interval = time.Duration(secs) * time.Second
		reg.nextRun = b.now().Add(reg.interval)
	}
	if b.registry != nil {
		enabled, err := b.registry.VerifyEvent(base, sub, name)
		if err != nil {
			log.Printf("event: persist handler %q: %v", name, err)
		} else {
			reg.enabled = enabled
		}
	}
	b.handlers = append(b.handlers, reg)
	b.invalidate()
}

// SetEnabled toggles a handler by name and invalidates the lookup cache.
func (b *EventBus) SetEnabled(name string, enabled bool) bool {
	for _, reg := range b.handlers {
		if reg.name == name {
			reg.enabled = enabled
			b.invalidate()
			return true
		}
	}
	return false
}

// Fire invokes every enabled handler registered for the exact base:sub key.
// Handler panics are logged and do not stop the remaining handlers.
func (b *EventBus) Fire(eventType string, data any) {
	for _, reg := range b.lookup(eventType) {
		runEventHandler(reg, data)
	}
}

// CheckTimers fires every due timer handler. A timer that slept past
// multiple intervals reschedules from now instead of burning through the
// missed fires.
func (b *EventBus) CheckTimers(now time.Time) {
	for _, reg := range b.handlers {
		if reg.base != TimerEvent || !reg.enabled || reg.nextRun.After(now) {
			continue
		}
		runEventHandler(reg, now)
		reg.nextRun = reg.nextRun.Add(reg.interval)
		if !reg.nextRun.After(now) {
			reg.nextRun = now.Add(reg.interval)
		}
	}
}

func (b *EventBus) lookup(eventType string) []*eventReg {
	if regs, ok := b.cache[eventType]; ok {
		return regs
	}
	base, sub := splitEventType(eventType)
	var regs []*eventReg
	for _, reg := range b.handlers {
		if reg.enabled && reg.base == base && reg.sub == sub {
			regs = append(regs, reg)
		}
	}
	b.cache[eventType] = regs
	return regs
}

func (b *EventBus) invalidate() {
	b.cache = make(map[string][]*eventReg)
}

func runEventHandler(reg *eventReg, data any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event: handler %q panicked: %v", reg.name, r)
		}
	}()
	reg.handler(data)
}

func splitEventType(eventType string) (string, string) {
	if i := strings.IndexByte(eventType, ':'); i >= 0 {
		return eventType[:i], eventType[i+1:]
	}
	return eventType, ""
}
