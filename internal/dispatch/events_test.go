package dispatch

import (
	"testing"
	"time"
)

func TestEventFireExactMatch(t *testing.T) {
	b := NewEventBus(nil)
	b.RegisterType("connect")
	b.RegisterType("logon")

	var fired []string
	b.Register("h.connect", "connect", func(data any) { fired = append(fired, "connect") })
	b.Register("h.logon.buddy", "logon:buddy", func(data any) { fired = append(fired, "logon:buddy") })

	b.Fire("connect", nil)
	b.Fire("logon", nil) // no sub match, nothing fires
	b.Fire("logon:buddy", nil)
	b.Fire("logon:other", nil)

	if len(fired) != 2 || fired[0] != "connect" || fired[1] != "logon:buddy" {
		t.Errorf("Unexpected fire sequence: %v", fired)
	}
}

func TestEventUnregisteredTypeSkipped(t *testing.T) {
	b := NewEventBus(nil)
	b.Register("h.orphan", "nosuchtype", func(data any) {
		t.Error("Handler for an unregistered type must not fire")
	})
	b.Fire("nosuchtype", nil)
}

func TestEventSetEnabled(t *testing.T) {
	b := NewEventBus(nil)
	b.RegisterType("connect")

	calls := 0
	b.Register("h.connect", "connect", func(data any) { calls++ })

	b.Fire("connect", nil)
	if !b.SetEnabled("h.connect", false) {
		t.Fatal("SetEnabled failed to find the handler")
	}
	b.Fire("connect", nil)
	b.SetEnabled("h.connect", true)
	b.Fire("connect", nil)

	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if b.SetEnabled("nosuchhandler", true) {
		t.Error("Expected SetEnabled to report unknown handlers")
	}
}

func TestEventHandlerPanicIsolated(t *testing.T) {
	b := NewEventBus(nil)
	b.RegisterType("connect")

	ran := false
	b.Register("h.bad", "connect", func(data any) { panic("handler bug") })
	b.Register("h.good", "connect", func(data any) { ran = true })

	b.Fire("connect", nil)
	if !ran {
		t.Error("Expected the second handler to run after the first panicked")
	}
}

func TestTimerFiresOnInterval(t *testing.T) {
	b := NewEventBus(nil)
	base := time.Now()
	b.now = func() time.Time { return base }

	calls := 0
	b.Register("h.tick", "timer:10", func(data any) { calls++ })

	b.CheckTimers(base.Add(5 * time.Second))
	if calls != 0 {
		t.Error("Expected no fire before the interval elapsed")
	}
	b.CheckTimers(base.Add(10 * time.Second))
	if calls != 1 {
		t.Errorf("Expected 1 fire at the interval, got %d", calls)
	}
	b.CheckTimers(base.Add(15 * time.Second))
	if calls != 1 {
		t.Errorf("Expected no fire between intervals, got %d", calls)
	}
	b.CheckTimers(base.Add(20 * time.Second))
	if calls != 2 {
		t.Errorf("Expected 2 fires after two intervals, got %d", calls)
	}
}

func TestTimerCatchUpReschedulesFromNow(t *testing.T) {
	b := NewEventBus(nil)
	base := time.Now()
	b.now = func() time.Time { return base }

	calls := 0
	b.Register("h.tick", "timer:10", func(data any) { calls++ })

	// The sweep stalled for ten minutes; the timer fires once and
	// reschedules from now instead of replaying every missed interval.
	late := base.Add(10 * time.Minute)
	b.CheckTimers(late)
	if calls != 1 {
		t.Errorf("Expected a single catch-up fire, got %d", calls)
	}
	b.CheckTimers(late.Add(5 * time.Second))
	if calls != 1 {
		t.Errorf("Expected no fire before the rescheduled interval, got %d", calls)
	}
	b.CheckTimers(late.Add(10 * time.Second))
	if calls != 2 {
		t.Errorf("Expected the next fire a full interval after catch-up, got %d", calls)
	}
}

func TestTimerBadIntervalSkipped(t *testing.T) {
	b := NewEventBus(nil)
	b.Register("h.bad", "timer:notanumber", func(data any) {
		t.Error("Handler with a bad interval must not fire")
	})
	b.Register("h.zero", "timer:0", func(data any) {
		t.Error("Handler with a zero interval must not fire")
	})
	b.CheckTimers(time.Now().Add(24 * time.Hour))
}
