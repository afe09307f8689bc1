package alert

import (
	"testing"
	"time"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/pack"
)

func alwaysTrue(*pack.State) bool  { return true }
func alwaysFalse(*pack.State) bool { return false }

func TestPredicateNeverHoldingStaysCleared(t *testing.T) {
	a := New("never", alwaysFalse, time.Second, time.Second, RespInfo)
	var p pack.State
	for i := 0; i < 100; i++ {
		a.Run(&p, 50*time.Millisecond)
	}
	if a.Status() != Cleared {
		t.Fatalf("expected Cleared, got %v", a.Status())
	}
}

func TestPredicateAlwaysHoldingSetsNoSoonerThanSetTime(t *testing.T) {
	a := New("always", alwaysTrue, 500*time.Millisecond, time.Second, RespInfo)
	var p pack.State

	a.Run(&p, 400*time.Millisecond)
	if a.Status() != Cleared {
		t.Fatalf("set too early: %v", a.Status())
	}
	a.Run(&p, 200*time.Millisecond)
	if a.Status() != Set {
		t.Fatalf("did not set by threshold: %v", a.Status())
	}
}

// spec.md §8 scenario 6: set=2000ms, clear=2000ms.
func TestOvervoltageHysteresisScenario(t *testing.T) {
	held := false
	a := New("overvoltage", func(*pack.State) bool { return held }, 2*time.Second, 2*time.Second, RespStopCharging)
	var p pack.State

	run := func(h bool, d time.Duration) {
		held = h
		a.Run(&p, d)
	}

	run(true, 1500*time.Millisecond)
	if a.Status() != Cleared {
		t.Fatalf("after 1500ms true: expected Cleared, got %v", a.Status())
	}

	run(true, 1000*time.Millisecond) // cumulative 2500ms true
	if a.Status() != Set {
		t.Fatalf("after 2500ms true: expected Set, got %v", a.Status())
	}

	run(false, 1000*time.Millisecond)
	if a.Status() != Set {
		t.Fatalf("after 1000ms false: expected Set, got %v", a.Status())
	}

	run(false, 1100*time.Millisecond) // cumulative 2100ms false
	if a.Status() != Cleared {
		t.Fatalf("after 2100ms false: expected Cleared, got %v", a.Status())
	}
}

func TestTransientToggleResetsOpposingTimer(t *testing.T) {
	state := true
	a := New("flaky", func(*pack.State) bool { return state }, time.Second, time.Second, RespInfo)
	var p pack.State

	a.Run(&p, 900*time.Millisecond)
	state = false
	a.Run(&p, 10*time.Millisecond)
	state = true
	a.Run(&p, 900*time.Millisecond)
	if a.Status() != Cleared {
		t.Fatalf("expected still cleared after reset, got %v", a.Status())
	}
	a.Run(&p, 200*time.Millisecond)
	if a.Status() != Set {
		t.Fatalf("expected set after full set_time accumulated post-reset, got %v", a.Status())
	}
}

func TestCombineResponsesORsAcrossSetAlerts(t *testing.T) {
	a1 := New("a", alwaysTrue, 0, time.Second, RespStopCharging)
	a2 := New("b", alwaysFalse, time.Second, 0, RespAMSFault)
	var p pack.State
	a1.Run(&p, time.Nanosecond)
	a2.Run(&p, time.Nanosecond)

	r := CombineResponses([]*Alert{a1, a2})
	if r&RespStopCharging == 0 {
		t.Fatal("expected RespStopCharging from set alert a1")
	}
	if r&RespAMSFault != 0 {
		t.Fatal("did not expect RespAMSFault from cleared alert a2")
	}
}
