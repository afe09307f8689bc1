// Package alert implements the condition-bounded alert state machine of
// spec.md §4.7: a predicate over pack state gated by a set-timer and a
// clear-timer, latching between cleared and set with hysteresis. Grounded
// on the timer/predicate pattern in original_source's alert handling
// (bms.h's fault latches) and the teacher's device-code style of static,
// never-destroyed state machines.
package alert

import (
	"time"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/pack"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/timer"
)

// Status is the alert's latch state.
type Status uint8

const (
	Cleared Status = iota
	Set
)

// Response is a bitmask of actions the scheduler applies while an alert is
// Set; bits OR-combine across every alert currently latched set.
type Response uint8

const (
	RespInfo Response = 1 << iota
	RespDisableBalancing
	RespEmergencyBleed
	RespStopCharging
	RespLimpMode
	RespAMSFault
)

// Predicate is a pure function over pack state; it must not mutate p.
type Predicate func(p *pack.State) bool

// Alert is one static state machine: created once at startup and never
// destroyed, its Status only moves through Run.
type Alert struct {
	Name      string
	Predicate Predicate
	SetTime   time.Duration
	ClearTime time.Duration
	Resp      Response

	status     Status
	setTimer   timer.Timer
	clearTimer timer.Timer
}

// New constructs an Alert in the Cleared state with both timers at zero.
func New(name string, pred Predicate, setTime, clearTime time.Duration, resp Response) *Alert {
	return &Alert{
		Name:       name,
		Predicate:  pred,
		SetTime:    setTime,
		ClearTime:  clearTime,
		Resp:       resp,
		status:     Cleared,
		setTimer:   timer.New(setTime),
		clearTimer: timer.New(clearTime),
	}
}

// Status reports the current latch state.
func (a *Alert) Status() Status { return a.status }

// Run evaluates Predicate against p, advances the relevant timer by dt, and
// performs the cleared<->set transition once a timer reaches its threshold.
// A transient toggle (predicate flips before its timer expires) resets the
// opposing timer, matching spec.md §4.7.
func (a *Alert) Run(p *pack.State, dt time.Duration) {
	holds := a.Predicate(p)

	switch a.status {
	case Cleared:
		if holds {
			a.setTimer.Advance(dt)
			if a.setTimer.Expired() {
				a.status = Set
				a.clearTimer.Clear()
			}
		} else {
			a.setTimer.Clear()
		}
	case Set:
		if !holds {
			a.clearTimer.Advance(dt)
			if a.clearTimer.Expired() {
				a.status = Cleared
				a.setTimer.Clear()
			}
		} else {
			a.clearTimer.Clear()
		}
	}
}

// GetResponse returns the alert's configured response bits only while Set.
func (a *Alert) GetResponse() Response {
	if a.status == Set {
		return a.Resp
	}
	return 0
}
