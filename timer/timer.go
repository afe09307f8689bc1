// Package timer implements the monotonic countdown accumulators used by the
// alert state machine and the SoC goodness gate (spec.md §3, §4.7,
// §4.10). Ported from the behaviour
// of original_source/Core/Src/timer.c: a saturating tick counter compared
// against a fixed threshold, never from a wall-clock timestamp, so it keeps
// working across the scheduler's fixed-period ticks regardless of how they
// are driven (real clock, simulated clock in tests).
package timer

import "time"

// Timer is a monotonic, saturating tick counter. The zero value is a timer
// with threshold 0 (already expired); call Configure before use.
type Timer struct {
	count     time.Duration
	threshold time.Duration
}

// New returns a Timer with count 0 and the given expiry threshold.
func New(threshold time.Duration) Timer {
	return Timer{threshold: threshold}
}

// Configure resets count to 0 and sets a new threshold.
func (t *Timer) Configure(threshold time.Duration) {
	t.count = 0
	t.threshold = threshold
}

// Clear resets the count to 0 without touching the threshold.
func (t *Timer) Clear() { t.count = 0 }

// Saturate forces the count to the threshold, making Expired true
// immediately.
func (t *Timer) Saturate() { t.count = t.threshold }

// Advance increments the count by dt, saturating at threshold so the
// internal counter never grows unbounded across a long-cleared timer.
func (t *Timer) Advance(dt time.Duration) {
	remaining := t.threshold - t.count
	if dt < remaining {
		t.count += dt
	} else {
		t.count = t.threshold
	}
}

// Expired reports whether count has reached threshold.
func (t *Timer) Expired() bool { return t.count >= t.threshold }

// Threshold returns the configured expiry threshold.
func (t *Timer) Threshold() time.Duration { return t.threshold }

// Elapsed returns the current count.
func (t *Timer) Elapsed() time.Duration { return t.count }
