// Package leakybucket implements the hysteretic failure counter the
// wire-link transport uses to decide when a sustained comms failure rate
// should raise an alert, ported from
// original_source/Core/Src/leakyBucket.c. It fills on Failure, drains on
// Success, and latches Filled() at fill >= FillThreshold; the latch only
// clears once the level drops below ClearThreshold, giving hysteresis
// between the two thresholds so a single lucky success does not mask a
// sustained failure rate.
package leakybucket

// Config carries the four tunables as a value type so every transport/bus
// pairing (there is normally exactly one wire-link, but tests construct
// several) gets its own independent bucket.
type Config struct {
	FillThreshold  int32 // fill level at or above which Filled() latches true
	ClearThreshold int32 // fill level below which the latch clears
	SuccessDrain   int32 // amount drained per Success()
	FailureFill    int32 // amount filled per Failure()
}

// Reference is the reference configuration from spec.md §4.2: fail +10,
// drain 1, set at 200, clear at 100, trips near a 1:10 sustained
// failure-to-success ratio.
var Reference = Config{
	FillThreshold:  200,
	ClearThreshold: 100,
	SuccessDrain:   1,
	FailureFill:    10,
}

// Bucket is a configured leaky bucket instance.
type Bucket struct {
	cfg    Config
	level  int32
	filled bool
}

// New constructs an empty, unfilled Bucket.
func New(cfg Config) *Bucket {
	return &Bucket{cfg: cfg}
}

// Failure partially fills the bucket, clamped at FillThreshold, and latches
// Filled() if the threshold is reached.
func (b *Bucket) Failure() {
	remaining := b.cfg.FillThreshold - b.level
	if remaining <= b.cfg.FailureFill {
		b.level += remaining
		b.filled = true
	} else {
		b.level += b.cfg.FailureFill
	}
}

// Success partially drains the bucket, clamped at 0, and clears Filled()
// once the level drops below ClearThreshold.
func (b *Bucket) Success() {
	drain := b.cfg.SuccessDrain
	if drain > b.level {
		drain = b.level
	}
	b.level -= drain
	if b.level < b.cfg.ClearThreshold {
		b.filled = false
	}
}

// Filled reports the latched state.
func (b *Bucket) Filled() bool { return b.filled }

// Level returns the current fill level, mostly useful for diagnostics.
func (b *Bucket) Level() int32 { return b.level }

// Reset zeroes the fill level without touching the latch, mirroring
// resetLeakyBucket in the original firmware (used after the comms link is
// recycled at a fresh init, not in the normal failure/success path).
func (b *Bucket) Reset() { b.level = 0 }
