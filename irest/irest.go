// Package irest estimates per-brick internal resistance from windowed
// ΔV/ΔI, ported from the discrete/average buffer pattern in
// original_source/Core/Inc/internalResistance.h (putCurrentBuffer,
// putVoltageBuffer) and spec.md §4.8.
package irest

import "github.com/gopher-motorsports/battery-management-system-23-sub000/pack"

// Sentinel marks "no valid sample"; IsSentinel treats any value at or below
// sentinelThreshold (-900) as invalid. IR_BAD_DATA in the original firmware
// is -1000.
const Sentinel = -1000.0

const sentinelThreshold = -900.0

// IsSentinel reports whether v should be treated as invalid.
func IsSentinel(v float64) bool { return v <= sentinelThreshold }

// Window sizing: a 5-second shifting window split into 10 average-buffer
// slots, with the discrete per-tick buffer length derived from each
// channel's own sample period (DISCRETE_*_BUFFER_SIZE in the original).
const (
	ShiftingWindowMs    = 5000
	AverageBufferSize   = 10
	CurrentSamplePeriod = 100 // ms, matches the BMB data-refresh cadence this estimator rides on
	VoltageSamplePeriod = 100 // ms
)

const (
	DiscreteCurrentBufferLen = ShiftingWindowMs / (AverageBufferSize * CurrentSamplePeriod)
	DiscreteVoltageBufferLen = ShiftingWindowMs / (AverageBufferSize * VoltageSamplePeriod)
)

// MinDeltaCurrent is the smallest |ΔI| the estimator trusts to produce a
// resistance estimate; IR_CALC_MIN_CURRENT_DELTA in the original firmware.
const MinDeltaCurrent = 1.0

// MaxDeltaCurrent bounds the other side: too large a current swing between
// the two samples risks non-linear effects dominating the estimate.
// CURRENT_LOW_TO_HIGH_SWITCH_THRESHOLD in the original firmware.
const MaxDeltaCurrent = 75.0

// discreteBuffer accumulates raw samples before emitting a mean into the
// circular average buffer; any bad sample in the window poisons it.
type discreteBuffer struct {
	samples [DiscreteCurrentBufferLen]float64
	n       int
	bad     bool
}

func (d *discreteBuffer) push(v float64, good bool) (emit float64, emitted bool) {
	if !good {
		d.bad = true
	}
	if d.n < len(d.samples) {
		d.samples[d.n] = v
		d.n++
	}
	if d.n < len(d.samples) {
		return 0, false
	}
	if d.bad {
		emit = Sentinel
	} else {
		sum := 0.0
		for _, s := range d.samples {
			sum += s
		}
		emit = sum / float64(len(d.samples))
	}
	d.n = 0
	d.bad = false
	return emit, true
}

// CurrentEstimator drives the current-average ring buffer for the pack's
// single current sensor.
type CurrentEstimator struct {
	discrete discreteBuffer
	avg      [AverageBufferSize]float64
	idx      int
	fresh    bool
}

// NewCurrentEstimator returns an estimator with every average slot at the
// sentinel.
func NewCurrentEstimator() *CurrentEstimator {
	c := &CurrentEstimator{}
	for i := range c.avg {
		c.avg[i] = Sentinel
	}
	return c
}

// Push ingests one current sample. fresh reports whether this tick emitted
// a new average-buffer entry (both channels emitting together is what
// gates CalculateInternalResistance).
func (c *CurrentEstimator) Push(amps float64, good bool) (fresh bool) {
	v, emitted := c.discrete.push(amps, good)
	if !emitted {
		return false
	}
	c.avg[c.idx] = v
	c.idx = (c.idx + 1) % len(c.avg)
	return true
}

// Extrema returns the indices of the max and min valid entries in the
// average buffer; ok is true only when they are different slots (at least
// two valid entries, not all equal).
func (c *CurrentEstimator) Extrema() (iMax, iMin int, ok bool) {
	first := true
	for i, v := range c.avg {
		if IsSentinel(v) {
			continue
		}
		if first {
			iMax, iMin = i, i
			first = false
			continue
		}
		if v > c.avg[iMax] {
			iMax = i
		}
		if v < c.avg[iMin] {
			iMin = i
		}
	}
	return iMax, iMin, !first && iMax != iMin
}

func (c *CurrentEstimator) At(i int) float64 { return c.avg[i] }

// BrickVoltageEstimator mirrors CurrentEstimator but per (bmb, brick).
type BrickVoltageEstimator struct {
	discrete discreteBuffer
	avg      [AverageBufferSize]float64
	idx      int
}

func NewBrickVoltageEstimator() *BrickVoltageEstimator {
	v := &BrickVoltageEstimator{}
	for i := range v.avg {
		v.avg[i] = Sentinel
	}
	return v
}

func (v *BrickVoltageEstimator) Push(volts float64, good bool) (fresh bool) {
	val, emitted := v.discrete.push(volts, good)
	if !emitted {
		return false
	}
	v.avg[v.idx] = val
	v.idx = (v.idx + 1) % len(v.avg)
	return true
}

func (v *BrickVoltageEstimator) At(i int) float64 { return v.avg[i] }

// Estimator owns one CurrentEstimator and one BrickVoltageEstimator per
// (bmb, brick), matching the pack's fixed topology.
type Estimator struct {
	Current *CurrentEstimator
	Voltage [pack.MaxBMBsPerPack][pack.MaxBricksPerBMB]*BrickVoltageEstimator
}

func New() *Estimator {
	e := &Estimator{Current: NewCurrentEstimator()}
	for i := range e.Voltage {
		for j := range e.Voltage[i] {
			e.Voltage[i][j] = NewBrickVoltageEstimator()
		}
	}
	return e
}

// Tick pushes the pack's current current/voltage samples into every
// channel, then, when both current and voltage emitted a fresh average
// this cycle, recomputes brick resistance in place on p.
func (e *Estimator) Tick(p *pack.State, currentAmps float64, currentGood bool) {
	currentFresh := e.Current.Push(currentAmps, currentGood)

	voltageFresh := false
	for i := 0; i < p.NumBMBs; i++ {
		b := &p.BMBs[i]
		for j := 0; j < b.NumBricks; j++ {
			good := b.BrickVStatus[j] == pack.StatusGood
			if e.Voltage[i][j].Push(b.BrickV[j], good) {
				voltageFresh = true
			}
		}
	}

	if currentFresh && voltageFresh {
		e.calculate(p)
	}
}

// calculate implements calculate_internal_resistance: find the current
// average buffer's extrema, and if the spread is in-range, write R=ΔV/ΔI
// for every (bmb, brick) with valid entries at both extrema.
func (e *Estimator) calculate(p *pack.State) {
	iMax, iMin, ok := e.Current.Extrema()
	if !ok {
		return
	}
	deltaI := e.Current.At(iMax) - e.Current.At(iMin)
	absDeltaI := deltaI
	if absDeltaI < 0 {
		absDeltaI = -absDeltaI
	}
	if absDeltaI < MinDeltaCurrent || absDeltaI > MaxDeltaCurrent {
		return
	}

	for i := 0; i < p.NumBMBs; i++ {
		b := &p.BMBs[i]
		for j := 0; j < b.NumBricks; j++ {
			vMax := e.Voltage[i][j].At(iMax)
			vMin := e.Voltage[i][j].At(iMin)
			if IsSentinel(vMax) || IsSentinel(vMin) {
				continue
			}
			b.BrickResistance[j] = (vMax - vMin) / deltaI
		}
	}
}
