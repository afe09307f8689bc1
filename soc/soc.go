// Package soc implements state-of-charge/energy estimation: an
// open-circuit-voltage lookup blended with coulomb counting, ported from
// original_source/Core/Inc/soc.h's Soc_S and spec.md §4.10.
package soc

import (
	"time"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/lookup"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/timer"
)

// IResting and TRest gate OCV goodness: the pack must sit below IResting
// amps for TRest before an OCV-derived SoC is trusted as the reference
// point again.
const (
	IResting = 1.0
	TRest    = 10 * time.Minute
)

// OCVTable maps minimum cell voltage to percent state of charge. Values
// are illustrative of a typical Li-ion discharge curve; production tuning
// lives in config.
var OCVTable = lookup.Table{
	{X: 3.00, Y: 0},
	{X: 3.30, Y: 5},
	{X: 3.50, Y: 10},
	{X: 3.60, Y: 20},
	{X: 3.65, Y: 30},
	{X: 3.70, Y: 40},
	{X: 3.75, Y: 50},
	{X: 3.80, Y: 60},
	{X: 3.90, Y: 70},
	{X: 4.00, Y: 80},
	{X: 4.10, Y: 90},
	{X: 4.20, Y: 100},
}

// SoEFromSoCTable maps SoC percent to SoE percent through a second curve
// (energy sags faster than charge near the low end because of internal
// resistance losses).
var SoEFromSoCTable = lookup.Table{
	{X: 0, Y: 0},
	{X: 20, Y: 15},
	{X: 50, Y: 48},
	{X: 80, Y: 79},
	{X: 100, Y: 100},
}

// CoulombCounter accumulates signed milliamp-seconds of charge.
type CoulombCounter struct {
	InitialMilliCoulombs int64
	AccumulatedMC        int64
}

// Integrate folds currentAmps*dt into the accumulator, matching the
// original's accumulatedMilliCoulombs integration.
func (c *CoulombCounter) Integrate(currentAmps float64, dt time.Duration) {
	mC := currentAmps * dt.Seconds() * 1000
	c.AccumulatedMC += int64(mC)
}

// Estimator owns the goodness timer and last-good anchor the blend needs.
type Estimator struct {
	coulomb      CoulombCounter
	goodnessTime timer.Timer
	lastGoodSoC  float64
	capacityMC   float64 // full-pack capacity in milliCoulombs, for scaling the counting delta
	byOCV        float64
	byCounting   float64
}

// New constructs an Estimator seeded at initialSoC percent for a pack of
// the given capacity in amp-hours.
func New(initialSoC, capacityAh float64) *Estimator {
	return &Estimator{
		goodnessTime: timer.New(TRest),
		lastGoodSoC:  initialSoC,
		capacityMC:   capacityAh * 3600 * 1000,
	}
}

// SoCFromCellVoltage consults OCVTable for the given minimum cell voltage.
func SoCFromCellVoltage(minCellVoltage float64) float64 {
	return OCVTable.Lookup(minCellVoltage)
}

// SoEFromSoC maps soc through the second curve.
func SoEFromSoC(soc float64) float64 {
	return SoEFromSoCTable.Lookup(soc)
}

// Update implements updateSocAndSoe: advances or resets the OCV-goodness
// timer from |current| vs IResting, and reports SoC as the OCV lookup once
// the pack has rested for TRest, otherwise blended toward coulomb counting
// using socByCounting as the delta from the last good SoC.
func (e *Estimator) Update(minCellVoltage, currentAmps float64, dt time.Duration) (socPercent, soePercent float64) {
	abs := currentAmps
	if abs < 0 {
		abs = -abs
	}
	if abs < IResting {
		e.goodnessTime.Advance(dt)
	} else {
		e.goodnessTime.Clear()
	}

	e.coulomb.Integrate(currentAmps, dt)
	e.byOCV = SoCFromCellVoltage(minCellVoltage)

	deltaMC := float64(e.coulomb.AccumulatedMC)
	e.byCounting = e.lastGoodSoC
	if e.capacityMC != 0 {
		e.byCounting += (deltaMC / e.capacityMC) * 100
	}

	if e.goodnessTime.Expired() {
		e.lastGoodSoC = e.byOCV
		e.coulomb.AccumulatedMC = 0
		socPercent = e.byOCV
	} else {
		socPercent = e.byCounting
	}

	return socPercent, SoEFromSoC(socPercent)
}
