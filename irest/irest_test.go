package irest

import (
	"testing"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/pack"
)

func TestDiscreteBufferEmitsSentinelOnBadSample(t *testing.T) {
	c := NewCurrentEstimator()
	var fresh bool
	for i := 0; i < DiscreteCurrentBufferLen; i++ {
		good := i != 1 // one bad sample in the window
		fresh = c.Push(10.0, good)
	}
	if !fresh {
		t.Fatal("expected buffer to emit once full")
	}
	// the just-emitted slot is the one before idx (slot 0, with idx now 1)
	emittedIdx := (AverageBufferSize - 1 + c.idx) % AverageBufferSize
	if !IsSentinel(c.At(emittedIdx)) {
		t.Fatalf("expected sentinel after a bad sample in the window, got %v", c.At(emittedIdx))
	}
}

func TestCleanWindowEmitsArithmeticMean(t *testing.T) {
	c := NewCurrentEstimator()
	for i := 0; i < DiscreteCurrentBufferLen; i++ {
		c.Push(5.0, true)
	}
	emittedIdx := (AverageBufferSize - 1 + c.idx) % AverageBufferSize
	if c.At(emittedIdx) != 5.0 {
		t.Fatalf("expected mean 5.0, got %v", c.At(emittedIdx))
	}
}

func TestNoResistanceUpdateUntilValidExtremaInRange(t *testing.T) {
	// spec.md §8 scenario 5.
	e := New()
	var p pack.State
	p.NumBMBs = 1
	p.BMBs[0].NumBricks = 1
	p.BMBs[0].BrickVStatus[0] = pack.StatusGood
	p.BMBs[0].BrickV[0] = 3.70

	// First window: one bad current sample poisons it, so no resistance
	// update should occur even once the voltage window also emits.
	for i := 0; i < DiscreteCurrentBufferLen; i++ {
		bad := i == 0
		e.Tick(&p, 10.0, !bad)
	}
	if p.BMBs[0].BrickResistance[0] != 0 {
		t.Fatalf("expected no resistance update from a poisoned window, got %v", p.BMBs[0].BrickResistance[0])
	}

	// Drive enough additional clean, varying windows to populate at least
	// two valid average-buffer entries with a delta in range.
	for w := 0; w < AverageBufferSize; w++ {
		amps := 10.0 + float64(w)*5.0
		for i := 0; i < DiscreteCurrentBufferLen; i++ {
			p.BMBs[0].BrickV[0] = 3.70 + float64(w)*0.001
			e.Tick(&p, amps, true)
		}
	}

	if p.BMBs[0].BrickResistance[0] == 0 {
		t.Fatalf("expected a resistance estimate once valid extrema in range were available")
	}
}
