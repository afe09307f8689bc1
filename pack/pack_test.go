package pack

import "testing"

func TestAggregateBMBExcludesNonGoodSamples(t *testing.T) {
	var b BMB
	b.NumBricks = 4
	b.BrickV = [MaxBricksPerBMB]float64{3.70, 3.71, 9.99, 3.69}
	b.BrickVStatus[0] = StatusGood
	b.BrickVStatus[1] = StatusGood
	b.BrickVStatus[2] = StatusMissing
	b.BrickVStatus[3] = StatusGood

	AggregateBMB(&b)

	if b.MinBrickV != 3.69 || b.MaxBrickV != 3.71 {
		t.Fatalf("min/max = %v/%v", b.MinBrickV, b.MaxBrickV)
	}
	if b.MinBrickV > b.AvgBrickV || b.AvgBrickV > b.MaxBrickV {
		t.Fatalf("avg %v outside [min,max]", b.AvgBrickV)
	}
}

func TestHappyScanScenario(t *testing.T) {
	// spec.md §8 scenario 1.
	var p State
	p.NumBMBs = 1
	b := &p.BMBs[0]
	b.NumBricks = 12
	for i := 0; i < 12; i++ {
		b.BrickV[i] = 3.700 + float64(i)*0.001
		b.BrickVStatus[i] = StatusGood
	}

	Aggregate(&p)

	if p.MinBrickV != 3.700 {
		t.Fatalf("min = %v", p.MinBrickV)
	}
	if diff := p.MaxBrickV - 3.711; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("max = %v, want 3.711", p.MaxBrickV)
	}
	if diff := p.AvgBrickV - 3.7055; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("avg = %v, want 3.7055", p.AvgBrickV)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	var p State
	p.NumBMBs = 1
	b := &p.BMBs[0]
	b.NumBricks = 3
	b.BrickV = [MaxBricksPerBMB]float64{3.7, 3.8, 3.75}
	b.BrickVStatus[0], b.BrickVStatus[1], b.BrickVStatus[2] = StatusGood, StatusGood, StatusGood

	Aggregate(&p)
	first := p
	Aggregate(&p)

	if p != first {
		t.Fatalf("aggregation is not idempotent: %+v != %+v", p, first)
	}
}

func TestAggregateAllMissingYieldsZero(t *testing.T) {
	var b BMB
	b.NumBricks = 2
	b.BrickV[0], b.BrickV[1] = 3.7, 3.8
	b.BrickVStatus[0], b.BrickVStatus[1] = StatusMissing, StatusMissing

	AggregateBMB(&b)

	if b.MinBrickV != 0 || b.MaxBrickV != 0 || b.AvgBrickV != 0 {
		t.Fatalf("expected zeroed aggregates with no good samples, got %+v", b)
	}
}
