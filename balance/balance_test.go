package balance

import "github.com/gopher-motorsports/battery-management-system-23-sub000/pack"
import "testing"

func TestAdjacencyRuleNeverActivatesNeighbors(t *testing.T) {
	// spec.md §8 scenario 2.
	var p pack.State
	p.NumBMBs = 1
	b := &p.BMBs[0]
	b.NumBricks = 12
	voltages := []float64{4.00, 4.00, 4.00, 4.00, 3.50, 4.00, 4.00, 4.00, 4.00, 4.00, 4.00, 4.00}
	for i, v := range voltages {
		b.BrickV[i] = v
		b.BrickVStatus[i] = pack.StatusGood
	}

	pack.Aggregate(&p)
	Pack(&p, true, DefaultConfig)

	for i := 0; i < b.NumBricks; i++ {
		if i != 4 && !b.Requested[i] {
			t.Fatalf("brick %d should be requested, target did not exceed 3.502", i)
		}
	}
	if b.Requested[4] {
		t.Fatalf("brick 4 at 3.50V should not be requested above target 3.502")
	}

	for i := 0; i < b.NumBricks; i++ {
		if b.Active[i] {
			if i > 0 && b.Active[i-1] {
				t.Fatalf("adjacency violated at %d/%d", i-1, i)
			}
			if i < b.NumBricks-1 && b.Active[i+1] {
				t.Fatalf("adjacency violated at %d/%d", i, i+1)
			}
		}
	}
}

func TestBalanceRequestedFalseClearsAllRequests(t *testing.T) {
	var p pack.State
	p.NumBMBs = 1
	b := &p.BMBs[0]
	b.NumBricks = 4
	for i := range b.Requested {
		b.Requested[i] = true
	}

	Pack(&p, false, DefaultConfig)
	Pack(&p, false, DefaultConfig)

	for i := 0; i < b.NumBricks; i++ {
		if b.Requested[i] {
			t.Fatalf("brick %d still requested after balance_pack(false)", i)
		}
		if b.Active[i] {
			t.Fatalf("brick %d still active after balance_pack(false)", i)
		}
	}
}

func TestNoBrickRequestedBelowFloor(t *testing.T) {
	var p pack.State
	p.NumBMBs = 1
	b := &p.BMBs[0]
	b.NumBricks = 3
	b.BrickV = [pack.MaxBricksPerBMB]float64{3.20, 3.25, 3.40}
	for i := 0; i < 3; i++ {
		b.BrickVStatus[i] = pack.StatusGood
	}

	pack.Aggregate(&p)
	Pack(&p, true, DefaultConfig)

	for i := 0; i < b.NumBricks; i++ {
		if b.Requested[i] && b.BrickV[i] <= MinBleedTargetVoltage {
			t.Fatalf("brick %d requested at %v, below floor %v", i, b.BrickV[i], MinBleedTargetVoltage)
		}
	}
}
