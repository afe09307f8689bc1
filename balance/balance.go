// Package balance selects which brick balancing switches close, porting
// the adjacency-constrained selection in original_source/Core/Src/bmb.c's
// balance-switch write-out and the request-side target logic described in
// spec.md §4.5.
package balance

import (
	"sort"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/pack"
)

// MinBleedTargetVoltage is the floor no brick may be requested to bleed
// below, regardless of how low the rest of the pack sits. Mirrors
// MIN_BLEED_TARGET_VOLTAGE_V in original_source/Core/Inc/bms.h.
const MinBleedTargetVoltage = 3.30

// Threshold is added to the pack floor when deriving an automatic target,
// and to an explicit target before comparing against brick voltages.
// Mirrors BALANCE_THRESHOLD_V in original_source/Core/Inc/bms.h.
const Threshold = 0.002

// Config holds the balancing thresholds a device's config can override;
// DefaultConfig mirrors the original firmware's compiled-in constants.
type Config struct {
	ThresholdV      float64
	MinBleedTargetV float64
}

// DefaultConfig is used when a device's config doesn't override balancing
// thresholds.
var DefaultConfig = Config{ThresholdV: Threshold, MinBleedTargetV: MinBleedTargetVoltage}

// candidate pairs a brick index with its voltage for the adjacency sort.
type candidate struct {
	index   int
	voltage float64
}

// Cells activates, for each BMB, a greedy adjacency-respecting subset of
// Requested bricks: highest voltage first, skipping a brick if either
// neighbor is already active. Equal voltages leave earlier indices as
// candidates first (stable sort), matching the tie-break spec.md §4.3
// calls out.
func Cells(p *pack.State) {
	for bi := 0; bi < p.NumBMBs; bi++ {
		b := &p.BMBs[bi]
		for i := 0; i < b.NumBricks; i++ {
			b.Active[i] = false
		}

		var candidates []candidate
		for i := 0; i < b.NumBricks; i++ {
			if b.Requested[i] {
				candidates = append(candidates, candidate{i, b.BrickV[i]})
			}
		}
		sort.SliceStable(candidates, func(a, c int) bool {
			return candidates[a].voltage < candidates[c].voltage
		})

		for k := len(candidates) - 1; k >= 0; k-- {
			i := candidates[k].index
			if i > 0 && b.Active[i-1] {
				continue
			}
			if i < b.NumBricks-1 && b.Active[i+1] {
				continue
			}
			b.Active[i] = true
		}
	}
}

// Pack implements balance_pack(balance_requested): clearing every request
// when balancing is off, or deriving a target from the pack floor plus
// cfg.ThresholdV and requesting every brick above it, then invoking Cells.
func Pack(p *pack.State, balanceRequested bool, cfg Config) {
	p.BalanceRequested = balanceRequested
	if !balanceRequested {
		clearRequests(p)
		Cells(p)
		return
	}

	target := cfg.MinBleedTargetV
	if floor := pack.MinBrickVAcrossPack(p) + cfg.ThresholdV; floor > target {
		target = floor
	}
	requestAbove(p, target)
	Cells(p)
}

// PackToVoltage implements the explicit balance_pack_to_voltage(v) entry
// point: clamp v to the floor and request every brick above v+cfg.ThresholdV.
func PackToVoltage(p *pack.State, v float64, cfg Config) {
	p.BalanceRequested = true
	if v < cfg.MinBleedTargetV {
		v = cfg.MinBleedTargetV
	}
	requestAbove(p, v+cfg.ThresholdV)
	Cells(p)
}

func clearRequests(p *pack.State) {
	for bi := 0; bi < p.NumBMBs; bi++ {
		b := &p.BMBs[bi]
		for i := range b.Requested {
			b.Requested[i] = false
		}
	}
}

// requestAbove requests every brick strictly above target.
func requestAbove(p *pack.State, target float64) {
	for bi := 0; bi < p.NumBMBs; bi++ {
		b := &p.BMBs[bi]
		for i := 0; i < b.NumBricks; i++ {
			b.Requested[i] = b.BrickV[i] > target
		}
	}
}
