package bmb

import (
	"github.com/gopher-motorsports/battery-management-system-23-sub000/link"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/pack"
)

// Chain drives every BMB in the daisy chain as a unit through a
// link.Transport. It owns the mux-cycling state the original firmware kept
// in updateBmbData's static muxState.
type Chain struct {
	tr       *link.Transport
	numBmbs  int
	muxState int
}

// NewChain wraps an already-enumerated transport (tr.NumBmbs() set by a
// prior HelloAll).
func NewChain(tr *link.Transport, numBmbs int) *Chain {
	return &Chain{tr: tr, numBmbs: numBmbs}
}

// InitBMBs runs the register-write sequence from bmb.c's initBmbs: enable
// the alive counter, enable measurement channels and acquisition config,
// arm the post-balancing settling delay, zero GPIO, then kick off the
// first 32-oversample acquisition.
func (c *Chain) InitBMBs() error {
	// Alive counter not yet enabled on any BMB, so this broadcast expects
	// a zero alive-counter reply exactly like the original's numBmbs=0.
	if err := c.tr.WriteAll(RegDEVCFG1, devcfg1AliveCounterEnable, 0); err != nil {
		return err
	}
	if err := c.tr.WriteAll(RegMEASUREEN, measureEnAll, c.numBmbs); err != nil {
		return err
	}
	if err := c.tr.WriteAll(RegACQCFG, acqCfgAll, c.numBmbs); err != nil {
		return err
	}
	if err := c.tr.WriteAll(RegAUTOBALSWDIS, autoBalSwDisDelay, c.numBmbs); err != nil {
		return err
	}
	if err := c.SetGPIO(0); err != nil {
		return err
	}
	return c.tr.WriteAll(RegSCANCTRL, initScanCtrl, c.numBmbs)
}

// SetGPIO broadcasts a 4-bit GPIO logic-state value to every BMB, with the
// high nibble forced to output mode (0xF000), matching the original's
// setGpio.
func (c *Chain) SetGPIO(bits uint16) error {
	data := 0xF000 | (bits & 0x000F)
	return c.tr.WriteAll(RegGPIO, data, c.numBmbs)
}

// UpdateBMBData is one pass of the acquisition cycle: verify the prior
// scan completed, read 12 brick voltages plus VBLOCK, read one mux
// position's AIN1/AIN2 temperature channels, advance the mux, and start
// the next acquisition. Callers gate this to DataRefreshPeriodMs.
func (c *Chain) UpdateBMBData(p *pack.State) error {
	scanWords, err := c.tr.ReadAll(RegSCANCTRL, c.numBmbs)
	if err != nil {
		return err
	}
	allDone := true
	for _, w := range scanWords {
		if w&scanDoneMask != scanDoneMask {
			allDone = false
		}
	}
	if !allDone {
		return errScanNotDone
	}

	for i := 0; i < pack.MaxBricksPerBMB; i++ {
		words, err := c.tr.ReadAll(byte(RegCELLn+i), c.numBmbs)
		if err != nil {
			c.markBrickMissing(p, i)
			continue
		}
		for j := 0; j < p.NumBMBs && j < c.numBmbs; j++ {
			if i >= p.BMBs[j].NumBricks {
				continue
			}
			raw := words[j] >> 2
			p.BMBs[j].BrickV[i] = float64(raw) * Convert14BitTo5V
			p.BMBs[j].BrickVStatus[i] = pack.StatusGood
		}
	}

	if words, err := c.tr.ReadAll(RegVBLOCK, c.numBmbs); err == nil {
		for j := 0; j < p.NumBMBs && j < c.numBmbs; j++ {
			raw := words[j] >> 2
			p.BMBs[j].BlockV = float64(raw) * Convert14BitTo60V
		}
	}

	c.readTempChannel(p, RegAIN1)
	c.readTempChannel(p, RegAIN2)

	c.muxState = (c.muxState + 1) % NumMuxChannels
	if err := c.setMux(); err != nil {
		return err
	}

	return c.tr.WriteAll(RegSCANCTRL, initScanCtrl, c.numBmbs)
}

// readTempChannel reads one AIN register across the chain at the current
// mux position and routes the converted voltage into either the
// board-temperature or brick-temperature halves, matching the original's
// muxState+NUM_*_PER_BMB/2 offset scheme for AIN2.
func (c *Chain) readTempChannel(p *pack.State, reg byte) {
	words, err := c.tr.ReadAll(reg, c.numBmbs)
	if err != nil {
		return
	}
	ain2 := reg == RegAIN2
	for j := 0; j < p.NumBMBs && j < c.numBmbs; j++ {
		raw := words[j] >> 4
		v := float64(raw) * Convert12BitTo3V3
		b := &p.BMBs[j]

		if c.muxState == Mux7 || c.muxState == Mux8 {
			idx := c.muxState - Mux7
			if ain2 {
				idx += pack.MaxBoardTempPerBMB / 2
			}
			b.BoardTempVoltage[idx] = v
			b.BoardTemp[idx] = NTCTable.Lookup(v)
			b.BoardTempStatus[idx] = pack.StatusGood
		} else {
			idx := c.muxState
			if ain2 {
				idx += pack.MaxBricksPerBMB / 2
			}
			if idx >= b.NumBricks {
				continue
			}
			b.BrickTempVoltage[idx] = v
			b.BrickTemp[idx] = ZenerTable.Lookup(v)
			b.BrickTempStatus[idx] = pack.StatusGood
		}
	}
}

// setMux drives GPIO0-2 with the 3-bit mux selector and writes GPIO3's
// logic bit as 0 on every update (the original's "Currently sets GPIO 4 to
// 0 when updating MUX" quirk).
func (c *Chain) setMux() error {
	return c.SetGPIO(uint16(c.muxState) & 0x7)
}

func (c *Chain) markBrickMissing(p *pack.State, brickIdx int) {
	for j := 0; j < p.NumBMBs; j++ {
		if brickIdx < p.BMBs[j].NumBricks {
			p.BMBs[j].BrickVStatus[brickIdx] = pack.StatusMissing
		}
	}
}

// BalanceCells packs b's Active bleed-switch flags into a single bitmask
// and writes it to BALSWEN on the addressed BMB, matching bms.c's
// balanceCells/writeDevice(BALSWEN, balanceSwEnabled, bmbIdx) call.
func (c *Chain) BalanceCells(bmbIndex int, b *pack.BMB) error {
	var mask uint16
	for i := 0; i < b.NumBricks; i++ {
		if b.Active[i] {
			mask |= 1 << uint(i)
		}
	}
	return c.tr.WriteDevice(bmbIndex, RegBALSWEN, mask)
}
