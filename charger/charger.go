// Package charger implements the charger request/validation state machine
// of spec.md §4.9, ported from original_source/Core/Inc/charger.h's
// hysteresis thresholds and sendChargerMessage/updateChargerData frame
// shapes.
package charger

import (
	"time"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/errcode"
)

// Hysteresis thresholds (MAX_CELL_IMBALANCE_THRES_* / MAX_CELL_VOLTAGE_THRES_*
// in the original firmware).
const (
	ImbalanceHigh   = 0.10
	ImbalanceLow    = 0.05
	CellVoltageHigh = 4.21
	CellVoltageLow  = 4.195
)

// Validation thresholds (CHARGER_*_MISMATCH_THRESHOLD).
const (
	VoltageMismatchThreshold = 15.0
	CurrentMismatchThreshold = 5.0
)

// RXTimeout is how long without a received frame before the charger is
// treated as disconnected (CHARGER_RX_TIMEOUT_MS).
const RXTimeout = 5000 * time.Millisecond

// TXPeriod is the cadence of outbound request frames (CHARGER_UPDATE_PERIOD_MS).
const TXPeriod = 10 * time.Millisecond

// Config holds the hysteresis and validation thresholds a device's config
// can override; DefaultConfig mirrors original_source/Core/Inc/charger.h's
// compiled-in constants.
type Config struct {
	ImbalanceHigh            float64
	ImbalanceLow             float64
	CellVoltageHigh          float64
	CellVoltageLow           float64
	VoltageMismatchThreshold float64
	CurrentMismatchThreshold float64
	RXTimeout                time.Duration
}

// DefaultConfig is used when a device's config doesn't override charger
// thresholds.
var DefaultConfig = Config{
	ImbalanceHigh:            ImbalanceHigh,
	ImbalanceLow:             ImbalanceLow,
	CellVoltageHigh:          CellVoltageHigh,
	CellVoltageLow:           CellVoltageLow,
	VoltageMismatchThreshold: VoltageMismatchThreshold,
	CurrentMismatchThreshold: CurrentMismatchThreshold,
	RXTimeout:                RXTimeout,
}

// Request is the controller's current decision: enable/disable plus the
// voltage/current setpoint to send when enabled.
type Request struct {
	Enable     bool
	VoltageReq float64
	CurrentReq float64
}

// HardwareFault enumerates the charger status-byte bit positions, scanned
// MSB-first; the first set bit wins.
type HardwareFault int

const (
	FaultNone HardwareFault = iota
	FaultHardwareFailure
	FaultOverTemperature
	FaultInputVoltage
	FaultStartingState
	FaultCommunicationTimeout
	FaultMismatch
	FaultCurrentOut
	FaultBatteryDisconnected
)

// EncodeFrame builds the 8-byte request frame: bytes 0-1 voltage x10,
// bytes 2-3 current x10 (big-endian), byte 4 high bit set = disable.
func EncodeFrame(req Request) [8]byte {
	var f [8]byte
	v := uint16(req.VoltageReq * 10)
	c := uint16(req.CurrentReq * 10)
	f[0] = byte(v >> 8)
	f[1] = byte(v)
	f[2] = byte(c >> 8)
	f[3] = byte(c)
	if !req.Enable {
		f[4] = 0x80
	}
	return f
}

// Status is the charger's decoded reply frame.
type Status struct {
	Voltage float64
	Current float64
	Fault   HardwareFault
}

// DecodeFrame decodes a received charger frame: bytes 0-3 as in
// EncodeFrame, byte 4 the hardware-fault status bitfield.
func DecodeFrame(f [8]byte) Status {
	v := uint16(f[0])<<8 | uint16(f[1])
	c := uint16(f[2])<<8 | uint16(f[3])
	return Status{
		Voltage: float64(v) / 10,
		Current: float64(c) / 10,
		Fault:   scanFaultByte(f[4]),
	}
}

// scanFaultByte walks byte bits MSB-first and returns the first set bit's
// fault, or FaultNone if the byte is clear.
func scanFaultByte(b byte) HardwareFault {
	for bit := 7; bit >= 0; bit-- {
		if b&(1<<uint(bit)) != 0 {
			return HardwareFault(8 - bit)
		}
	}
	return FaultNone
}

// Controller owns the hysteresis state machine and RX-timeout watch.
type Controller struct {
	cfg           Config
	enabled       bool
	cellsInSeries int
	maxCurrent    float64
	rxElapsed     time.Duration
	connected     bool
}

// New constructs a Controller that starts disabled, using DefaultConfig's
// hysteresis and validation thresholds.
func New(cellsInSeries int, maxChargeCurrent float64) *Controller {
	return NewWithConfig(cellsInSeries, maxChargeCurrent, DefaultConfig)
}

// NewWithConfig constructs a Controller using cfg's thresholds instead of
// DefaultConfig, for devices whose config overrides them.
func NewWithConfig(cellsInSeries int, maxChargeCurrent float64, cfg Config) *Controller {
	return &Controller{cfg: cfg, cellsInSeries: cellsInSeries, maxCurrent: maxChargeCurrent}
}

// Decide implements the hysteresis state machine: disable on either high
// threshold, (re-)enable once both drop to the low thresholds, otherwise
// hold the previous decision.
func (c *Controller) Decide(maxBrickV, imbalance float64) Request {
	switch {
	case imbalance >= c.cfg.ImbalanceHigh || maxBrickV >= c.cfg.CellVoltageHigh:
		c.enabled = false
	case imbalance <= c.cfg.ImbalanceLow && maxBrickV <= c.cfg.CellVoltageLow:
		c.enabled = true
	}

	if !c.enabled {
		return Request{Enable: false}
	}
	return Request{
		Enable:     true,
		VoltageReq: c.cfg.CellVoltageLow * float64(c.cellsInSeries),
		CurrentReq: c.maxCurrent,
	}
}

// Validate decodes st against the pack's measured state and returns the
// first fault found: a voltage mismatch, a current mismatch, or a
// hardware-reported fault bit.
func (c *Controller) Validate(st Status, avgBrickV, measuredCurrent float64) error {
	packVoltageEstimate := avgBrickV * float64(c.cellsInSeries)
	if absDiff(packVoltageEstimate, st.Voltage) > c.cfg.VoltageMismatchThreshold {
		return errcode.Wrap("charger.validate", errcode.ChargerVoltageFault, nil)
	}
	if absDiff(measuredCurrent, st.Current) > c.cfg.CurrentMismatchThreshold {
		return errcode.Wrap("charger.validate", errcode.ChargerCurrentFault, nil)
	}
	if st.Fault != FaultNone {
		return errcode.Wrap("charger.validate", errcode.ChargerHardwareFault, nil)
	}
	return nil
}

func absDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}

// TickRX advances the RX-timeout watch by dt; call Received on every frame
// arrival to reset it. Connected reports false once RXTimeout has elapsed
// without a frame.
func (c *Controller) TickRX(dt time.Duration) {
	c.rxElapsed += dt
	if c.rxElapsed >= c.cfg.RXTimeout {
		c.connected = false
	}
}

func (c *Controller) Received() {
	c.rxElapsed = 0
	c.connected = true
}

func (c *Controller) Connected() bool { return c.connected }
