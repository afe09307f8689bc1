package scheduler

import (
	"context"
	"time"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/alert"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/balance"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/bmb"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/bus"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/charger"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/config"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/display"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/errcode"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/irest"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/link"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/obslog"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/pack"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/soc"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/x/mathx"
)

// Main-loop cadence constants (spec.md §4.11/§5).
const (
	MainPeriod    = time.Millisecond
	ChargerPeriod = charger.TXPeriod
	DisplayPeriod = 2 * time.Second
	SoCPeriod     = 100 * time.Millisecond
	HelloRetries  = 5
)

// CurrentSensor reads the pack current sensor once per call; good reports
// whether the reading should be trusted this cycle.
type CurrentSensor interface {
	Read() (amps float64, good bool)
}

// ChargerLink is the CAN-like duplex to the charger: Send transmits a
// request frame, Recv returns the most recently received status frame (if
// any arrived since the last call).
type ChargerLink interface {
	Send(frame [8]byte) error
	Recv() (frame [8]byte, ok bool)
}

// Runtime owns every piece of per-pack state and wiring the main loop
// needs: the single writer of pack.State (spec.md §5, §9).
type Runtime struct {
	cfg    config.Pack
	tr     *link.Transport
	chain  *bmb.Chain
	p      pack.State
	alerts []*alert.Alert
	charge *charger.Controller
	soc    *soc.Estimator
	irest  *irest.Estimator

	currentSensor CurrentSensor
	chargerLink   ChargerLink

	conn    *bus.Connection
	ticker  *Ticker
	log     *obslog.Logger
	lastRun time.Time
}

// New wires a Runtime for one pack from its resolved config and transport
// dependencies. conn is the bus connection the display feed publishes
// retained snapshots over.
func New(cfg config.Pack, tr *link.Transport, sensor CurrentSensor, chargerLink ChargerLink, conn *bus.Connection) *Runtime {
	r := &Runtime{
		cfg:           cfg,
		tr:            tr,
		alerts:        alert.DefaultTable(),
		charge:        charger.NewWithConfig(cfg.CellsInSeries, cfg.MaxChargeCurrentA, cfg.Charger),
		soc:           soc.New(50, cfg.PackCapacityAh),
		irest:         irest.New(),
		currentSensor: sensor,
		chargerLink:   chargerLink,
		conn:          conn,
		ticker:        NewTicker(),
		log:           obslog.Default,
	}
	r.p.NumBMBs = cfg.NumBMBs
	for i := 0; i < cfg.NumBMBs && i < pack.MaxBMBsPerPack; i++ {
		r.p.BMBs[i].NumBricks = cfg.BricksPerBMB
	}
	return r
}

// Init enumerates the daisy chain and brings every BMB to its initial
// acquisition state, matching bms.c's startup sequence: hello_all retried
// up to HelloRetries times, then a device-count check, then InitBMBs.
func (r *Runtime) Init() error {
	var lastErr error
	for attempt := 0; attempt < HelloRetries; attempt++ {
		count, err := r.tr.HelloAll()
		if err == nil {
			if count != r.cfg.NumBMBs {
				return errcode.Wrap("scheduler.init", errcode.DeviceCountWrong, nil)
			}
			r.chain = bmb.NewChain(r.tr, count)
			r.log.Info("bmb chain enumerated, count=", obslog.Milli(int32(count), 0))
			return r.chain.InitBMBs()
		}
		lastErr = err
	}
	r.p.HWState = pack.HWSensorFailure
	return errcode.Wrap("scheduler.init", errcode.DeviceInitFailed, lastErr)
}

// RunMain drives the fixed-period main loop until ctx is cancelled:
// acquisition and balancing gated to bmb.DataRefreshPeriodMs, alert
// evaluation every tick, charger control at ChargerPeriod, SoC/SoE at
// SoCPeriod, and the display feed at DisplayPeriod.
func (r *Runtime) RunMain(ctx context.Context) error {
	r.ticker.Every("acquire", bmb.DataRefreshPeriodMs*time.Millisecond, r.tickAcquire)
	r.ticker.Every("balance", bmb.DataRefreshPeriodMs*time.Millisecond, r.tickBalance)
	r.ticker.Every("alerts", MainPeriod, r.tickAlerts)
	r.ticker.Every("charger", ChargerPeriod, r.tickCharger)
	r.ticker.Every("soc", SoCPeriod, r.tickSoC)
	r.ticker.Every("display", DisplayPeriod, r.tickDisplay)

	t := time.NewTicker(MainPeriod)
	defer t.Stop()
	r.lastRun = time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			dt := now.Sub(r.lastRun)
			r.lastRun = now
			r.ticker.Advance(dt)
		}
	}
}

func (r *Runtime) tickAcquire() {
	if r.chain == nil {
		return
	}
	if err := r.chain.UpdateBMBData(&r.p); err != nil {
		r.log.Warn("acquisition: ", err.Error())
		return
	}
	pack.Aggregate(&r.p)
	r.p.CommsLinkFilled = r.tr.Health().Filled()
}

func (r *Runtime) tickBalance() {
	if alert.CombineResponses(r.alerts)&alert.RespEmergencyBleed != 0 {
		balance.PackToVoltage(&r.p, r.cfg.Balance.MinBleedTargetV, r.cfg.Balance)
	} else {
		balance.Pack(&r.p, r.p.BalanceRequested, r.cfg.Balance)
	}
	if r.chain == nil {
		return
	}
	for i := 0; i < r.p.NumBMBs; i++ {
		if err := r.chain.BalanceCells(i, &r.p.BMBs[i]); err != nil {
			r.log.Warn("balance write: ", err.Error())
		}
	}
}

func (r *Runtime) tickAlerts() {
	for _, a := range r.alerts {
		a.Run(&r.p, MainPeriod)
	}
	resp := alert.CombineResponses(r.alerts)
	if resp&alert.RespDisableBalancing != 0 {
		r.p.BalanceRequested = false
	}
	if resp&alert.RespAMSFault != 0 {
		r.p.AMSLatched = true
	}
}

func (r *Runtime) tickCharger() {
	if r.currentSensor != nil {
		amps, good := r.currentSensor.Read()
		r.p.CurrentA = amps
		r.p.CurrentSensorFailed = !good
		r.irest.Tick(&r.p, amps, good)
	}

	resp := alert.CombineResponses(r.alerts)
	imbalance := r.p.MaxBrickV - r.p.MinBrickV
	req := r.charge.Decide(r.p.MaxBrickV, imbalance)
	if resp&alert.RespStopCharging != 0 {
		req.Enable = false
	}

	if r.chargerLink == nil {
		return
	}
	_ = r.chargerLink.Send(charger.EncodeFrame(req))
	r.charge.TickRX(ChargerPeriod)
	if frame, ok := r.chargerLink.Recv(); ok {
		r.charge.Received()
		st := charger.DecodeFrame(frame)
		if err := r.charge.Validate(st, r.p.AvgBrickV, r.p.CurrentA); err != nil {
			r.log.Fault("charger: ", err.Error())
		}
	}
}

func (r *Runtime) tickSoC() {
	minV := pack.MinBrickVAcrossPack(&r.p)
	socPercent, soePercent := r.soc.Update(minV, r.p.CurrentA, SoCPeriod)
	r.p.SoCPercent = mathx.Clamp(socPercent, 0, 100)
	r.p.SoEPercent = mathx.Clamp(soePercent, 0, 100)
}

func (r *Runtime) tickDisplay() {
	if r.conn == nil {
		return
	}
	snapshot := r.p
	r.conn.Publish(&bus.Message{
		Topic:    display.Topic,
		Payload:  &snapshot,
		Retained: true,
	})
}

// State exposes a copy of the current pack state, for callers outside the
// main loop's single-writer goroutine (tests, cmd wiring before RunMain
// starts).
func (r *Runtime) State() pack.State { return r.p }
