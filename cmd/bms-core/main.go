//go:build pico

// Command bms-core is the controller's entry point on the Pico target: it
// wires the SPI wire-link, the daisy-chain transport, the scheduler
// runtime, the config/display/idle services, and the main loop, mirroring
// cmd/pico-hal-main's bus bootstrap and cmd/uart-test's pico-only build
// tag for hardware mains.
package main

import (
	"context"
	"time"

	"machine"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/bus"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/config"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/display"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/link"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/obslog"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/scheduler"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/x/shmring"
)

const deviceID = "bms-core"

// spiLink adapts machine.SPI0 to link.DuplexLink's Tx(w, r []byte) error
// shape, the same shape tinygo.org/x/drivers.SPI already exposes.
type spiLink struct {
	cs machine.Pin
}

func (s spiLink) Tx(w, r []byte) error {
	s.cs.Low()
	defer s.cs.High()
	return machine.SPI0.Tx(w, r)
}

// irqWaiter collapses the line driver's RX-stop interrupt into a single
// bounded channel wait, matching bmbInterface.c's xSemaphoreTake on
// asciSpiSemHandle inside an ISR callback.
type irqWaiter struct {
	done chan link.Status
}

func newIRQWaiter(pin machine.Pin) *irqWaiter {
	w := &irqWaiter{done: make(chan link.Status, 1)}
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	_ = pin.SetInterrupt(machine.PinRising, func(machine.Pin) {
		select {
		case w.done <- link.StatusSuccess:
		default:
		}
	})
	return w
}

func (w *irqWaiter) Wait(timeout time.Duration) link.Status {
	select {
	case s := <-w.done:
		return s
	case <-time.After(timeout):
		return link.StatusTimeout
	}
}

// heartbeatPin toggles a discrete GPIO output, satisfying
// scheduler.HeartbeatPin.
type heartbeatPin struct{ pin machine.Pin }

func (h heartbeatPin) Toggle() { h.pin.Set(!h.pin.Get()) }

// canChargerLink is a placeholder CAN-like duplex; the charger bus driver
// itself is out of scope (spec.md's charger control is a Non-goal for the
// physical CAN transceiver), so Send/Recv are no-ops until a real CAN
// driver is wired in.
type canChargerLink struct{}

func (canChargerLink) Send(frame [8]byte) error       { return nil }
func (canChargerLink) Recv() (frame [8]byte, ok bool) { return [8]byte{}, false }

func main() {
	time.Sleep(2 * time.Second)

	cs := machine.Pin(5)
	cs.Configure(machine.PinConfig{Mode: machine.PinOutput})
	cs.High()
	machine.SPI0.Configure(machine.SPIConfig{Frequency: 1_000_000, Mode: 0})

	irqPin := machine.Pin(6)
	hbPin := machine.Pin(25)
	hbPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	cfg, err := config.Load(deviceID)
	if err != nil {
		obslog.Default.Fault("config: ", err.Error())
		return
	}

	tr := link.New(spiLink{cs: cs}, newIRQWaiter(irqPin), cfg.NumBMBs)

	b := bus.NewBus(1)
	schedConn := b.NewConnection("scheduler")
	displayConn := b.NewConnection("display")
	idleConn := b.NewConnection("idle")
	cfgConn := b.NewConnection("config")

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, deviceID)
	config.NewService().Start(ctx, cfgConn)

	rt := scheduler.New(cfg, tr, nil, canChargerLink{}, schedConn)
	if err := rt.Init(); err != nil {
		obslog.Default.Fault("init: ", err.Error())
	}

	feed := display.NewFeed(displayConn, func(s display.Summary) {
		println(display.Line(s))
	})
	feed.Console = shmring.New(256)
	go feed.Run(ctx)

	idle := scheduler.NewIdleTask(heartbeatPin{pin: hbPin}, time.Duration(cfg.HeartbeatInterval*float64(time.Second)))
	go idle.Run(ctx, idleConn)

	if err := rt.RunMain(ctx); err != nil {
		obslog.Default.Fault("main loop: ", err.Error())
	}
}
