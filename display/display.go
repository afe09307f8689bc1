// Package display builds the summary struct the e-paper rasterizer reads
// (spec.md §4.11/§6's display mailbox) and drains it from the bus's
// single-slot overwriteable subscription pattern: a queue length of 1 fed
// only retained publishes is exactly the mailbox spec.md describes, so no
// separate mailbox type is needed (bus.go's doc comment and
// scheduler.Runtime.tickDisplay's retained publish are the other halves of
// this wiring).
package display

import (
	"context"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/bus"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/pack"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/x/fmtx"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/x/shmring"
)

// Topic is the retained topic the scheduler publishes pack snapshots to.
var Topic = bus.Topic{"pack", "display"}

// Summary is the fixed set of fields the display mailbox carries.
type Summary struct {
	MinBrickV, MaxBrickV, AvgBrickV          float64
	MinBrickTemp, MaxBrickTemp, AvgBrickTemp float64
	MinBoardTemp, MaxBoardTemp, AvgBoardTemp float64
	SoCPercent                               float64
	StateLabel                               string
	FaultLabel                               string
}

// Build derives a Summary from a pack snapshot. AvgBrickTemp/AvgBoardTemp
// are taken from BMB 0 when the pack has BMBs, matching the single-pack
// aggregate display shows; a multi-BMB pack's full per-board breakdown is
// left to the rasterizer's secondary screens.
func Build(p *pack.State) Summary {
	s := Summary{
		MinBrickV:    p.MinBrickV,
		MaxBrickV:    p.MaxBrickV,
		AvgBrickV:    p.AvgBrickV,
		MinBrickTemp: p.MinBrickTemp,
		MaxBrickTemp: p.MaxBrickTemp,
		MinBoardTemp: p.MinBoardTemp,
		MaxBoardTemp: p.MaxBoardTemp,
		SoCPercent:   p.SoCPercent,
		StateLabel:   stateLabel(p),
		FaultLabel:   faultLabel(p),
	}
	if p.NumBMBs > 0 {
		s.AvgBrickTemp = p.BMBs[0].AvgBrickTemp
		s.AvgBoardTemp = p.BMBs[0].AvgBoardTemp
	}
	return s
}

func stateLabel(p *pack.State) string {
	if p.HWState == pack.HWSensorFailure {
		return "SENSOR FAULT"
	}
	if p.AMSLatched || p.IMDLatched || p.BSPDLatched {
		return "SAFETY FAULT"
	}
	if p.BalanceRequested {
		return "BALANCING"
	}
	return "NOMINAL"
}

func faultLabel(p *pack.State) string {
	switch {
	case p.AMSLatched:
		return "AMS"
	case p.IMDLatched:
		return "IMD"
	case p.BSPDLatched:
		return "BSPD"
	case p.CommsLinkFilled:
		return "COMMS"
	case p.CurrentSensorFailed:
		return "ISENSE"
	default:
		return "-"
	}
}

// Line renders a Summary as one fixed-layout text line for the e-paper
// rasterizer's partial-refresh region.
func Line(s Summary) string {
	return fmtx.Sprintf("%s V[%d/%d/%d]mV T[%d/%d]dC SOC[%d]%% %s",
		s.StateLabel,
		int(s.MinBrickV*1000), int(s.MaxBrickV*1000), int(s.AvgBrickV*1000),
		int(s.MinBrickTemp*10), int(s.MaxBrickTemp*10),
		int(s.SoCPercent),
		s.FaultLabel)
}

// Feed subscribes to the display mailbox and hands each drained summary to
// Render; the display task's I/O-bound refresh sequence is treated as
// opaque (spec.md §9's ambiguity (a) on the e-paper's magic register
// writes), so Render is the rasterizer's hook.
type Feed struct {
	conn    *bus.Connection
	Render  func(Summary)
	Console *shmring.Ring
}

// NewFeed wraps conn; Run subscribes it to the display topic with the
// single-slot overwriteable queue the bus connection was constructed with.
func NewFeed(conn *bus.Connection, render func(Summary)) *Feed {
	return &Feed{conn: conn, Render: render}
}

// Run drains the mailbox until ctx is cancelled, rendering only the latest
// snapshot on each wake (the bus already collapsed any backlog). When
// Console is set, the rendered line is also mirrored onto it, the same
// dual console/UART fan-out cmd/boardtest's out.println does with its
// shmring rings: a full ring silently drops the mirror rather than
// blocking the display task.
func (f *Feed) Run(ctx context.Context) {
	sub := f.conn.Subscribe(Topic)
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.Channel():
			p, ok := msg.Payload.(*pack.State)
			if !ok {
				continue
			}
			summary := Build(p)
			if f.Render != nil {
				f.Render(summary)
			}
			if f.Console != nil {
				_ = f.Console.TryWriteFrom([]byte(Line(summary) + "\n"))
			}
		}
	}
}
