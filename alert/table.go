package alert

import (
	"time"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/pack"
)

// Reference thresholds for the default alert set; production tuning lives
// in config, these are the values the original firmware hard-coded.
const (
	CellOvervoltage         = 4.20
	CellOvervoltageCritical = 4.25 // MAX_BRICK_FAULT_VOLTAGE
	CellUndervoltage        = 2.80
	BoardOvertemp           = 60.0 // degrees C
)

// DefaultTable returns the six example alerts spec.md §4.7 names, freshly
// constructed (each Alert owns its own timers, so never share instances
// across packs/tests).
func DefaultTable() []*Alert {
	return []*Alert{
		New("overvoltage",
			func(p *pack.State) bool { return p.MaxBrickV >= CellOvervoltage },
			2*time.Second, 2*time.Second,
			RespDisableBalancing|RespStopCharging),

		New("critical-overvoltage",
			func(p *pack.State) bool { return p.MaxBrickV >= CellOvervoltageCritical },
			1*time.Second, 1*time.Second,
			RespEmergencyBleed|RespStopCharging|RespAMSFault),

		New("undervoltage",
			func(p *pack.State) bool { return p.MinBrickV <= CellUndervoltage && p.MinBrickV > 0 },
			2*time.Second, 2*time.Second,
			RespStopCharging|RespLimpMode),

		New("overtemperature",
			func(p *pack.State) bool { return p.MaxBrickTemp >= BoardOvertemp || p.MaxBoardTemp >= BoardOvertemp },
			5*time.Second, 5*time.Second,
			RespDisableBalancing|RespStopCharging),

		New("comms-link-filled",
			func(p *pack.State) bool { return p.CommsLinkFilled },
			1*time.Second, 1*time.Second,
			RespStopCharging|RespAMSFault),

		New("current-sensor-failed",
			func(p *pack.State) bool { return p.CurrentSensorFailed },
			1*time.Second, 1*time.Second,
			RespInfo|RespLimpMode),
	}
}

// CombineResponses OR-combines every alert's current response bits, the
// scheduler's single fold-back point into pack control (spec.md §4.7).
func CombineResponses(alerts []*Alert) Response {
	var r Response
	for _, a := range alerts {
		r |= a.GetResponse()
	}
	return r
}
