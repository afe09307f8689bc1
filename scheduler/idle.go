package scheduler

import (
	"context"
	"time"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/bus"
)

var topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}

// HeartbeatPin is the discrete output the idle task toggles (spec.md §4.11's
// idle context, §9's heartbeat pin).
type HeartbeatPin interface {
	Toggle()
}

// IdleTask runs the lowest-priority cooperative task: a heartbeat GPIO
// toggle at a config-controlled period, subscribing to the same
// "config"/"heartbeat" topic services/heartbeat's ConfigService-driven
// interval reset used, generalized from a hardcoded 1s tick to the pack's
// resolved config.Pack.HeartbeatInterval.
type IdleTask struct {
	pin    HeartbeatPin
	period time.Duration
}

// NewIdleTask builds an IdleTask at the given initial period.
func NewIdleTask(pin HeartbeatPin, period time.Duration) *IdleTask {
	if period <= 0 {
		period = time.Second
	}
	return &IdleTask{pin: pin, period: period}
}

// Run toggles the heartbeat pin on every tick until ctx is cancelled,
// re-arming its own ticker whenever a retained "heartbeat.interval" config
// value arrives on conn.
func (t *IdleTask) Run(ctx context.Context, conn *bus.Connection) {
	var cfgCh <-chan *bus.Message
	if conn != nil {
		sub := conn.Subscribe(topicConfigHeartbeat)
		defer sub.Unsubscribe()
		cfgCh = sub.Channel()
	}

	tick := time.NewTicker(t.period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if t.pin != nil {
				t.pin.Toggle()
			}
		case msg := <-cfgCh:
			hb, ok := msg.Payload.(map[string]any)
			if !ok {
				continue
			}
			seconds, ok := hb["interval"].(float64)
			if !ok || seconds <= 0 {
				continue
			}
			t.period = time.Duration(seconds * float64(time.Second))
			tick.Reset(t.period)
		}
	}
}
