// Package config resolves the per-device pack topology, tuning constants,
// and balance/charger threshold overrides, and publishes them onto the
// bus, adapted from services/config's embedded-JSON ConfigService to the
// BMS's pack/cell topology instead of arbitrary service settings.
package config

import (
	"context"
	"errors"
	"time"

	"github.com/andreyvit/tinyjson"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/balance"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/bus"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/charger"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/x/strx"
)

// defaultDeviceID is the fallback device used when a caller passes an
// empty device ID (e.g. a bootloader that hasn't yet read a provisioned
// identity out of flash).
const defaultDeviceID = "bms-core"

const (
	serviceName  = "config"
	configPrefix = "config"
	// CtxDeviceKey is the context key under which the device ID used to
	// select an embedded config is stored.
	CtxDeviceKey = "device"
)

// EmbeddedConfigLookup resolves a device ID to its raw JSON config.
// Overridable for tests.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Pack is the compiled pack topology, tuning constants, and per-subsystem
// threshold overrides a device's embedded config describes. Top-level
// fields the device's JSON omits keep the harness default below
// (defaultPack); omitted Balance/Charger fields keep their own package
// defaults.
type Pack struct {
	NumBMBs           int
	BricksPerBMB      int
	CellsInSeries     int
	PackCapacityAh    float64
	MaxChargeCurrentA float64
	HeartbeatInterval float64 // seconds

	Balance balance.Config
	Charger charger.Config
}

// defaultPack describes the single-BMB 12-brick reference harness used
// when a device's config omits a field.
var defaultPack = Pack{
	NumBMBs:           1,
	BricksPerBMB:      12,
	CellsInSeries:     12,
	PackCapacityAh:    100,
	MaxChargeCurrentA: 20,
	HeartbeatInterval: 2,
	Balance:           balance.DefaultConfig,
	Charger:           charger.DefaultConfig,
}

// Load decodes device's embedded JSON config into a Pack, filling any
// field the JSON doesn't mention from defaultPack.
func Load(device string) (Pack, error) {
	device = strx.Coalesce(device, defaultDeviceID)
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return Pack{}, errors.New("config: no embedded config for device: " + device)
	}
	m, err := decodeObject(raw)
	if err != nil {
		return Pack{}, err
	}

	p := defaultPack
	if v, ok := numberField(m, "numBMBs"); ok {
		p.NumBMBs = int(v)
	}
	if v, ok := numberField(m, "bricksPerBMB"); ok {
		p.BricksPerBMB = int(v)
	}
	if v, ok := numberField(m, "cellsInSeries"); ok {
		p.CellsInSeries = int(v)
	}
	if v, ok := numberField(m, "packCapacityAh"); ok {
		p.PackCapacityAh = v
	}
	if v, ok := numberField(m, "maxChargeCurrentA"); ok {
		p.MaxChargeCurrentA = v
	}
	if hb, ok := m["heartbeat"].(map[string]any); ok {
		if v, ok := numberField(hb, "interval"); ok {
			p.HeartbeatInterval = v
		}
	}
	if bal, ok := m["balance"].(map[string]any); ok {
		if v, ok := numberField(bal, "thresholdV"); ok {
			p.Balance.ThresholdV = v
		}
		if v, ok := numberField(bal, "minBleedTargetV"); ok {
			p.Balance.MinBleedTargetV = v
		}
	}
	if chg, ok := m["charger"].(map[string]any); ok {
		if v, ok := numberField(chg, "imbalanceHigh"); ok {
			p.Charger.ImbalanceHigh = v
		}
		if v, ok := numberField(chg, "imbalanceLow"); ok {
			p.Charger.ImbalanceLow = v
		}
		if v, ok := numberField(chg, "cellVoltageHigh"); ok {
			p.Charger.CellVoltageHigh = v
		}
		if v, ok := numberField(chg, "cellVoltageLow"); ok {
			p.Charger.CellVoltageLow = v
		}
		if v, ok := numberField(chg, "voltageMismatchThreshold"); ok {
			p.Charger.VoltageMismatchThreshold = v
		}
		if v, ok := numberField(chg, "currentMismatchThreshold"); ok {
			p.Charger.CurrentMismatchThreshold = v
		}
		if v, ok := numberField(chg, "rxTimeoutMs"); ok {
			p.Charger.RXTimeout = time.Duration(v) * time.Millisecond
		}
	}
	return p, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()
	m, ok := val.(map[string]any)
	if !ok {
		return nil, errors.New("config: embedded config is not a JSON object")
	}
	return m, nil
}

func numberField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key].(float64)
	return v, ok
}

// Service publishes a device's raw config keys as retained bus messages,
// unchanged in shape from services/config's ConfigService, so any
// subscriber (heartbeat's interval, a future tuning console) can pick up
// a value without importing this package.
type Service struct {
	Name string
}

func NewService() *Service { return &Service{Name: serviceName} }

func (s *Service) publish(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("config: missing device ID in context")
	}
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("config: no embedded config for device: " + device)
	}
	m, err := decodeObject(raw)
	if err != nil {
		return err
	}
	for k, v := range m {
		conn.Publish(&bus.Message{
			Topic:    bus.T(configPrefix, k),
			Payload:  v,
			Retained: true,
		})
	}
	return nil
}

// Start launches the config publisher in a goroutine, mirroring
// services/config's Start.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publish(ctx, conn); err != nil {
			// Nothing else to do: the scheduler runs on the Pack that
			// Load already resolved and never reads the retained topics.
			_ = err
		}
	}()
}
