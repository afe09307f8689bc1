package config

import (
	"context"
	"testing"
	"time"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/bus"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/charger"
)

func TestLoadOverridesChargerRXTimeout(t *testing.T) {
	old := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "slow-rx" {
			return nil, false
		}
		return []byte(`{"charger": {"rxTimeoutMs": 500}}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = old })

	p, err := Load("slow-rx")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Charger.RXTimeout != 500*time.Millisecond {
		t.Fatalf("expected overridden RXTimeout=500ms, got %v", p.Charger.RXTimeout)
	}
}

func TestLoadKnownDeviceOverridesDefaults(t *testing.T) {
	p, err := Load("bms-core")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.NumBMBs != 1 || p.BricksPerBMB != 12 || p.CellsInSeries != 12 {
		t.Fatalf("unexpected topology: %+v", p)
	}
	if p.PackCapacityAh != 100 || p.MaxChargeCurrentA != 20 {
		t.Fatalf("unexpected tuning: %+v", p)
	}
	if p.HeartbeatInterval != 2 {
		t.Fatalf("unexpected heartbeat interval: %v", p.HeartbeatInterval)
	}
}

func TestLoadUnknownDeviceErrors(t *testing.T) {
	if _, err := Load("nonexistent"); err == nil {
		t.Fatal("expected an error for an unprovisioned device")
	}
}

func TestLoadFillsMissingFieldsFromDefault(t *testing.T) {
	old := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "partial" {
			return nil, false
		}
		return []byte(`{"numBMBs": 3}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = old })

	p, err := Load("partial")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.NumBMBs != 3 {
		t.Fatalf("expected overridden numBMBs=3, got %v", p.NumBMBs)
	}
	if p.BricksPerBMB != defaultPack.BricksPerBMB {
		t.Fatalf("expected default bricksPerBMB, got %v", p.BricksPerBMB)
	}
}

func TestLoadOverridesBalanceAndChargerThresholds(t *testing.T) {
	old := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "tuned" {
			return nil, false
		}
		return []byte(`{
			"balance": {"thresholdV": 0.005, "minBleedTargetV": 3.20},
			"charger": {"cellVoltageHigh": 4.22, "imbalanceLow": 0.02}
		}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = old })

	p, err := Load("tuned")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Balance.ThresholdV != 0.005 || p.Balance.MinBleedTargetV != 3.20 {
		t.Fatalf("unexpected balance overrides: %+v", p.Balance)
	}
	if p.Charger.CellVoltageHigh != 4.22 || p.Charger.ImbalanceLow != 0.02 {
		t.Fatalf("unexpected charger overrides: %+v", p.Charger)
	}
	if p.Charger.CellVoltageLow != charger.CellVoltageLow {
		t.Fatalf("expected un-overridden charger field to keep its default, got %v", p.Charger.CellVoltageLow)
	}
}

func TestServicePublishesRetainedKeys(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "bms-core")
	svc.Start(ctx, conn)

	sub := conn.Subscribe(bus.Topic{configPrefix, "+"})
	defer sub.Unsubscribe()

	seen := map[string]bool{}
	deadline := time.After(time.Second)
	for len(seen) < 6 {
		select {
		case m := <-sub.Channel():
			key, _ := m.Topic[1].(string)
			seen[key] = true
		case <-deadline:
			t.Fatalf("timed out waiting for retained config keys, got %v", seen)
		}
	}
}
