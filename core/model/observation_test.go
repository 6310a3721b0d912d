package model

import (
	"testing"
	"time"
)

func TestNewObservation_DerivesFlow(t *testing.T) {
	ts := time.Date(2019, 1, 8, 8, 0, 0, 0, time.UTC)
	o, err := NewObservation(ts, "PM-30-01", 25, 80)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Flow != 2000 {
		t.Fatalf("expected flow 2000, got %v", o.Flow)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("derived observation must validate: %v", err)
	}
}

func TestNewObservation_RejectsNegative(t *testing.T) {
	ts := time.Now()
	if _, err := NewObservation(ts, "PM-30-01", -1, 80); err == nil {
		t.Fatal("expected error for negative density")
	}
	if _, err := NewObservation(ts, "PM-30-01", 10, -5); err == nil {
		t.Fatal("expected error for negative speed")
	}
}

func TestObservation_ValidateInconsistentFlow(t *testing.T) {
	o := Observation{Timestamp: time.Now(), SensorID: "PM-30-01", Density: 20, Speed: 90, Flow: 1500}
	if err := o.Validate(); err == nil {
		t.Fatal("expected unit-consistency error")
	}
}

func TestRegime_String(t *testing.T) {
	cases := map[Regime]string{
		RegimeFreeFlow:     "free_flow",
		RegimeNearCritical: "near_critical",
		RegimeCongested:    "congested",
		Regime(42):         "unknown",
	}
	for r, want := range cases {
		if got := r.String(); got != want {
			t.Fatalf("regime %d: got %q want %q", r, got, want)
		}
	}
}

func TestSensorProfile_Validate(t *testing.T) {
	p := SensorProfile{SensorID: "PM-30-01", FreeFlowLimit: 90, CriticalDensity: 40}
	if err := p.Validate(); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}
	bad := []SensorProfile{
		{FreeFlowLimit: 90, CriticalDensity: 40},
		{SensorID: "PM-30-01", CriticalDensity: 40},
		{SensorID: "PM-30-01", FreeFlowLimit: 90},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
