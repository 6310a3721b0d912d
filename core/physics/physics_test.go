package physics

import (
	"errors"
	"testing"

	"github.com/m30lab/flowtwin/core/model"
)

func TestDeriveFlow_Identity(t *testing.T) {
	cases := []struct{ k, v float64 }{
		{0, 0}, {10, 90}, {42.5, 63.2}, {120, 8},
	}
	for _, c := range cases {
		q, err := DeriveFlow(c.k, c.v)
		if err != nil {
			t.Fatalf("DeriveFlow(%v,%v): %v", c.k, c.v, err)
		}
		if q != c.k*c.v {
			t.Fatalf("DeriveFlow(%v,%v) = %v, want %v", c.k, c.v, q, c.k*c.v)
		}
	}
}

func TestDeriveFlow_NegativeInput(t *testing.T) {
	if _, err := DeriveFlow(-1, 50); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := DeriveFlow(10, -50); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeriveDensity(t *testing.T) {
	k, err := DeriveDensity(1800, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != 20 {
		t.Fatalf("expected density 20, got %v", k)
	}
	k, err = DeriveDensity(1800, 0)
	if err != nil || k != 0 {
		t.Fatalf("zero speed must yield zero density, got %v err %v", k, err)
	}
	if _, err := DeriveDensity(-1, 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClassifyRegime_Boundaries(t *testing.T) {
	const kc, band = 40.0, 0.10
	cases := []struct {
		density float64
		want    model.Regime
	}{
		{0, model.RegimeFreeFlow},
		{35.9, model.RegimeFreeFlow},
		{36, model.RegimeNearCritical}, // lower band edge
		{40, model.RegimeNearCritical}, // exactly critical
		{44, model.RegimeNearCritical}, // upper band edge
		{44.1, model.RegimeCongested},
		{90, model.RegimeCongested},
	}
	for _, c := range cases {
		if got := ClassifyRegime(c.density, kc, band); got != c.want {
			t.Fatalf("ClassifyRegime(%v) = %v, want %v", c.density, got, c.want)
		}
	}
}

func TestConfig_DefaultsAndValidation(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.NearCriticalBand != 0.10 || cfg.MinObservations != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	bad := Config{NearCriticalBand: 1.5, MinObservations: 10}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for band outside (0,1)")
	}
	bad = Config{NearCriticalBand: 0.1, MinObservations: 1}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for min_observations below 3")
	}
}
