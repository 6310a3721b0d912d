package metrics

import (
	"testing"
	"time"

	"github.com/m30lab/flowtwin/core/sim"
)

func TestNewRunRecord(t *testing.T) {
	res := &sim.Result{
		RunID:                    "run-1",
		SensorID:                 "PM-30-01",
		CriticalDensity:          40,
		RealMetrics:              sim.TraceMetrics{MeanSpeed: 50, CongestedSteps: 4},
		SimMetrics:               sim.TraceMetrics{MeanSpeed: 62, CongestedSteps: 1},
		SpeedImprovementPct:      24,
		ThroughputImprovementPct: 8,
	}
	rec := NewRunRecord("morning_rush", res, 120*time.Millisecond)

	if rec.RunID != "run-1" || rec.Scenario != "morning_rush" || rec.SensorID != "PM-30-01" {
		t.Fatalf("identity fields wrong: %+v", rec)
	}
	if rec.RealMeanSpeed != 50 || rec.SimMeanSpeed != 62 {
		t.Fatalf("mean speeds wrong: %+v", rec)
	}
	if rec.CongestedStepsReal != 4 || rec.CongestedStepsSim != 1 {
		t.Fatalf("congested steps wrong: %+v", rec)
	}
	if rec.Elapsed != 120*time.Millisecond {
		t.Fatalf("elapsed wrong: %v", rec.Elapsed)
	}
	if rec.Time.IsZero() {
		t.Fatal("record time not set")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{InfluxEnabled: true}
	cfg.SetDefaults()
	if cfg.PrometheusPort != "2112" {
		t.Fatalf("default port: %s", cfg.PrometheusPort)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for influx without url")
	}
	cfg.InfluxURL = "http://localhost:8086"
	cfg.InfluxOrg = "traffic"
	cfg.InfluxBucket = "runs"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
