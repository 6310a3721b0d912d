// Package metrics defines the observability surface of the simulation
// service: run summaries and paired trace points recorded by pluggable
// sinks. The simulation engine itself never touches a sink; the application
// layer forwards completed runs.
package metrics

import (
	"errors"
	"time"

	"github.com/m30lab/flowtwin/core/sim"
)

var errMissingInflux = errors.New("influx sink enabled without url, org or bucket")

// RunRecord summarises one completed digital twin run.
type RunRecord struct {
	RunID           string
	Scenario        string
	SensorID        string
	CriticalDensity float64

	RealMeanSpeed float64
	SimMeanSpeed  float64

	SpeedImprovementPct      float64
	ThroughputImprovementPct float64

	CongestedStepsReal int
	CongestedStepsSim  int

	Elapsed time.Duration
	Time    time.Time
}

// NewRunRecord flattens a result into the record consumed by the sinks.
func NewRunRecord(scenario string, res *sim.Result, elapsed time.Duration) RunRecord {
	return RunRecord{
		RunID:                    res.RunID,
		Scenario:                 scenario,
		SensorID:                 res.SensorID,
		CriticalDensity:          res.CriticalDensity,
		RealMeanSpeed:            res.RealMetrics.MeanSpeed,
		SimMeanSpeed:             res.SimMetrics.MeanSpeed,
		SpeedImprovementPct:      res.SpeedImprovementPct,
		ThroughputImprovementPct: res.ThroughputImprovementPct,
		CongestedStepsReal:       res.RealMetrics.CongestedSteps,
		CongestedStepsSim:        res.SimMetrics.CongestedSteps,
		Elapsed:                  elapsed,
		Time:                     time.Now(),
	}
}

// Sink records run summaries.
type Sink interface {
	RecordRun(rec RunRecord) error
}

// TraceRecorder is implemented by sinks able to persist the per-timestep
// paired series for the dashboard.
type TraceRecorder interface {
	RecordTrace(rec RunRecord, real, simulated []sim.TracePoint) error
}

// NopSink implements Sink and TraceRecorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunRecord) error { return nil }

func (NopSink) RecordTrace(RunRecord, []sim.TracePoint, []sim.TracePoint) error { return nil }

// Config selects and configures the enabled sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled" yaml:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port" yaml:"prometheus_port"`

	InfluxEnabled bool   `json:"influx_enabled" yaml:"influx_enabled"`
	InfluxURL     string `json:"influx_url" yaml:"influx_url"`
	InfluxToken   string `json:"influx_token" yaml:"influx_token"`
	InfluxOrg     string `json:"influx_org" yaml:"influx_org"`
	InfluxBucket  string `json:"influx_bucket" yaml:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = "2112"
	}
}

// Validate checks mandatory fields of the enabled sinks.
func (c Config) Validate() error {
	if c.InfluxEnabled && (c.InfluxURL == "" || c.InfluxOrg == "" || c.InfluxBucket == "") {
		return errMissingInflux
	}
	return nil
}
