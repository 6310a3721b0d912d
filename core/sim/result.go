package sim

import (
	"time"

	"github.com/m30lab/flowtwin/core/model"
)

// RunState tracks the lifecycle of one simulation run. A failed run carries
// no partial results and must be restarted with corrected input.
type RunState int

const (
	StateInitialized RunState = iota
	StateRunning
	StateCompleted
	StateFailed
)

// String returns the state name used in logs and metric labels.
func (s RunState) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TracePoint is one timestep of either trace.
type TracePoint struct {
	Timestamp time.Time
	Density   float64
	Speed     float64
	Flow      float64
	Regime    model.Regime
}

// TraceMetrics aggregates a single trace. Throughput is flow integrated over
// the step durations and is therefore a vehicle count.
type TraceMetrics struct {
	MeanSpeed          float64
	MeanDensity        float64
	TotalThroughput    float64
	CongestedSteps     int
	CongestedIntervals int
	CongestedDuration  time.Duration
}

// Result is the outcome of one digital twin run. It is owned by the caller
// for the duration of one run and replaced on the next.
type Result struct {
	RunID           string
	SensorID        string
	CriticalDensity float64
	State           RunState

	Real            []TracePoint
	Simulated       []TracePoint
	Recommendations []model.SpeedRecommendation

	RealMetrics TraceMetrics
	SimMetrics  TraceMetrics

	SpeedImprovementPct      float64
	ThroughputImprovementPct float64
}
