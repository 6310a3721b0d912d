package model

import "time"

// Regime classifies a density measurement relative to the critical density.
type Regime int

const (
	RegimeFreeFlow Regime = iota
	RegimeNearCritical
	RegimeCongested
)

// String returns the regime name used in exports and metric labels.
func (r Regime) String() string {
	switch r {
	case RegimeFreeFlow:
		return "free_flow"
	case RegimeNearCritical:
		return "near_critical"
	case RegimeCongested:
		return "congested"
	default:
		return "unknown"
	}
}

// SpeedRecommendation is the optimizer output for a single timestep. It is
// consumed immediately by the simulation engine and optionally streamed to
// the dashboard; it is not authoritative state.
type SpeedRecommendation struct {
	Timestamp time.Time
	SensorID  string
	SpeedKmh  float64
	Regime    Regime
}
