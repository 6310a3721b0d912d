// Package calibration derives read-only sensor profiles from historical
// observations: the free-flow speed limit via the 85th percentile rule and
// the critical density via the fundamental diagram fit.
package calibration

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/m30lab/flowtwin/core/model"
	"github.com/m30lab/flowtwin/core/physics"
)

// Config holds the calibration tunables.
type Config struct {
	// MinSamples is the minimum number of moving observations required to
	// infer a free-flow limit for a sensor.
	MinSamples int `json:"min_samples" yaml:"min_samples"`
	// Percentile of the observed speeds snapped to a standard limit.
	Percentile float64 `json:"percentile" yaml:"percentile"`
	// StandardLimits are the legal limits a sensor can be snapped to, km/h.
	StandardLimits []float64 `json:"standard_limits" yaml:"standard_limits"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MinSamples == 0 {
		c.MinSamples = 5
	}
	if c.Percentile == 0 {
		c.Percentile = 0.85
	}
	if len(c.StandardLimits) == 0 {
		c.StandardLimits = []float64{50, 70, 90}
	}
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.MinSamples < 1 {
		return fmt.Errorf("min_samples must be at least 1, got %d", c.MinSamples)
	}
	if c.Percentile <= 0 || c.Percentile >= 1 {
		return fmt.Errorf("percentile must be in (0,1), got %v", c.Percentile)
	}
	if len(c.StandardLimits) == 0 {
		return fmt.Errorf("standard_limits must not be empty")
	}
	return nil
}

// Calibrate builds the profile of one sensor from its history. Zero-speed
// samples are excluded from the limit inference, matching the free-flow
// filtering of the source data.
func Calibrate(sensorID string, obs []model.Observation, cfg Config, phys physics.Config) (model.SensorProfile, error) {
	speeds := make([]float64, 0, len(obs))
	for _, o := range obs {
		if o.SensorID != sensorID {
			return model.SensorProfile{}, fmt.Errorf("calibrate %s: observation from sensor %s", sensorID, o.SensorID)
		}
		if o.Speed > 0 {
			speeds = append(speeds, o.Speed)
		}
	}
	if len(speeds) < cfg.MinSamples {
		return model.SensorProfile{}, fmt.Errorf("%w: %d moving samples for %s, need %d",
			physics.ErrInsufficientData, len(speeds), sensorID, cfg.MinSamples)
	}
	sort.Float64s(speeds)
	v85 := stat.Quantile(cfg.Percentile, stat.Empirical, speeds, nil)
	limit := nearestLimit(v85, cfg.StandardLimits)

	critical, err := physics.EstimateCriticalDensity(obs, phys)
	if err != nil {
		return model.SensorProfile{}, fmt.Errorf("calibrate %s: %w", sensorID, err)
	}
	return model.SensorProfile{
		SensorID:        sensorID,
		FreeFlowLimit:   limit,
		CriticalDensity: critical,
	}, nil
}

// nearestLimit snaps the observed percentile speed to the closest standard
// limit, preferring the lower one on exact ties.
func nearestLimit(speed float64, limits []float64) float64 {
	best := limits[0]
	for _, l := range limits[1:] {
		if diff(l, speed) < diff(best, speed) {
			best = l
		}
	}
	return best
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
