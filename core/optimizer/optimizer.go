package optimizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/m30lab/flowtwin/core/model"
)

// ErrInvalidBounds indicates a misconfigured speed range.
var ErrInvalidBounds = errors.New("invalid speed bounds")

// Bounds delimits the legal speed range of a recommendation in km/h.
type Bounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Validate checks that the range is well formed.
func (b Bounds) Validate() error {
	if b.Min < 0 {
		return fmt.Errorf("%w: negative minimum %.1f", ErrInvalidBounds, b.Min)
	}
	if b.Min > b.Max {
		return fmt.Errorf("%w: min %.1f exceeds max %.1f", ErrInvalidBounds, b.Min, b.Max)
	}
	return nil
}

// Clamp forces v into the bounds.
func (b Bounds) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Config holds the tunables of the speed policy.
type Config struct {
	// SafetyMargin places the target density below the critical one:
	// kTarget = critical*(1-margin). 0.05 means 5% below critical.
	SafetyMargin float64 `json:"safety_margin" yaml:"safety_margin"`
	// MinLegalSpeed is the lowest limit a recommendation may carry, km/h.
	MinLegalSpeed float64 `json:"min_legal_speed" yaml:"min_legal_speed"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.SafetyMargin == 0 {
		c.SafetyMargin = 0.05
	}
	if c.MinLegalSpeed == 0 {
		c.MinLegalSpeed = 50
	}
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.SafetyMargin <= 0 || c.SafetyMargin >= 1 {
		return fmt.Errorf("safety_margin must be in (0,1), got %v", c.SafetyMargin)
	}
	if c.MinLegalSpeed <= 0 {
		return fmt.Errorf("min_legal_speed must be positive, got %v", c.MinLegalSpeed)
	}
	return nil
}

// Optimizer derives variable speed limit recommendations from density.
type Optimizer struct {
	cfg Config
}

// New returns an optimizer with the given configuration.
func New(cfg Config) *Optimizer {
	return &Optimizer{cfg: cfg}
}

// RecommendSpeed returns the speed limit for the given density and regime,
// always clamped to bounds. In free flow the sensor's limit (bounds.Max) is
// kept. From the near-critical band onward the flow relation is inverted
// toward the target density critical*(1-margin): v = max*(kTarget/k). The
// rule decreases monotonically with density and saturates at bounds.Min once
// congestion is established, so the policy drains density instead of chasing
// throughput.
func (o *Optimizer) RecommendSpeed(density, criticalDensity float64, regime model.Regime, bounds Bounds) (float64, error) {
	if err := bounds.Validate(); err != nil {
		return 0, err
	}
	if regime == model.RegimeFreeFlow {
		return bounds.Clamp(bounds.Max), nil
	}
	kTarget := criticalDensity * (1 - o.cfg.SafetyMargin)
	if density <= kTarget || density <= 0 {
		return bounds.Clamp(bounds.Max), nil
	}
	return bounds.Clamp(bounds.Max * kTarget / density), nil
}

// Recommend wraps RecommendSpeed into the record consumed by the simulation
// engine and the dashboard feed.
func (o *Optimizer) Recommend(ts time.Time, sensorID string, density, criticalDensity float64, regime model.Regime, bounds Bounds) (model.SpeedRecommendation, error) {
	speed, err := o.RecommendSpeed(density, criticalDensity, regime, bounds)
	if err != nil {
		return model.SpeedRecommendation{}, err
	}
	return model.SpeedRecommendation{
		Timestamp: ts,
		SensorID:  sensorID,
		SpeedKmh:  speed,
		Regime:    regime,
	}, nil
}
