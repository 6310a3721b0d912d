package physics

import (
	"errors"
	"fmt"

	"github.com/m30lab/flowtwin/core/model"
)

var (
	// ErrInvalidInput indicates a malformed numeric input such as a
	// negative density or speed.
	ErrInvalidInput = errors.New("invalid traffic input")
	// ErrInsufficientData indicates the observation set is too small or too
	// degenerate to calibrate a reliable critical density.
	ErrInsufficientData = errors.New("insufficient observations")
)

// Config holds the tunables of the physics model. Defaults are applied with
// SetDefaults, never silently inside the calculations.
type Config struct {
	// NearCriticalBand is the fraction around the critical density that is
	// classified as near-critical. 0.10 means +/-10%.
	NearCriticalBand float64 `json:"near_critical_band" yaml:"near_critical_band"`
	// MinObservations is the minimum sample count required to estimate the
	// critical density.
	MinObservations int `json:"min_observations" yaml:"min_observations"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.NearCriticalBand == 0 {
		c.NearCriticalBand = 0.10
	}
	if c.MinObservations == 0 {
		c.MinObservations = 10
	}
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.NearCriticalBand <= 0 || c.NearCriticalBand >= 1 {
		return fmt.Errorf("near_critical_band must be in (0,1), got %v", c.NearCriticalBand)
	}
	if c.MinObservations < 3 {
		return fmt.Errorf("min_observations must be at least 3, got %d", c.MinObservations)
	}
	return nil
}

// DeriveFlow returns the flow q = k*v in veh/h.
func DeriveFlow(density, speed float64) (float64, error) {
	if density < 0 || speed < 0 {
		return 0, fmt.Errorf("%w: density=%.3f speed=%.3f", ErrInvalidInput, density, speed)
	}
	return density * speed, nil
}

// DeriveDensity returns the density k = q/v in veh/km. A zero speed yields a
// zero density, matching the convention used by the calibration data.
func DeriveDensity(flow, speed float64) (float64, error) {
	if flow < 0 || speed < 0 {
		return 0, fmt.Errorf("%w: flow=%.3f speed=%.3f", ErrInvalidInput, flow, speed)
	}
	if speed == 0 {
		return 0, nil
	}
	return flow / speed, nil
}

// ClassifyRegime maps a density to its traffic regime. Densities inside the
// band [critical*(1-band), critical*(1+band)] are near-critical; a density
// exactly at the critical value is therefore near-critical.
func ClassifyRegime(density, criticalDensity, band float64) model.Regime {
	lo := criticalDensity * (1 - band)
	hi := criticalDensity * (1 + band)
	switch {
	case density < lo:
		return model.RegimeFreeFlow
	case density <= hi:
		return model.RegimeNearCritical
	default:
		return model.RegimeCongested
	}
}
