// Package scenarios defines named simulation scenarios: a sensor, a date
// range and the optimizer parameters driving one engine run. Scenarios are
// pure configuration loaded from YAML files.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/m30lab/flowtwin/core/model"
	"github.com/m30lab/flowtwin/core/optimizer"
)

// Scenario parameterises one digital twin run.
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	SensorID    string    `yaml:"sensor_id"`
	Start       time.Time `yaml:"start"`
	End         time.Time `yaml:"end"`

	// Bounds default to [min legal speed, sensor free-flow limit] when left
	// zero; SafetyMargin overrides the optimizer default when set.
	Bounds       optimizer.Bounds `yaml:"bounds,omitempty"`
	SafetyMargin float64          `yaml:"safety_margin,omitempty"`
	// UseForecast routes the policy through the prediction engine instead
	// of reacting to the current simulated density.
	UseForecast bool `yaml:"use_forecast,omitempty"`
}

// Load reads a scenario definition from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

// SetDefaults completes the bounds from the sensor profile and the optimizer
// configuration.
func (s *Scenario) SetDefaults(profile model.SensorProfile, optCfg optimizer.Config) {
	if s.Bounds.Min == 0 {
		s.Bounds.Min = optCfg.MinLegalSpeed
	}
	if s.Bounds.Max == 0 {
		s.Bounds.Max = profile.FreeFlowLimit
	}
	if s.SafetyMargin == 0 {
		s.SafetyMargin = optCfg.SafetyMargin
	}
}

// Validate checks the definition is complete and the date range non-empty.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if s.SensorID == "" {
		return fmt.Errorf("scenario %s: sensor_id is required", s.Name)
	}
	if s.Start.IsZero() || s.End.IsZero() {
		return fmt.Errorf("scenario %s: start and end are required", s.Name)
	}
	if !s.Start.Before(s.End) {
		return fmt.Errorf("scenario %s: empty date range [%s, %s)", s.Name, s.Start, s.End)
	}
	return s.Bounds.Validate()
}

// Slice returns the observations of the scenario's sensor falling inside
// [Start, End). It fails when the range selects nothing, which means the
// scenario lies outside the available data.
func (s Scenario) Slice(series []model.Observation) ([]model.Observation, error) {
	out := make([]model.Observation, 0, len(series))
	for _, o := range series {
		if o.SensorID != s.SensorID {
			continue
		}
		if o.Timestamp.Before(s.Start) || !o.Timestamp.Before(s.End) {
			continue
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("scenario %s: no observations for %s in [%s, %s)",
			s.Name, s.SensorID, s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	}
	return out, nil
}
