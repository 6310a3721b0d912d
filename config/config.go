package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/m30lab/flowtwin/core/calibration"
	coremetrics "github.com/m30lab/flowtwin/core/metrics"
	"github.com/m30lab/flowtwin/core/optimizer"
	"github.com/m30lab/flowtwin/core/physics"
	"github.com/m30lab/flowtwin/core/sim"
	"github.com/m30lab/flowtwin/infra/mqtt"
)

// Config aggregates every tunable of the service. Each section owns its own
// defaults and validation.
type Config struct {
	Physics     physics.Config     `json:"physics"`
	Optimizer   optimizer.Config   `json:"optimizer"`
	Simulation  sim.Config         `json:"simulation"`
	Calibration calibration.Config `json:"calibration"`
	Metrics     coremetrics.Config `json:"metrics"`
	MQTT        mqtt.Config        `json:"mqtt"`
	Data        DataConfig         `json:"data"`
}

// DataConfig locates the input tables and the result directory.
type DataConfig struct {
	// ProfilesPath is the sensor profile table, CSV.
	ProfilesPath string `json:"profiles_path"`
	// ObservationsPath is the historical observation table, CSV.
	ObservationsPath string `json:"observations_path"`
	// ScenariosDir holds the scenario YAML files to run.
	ScenariosDir string `json:"scenarios_dir"`
	// OutputDir receives one JSON and one CSV result per run.
	OutputDir string `json:"output_dir"`
}

// SetDefaults applies sane defaults.
func (c *DataConfig) SetDefaults() {
	if c.ScenariosDir == "" {
		c.ScenariosDir = "scenarios/examples"
	}
	if c.OutputDir == "" {
		c.OutputDir = "out"
	}
}

// Validate checks mandatory fields.
func (c DataConfig) Validate() error {
	if c.ObservationsPath == "" {
		return fmt.Errorf("observations_path is required")
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FT_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ft_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Physics.SetDefaults()
	cfg.Optimizer.SetDefaults()
	cfg.Simulation.SetDefaults()
	cfg.Calibration.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Data.SetDefaults()
	if err := cfg.Physics.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Optimizer.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Simulation.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Data.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
