package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m30lab/flowtwin/config"
	"github.com/m30lab/flowtwin/core/calibration"
	"github.com/m30lab/flowtwin/core/kpi"
	coremetrics "github.com/m30lab/flowtwin/core/metrics"
	"github.com/m30lab/flowtwin/core/model"
	"github.com/m30lab/flowtwin/core/optimizer"
	"github.com/m30lab/flowtwin/core/prediction"
	"github.com/m30lab/flowtwin/core/sim"
	"github.com/m30lab/flowtwin/infra/logger"
	"github.com/m30lab/flowtwin/infra/metrics"
	"github.com/m30lab/flowtwin/infra/mqtt"
	"github.com/m30lab/flowtwin/infra/store"
	"github.com/m30lab/flowtwin/internal/eventbus"
	"github.com/m30lab/flowtwin/pkg/export"
	"github.com/m30lab/flowtwin/scenarios"
)

// Service orchestrates the digital twin: it loads the sensor data, runs every
// scenario found in the scenario directory and fans the results out to the
// metric sinks, the MQTT feed and the export files.
type Service struct {
	cfg  *config.Config
	log  logger.Logger
	sink coremetrics.Sink
	pub  mqtt.Publisher
	bus  *eventbus.Bus[model.SpeedRecommendation]

	mu           sync.Mutex
	profiles     map[string]model.SensorProfile
	observations map[string][]model.Observation
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	var pub mqtt.Publisher
	if cfg.MQTT.Enabled {
		p, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		pub = p
	}

	svc := &Service{
		cfg:  cfg,
		log:  logg,
		sink: sink,
		pub:  pub,
		bus:  eventbus.New[model.SpeedRecommendation](),
	}
	if err := svc.loadData(); err != nil {
		return nil, err
	}
	if pub != nil {
		sub := svc.bus.Subscribe()
		go func() {
			for rec := range sub {
				if err := pub.PublishRecommendation(rec); err != nil {
					logg.Warnf("publish recommendation: %v", err)
				}
			}
		}()
	}
	return svc, nil
}

func (s *Service) loadData() error {
	obs, err := store.LoadObservations(s.cfg.Data.ObservationsPath)
	if err != nil {
		return fmt.Errorf("observations: %w", err)
	}
	s.observations = obs

	s.profiles = map[string]model.SensorProfile{}
	if s.cfg.Data.ProfilesPath != "" {
		profiles, err := store.LoadProfiles(s.cfg.Data.ProfilesPath)
		if err != nil {
			return fmt.Errorf("profiles: %w", err)
		}
		s.profiles = profiles
	}
	return nil
}

// profileFor returns the stored profile of a sensor, calibrating one from the
// full observation history when the table has no entry.
func (s *Service) profileFor(sensorID string) (model.SensorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[sensorID]; ok {
		return p, nil
	}
	series, ok := s.observations[sensorID]
	if !ok {
		return model.SensorProfile{}, fmt.Errorf("no observations for sensor %s", sensorID)
	}
	s.log.Infof("sensor %s has no profile, calibrating from %d observations", sensorID, len(series))
	p, err := calibration.Calibrate(sensorID, series, s.cfg.Calibration, s.cfg.Physics)
	if err != nil {
		return model.SensorProfile{}, fmt.Errorf("calibrate %s: %w", sensorID, err)
	}
	s.profiles[sensorID] = p
	return p, nil
}

// Run executes every scenario in the scenario directory and blocks until all
// runs complete or the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	paths, err := scenarioFiles(s.cfg.Data.ScenariosDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no scenarios in %s", s.cfg.Data.ScenariosDir)
	}

	// Runs share nothing but the loaded data, so they proceed in parallel.
	var wg sync.WaitGroup
	var failedMu sync.Mutex
	var failed int
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if err := s.runScenario(path); err != nil {
				s.log.Errorf("scenario %s: %v", filepath.Base(path), err)
				failedMu.Lock()
				failed++
				failedMu.Unlock()
			}
		}(path)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(paths))
	}
	return nil
}

// RunFile executes a single scenario definition, bypassing the scenario
// directory.
func (s *Service) RunFile(path string) error {
	return s.runScenario(path)
}

func (s *Service) runScenario(path string) error {
	sc, err := scenarios.Load(path)
	if err != nil {
		return err
	}
	profile, err := s.profileFor(sc.SensorID)
	if err != nil {
		return err
	}
	sc.SetDefaults(profile, s.cfg.Optimizer)
	if err := sc.Validate(); err != nil {
		return err
	}
	series, err := sc.Slice(s.observations[sc.SensorID])
	if err != nil {
		return err
	}

	optCfg := s.cfg.Optimizer
	optCfg.SafetyMargin = sc.SafetyMargin
	policy := &sim.OptimizerPolicy{
		Optimizer: optimizer.New(optCfg),
		Profile:   profile,
		Bounds:    sc.Bounds,
		Band:      s.cfg.Physics.NearCriticalBand,
	}
	if sc.UseForecast {
		policy.Forecast = prediction.Persistence{}
	}

	start := time.Now()
	res, err := sim.New(s.cfg.Simulation).Run(profile, series, policy)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	s.log.Infof("scenario %s: run %s completed in %s, speed %+.1f%%, throughput %+.1f%%",
		sc.Name, res.RunID, elapsed.Round(time.Millisecond),
		res.SpeedImprovementPct, res.ThroughputImprovementPct)

	for _, h := range kpi.Hourly(res) {
		s.log.Debugf("scenario %s hour %02d: density %+.1f%%, mean speed %.1f -> %.1f km/h",
			sc.Name, h.Hour, h.DensityReductionPct, h.RealMeanSpeed, h.SimMeanSpeed)
	}

	rec := coremetrics.NewRunRecord(sc.Name, res, elapsed)
	if err := s.sink.RecordRun(rec); err != nil {
		s.log.Warnf("record run: %v", err)
	}
	if tr, ok := s.sink.(coremetrics.TraceRecorder); ok {
		if err := tr.RecordTrace(rec, res.Real, res.Simulated); err != nil {
			s.log.Warnf("record trace: %v", err)
		}
	}
	for _, r := range res.Recommendations {
		s.bus.Publish(r)
	}
	if s.pub != nil {
		if err := s.pub.PublishRunSummary(rec); err != nil {
			s.log.Warnf("publish summary: %v", err)
		}
	}
	return s.export(sc.Name, res)
}

func (s *Service) export(scenario string, res *sim.Result) error {
	if err := os.MkdirAll(s.cfg.Data.OutputDir, 0o755); err != nil {
		return err
	}
	base := filepath.Join(s.cfg.Data.OutputDir, fmt.Sprintf("%s_%s", scenario, res.RunID[:8]))

	jf, err := os.Create(base + ".json")
	if err != nil {
		return err
	}
	defer jf.Close()
	if err := export.WriteJSON(jf, res); err != nil {
		return err
	}

	cf, err := os.Create(base + ".csv")
	if err != nil {
		return err
	}
	defer cf.Close()
	return export.WriteCSV(cf, res)
}

// Close releases resources held by the service.
func (s *Service) Close() {
	s.bus.Close()
	if s.pub != nil {
		s.pub.Close()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
}

func scenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scenarios dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
