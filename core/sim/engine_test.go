package sim

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/m30lab/flowtwin/core/model"
	"github.com/m30lab/flowtwin/core/optimizer"
	"github.com/m30lab/flowtwin/core/physics"
)

func testProfile() model.SensorProfile {
	return model.SensorProfile{SensorID: "PM-30-01", FreeFlowLimit: 90, CriticalDensity: 40}
}

func testConfig() Config {
	cfg := Config{}
	cfg.SetDefaults()
	return cfg
}

// series builds a strictly monotonic observation series with q = k*v.
func series(t *testing.T, densities, speeds []float64) []model.Observation {
	t.Helper()
	if len(densities) != len(speeds) {
		t.Fatalf("series: %d densities, %d speeds", len(densities), len(speeds))
	}
	base := time.Date(2019, 1, 8, 7, 0, 0, 0, time.UTC)
	obs := make([]model.Observation, len(densities))
	for i := range densities {
		o, err := model.NewObservation(base.Add(time.Duration(i)*15*time.Minute), "PM-30-01", densities[i], speeds[i])
		if err != nil {
			t.Fatalf("series: %v", err)
		}
		obs[i] = o
	}
	return obs
}

func optimizerPolicy(profile model.SensorProfile, bounds optimizer.Bounds) *OptimizerPolicy {
	optCfg := optimizer.Config{}
	optCfg.SetDefaults()
	return &OptimizerPolicy{
		Optimizer: optimizer.New(optCfg),
		Profile:   profile,
		Bounds:    bounds,
		Band:      0.10,
	}
}

func TestRun_IdentityPolicyReproducesReality(t *testing.T) {
	profile := testProfile()
	obs := series(t,
		[]float64{20, 28, 35, 52, 61, 48, 33, 21},
		[]float64{88, 82, 70, 34, 26, 39, 72, 87},
	)
	eng := New(testConfig())
	res, err := eng.Run(profile, obs, HistoricalPolicy{CriticalDensity: profile.CriticalDensity, Band: 0.10})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if eng.State() != StateCompleted || res.State != StateCompleted {
		t.Fatalf("expected completed state, got %s", eng.State())
	}
	for i := range res.Real {
		if res.Simulated[i] != res.Real[i] {
			t.Fatalf("timestep %d diverged: real %+v sim %+v", i, res.Real[i], res.Simulated[i])
		}
	}
	if res.RealMetrics != res.SimMetrics {
		t.Fatalf("aggregates diverged: real %+v sim %+v", res.RealMetrics, res.SimMetrics)
	}
	if res.SpeedImprovementPct != 0 || res.ThroughputImprovementPct != 0 {
		t.Fatalf("identity run must show zero improvement, got %v / %v",
			res.SpeedImprovementPct, res.ThroughputImprovementPct)
	}
}

func TestRun_IdentityPolicyHoldsThroughFullJam(t *testing.T) {
	// A standstill observation (speed 0, density high) is valid input: flow 0
	// is consistent with v=0. The identity property must survive it.
	profile := testProfile()
	obs := series(t,
		[]float64{20, 80, 30},
		[]float64{88, 0, 70},
	)
	eng := New(testConfig())
	res, err := eng.Run(profile, obs, HistoricalPolicy{CriticalDensity: profile.CriticalDensity, Band: 0.10})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i := range res.Real {
		if res.Simulated[i] != res.Real[i] {
			t.Fatalf("timestep %d diverged: real %+v sim %+v", i, res.Real[i], res.Simulated[i])
		}
	}
	if res.RealMetrics != res.SimMetrics {
		t.Fatalf("aggregates diverged: real %+v sim %+v", res.RealMetrics, res.SimMetrics)
	}
	if res.SimMetrics.CongestedSteps != 1 {
		t.Fatalf("the jam step must classify congested in both traces, got %d", res.SimMetrics.CongestedSteps)
	}
}

func TestRun_CongestionSpikeDrainsFaster(t *testing.T) {
	profile := testProfile()
	// A rush-hour spike: density climbs well past critical while speed
	// collapses, then recovers.
	obs := series(t,
		[]float64{20, 25, 30, 50, 60, 70, 60, 50, 30, 20},
		[]float64{85, 80, 75, 35, 25, 20, 25, 35, 75, 85},
	)
	eng := New(testConfig())
	res, err := eng.Run(profile, obs, optimizerPolicy(profile, optimizer.Bounds{Min: 50, Max: 90}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.SimMetrics.CongestedSteps > res.RealMetrics.CongestedSteps {
		t.Fatalf("optimized trace must not stay congested longer: sim %d real %d",
			res.SimMetrics.CongestedSteps, res.RealMetrics.CongestedSteps)
	}
	if res.RealMetrics.CongestedSteps == 0 {
		t.Fatal("test series must contain real congestion")
	}
	if res.SimMetrics.MeanSpeed <= res.RealMetrics.MeanSpeed {
		t.Fatalf("expected mean speed improvement, sim %v real %v",
			res.SimMetrics.MeanSpeed, res.RealMetrics.MeanSpeed)
	}
}

func TestRun_RampScenarioEndToEnd(t *testing.T) {
	// Ten timesteps ramping past a known critical density of 40 veh/km.
	profile := testProfile()
	densities := []float64{10, 20, 30, 38, 42, 50, 60, 70, 85, 100}
	speeds := []float64{90, 85, 78, 70, 62, 45, 35, 27, 18, 12}
	obs := series(t, densities, speeds)
	bounds := optimizer.Bounds{Min: 30, Max: 90}

	// Timesteps 6-10 must classify as congested.
	for i := 5; i < 10; i++ {
		r := physics.ClassifyRegime(densities[i], profile.CriticalDensity, 0.10)
		if r != model.RegimeCongested {
			t.Fatalf("timestep %d (density %v) classified %v, want congested", i+1, densities[i], r)
		}
	}

	// Over those timesteps the recommendations must strictly decrease and
	// approach the minimum bound.
	optCfg := optimizer.Config{}
	optCfg.SetDefaults()
	opt := optimizer.New(optCfg)
	prev := math.Inf(1)
	var last float64
	for i := 5; i < 10; i++ {
		r := physics.ClassifyRegime(densities[i], profile.CriticalDensity, 0.10)
		v, err := opt.RecommendSpeed(densities[i], profile.CriticalDensity, r, bounds)
		if err != nil {
			t.Fatalf("recommend at step %d: %v", i+1, err)
		}
		if v >= prev {
			t.Fatalf("step %d: expected strictly decreasing speeds, got %v after %v", i+1, v, prev)
		}
		if v < bounds.Min {
			t.Fatalf("step %d: recommendation %v below minimum", i+1, v)
		}
		prev = v
		last = v
	}
	if last-bounds.Min > 5 {
		t.Fatalf("final recommendation %v does not approach the minimum %v", last, bounds.Min)
	}

	// The full engine run over the same ramp completes and recommends
	// per-timestep limits within bounds.
	eng := New(testConfig())
	res, err := eng.Run(profile, obs, optimizerPolicy(profile, bounds))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Recommendations) != len(obs)-1 {
		t.Fatalf("expected %d recommendations, got %d", len(obs)-1, len(res.Recommendations))
	}
	for _, rec := range res.Recommendations {
		if rec.SpeedKmh < bounds.Min || rec.SpeedKmh > bounds.Max {
			t.Fatalf("recommendation %v outside bounds", rec.SpeedKmh)
		}
	}
}

func TestRun_RelaxationSmoothsResponse(t *testing.T) {
	profile := testProfile()
	obs := series(t,
		[]float64{20, 40, 40},
		[]float64{90, 90, 90},
	)
	cfg := Config{RelaxationFactor: 0.5, NearCriticalBand: 0.10}
	fixed := fixedPolicy{speed: 90}
	eng := New(cfg)
	res, err := eng.Run(profile, obs, fixed)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Equilibrium is 3600/90 = 40; half the gap closes per step.
	if res.Simulated[1].Density != 30 {
		t.Fatalf("expected density 30 at step 1, got %v", res.Simulated[1].Density)
	}
	if res.Simulated[2].Density != 35 {
		t.Fatalf("expected density 35 at step 2, got %v", res.Simulated[2].Density)
	}
}

// captureForecast records every prediction window and replays the last
// density, like prediction.Persistence.
type captureForecast struct {
	windows [][]model.Observation
}

func (c *captureForecast) PredictDensity(recent []model.Observation) (float64, error) {
	c.windows = append(c.windows, append([]model.Observation(nil), recent...))
	return recent[len(recent)-1].Density, nil
}

func TestRun_ForecastWindowTracksSimulatedState(t *testing.T) {
	profile := testProfile()
	obs := series(t,
		[]float64{20, 30, 55, 65, 40},
		[]float64{85, 78, 32, 24, 55},
	)
	fc := &captureForecast{}
	policy := optimizerPolicy(profile, optimizer.Bounds{Min: 50, Max: 90})
	policy.Forecast = fc

	eng := New(testConfig())
	res, err := eng.Run(profile, obs, policy)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fc.windows) != len(obs)-1 {
		t.Fatalf("expected %d forecast calls, got %d", len(obs)-1, len(fc.windows))
	}
	// Each window ends with the twin's previous density, not the measured one.
	for i, w := range fc.windows {
		got := w[len(w)-1].Density
		want := res.Simulated[i].Density
		if got != want {
			t.Fatalf("window %d ends with density %v, want simulated %v", i, got, want)
		}
	}
}

type fixedPolicy struct{ speed float64 }

func (p fixedPolicy) Recommend(prev float64, obs model.Observation) (model.SpeedRecommendation, error) {
	return model.SpeedRecommendation{Timestamp: obs.Timestamp, SensorID: obs.SensorID, SpeedKmh: p.speed}, nil
}

func TestRun_FailsOnMalformedInput(t *testing.T) {
	profile := testProfile()
	good := series(t, []float64{10, 20}, []float64{90, 85})

	t.Run("empty series", func(t *testing.T) {
		eng := New(testConfig())
		_, err := eng.Run(profile, nil, HistoricalPolicy{CriticalDensity: 40, Band: 0.10})
		if !errors.Is(err, ErrSimulationFailed) {
			t.Fatalf("expected ErrSimulationFailed, got %v", err)
		}
		if eng.State() != StateFailed {
			t.Fatalf("expected failed state, got %s", eng.State())
		}
	})

	t.Run("non-monotonic timestamps", func(t *testing.T) {
		bad := append([]model.Observation(nil), good...)
		bad[1].Timestamp = bad[0].Timestamp
		eng := New(testConfig())
		if _, err := eng.Run(profile, bad, HistoricalPolicy{CriticalDensity: 40, Band: 0.10}); !errors.Is(err, ErrSimulationFailed) {
			t.Fatalf("expected ErrSimulationFailed, got %v", err)
		}
	})

	t.Run("gapped series", func(t *testing.T) {
		three := series(t, []float64{10, 20, 30}, []float64{90, 85, 78})
		bad := append([]model.Observation(nil), three...)
		// A two-hour hole in a 15-minute series.
		bad[2].Timestamp = bad[1].Timestamp.Add(2 * time.Hour)
		eng := New(testConfig())
		if _, err := eng.Run(profile, bad, HistoricalPolicy{CriticalDensity: 40, Band: 0.10}); !errors.Is(err, ErrSimulationFailed) {
			t.Fatalf("expected ErrSimulationFailed, got %v", err)
		}
	})

	t.Run("sensor mismatch", func(t *testing.T) {
		bad := append([]model.Observation(nil), good...)
		bad[1].SensorID = "PM-30-07"
		eng := New(testConfig())
		if _, err := eng.Run(profile, bad, HistoricalPolicy{CriticalDensity: 40, Band: 0.10}); !errors.Is(err, ErrSimulationFailed) {
			t.Fatalf("expected ErrSimulationFailed, got %v", err)
		}
	})

	t.Run("missing profile", func(t *testing.T) {
		eng := New(testConfig())
		if _, err := eng.Run(model.SensorProfile{}, good, HistoricalPolicy{CriticalDensity: 40, Band: 0.10}); !errors.Is(err, ErrSimulationFailed) {
			t.Fatalf("expected ErrSimulationFailed, got %v", err)
		}
	})
}

func TestRun_SingleUse(t *testing.T) {
	profile := testProfile()
	obs := series(t, []float64{10, 20}, []float64{90, 85})
	eng := New(testConfig())
	if _, err := eng.Run(profile, obs, HistoricalPolicy{CriticalDensity: 40, Band: 0.10}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := eng.Run(profile, obs, HistoricalPolicy{CriticalDensity: 40, Band: 0.10}); !errors.Is(err, ErrSimulationFailed) {
		t.Fatalf("second run must be rejected, got %v", err)
	}
}
