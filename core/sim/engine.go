package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/m30lab/flowtwin/core/model"
	"github.com/m30lab/flowtwin/core/physics"
)

// ErrSimulationFailed indicates malformed input to a run: an empty, gapped
// or non-monotonic series, a sensor mismatch or a missing profile.
var ErrSimulationFailed = errors.New("simulation failed")

// Config holds the tunables of the simulated traffic response.
type Config struct {
	// RelaxationFactor is the fraction of the gap to the equilibrium density
	// closed at each timestep, in (0,1]. 1 means the twin settles on the
	// equilibrium immediately, which keeps the identity property exact.
	RelaxationFactor float64 `json:"relaxation_factor" yaml:"relaxation_factor"`
	// NearCriticalBand mirrors the physics band used to classify the trace
	// points of both traces.
	NearCriticalBand float64 `json:"near_critical_band" yaml:"near_critical_band"`
	// MaxGapFactor rejects a series as gapped when any step exceeds this
	// multiple of the shortest step.
	MaxGapFactor float64 `json:"max_gap_factor" yaml:"max_gap_factor"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RelaxationFactor == 0 {
		c.RelaxationFactor = 1.0
	}
	if c.NearCriticalBand == 0 {
		c.NearCriticalBand = 0.10
	}
	if c.MaxGapFactor == 0 {
		c.MaxGapFactor = 3.0
	}
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.RelaxationFactor <= 0 || c.RelaxationFactor > 1 {
		return fmt.Errorf("relaxation_factor must be in (0,1], got %v", c.RelaxationFactor)
	}
	if c.NearCriticalBand <= 0 || c.NearCriticalBand >= 1 {
		return fmt.Errorf("near_critical_band must be in (0,1), got %v", c.NearCriticalBand)
	}
	if c.MaxGapFactor < 1 {
		return fmt.Errorf("max_gap_factor must be at least 1, got %v", c.MaxGapFactor)
	}
	return nil
}

// Engine executes a single digital twin run. It is single-use: a failed run
// is restarted by creating a fresh engine with corrected input.
type Engine struct {
	cfg   Config
	state RunState
}

// New returns an engine ready for one run.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, state: StateInitialized}
}

// State reports the lifecycle state of the run.
func (e *Engine) State() RunState { return e.state }

// Run replays the series through the policy and computes both traces and
// their aggregates.
//
// The simulated trace starts from the observed initial density. At each
// step the policy recommends a speed from the previous simulated density,
// and the twin's density relaxes toward the equilibrium q_hist/v_rec: the
// historical inflow of the interval served at the recommended speed. A
// zero recommendation is a standstill and takes the observed density as
// the equilibrium. The simulated speed is the recommendation and the
// simulated flow follows q = k*v, so when the recommendation equals the
// observed speed the twin reproduces the real trace exactly, full-jam
// steps included.
func (e *Engine) Run(profile model.SensorProfile, series []model.Observation, policy SpeedPolicy) (*Result, error) {
	if e.state != StateInitialized {
		return nil, fmt.Errorf("%w: engine already used (state %s)", ErrSimulationFailed, e.state)
	}
	e.state = StateRunning

	if err := validateRun(profile, series, e.cfg.MaxGapFactor); err != nil {
		e.state = StateFailed
		return nil, err
	}

	res := &Result{
		RunID:           uuid.NewString(),
		SensorID:        profile.SensorID,
		CriticalDensity: profile.CriticalDensity,
		Real:            make([]TracePoint, len(series)),
		Simulated:       make([]TracePoint, len(series)),
		Recommendations: make([]model.SpeedRecommendation, 0, len(series)-1),
	}

	band := e.cfg.NearCriticalBand
	for i, o := range series {
		res.Real[i] = TracePoint{
			Timestamp: o.Timestamp,
			Density:   o.Density,
			Speed:     o.Speed,
			Flow:      o.Flow,
			Regime:    physics.ClassifyRegime(o.Density, profile.CriticalDensity, band),
		}
	}

	res.Simulated[0] = res.Real[0]
	prevDensity := series[0].Density
	for i := 1; i < len(series); i++ {
		obs := series[i]
		rec, err := policy.Recommend(prevDensity, obs)
		if err != nil {
			e.state = StateFailed
			return nil, fmt.Errorf("%w: policy at %s: %v", ErrSimulationFailed, obs.Timestamp, err)
		}

		// At v=0 the flow relation has no finite equilibrium; a standstill
		// holds the observed jam density instead.
		kEq := obs.Density
		if rec.SpeedKmh > 0 {
			kEq = obs.Flow / rec.SpeedKmh
		}
		k := prevDensity + e.cfg.RelaxationFactor*(kEq-prevDensity)

		res.Simulated[i] = TracePoint{
			Timestamp: obs.Timestamp,
			Density:   k,
			Speed:     rec.SpeedKmh,
			Flow:      k * rec.SpeedKmh,
			Regime:    physics.ClassifyRegime(k, profile.CriticalDensity, band),
		}
		res.Recommendations = append(res.Recommendations, rec)
		prevDensity = k
	}

	res.RealMetrics = computeMetrics(res.Real)
	res.SimMetrics = computeMetrics(res.Simulated)
	res.SpeedImprovementPct = pctImprovement(res.RealMetrics.MeanSpeed, res.SimMetrics.MeanSpeed)
	res.ThroughputImprovementPct = pctImprovement(res.RealMetrics.TotalThroughput, res.SimMetrics.TotalThroughput)

	e.state = StateCompleted
	res.State = StateCompleted
	return res, nil
}

func validateRun(profile model.SensorProfile, series []model.Observation, maxGapFactor float64) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSimulationFailed, err)
	}
	if len(series) == 0 {
		return fmt.Errorf("%w: empty observation series", ErrSimulationFailed)
	}
	minStep := time.Duration(0)
	for i, o := range series {
		if o.SensorID != profile.SensorID {
			return fmt.Errorf("%w: observation %d belongs to sensor %s, profile is %s",
				ErrSimulationFailed, i, o.SensorID, profile.SensorID)
		}
		if err := o.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrSimulationFailed, err)
		}
		if i == 0 {
			continue
		}
		if !o.Timestamp.After(series[i-1].Timestamp) {
			return fmt.Errorf("%w: non-monotonic timestamp at index %d (%s)",
				ErrSimulationFailed, i, o.Timestamp)
		}
		step := o.Timestamp.Sub(series[i-1].Timestamp)
		if minStep == 0 || step < minStep {
			minStep = step
		}
	}
	if maxGapFactor >= 1 && minStep > 0 {
		limit := time.Duration(float64(minStep) * maxGapFactor)
		for i := 1; i < len(series); i++ {
			if step := series[i].Timestamp.Sub(series[i-1].Timestamp); step > limit {
				return fmt.Errorf("%w: gap of %s before index %d exceeds %s",
					ErrSimulationFailed, step, i, limit)
			}
		}
	}
	return nil
}
