package sim

import (
	"github.com/m30lab/flowtwin/core/model"
	"github.com/m30lab/flowtwin/core/optimizer"
	"github.com/m30lab/flowtwin/core/physics"
	"github.com/m30lab/flowtwin/core/prediction"
)

// forecastWindow bounds the history handed to the forecasting engine.
const forecastWindow = 12

// SpeedPolicy decides the speed applied in the simulated trace at each
// timestep. prevDensity is the simulated density of the previous step; obs is
// the historical observation of the current one. Implementations must be
// deterministic.
type SpeedPolicy interface {
	Recommend(prevDensity float64, obs model.Observation) (model.SpeedRecommendation, error)
}

// OptimizerPolicy is the production policy: classify the simulated density
// (or a forecast of it) against the sensor's critical density and ask the
// optimizer for a limit.
type OptimizerPolicy struct {
	Optimizer *optimizer.Optimizer
	Profile   model.SensorProfile
	Bounds    optimizer.Bounds
	Band      float64
	// Forecast optionally replaces the previous simulated density with a
	// short-term prediction. Nil means react to the current state. The
	// prediction window carries the simulated densities, not the measured
	// ones, so the closed loop on the twin's state is preserved.
	Forecast prediction.Engine

	recent []model.Observation
}

// Recommend implements SpeedPolicy.
func (p *OptimizerPolicy) Recommend(prevDensity float64, obs model.Observation) (model.SpeedRecommendation, error) {
	density := prevDensity
	if p.Forecast != nil {
		p.recent = append(p.recent, model.Observation{
			Timestamp: obs.Timestamp,
			SensorID:  obs.SensorID,
			Density:   prevDensity,
			Speed:     obs.Speed,
			Flow:      prevDensity * obs.Speed,
		})
		if len(p.recent) > forecastWindow {
			p.recent = p.recent[len(p.recent)-forecastWindow:]
		}
		d, err := p.Forecast.PredictDensity(p.recent)
		if err != nil {
			return model.SpeedRecommendation{}, err
		}
		density = d
	}
	regime := physics.ClassifyRegime(density, p.Profile.CriticalDensity, p.Band)
	return p.Optimizer.Recommend(obs.Timestamp, obs.SensorID, density, p.Profile.CriticalDensity, regime, p.Bounds)
}

// HistoricalPolicy replays the observed speed unchanged. With it the
// simulated trace must reproduce the real aggregates exactly; it exists for
// that identity check.
type HistoricalPolicy struct {
	CriticalDensity float64
	Band            float64
}

// Recommend implements SpeedPolicy.
func (p HistoricalPolicy) Recommend(prevDensity float64, obs model.Observation) (model.SpeedRecommendation, error) {
	return model.SpeedRecommendation{
		Timestamp: obs.Timestamp,
		SensorID:  obs.SensorID,
		SpeedKmh:  obs.Speed,
		Regime:    physics.ClassifyRegime(obs.Density, p.CriticalDensity, p.Band),
	}, nil
}
