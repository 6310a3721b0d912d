package prediction

import (
	"errors"

	"github.com/m30lab/flowtwin/core/model"
)

// ErrNoHistory is returned when a forecast is requested without observations.
var ErrNoHistory = errors.New("no recent observations to predict from")

// Engine forecasts the density expected at the next timestep from the most
// recent observations, oldest first.
type Engine interface {
	PredictDensity(recent []model.Observation) (float64, error)
}

// Persistence is the naive forecast: the next density equals the last
// observed one. It is the default engine and the determinism baseline any
// external model replacement is tested against.
type Persistence struct{}

// PredictDensity returns the density of the most recent observation.
func (Persistence) PredictDensity(recent []model.Observation) (float64, error) {
	if len(recent) == 0 {
		return 0, ErrNoHistory
	}
	return recent[len(recent)-1].Density, nil
}
