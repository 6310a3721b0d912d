package prediction

import "github.com/m30lab/flowtwin/core/model"

// MockEngine returns scripted densities in order, then keeps repeating the
// last one. Used in tests to substitute the external forecasting model.
type MockEngine struct {
	Densities []float64
	Err       error

	calls int
}

// PredictDensity returns the next scripted density or the configured error.
func (m *MockEngine) PredictDensity(recent []model.Observation) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if len(m.Densities) == 0 {
		return Persistence{}.PredictDensity(recent)
	}
	i := m.calls
	if i >= len(m.Densities) {
		i = len(m.Densities) - 1
	}
	m.calls++
	return m.Densities[i], nil
}
