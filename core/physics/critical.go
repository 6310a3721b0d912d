package physics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/m30lab/flowtwin/core/model"
)

// EstimateCriticalDensity returns the density at which flow is maximised for
// the given observation set. A parabola q(k) = c0 + c1*k + c2*k^2 is fitted
// by least squares; when the fit is concave and its vertex lies inside the
// observed density range, the vertex is the estimate. Otherwise the estimate
// falls back to the smallest observed density achieving the maximum flow.
// The result is deterministic for a fixed input set.
func EstimateCriticalDensity(obs []model.Observation, cfg Config) (float64, error) {
	if len(obs) < cfg.MinObservations {
		return 0, fmt.Errorf("%w: got %d observations, need %d", ErrInsufficientData, len(obs), cfg.MinObservations)
	}

	var sum, sumSq float64
	minK, maxK := math.Inf(1), math.Inf(-1)
	for _, o := range obs {
		if o.Density < 0 || o.Flow < 0 {
			return 0, fmt.Errorf("%w: density=%.3f flow=%.3f", ErrInvalidInput, o.Density, o.Flow)
		}
		sum += o.Density
		sumSq += o.Density * o.Density
		minK = math.Min(minK, o.Density)
		maxK = math.Max(maxK, o.Density)
	}
	n := float64(len(obs))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance <= 1e-9 {
		return 0, fmt.Errorf("%w: zero density variance", ErrInsufficientData)
	}

	if k, ok := parabolicVertex(obs, minK, maxK); ok {
		return k, nil
	}
	return empiricalArgmax(obs), nil
}

// parabolicVertex fits the quadratic flow-density relation and returns the
// vertex density when the fit is concave and inside the observed range.
func parabolicVertex(obs []model.Observation, minK, maxK float64) (float64, bool) {
	a := mat.NewDense(len(obs), 3, nil)
	b := mat.NewVecDense(len(obs), nil)
	for i, o := range obs {
		a.Set(i, 0, 1)
		a.Set(i, 1, o.Density)
		a.Set(i, 2, o.Density*o.Density)
		b.SetVec(i, o.Flow)
	}

	var qr mat.QR
	qr.Factorize(a)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, b); err != nil {
		return 0, false
	}
	c1, c2 := coef.AtVec(1), coef.AtVec(2)
	if c2 >= 0 {
		// Not concave: the data carries no interior maximum.
		return 0, false
	}
	vertex := -c1 / (2 * c2)
	if vertex < minK || vertex > maxK {
		return 0, false
	}
	return vertex, true
}

// empiricalArgmax returns the smallest density achieving the maximum observed
// flow.
func empiricalArgmax(obs []model.Observation) float64 {
	bestFlow := math.Inf(-1)
	bestK := 0.0
	for _, o := range obs {
		switch {
		case o.Flow > bestFlow:
			bestFlow = o.Flow
			bestK = o.Density
		case o.Flow == bestFlow && o.Density < bestK:
			bestK = o.Density
		}
	}
	return bestK
}
