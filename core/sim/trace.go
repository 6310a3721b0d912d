package sim

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/m30lab/flowtwin/core/model"
)

// stepDurations assigns a duration to every trace point: the gap to the next
// timestamp, with the last point inheriting the previous gap. Both traces of
// a run share the same timestamps, so the rule keeps them comparable.
func stepDurations(points []TracePoint) []time.Duration {
	durs := make([]time.Duration, len(points))
	for i := 0; i < len(points)-1; i++ {
		durs[i] = points[i+1].Timestamp.Sub(points[i].Timestamp)
	}
	if n := len(points); n >= 2 {
		durs[n-1] = durs[n-2]
	}
	return durs
}

// computeMetrics folds a trace into its aggregates.
func computeMetrics(points []TracePoint) TraceMetrics {
	if len(points) == 0 {
		return TraceMetrics{}
	}
	speeds := make([]float64, len(points))
	densities := make([]float64, len(points))
	for i, p := range points {
		speeds[i] = p.Speed
		densities[i] = p.Density
	}
	m := TraceMetrics{
		MeanSpeed:   stat.Mean(speeds, nil),
		MeanDensity: stat.Mean(densities, nil),
	}

	durs := stepDurations(points)
	inCongestion := false
	for i, p := range points {
		m.TotalThroughput += p.Flow * durs[i].Hours()
		if p.Regime == model.RegimeCongested {
			m.CongestedSteps++
			m.CongestedDuration += durs[i]
			if !inCongestion {
				m.CongestedIntervals++
				inCongestion = true
			}
		} else {
			inCongestion = false
		}
	}
	return m
}

// pctImprovement returns the relative gain of sim over real in percent.
// A zero baseline yields zero rather than an undefined ratio.
func pctImprovement(real, sim float64) float64 {
	if real == 0 {
		return 0
	}
	return (sim - real) / real * 100
}
