// Package kpi aggregates a completed run into hourly indicators for the
// presentation layer: reality versus digital twin, per hour of day.
package kpi

import (
	"sort"

	"github.com/m30lab/flowtwin/core/sim"
)

// HourlyMetrics compares both traces within one hour of day.
type HourlyMetrics struct {
	Hour int

	RealMeanSpeed   float64
	SimMeanSpeed    float64
	RealMeanFlow    float64
	SimMeanFlow     float64
	RealMeanDensity float64
	SimMeanDensity  float64

	SpeedImprovementPct float64
	FlowImprovementPct  float64
	DensityReductionPct float64

	Samples int
}

type hourAccum struct {
	realSpeed, simSpeed     float64
	realFlow, simFlow       float64
	realDensity, simDensity float64
	n                       int
}

// Hourly groups the paired timesteps of a completed run by hour of day and
// returns one row per hour present, ordered by hour.
func Hourly(res *sim.Result) []HourlyMetrics {
	if res == nil || len(res.Real) == 0 {
		return nil
	}
	acc := map[int]*hourAccum{}
	for i, rp := range res.Real {
		sp := res.Simulated[i]
		h := rp.Timestamp.Hour()
		a := acc[h]
		if a == nil {
			a = &hourAccum{}
			acc[h] = a
		}
		a.realSpeed += rp.Speed
		a.simSpeed += sp.Speed
		a.realFlow += rp.Flow
		a.simFlow += sp.Flow
		a.realDensity += rp.Density
		a.simDensity += sp.Density
		a.n++
	}

	hours := make([]int, 0, len(acc))
	for h := range acc {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	rows := make([]HourlyMetrics, 0, len(hours))
	for _, h := range hours {
		a := acc[h]
		n := float64(a.n)
		row := HourlyMetrics{
			Hour:            h,
			RealMeanSpeed:   a.realSpeed / n,
			SimMeanSpeed:    a.simSpeed / n,
			RealMeanFlow:    a.realFlow / n,
			SimMeanFlow:     a.simFlow / n,
			RealMeanDensity: a.realDensity / n,
			SimMeanDensity:  a.simDensity / n,
			Samples:         a.n,
		}
		row.SpeedImprovementPct = pct(row.RealMeanSpeed, row.SimMeanSpeed)
		row.FlowImprovementPct = pct(row.RealMeanFlow, row.SimMeanFlow)
		row.DensityReductionPct = -pct(row.RealMeanDensity, row.SimMeanDensity)
		rows = append(rows, row)
	}
	return rows
}

// ForHour returns the row for the given hour of day, if any timestep fell
// into it.
func ForHour(res *sim.Result, hour int) (HourlyMetrics, bool) {
	for _, row := range Hourly(res) {
		if row.Hour == hour {
			return row, true
		}
	}
	return HourlyMetrics{}, false
}

func pct(real, sim float64) float64 {
	if real == 0 {
		return 0
	}
	return (sim - real) / real * 100
}
