package model

import (
	"fmt"
	"math"
	"time"
)

// FlowTolerance is the relative tolerance applied when checking that an
// observation's flow matches density times speed.
const FlowTolerance = 1e-6

// Observation is one aggregated measurement reported by a roadside sensor.
// Density is in vehicles per km, speed in km/h and flow in vehicles per hour.
// Observations are value types and never mutated after ingestion.
type Observation struct {
	Timestamp time.Time
	SensorID  string
	Density   float64
	Speed     float64
	Flow      float64
}

// NewObservation builds an observation and derives its flow as density*speed.
func NewObservation(ts time.Time, sensorID string, density, speed float64) (Observation, error) {
	if density < 0 || speed < 0 {
		return Observation{}, fmt.Errorf("observation %s at %s: negative density or speed", sensorID, ts.Format(time.RFC3339))
	}
	return Observation{
		Timestamp: ts,
		SensorID:  sensorID,
		Density:   density,
		Speed:     speed,
		Flow:      density * speed,
	}, nil
}

// Validate checks the unit consistency of the observation. The flow must
// equal density*speed within FlowTolerance, relative to the flow magnitude.
func (o Observation) Validate() error {
	if o.SensorID == "" {
		return fmt.Errorf("observation at %s: empty sensor id", o.Timestamp.Format(time.RFC3339))
	}
	if o.Density < 0 || o.Speed < 0 || o.Flow < 0 {
		return fmt.Errorf("observation %s at %s: negative measurement", o.SensorID, o.Timestamp.Format(time.RFC3339))
	}
	want := o.Density * o.Speed
	scale := math.Max(1, math.Abs(want))
	if math.Abs(o.Flow-want) > FlowTolerance*scale {
		return fmt.Errorf("observation %s at %s: flow %.4f inconsistent with density*speed %.4f",
			o.SensorID, o.Timestamp.Format(time.RFC3339), o.Flow, want)
	}
	return nil
}
