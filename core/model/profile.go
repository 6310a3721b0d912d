package model

import "fmt"

// SensorProfile holds the calibrated parameters of one roadside sensor.
// Profiles are produced once by the calibration step and are read-only
// during simulation.
type SensorProfile struct {
	SensorID        string
	Latitude        float64
	Longitude       float64
	FreeFlowLimit   float64 // calibrated free-flow speed limit in km/h
	CriticalDensity float64 // density of maximum throughput in veh/km
}

// Validate checks that the profile is usable for a simulation run.
func (p SensorProfile) Validate() error {
	if p.SensorID == "" {
		return fmt.Errorf("sensor profile: empty sensor id")
	}
	if p.FreeFlowLimit <= 0 {
		return fmt.Errorf("sensor profile %s: free-flow limit must be positive", p.SensorID)
	}
	if p.CriticalDensity <= 0 {
		return fmt.Errorf("sensor profile %s: critical density must be positive", p.SensorID)
	}
	return nil
}
