// Package physics implements the fundamental diagram of traffic flow for a
// single road segment: conversions between density, speed and flow, critical
// density estimation from historical observations and regime classification.
// All functions are pure and deterministic.
package physics
