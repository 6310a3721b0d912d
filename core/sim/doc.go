// Package sim replays the historical series of one sensor against a speed
// policy and produces two parallel traces: the observations as recorded and
// the digital twin under the recommended limits. Each run is a pure
// sequential fold over a pre-loaded series; runs share no mutable state and
// may execute concurrently on shared-nothing copies.
package sim
