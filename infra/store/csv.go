// Package store persists sensor profiles as a simple tabular record keyed by
// sensor identifier and reads observation series exported by the data
// pipeline. Schema normalization of the raw open-data portal files happens
// upstream; this package only consumes the cleaned export.
package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/m30lab/flowtwin/core/model"
)

var profileHeader = []string{"sensor_id", "latitude", "longitude", "free_flow_limit", "critical_density"}

// SaveProfiles writes the profile table, one row per sensor, sorted by id.
func SaveProfiles(path string, profiles map[string]model.SensorProfile) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteProfiles(f, profiles)
}

// WriteProfiles writes the profile table to w.
func WriteProfiles(w io.Writer, profiles map[string]model.SensorProfile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(profileHeader); err != nil {
		return err
	}
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := profiles[id]
		rec := []string{
			p.SensorID,
			strconv.FormatFloat(p.Latitude, 'f', -1, 64),
			strconv.FormatFloat(p.Longitude, 'f', -1, 64),
			strconv.FormatFloat(p.FreeFlowLimit, 'f', -1, 64),
			strconv.FormatFloat(p.CriticalDensity, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadProfiles reads the profile table keyed by sensor id.
func LoadProfiles(path string) (map[string]model.SensorProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadProfiles(f)
}

// ReadProfiles parses the profile table from r.
func ReadProfiles(r io.Reader) (map[string]model.SensorProfile, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile table: empty file")
	}
	profiles := make(map[string]model.SensorProfile, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(profileHeader) {
			return nil, fmt.Errorf("profile table row %d: %d columns, want %d", i+2, len(row), len(profileHeader))
		}
		p := model.SensorProfile{SensorID: row[0]}
		if p.Latitude, err = strconv.ParseFloat(row[1], 64); err != nil {
			return nil, fmt.Errorf("profile table row %d: latitude: %w", i+2, err)
		}
		if p.Longitude, err = strconv.ParseFloat(row[2], 64); err != nil {
			return nil, fmt.Errorf("profile table row %d: longitude: %w", i+2, err)
		}
		if p.FreeFlowLimit, err = strconv.ParseFloat(row[3], 64); err != nil {
			return nil, fmt.Errorf("profile table row %d: free_flow_limit: %w", i+2, err)
		}
		if p.CriticalDensity, err = strconv.ParseFloat(row[4], 64); err != nil {
			return nil, fmt.Errorf("profile table row %d: critical_density: %w", i+2, err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile table row %d: %w", i+2, err)
		}
		profiles[p.SensorID] = p
	}
	return profiles, nil
}

// LoadObservations reads an observation export with the columns
// timestamp,sensor_id,density,speed. Flow is derived on ingestion so the
// unit invariant holds by construction. Rows are returned grouped by sensor,
// each series ordered by timestamp.
func LoadObservations(path string) (map[string][]model.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadObservations(f)
}

// ReadObservations parses an observation export from r.
func ReadObservations(r io.Reader) (map[string][]model.Observation, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("observations: empty file")
	}
	series := make(map[string][]model.Observation)
	for i, row := range rows[1:] {
		if len(row) != 4 {
			return nil, fmt.Errorf("observations row %d: %d columns, want 4", i+2, len(row))
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("observations row %d: timestamp: %w", i+2, err)
		}
		density, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("observations row %d: density: %w", i+2, err)
		}
		speed, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("observations row %d: speed: %w", i+2, err)
		}
		o, err := model.NewObservation(ts, row[1], density, speed)
		if err != nil {
			return nil, fmt.Errorf("observations row %d: %w", i+2, err)
		}
		series[o.SensorID] = append(series[o.SensorID], o)
	}
	for id := range series {
		s := series[id]
		sort.Slice(s, func(a, b int) bool { return s[a].Timestamp.Before(s[b].Timestamp) })
	}
	return series, nil
}
