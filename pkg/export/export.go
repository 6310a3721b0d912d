// Package export serialises simulation results for the presentation layer.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/m30lab/flowtwin/core/sim"
)

// WriteJSON writes the full result, traces included, to w.
func WriteJSON(w io.Writer, res *sim.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

var csvHeader = []string{
	"timestamp",
	"real_density", "real_speed", "real_flow", "real_regime",
	"sim_density", "sim_speed", "sim_flow", "sim_regime",
}

// WriteCSV writes the paired per-timestep series of the result to w.
func WriteCSV(w io.Writer, res *sim.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, rp := range res.Real {
		sp := res.Simulated[i]
		rec := []string{
			rp.Timestamp.Format(time.RFC3339),
			fmtFloat(rp.Density), fmtFloat(rp.Speed), fmtFloat(rp.Flow), rp.Regime.String(),
			fmtFloat(sp.Density), fmtFloat(sp.Speed), fmtFloat(sp.Flow), sp.Regime.String(),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
