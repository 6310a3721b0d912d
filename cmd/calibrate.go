package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m30lab/flowtwin/config"
	"github.com/m30lab/flowtwin/core/calibration"
	"github.com/m30lab/flowtwin/core/model"
	"github.com/m30lab/flowtwin/infra/logger"
	"github.com/m30lab/flowtwin/infra/store"
)

var calibrateOut string

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Build the sensor profile table from the observation history",
	RunE:  runCalibrate,
}

func init() {
	calibrateCmd.Flags().StringVarP(&calibrateOut, "out", "o", "", "profile table destination (defaults to data.profiles_path)")
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	out := calibrateOut
	if out == "" {
		out = cfg.Data.ProfilesPath
	}
	if out == "" {
		return fmt.Errorf("no output path: set --out or data.profiles_path")
	}

	log := logger.New("calibrate")
	observations, err := store.LoadObservations(cfg.Data.ObservationsPath)
	if err != nil {
		return fmt.Errorf("observations: %w", err)
	}

	profiles := make(map[string]model.SensorProfile, len(observations))
	for sensorID, series := range observations {
		p, err := calibration.Calibrate(sensorID, series, cfg.Calibration, cfg.Physics)
		if err != nil {
			log.Warnf("sensor %s skipped: %v", sensorID, err)
			continue
		}
		log.Infof("sensor %s: free flow limit %.0f km/h, critical density %.1f veh/km",
			sensorID, p.FreeFlowLimit, p.CriticalDensity)
		profiles[sensorID] = p
	}
	if len(profiles) == 0 {
		return fmt.Errorf("no sensor could be calibrated")
	}
	if err := store.SaveProfiles(out, profiles); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}
	log.Infof("wrote %d profiles to %s", len(profiles), out)
	return nil
}
