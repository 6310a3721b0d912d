package metrics

import (
	"context"
	"math"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/m30lab/flowtwin/core/metrics"
	"github.com/m30lab/flowtwin/core/sim"
	"github.com/m30lab/flowtwin/infra/logger"
)

// InfluxSink writes run summaries and paired trace points to InfluxDB. The
// dashboard reads its time series from the configured bucket.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails, so a missing dashboard store never
// blocks a simulation run.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordRun writes the run summary as a single point.
func (s *InfluxSink) RecordRun(rec coremetrics.RunRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("simulation_run").
		AddTag("run_id", rec.RunID).
		AddTag("scenario", rec.Scenario).
		AddTag("sensor_id", rec.SensorID).
		AddField("critical_density", round3(rec.CriticalDensity)).
		AddField("real_mean_speed", round3(rec.RealMeanSpeed)).
		AddField("sim_mean_speed", round3(rec.SimMeanSpeed)).
		AddField("speed_improvement_pct", round3(rec.SpeedImprovementPct)).
		AddField("throughput_improvement_pct", round3(rec.ThroughputImprovementPct)).
		AddField("congested_steps_real", rec.CongestedStepsReal).
		AddField("congested_steps_sim", rec.CongestedStepsSim).
		AddField("elapsed_ms", round3(rec.Elapsed.Seconds()*1000)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTrace writes the paired per-timestep series of a run.
func (s *InfluxSink) RecordTrace(rec coremetrics.RunRecord, real, simulated []sim.TracePoint) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i, rp := range real {
		sp := simulated[i]
		p := write.NewPointWithMeasurement("simulation_trace").
			AddTag("run_id", rec.RunID).
			AddTag("scenario", rec.Scenario).
			AddTag("sensor_id", rec.SensorID).
			AddField("real_density", round3(rp.Density)).
			AddField("real_speed", round3(rp.Speed)).
			AddField("real_flow", round3(rp.Flow)).
			AddField("real_regime", rp.Regime.String()).
			AddField("sim_density", round3(sp.Density)).
			AddField("sim_speed", round3(sp.Speed)).
			AddField("sim_flow", round3(sp.Flow)).
			AddField("sim_regime", sp.Regime.String()).
			SetTime(rp.Timestamp)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
