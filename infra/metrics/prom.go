package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/m30lab/flowtwin/core/metrics"
)

// PromSink records run summaries as Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	speedImpr   *prometheus.GaugeVec
	throughImpr *prometheus.GaugeVec
	congestion  *prometheus.GaugeVec
	elapsed     prometheus.Histogram
}

// NewPromSink registers the run metrics on the default Prometheus
// registerer. The exposition endpoint is started separately with
// StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the metrics on the provided registerer.
// A nil registerer defaults to the global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_runs_total",
		Help: "Total number of completed digital twin runs",
	}, []string{"scenario", "sensor_id"})
	speedImpr := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simulation_speed_improvement_pct",
		Help: "Mean speed improvement of the last run, percent",
	}, []string{"scenario", "sensor_id"})
	throughImpr := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simulation_throughput_improvement_pct",
		Help: "Throughput improvement of the last run, percent",
	}, []string{"scenario", "sensor_id"})
	congestion := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simulation_congested_steps",
		Help: "Congested timesteps of the last run per trace",
	}, []string{"scenario", "sensor_id", "trace"})
	elapsed := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "simulation_run_duration_seconds",
		Help:    "Wall time of one digital twin run",
		Buckets: prometheus.DefBuckets,
	})

	s := &PromSink{runs: runs, speedImpr: speedImpr, throughImpr: throughImpr, congestion: congestion, elapsed: elapsed}
	collectors := []prometheus.Collector{runs, speedImpr, throughImpr, congestion, elapsed}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			switch i {
			case 0:
				s.runs = are.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				s.speedImpr = are.ExistingCollector.(*prometheus.GaugeVec)
			case 2:
				s.throughImpr = are.ExistingCollector.(*prometheus.GaugeVec)
			case 3:
				s.congestion = are.ExistingCollector.(*prometheus.GaugeVec)
			case 4:
				s.elapsed = are.ExistingCollector.(prometheus.Histogram)
			}
		}
	}
	return s, nil
}

// RecordRun implements coremetrics.Sink.
func (s *PromSink) RecordRun(rec coremetrics.RunRecord) error {
	s.runs.WithLabelValues(rec.Scenario, rec.SensorID).Inc()
	s.speedImpr.WithLabelValues(rec.Scenario, rec.SensorID).Set(rec.SpeedImprovementPct)
	s.throughImpr.WithLabelValues(rec.Scenario, rec.SensorID).Set(rec.ThroughputImprovementPct)
	s.congestion.WithLabelValues(rec.Scenario, rec.SensorID, "real").Set(float64(rec.CongestedStepsReal))
	s.congestion.WithLabelValues(rec.Scenario, rec.SensorID, "simulated").Set(float64(rec.CongestedStepsSim))
	s.elapsed.Observe(rec.Elapsed.Seconds())
	return nil
}
