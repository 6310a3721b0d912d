package metrics

import (
	"errors"

	coremetrics "github.com/m30lab/flowtwin/core/metrics"
	"github.com/m30lab/flowtwin/core/sim"
)

// MultiSink fans every record out to all configured sinks and joins their
// errors.
type MultiSink struct {
	sinks []coremetrics.Sink
}

// NewMultiSink combines the given sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// RecordRun implements coremetrics.Sink.
func (m *MultiSink) RecordRun(rec coremetrics.RunRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordRun(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordTrace forwards the trace to every sink that can persist it.
func (m *MultiSink) RecordTrace(rec coremetrics.RunRecord, real, simulated []sim.TracePoint) error {
	var errs []error
	for _, s := range m.sinks {
		if tr, ok := s.(coremetrics.TraceRecorder); ok {
			if err := tr.RecordTrace(rec, real, simulated); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
