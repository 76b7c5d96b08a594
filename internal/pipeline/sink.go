package pipeline

import (
	"context"
	"meetscribe/pkg/model"

	"go.uber.org/zap"
)

// Sink receives the batch report after every run
type Sink interface {
	Name() string
	Publish(ctx context.Context, report *model.BatchReport) error
}

// MultiSink fans a report out to several sinks. A failing sink is logged
// and does not stop the others.
type MultiSink struct {
	sinks []Sink
	log   *zap.Logger
}

func NewMultiSink(log *zap.Logger, sinks ...Sink) *MultiSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &MultiSink{sinks: sinks, log: log}
}

func (m *MultiSink) Name() string { return "multi" }

// Add registers another sink; nil sinks are ignored
func (m *MultiSink) Add(s Sink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// Len returns the number of registered sinks
func (m *MultiSink) Len() int { return len(m.sinks) }

// Publish returns the last error, if any
func (m *MultiSink) Publish(ctx context.Context, report *model.BatchReport) error {
	var lastErr error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, report); err != nil {
			lastErr = err
			m.log.Warn("Sink failed",
				zap.String("sink", s.Name()),
				zap.String("run_id", report.RunID),
				zap.Error(err))
			continue
		}
		m.log.Debug("Sink published", zap.String("sink", s.Name()))
	}
	return lastErr
}
