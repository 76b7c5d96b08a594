package metrics

import (
	"context"
	"fmt"
	"meetscribe/pkg/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const namespace = "meetscribe"

// Batch holds the metrics of one run on its own registry. A batch process
// is gone before any scrape, so the values are pushed to a gateway.
type Batch struct {
	registry *prometheus.Registry

	recordings       *prometheus.CounterVec
	failures         *prometheus.CounterVec
	recordingSeconds prometheus.Histogram
	tokens           *prometheus.CounterVec
	artifacts        prometheus.Counter
	quota            prometheus.Gauge
	batchSeconds     prometheus.Gauge
	lastRun          prometheus.Gauge
}

func NewBatch() *Batch {
	b := &Batch{
		registry: prometheus.NewRegistry(),
		recordings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_total",
			Help:      "Recordings handled in the run by final result.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed recordings by stage and error kind.",
		}, []string{"stage", "kind"}),
		recordingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Wall time spent on one recording.",
			Buckets:   prometheus.ExponentialBuckets(1, 3, 9), // 1s → ~1.8h
		}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_tokens_total",
			Help:      "Language model tokens used for summaries.",
		}, []string{"direction"}),
		artifacts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Artifacts written in the run.",
		}),
		quota: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcription_quota_seconds",
			Help:      "Remaining transcription quota reported by the provider.",
		}),
		batchSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of the run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		}),
	}

	b.registry.MustRegister(
		b.recordings,
		b.failures,
		b.recordingSeconds,
		b.tokens,
		b.artifacts,
		b.quota,
		b.batchSeconds,
		b.lastRun,
	)
	return b
}

func (b *Batch) Registry() *prometheus.Registry {
	return b.registry
}

// Observe records a finished run
func (b *Batch) Observe(report *model.BatchReport) {
	for _, o := range report.Outcomes {
		switch {
		case o.State == model.StateFailed:
			b.recordings.WithLabelValues("failed").Inc()
			b.failures.WithLabelValues(string(o.FailedStage), string(o.ErrorKind)).Inc()
		case o.AlreadyDone:
			b.recordings.WithLabelValues("already_done").Inc()
		default:
			b.recordings.WithLabelValues("processed").Inc()
		}

		if !o.FinishedAt.IsZero() {
			b.recordingSeconds.Observe(o.FinishedAt.Sub(o.StartedAt).Seconds())
		}
		b.tokens.WithLabelValues("input").Add(float64(o.InputTokens))
		b.tokens.WithLabelValues("output").Add(float64(o.OutputTokens))
		b.artifacts.Add(float64(len(o.Written)))
	}

	if report.RemainingQuota != nil {
		b.quota.Set(*report.RemainingQuota)
	}
	b.batchSeconds.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
	b.lastRun.Set(float64(report.FinishedAt.Unix()))
}

// Pusher sends run metrics to a Prometheus pushgateway
type Pusher struct {
	url      string
	job      string
	instance string
	log      *zap.Logger
}

func NewPusher(url, job, instance string, log *zap.Logger) *Pusher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pusher{url: url, job: job, instance: instance, log: log}
}

func (p *Pusher) Name() string {
	return "pushgateway"
}

// Publish replaces the metrics group of this job with the run's metrics
func (p *Pusher) Publish(ctx context.Context, report *model.BatchReport) error {
	b := NewBatch()
	b.Observe(report)

	pusher := push.New(p.url, p.job).Gatherer(b.Registry())
	if p.instance != "" {
		pusher = pusher.Grouping("instance", p.instance)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}

	p.log.Info("Metrics pushed",
		zap.String("run_id", report.RunID),
		zap.String("job", p.job))
	return nil
}
