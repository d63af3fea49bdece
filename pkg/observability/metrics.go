package observability

import (
	"context"
	"time"

	"github.com/aretw0/companion/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors of the state core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	DispatchesTotal  *prometheus.CounterVec
	ReduceDuration   prometheus.Histogram
	EffectsTotal     *prometheus.CounterVec
	EffectDuration   *prometheus.HistogramVec
	EffectsInFlight  prometheus.Gauge
	WritesTotal      *prometheus.CounterVec
	ObserverBacklog  *prometheus.GaugeVec
	ImagesDownloaded *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// Pass prometheus.NewRegistry() in tests to avoid global collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "companion",
				Subsystem: "store",
				Name:      "dispatches_total",
				Help:      "Dispatched intent batches by resulting classification",
			},
			[]string{"update_kind"},
		),
		ReduceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "companion",
				Subsystem: "store",
				Name:      "reduce_duration_seconds",
				Help:      "Time spent reducing one batch",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
		),
		EffectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "companion",
				Subsystem: "effects",
				Name:      "total",
				Help:      "Completed side effects by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		EffectDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "companion",
				Subsystem: "effects",
				Name:      "duration_seconds",
				Help:      "Side effect duration from moderation to finalize",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		EffectsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "companion",
				Subsystem: "effects",
				Name:      "in_flight",
				Help:      "Side effects currently running",
			},
		),
		WritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "companion",
				Subsystem: "persistence",
				Name:      "writes_total",
				Help:      "State writes by outcome (saved, unchanged, skipped, failed)",
			},
			[]string{"status"},
		),
		ObserverBacklog: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "companion",
				Subsystem: "store",
				Name:      "observer_backlog",
				Help:      "Changes queued for delivery per observer",
			},
			[]string{"observer"},
		),
		ImagesDownloaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "companion",
				Subsystem: "effects",
				Name:      "image_downloads_total",
				Help:      "Image downloads in fan-outs by outcome",
			},
			[]string{"status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.DispatchesTotal,
			m.ReduceDuration,
			m.EffectsTotal,
			m.EffectDuration,
			m.EffectsInFlight,
			m.WritesTotal,
			m.ObserverBacklog,
			m.ImagesDownloaded,
		)
	}
	return m
}

// ObserveDispatch records one committed batch.
func (m *Metrics) ObserveDispatch(kind domain.UpdateKind, d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchesTotal.WithLabelValues(string(kind)).Inc()
	m.ReduceDuration.Observe(d.Seconds())
}

// SetBacklog records the queue length of an observer.
func (m *Metrics) SetBacklog(observer string, n int) {
	if m == nil {
		return
	}
	m.ObserverBacklog.WithLabelValues(observer).Set(float64(n))
}

// ObserveWrite records a persistence outcome.
func (m *Metrics) ObserveWrite(status string) {
	if m == nil {
		return
	}
	m.WritesTotal.WithLabelValues(status).Inc()
}

// ObserveDownload records one image download outcome ("ok", "failed", "invalid").
func (m *Metrics) ObserveDownload(status string) {
	if m == nil {
		return
	}
	m.ImagesDownloaded.WithLabelValues(status).Inc()
}

// Hooks returns executor lifecycle hooks that feed the effect collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	if m == nil {
		return domain.LifecycleHooks{}
	}
	return domain.LifecycleHooks{
		OnEffectStart: func(_ context.Context, e *domain.EffectEvent) {
			m.EffectsInFlight.Inc()
		},
		OnEffectEnd: func(_ context.Context, e *domain.EffectEvent) {
			m.EffectsInFlight.Dec()
			status := "succeeded"
			if e.Err != nil {
				status = "failed"
			}
			m.EffectsTotal.WithLabelValues(string(e.Kind), status).Inc()
			m.EffectDuration.WithLabelValues(string(e.Kind)).Observe(e.Duration.Seconds())
		},
	}
}
