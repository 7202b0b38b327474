package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Save outcomes reported by the metrics middleware.
const (
	outcomeOK       = "ok"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// Metrics holds the persistence collectors. One instance is shared by
// every wrapped Persister registered against the same registry.
type Metrics struct {
	saves        *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the persistence collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "espalier_snapshot_saves_total",
				Help: "Snapshot save attempts by partition and outcome.",
			},
			[]string{"partition", "outcome"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "espalier_snapshot_load_duration_seconds",
				Help:    "Latency of snapshot reads from the backing store.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.saves, m.loadDuration)
	return m
}

// SaveCounter exposes the save counter for one (partition, outcome)
// pair, mainly for tests and dashboards.
func (m *Metrics) SaveCounter(partition, outcome string) (prometheus.Counter, error) {
	return m.saves.GetMetricWithLabelValues(partition, outcome)
}

// Instrument returns a middleware recording save outcomes and read
// latency for the wrapped Persister.
func (m *Metrics) Instrument() Middleware {
	return func(next ports.Persister) ports.Persister {
		return &metricsPersister{next: next, metrics: m}
	}
}

type metricsPersister struct {
	next    ports.Persister
	metrics *Metrics
}

func (p *metricsPersister) Save(ctx context.Context, state *domain.State, expectedPrev uint64) error {
	err := p.next.Save(ctx, state, expectedPrev)

	partition := "unknown"
	if state != nil {
		partition = state.PartitionKey
	}
	outcome := outcomeOK
	switch {
	case errors.Is(err, domain.ErrConflict):
		outcome = outcomeConflict
	case err != nil:
		outcome = outcomeError
	}
	p.metrics.saves.WithLabelValues(partition, outcome).Inc()

	return err
}

func (p *metricsPersister) Load(ctx context.Context, entityID, partition string) (*domain.State, error) {
	start := time.Now()
	state, err := p.next.Load(ctx, entityID, partition)
	p.metrics.loadDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	return state, err
}

func (p *metricsPersister) LoadHistory(ctx context.Context, entityID, partition string, limit, offset int) ([]*domain.State, error) {
	start := time.Now()
	history, err := p.next.LoadHistory(ctx, entityID, partition, limit, offset)
	p.metrics.loadDuration.WithLabelValues("load_history").Observe(time.Since(start).Seconds())
	return history, err
}
