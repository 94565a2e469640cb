// Package prometheus implements cache.Metrics over
// prometheus/client_golang, for exporting cache behavior to a /metrics
// endpoint.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/cachecore/pkg/cache"
)

// Sink is a cache.Metrics implementation registering a fixed set of
// collectors against reg.
type Sink struct {
	hits       *prometheus.CounterVec
	misses     prometheus.Counter
	staleHits  prometheus.Counter
	latency    *prometheus.HistogramVec
	evictions  *prometheus.CounterVec
	size       prometheus.Gauge
	coalesced  prometheus.Counter
}

// New registers the cache's collectors under reg, prefixed with namespace
// (e.g. "cachecore"), and returns a ready Sink.
func New(reg prometheus.Registerer, namespace string) *Sink {
	s := &Sink{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "hits_total", Help: "Cache hits by tier.",
		}, []string{"tier"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "misses_total", Help: "Cache misses.",
		}),
		staleHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stale_hits_total", Help: "Stale-while-revalidate hits.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "op_latency_seconds", Help: "Operation latency by op.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "evictions_total", Help: "Evictions by reason.",
		}, []string{"reason"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "size_bytes", Help: "Approximate cache size in bytes.",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "coalesced_total", Help: "Calls coalesced onto an inflight computation.",
		}),
	}
	reg.MustRegister(s.hits, s.misses, s.staleHits, s.latency, s.evictions, s.size, s.coalesced)
	return s
}

var _ cache.Metrics = (*Sink)(nil)

func (s *Sink) Hit(tier string)   { s.hits.WithLabelValues(tier).Inc() }
func (s *Sink) Miss()             { s.misses.Inc() }
func (s *Sink) StaleHit()         { s.staleHits.Inc() }
func (s *Sink) Coalesce()         { s.coalesced.Inc() }
func (s *Sink) Size(bytes int64)  { s.size.Set(float64(bytes)) }

func (s *Sink) Latency(op cache.MetricOp, d time.Duration) {
	s.latency.WithLabelValues(string(op)).Observe(d.Seconds())
}

func (s *Sink) Eviction(reason cache.EvictionReason) {
	s.evictions.WithLabelValues(reason.String()).Inc()
}
