package cache

import "time"

// MetricOp tags an operation-latency sample.
type MetricOp string

const (
	OpGet         MetricOp = "get"
	OpSet         MetricOp = "set"
	OpDelete      MetricOp = "delete"
	OpInvalidate  MetricOp = "invalidate"
	OpSerialize   MetricOp = "serialize"
	OpDeserialize MetricOp = "deserialize"
)

// Metrics is the emission-points contract for cache observability.
// Implementations must never block: the core never awaits a metric.
type Metrics interface {
	// Hit records a cache hit against the named tier (e.g. "l1", "l2",
	// "backend", "negative").
	Hit(tier string)

	// Miss records a cache miss.
	Miss()

	// StaleHit records a Stale classification being returned to a caller.
	StaleHit()

	// Latency records how long an operation took.
	Latency(op MetricOp, d time.Duration)

	// Eviction records an entry leaving a backend, tagged with why.
	Eviction(reason EvictionReason)

	// Size reports a point-in-time size gauge, in bytes.
	Size(bytes int64)

	// Coalesce records that a caller was coalesced onto an inflight
	// computation rather than becoming its leader.
	Coalesce()
}

// NopMetrics is a Metrics implementation that discards everything. It is
// the default when Config.Metrics is nil.
type NopMetrics struct{}

func (NopMetrics) Hit(string)                  {}
func (NopMetrics) Miss()                       {}
func (NopMetrics) StaleHit()                   {}
func (NopMetrics) Latency(MetricOp, time.Duration) {}
func (NopMetrics) Eviction(EvictionReason)     {}
func (NopMetrics) Size(int64)                  {}
func (NopMetrics) Coalesce()                   {}

var _ Metrics = NopMetrics{}
