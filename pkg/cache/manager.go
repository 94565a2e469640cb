package cache

import (
	"time"

	"github.com/calvinalkan/cachecore/internal/coalesce"
	"github.com/calvinalkan/cachecore/internal/depgraph"
)

// Config configures a Manager. The zero value is usable: no namespace, no
// default TTL/SWR (entries never expire unless a call overrides them), no
// jitter, early refresh and coalescing off by default (callers opt in per
// call via WithEarlyRefresh/WithCoalesce), NopMetrics.
type Config struct {
	// Namespace is prefixed to every key as "<namespace>:<key>". Empty
	// means no namespace.
	Namespace string

	// Metrics receives emission events. Defaults to NopMetrics.
	Metrics Metrics

	// DefaultTTL is used for writes that don't specify WithTTL.
	DefaultTTL time.Duration

	// DefaultSWR is used for writes that don't specify WithSWR.
	DefaultSWR time.Duration

	// Jitter, in [0,1], extends every write's effective TTL by a uniform
	// random fraction of itself, up to this much. Applied once per write,
	// after defaults.
	Jitter float64

	// EarlyRefresh enables X-Fetch probabilistic early refresh globally,
	// inside GetOrCompute. Per-call WithEarlyRefresh() also opts in,
	// independent of this flag.
	EarlyRefresh bool

	// EarlyRefreshBeta is the X-Fetch β constant. Defaults to 1.0 if <= 0.
	EarlyRefreshBeta float64

	// Coalesce enables singleflight coalescing globally, for
	// GetOrCompute's Miss path. Per-call WithCoalesce() also opts in,
	// independent of this flag.
	Coalesce bool
}

// Manager is the public cache coordination surface: the coalescer,
// dependency graph, freshness evaluator, and jitter all sit here, in front
// of a single Backend (which may itself be a pkg/cache/tier.Tier composing
// an L1 and an L2). The zero value is not usable; construct one with
// NewManager.
type Manager struct {
	backend    Backend
	serializer Serializer
	cfg        Config

	graph *depgraph.Graph
	group *coalesce.Group
}

// NewManager builds a Manager over backend, using serializer to encode/
// decode typed values to the backend's byte boundary.
func NewManager(backend Backend, serializer Serializer, cfg Config) *Manager {
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.EarlyRefreshBeta <= 0 {
		cfg.EarlyRefreshBeta = 1.0
	}
	return &Manager{
		backend:    backend,
		serializer: serializer,
		cfg:        cfg,
		graph:      depgraph.New(),
		group:      coalesce.NewGroup(),
	}
}

// Backend returns the manager's underlying Backend, mainly for tests and
// diagnostics (e.g. type-asserting to TaggableBackend to check capability).
func (m *Manager) Backend() Backend { return m.backend }

func (m *Manager) namespaced(key string) string {
	if m.cfg.Namespace == "" {
		return key
	}
	return m.cfg.Namespace + ":" + key
}

// registerDeps registers key's dependency edges, translating the internal
// cycle sentinel into the public CyclicDependency error.
func (m *Manager) registerDeps(key string, parents []string) error {
	if len(parents) == 0 {
		return nil
	}
	if err := m.graph.Register(key, parents); err != nil {
		return NewCyclicDependencyError(key)
	}
	return nil
}
