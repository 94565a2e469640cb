package cache

import (
	"context"
	"time"
)

// Invalidate deletes key and cascades to every descendant registered via
// WithDependsOn. It returns the total number of keys removed, including
// key itself.
func (m *Manager) Invalidate(ctx context.Context, key string) (int, error) {
	start := time.Now()
	nk := m.namespaced(key)

	descendants := m.graph.RemoveCascade(nk)
	keys := append(descendants, nk)

	n, err := m.backend.DeleteMany(ctx, keys)
	if err != nil {
		return 0, NewBackendError(nk, err)
	}

	if tb, ok := m.backend.(TaggableBackend); ok {
		for _, k := range keys {
			_ = tb.UnregisterTags(ctx, k)
		}
	}

	for range keys {
		m.cfg.Metrics.Eviction(EvictionDependencyInvalidated)
	}
	m.cfg.Metrics.Latency(OpInvalidate, time.Since(start))
	return n, nil
}

// InvalidateByTag deletes every entry registered under tag. It requires a
// TaggableBackend; other backends return ErrBackend.
func (m *Manager) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	start := time.Now()
	tb, ok := m.backend.(TaggableBackend)
	if !ok {
		return 0, NewBackendError(tag, errTagsUnsupported)
	}
	n, err := tb.InvalidateByTag(ctx, tag)
	if err != nil {
		return 0, NewBackendError(tag, err)
	}
	m.cfg.Metrics.Eviction(EvictionInvalidated)
	m.cfg.Metrics.Latency(OpInvalidate, time.Since(start))
	return n, nil
}

// InvalidateByPattern deletes every entry whose tags match pattern
// (shell-style glob). It requires a TaggableBackend.
func (m *Manager) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	start := time.Now()
	tb, ok := m.backend.(TaggableBackend)
	if !ok {
		return 0, NewBackendError(pattern, errTagsUnsupported)
	}
	n, err := tb.InvalidateByPattern(ctx, pattern)
	if err != nil {
		return 0, NewBackendError(pattern, err)
	}
	m.cfg.Metrics.Eviction(EvictionInvalidated)
	m.cfg.Metrics.Latency(OpInvalidate, time.Since(start))
	return n, nil
}
