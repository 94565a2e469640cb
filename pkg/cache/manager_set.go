package cache

import (
	"context"
	"time"

	"github.com/calvinalkan/cachecore/internal/freshness"
)

// Set writes key unconditionally (subject to opts.IfVersion, if set).
func Set[T any](ctx context.Context, m *Manager, key string, value T, opts ...Option) error {
	return setValue(ctx, m, key, value, newOptions(opts...))
}

// SetNegative writes a known-absent sentinel for key: subsequent reads
// report NegativeHit rather than Miss for opts.TTL, guarding against
// cache penetration by repeated misses on keys known not to exist.
func SetNegative(ctx context.Context, m *Manager, key string, opts ...Option) error {
	o := newOptions(opts...)
	o.Negative = true
	var zero struct{}
	return setValue(ctx, m, key, zero, o)
}

// setValue is Set's implementation, shared with GetOrCompute's write-back
// paths. It registers dependency edges before writing (so a cyclic
// dependency never reaches the backend), applies Config defaults and
// jitter, enforces opts.IfVersion, and bumps Version.
func setValue[T any](ctx context.Context, m *Manager, key string, value T, o Options) error {
	start := time.Now()
	nk := m.namespaced(key)

	if err := m.registerDeps(nk, namespaceAll(m, o.DependsOn)); err != nil {
		return err
	}

	ttl := o.TTL
	if ttl == 0 {
		ttl = m.cfg.DefaultTTL
	}
	swr := o.SWR
	if swr == 0 {
		swr = m.cfg.DefaultSWR
	}
	if ttl > 0 && m.cfg.Jitter > 0 {
		ttl = freshness.Jitter(ttl, m.cfg.Jitter)
	}

	version, err := m.nextVersion(ctx, nk, o.IfVersion)
	if err != nil {
		return err
	}

	var data []byte
	if !o.Negative {
		encStart := time.Now()
		data, err = m.serializer.Serialize(value)
		m.cfg.Metrics.Latency(OpSerialize, time.Since(encStart))
		if err != nil {
			return NewSerializationError(err)
		}
	}

	wo := o
	wo.TTL = ttl
	wo.SWR = swr
	wo.Version = version
	if wo.Cost == 0 {
		wo.Cost = 1
	}

	if err := m.backend.Set(ctx, nk, data, wo); err != nil {
		return NewBackendError(nk, err)
	}

	if tb, ok := m.backend.(TaggableBackend); ok && len(o.Tags) > 0 {
		if err := tb.RegisterTags(ctx, nk, o.Tags); err != nil {
			return NewBackendError(nk, err)
		}
	}

	m.cfg.Metrics.Latency(OpSet, time.Since(start))
	return nil
}

// nextVersion enforces opts.IfVersion (optimistic concurrency) and returns
// the version to write. want == nil means no check: the version is bumped
// unconditionally from whatever currently exists.
func (m *Manager) nextVersion(ctx context.Context, nk string, want *uint64) (uint64, error) {
	existing, found, err := m.backend.Get(ctx, nk)
	if err != nil {
		return 0, NewBackendError(nk, err)
	}
	if want != nil {
		var current uint64
		if found {
			current = existing.Version
		}
		if current != *want {
			return 0, NewVersionConflictError(nk)
		}
	}
	if !found {
		return 1, nil
	}
	return existing.Version + 1, nil
}

// namespaceAll namespaces every key in keys under m's namespace.
func namespaceAll(m *Manager, keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = m.namespaced(k)
	}
	return out
}
