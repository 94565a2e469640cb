package cache

import (
	"context"
	"time"

	"github.com/calvinalkan/cachecore/internal/freshness"
)

// GetMany retrieves keys in one backend round trip, preserving order.
// Missing or unusable entries appear with Status == StatusMiss.
func GetMany[T any](ctx context.Context, m *Manager, keys []string) ([]Result[T], error) {
	start := time.Now()
	nks := make([]string, len(keys))
	for i, k := range keys {
		nks[i] = m.namespaced(k)
	}

	entries, err := m.backend.GetMany(ctx, nks)
	if err != nil {
		return nil, NewBackendError("<batch>", err)
	}

	out := make([]Result[T], len(keys))
	for i, me := range entries {
		if !me.Found {
			out[i] = Result[T]{Status: StatusMiss}
			m.cfg.Metrics.Miss()
			continue
		}

		eval := freshness.Evaluate(time.Now(), me.Entry.CreatedAt, me.Entry.TTL, me.Entry.SWR, me.Entry.Negative)
		if !eval.Usable() {
			out[i] = Result[T]{Status: StatusMiss}
			m.cfg.Metrics.Miss()
			continue
		}
		if eval.Status == freshness.NegativeHit {
			out[i] = Result[T]{Status: StatusNegativeHit}
			m.cfg.Metrics.Hit("negative")
			continue
		}

		var value T
		if len(me.Entry.Value) > 0 {
			if derr := m.serializer.Deserialize(me.Entry.Value, &value); derr != nil {
				return nil, NewSerializationError(derr)
			}
		}
		status := StatusHit
		if eval.Status == freshness.Stale {
			status = StatusStale
			m.cfg.Metrics.StaleHit()
		} else {
			m.cfg.Metrics.Hit("backend")
		}
		out[i] = Result[T]{
			Status: status,
			hasVal: true,
			entry: Entry[T]{
				Value:        value,
				CreatedAt:    me.Entry.CreatedAt,
				LastAccessed: me.Entry.LastAccessed,
				AccessCount:  me.Entry.AccessCount,
				TTL:          me.Entry.TTL,
				SWR:          me.Entry.SWR,
				Tags:         me.Entry.Tags,
				Dependencies: me.Entry.Dependencies,
				Cost:         me.Entry.Cost,
				Size:         me.Entry.Size,
				ETag:         me.Entry.ETag,
				Version:      me.Entry.Version,
			},
		}
	}

	m.cfg.Metrics.Latency(OpGet, time.Since(start))
	return out, nil
}

// BatchItem is one key/producer pair for BatchGetOrCompute.
type BatchItem[T any] struct {
	Key     string
	Produce Producer[T]
	Opts    []Option
}

// BatchGetOrCompute runs GetOrCompute for each item. Items are read together
// in one backend round trip; misses are computed and written individually
// (each still subject to its own Options, including coalescing). The
// returned slice is in items order.
func BatchGetOrCompute[T any](ctx context.Context, m *Manager, items []BatchItem[T]) ([]Result[T], error) {
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Key
	}
	results, err := GetMany[T](ctx, m, keys)
	if err != nil {
		return nil, err
	}

	out := make([]Result[T], len(items))
	for i, it := range items {
		if results[i].Status != StatusMiss {
			out[i] = results[i]
			continue
		}
		res, err := GetOrCompute[T](ctx, m, it.Key, it.Produce, it.Opts...)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}
