package cache

import (
	"context"
	"errors"
	"time"

	"github.com/calvinalkan/cachecore/internal/freshness"
)

// Producer computes the value for a key on a cache miss or stale refresh.
// It must be safe to invoke more than once: on Stale, GetOrCompute invokes
// it again, in the background, to refresh the entry.
type Producer[T any] func(ctx context.Context) (T, error)

// Get retrieves key. Methods can't carry their own type parameters in Go, so
// Get is a free function taking the Manager explicitly.
func Get[T any](ctx context.Context, m *Manager, key string) (Result[T], error) {
	res, _, err := getEval[T](ctx, m, key)
	return res, err
}

// getEval is Get's implementation, also used by GetOrCompute so the early
// refresh decision (which needs the freshness.Evaluation) doesn't require a
// second backend round trip.
func getEval[T any](ctx context.Context, m *Manager, key string) (Result[T], freshness.Evaluation, error) {
	start := time.Now()
	nk := m.namespaced(key)

	be, found, err := m.backend.Get(ctx, nk)
	if err != nil {
		return Result[T]{}, freshness.Evaluation{}, err
	}
	if !found {
		m.cfg.Metrics.Miss()
		m.cfg.Metrics.Latency(OpGet, time.Since(start))
		return Result[T]{Status: StatusMiss}, freshness.Evaluation{}, nil
	}

	eval := freshness.Evaluate(time.Now(), be.CreatedAt, be.TTL, be.SWR, be.Negative)
	if !eval.Usable() {
		m.cfg.Metrics.Miss()
		m.cfg.Metrics.Latency(OpGet, time.Since(start))
		return Result[T]{Status: StatusMiss}, eval, nil
	}
	if eval.Status == freshness.NegativeHit {
		m.cfg.Metrics.Hit("negative")
		m.cfg.Metrics.Latency(OpGet, time.Since(start))
		return Result[T]{Status: StatusNegativeHit}, eval, nil
	}

	var value T
	if len(be.Value) > 0 {
		decStart := time.Now()
		derr := m.serializer.Deserialize(be.Value, &value)
		m.cfg.Metrics.Latency(OpDeserialize, time.Since(decStart))
		if derr != nil {
			return Result[T]{}, eval, NewSerializationError(derr)
		}
	}

	entry := Entry[T]{
		Value:        value,
		CreatedAt:    be.CreatedAt,
		LastAccessed: be.LastAccessed,
		AccessCount:  be.AccessCount,
		TTL:          be.TTL,
		SWR:          be.SWR,
		Tags:         be.Tags,
		Dependencies: be.Dependencies,
		Cost:         be.Cost,
		Size:         be.Size,
		ETag:         be.ETag,
		Version:      be.Version,
	}

	status := StatusHit
	if eval.Status == freshness.Stale {
		status = StatusStale
		m.cfg.Metrics.StaleHit()
	} else {
		m.cfg.Metrics.Hit("backend")
	}

	m.cfg.Metrics.Latency(OpGet, time.Since(start))
	return Result[T]{Status: status, entry: entry, hasVal: true}, eval, nil
}

// GetOrCompute implements cache-aside with stampede protection: on Hit it
// returns immediately (additionally scheduling a background refresh if
// X-Fetch's early-refresh sampling flags it); on Stale it returns the stale
// value immediately and schedules a background refresh via produce; on
// Miss it either runs produce inline or, if coalescing is enabled for this
// call (WithCoalesce or Config.Coalesce), delegates to the singleflight
// coalescer so concurrent misses on the same key share one execution of
// produce.
func GetOrCompute[T any](ctx context.Context, m *Manager, key string, produce Producer[T], opts ...Option) (Result[T], error) {
	o := newOptions(opts...)

	res, eval, err := getEval[T](ctx, m, key)
	if err != nil {
		return Result[T]{}, err
	}

	switch res.Status {
	case StatusNegativeHit:
		return res, nil

	case StatusStale:
		backgroundRefresh(m, key, produce, o)
		return res, nil

	case StatusHit:
		earlyRefresh := m.cfg.EarlyRefresh || o.EarlyRefresh
		if earlyRefresh && eval.HasTTL && freshness.ShouldEarlyRefresh(eval.Age+eval.TTLRemaining, eval.TTLRemaining, m.cfg.EarlyRefreshBeta) {
			backgroundRefresh(m, key, produce, o)
		}
		return res, nil
	}

	// Miss.
	coalesceEnabled := m.cfg.Coalesce || o.Coalesce
	if coalesceEnabled {
		return coalesceCompute(ctx, m, key, produce, o)
	}
	return computeAndSet(ctx, m, key, produce, o)
}

// computeAndSet runs produce inline and writes the result, per Options.
func computeAndSet[T any](ctx context.Context, m *Manager, key string, produce Producer[T], o Options) (Result[T], error) {
	value, err := produce(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	if err := setValue(ctx, m, key, value, o); err != nil {
		return Result[T]{}, err
	}
	return Result[T]{Status: StatusHit, entry: Entry[T]{Value: value}, hasVal: true}, nil
}

// coalesceCompute runs produce through the singleflight group so concurrent
// misses on key share one execution.
func coalesceCompute[T any](ctx context.Context, m *Manager, key string, produce Producer[T], o Options) (Result[T], error) {
	nk := m.namespaced(key)

	encoded, native, leader, err := m.group.Do(ctx, nk, func(ctx context.Context) (any, []byte, error) {
		value, err := produce(ctx)
		if err != nil {
			return nil, nil, err
		}
		if err := setValue(ctx, m, key, value, o); err != nil {
			return nil, nil, err
		}
		data, err := m.serializer.Serialize(value)
		if err != nil {
			return nil, nil, NewSerializationError(err)
		}
		return value, data, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result[T]{}, NewCancelledError(err)
		}
		if !leader {
			m.cfg.Metrics.Coalesce()
		}
		return Result[T]{}, err
	}

	var value T
	if leader {
		value = native.(T)
	} else {
		m.cfg.Metrics.Coalesce()
		if len(encoded) > 0 {
			if derr := m.serializer.Deserialize(encoded, &value); derr != nil {
				return Result[T]{}, NewSerializationError(derr)
			}
		}
	}
	return Result[T]{Status: StatusHit, entry: Entry[T]{Value: value}, hasVal: true}, nil
}

// backgroundRefresh fires produce asynchronously and writes its result back
// with the original options. Any error from produce or from the write is
// discarded: it reaches neither the original caller nor Metrics.
func backgroundRefresh[T any](m *Manager, key string, produce Producer[T], o Options) {
	go func() {
		ctx := context.Background()
		value, err := produce(ctx)
		if err != nil {
			return
		}
		_ = setValue(ctx, m, key, value, o)
	}()
}
