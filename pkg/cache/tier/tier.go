// Package tier composes two cache.Backend values into one: a fast local L1
// in front of a slower, possibly remote L2, with promotion-on-hit and a
// circuit breaker guarding L2 so a struggling L2 degrades to L1-only reads
// instead of adding latency to every request.
package tier

import (
	"context"
	"time"

	"github.com/calvinalkan/cachecore/internal/breaker"
	"github.com/calvinalkan/cachecore/pkg/cache"
)

// WriteStrategy selects how writes propagate to L1/L2.
type WriteStrategy int

const (
	// WriteThrough writes L1 and L2 synchronously; Set only returns once
	// both have completed (or L2 has been skipped because its breaker is
	// Open).
	WriteThrough WriteStrategy = iota
	// WriteBehind writes L1 synchronously and queues the L2 write on a
	// background goroutine; Set returns as soon as L1 completes.
	WriteBehind
	// WriteAround writes only L2, bypassing L1 entirely (useful for
	// bulk-loaded data that shouldn't evict hot L1 entries).
	WriteAround
)

// Config configures a Tier.
type Config struct {
	// Strategy selects how writes propagate. Defaults to WriteThrough.
	Strategy WriteStrategy

	// Breaker guards every L2 operation: reads, writes under every Strategy,
	// and deletes. Defaults to a
	// breaker.New(breaker.Config{}) with its built-in defaults.
	Breaker *breaker.Breaker

	// Metrics receives Hit("l1")/Hit("l2")/Miss/Eviction emissions.
	// Defaults to cache.NopMetrics{}.
	Metrics cache.Metrics
}

// Tier is a cache.Backend composing an L1 and an L2. Tier itself implements
// only cache.Backend; NewTaggable returns a TaggableTier, which also
// implements cache.TaggableBackend when both L1 and L2 do. Neither type
// implements cache.DistributedBackend.
type Tier struct {
	l1, l2 cache.Backend
	cfg    Config
	brk    *breaker.Breaker
}

// New composes l1 in front of l2.
func New(l1, l2 cache.Backend, cfg Config) *Tier {
	if cfg.Breaker == nil {
		cfg.Breaker = breaker.New(breaker.Config{})
	}
	if cfg.Metrics == nil {
		cfg.Metrics = cache.NopMetrics{}
	}
	return &Tier{l1: l1, l2: l2, cfg: cfg, brk: cfg.Breaker}
}

var _ cache.Backend = (*Tier)(nil)

// Get reads L1 first; on an L1 miss it falls through to L2 (if the breaker
// allows it), promoting a found entry back into L1 with its TTL ceiling'd
// to L2's remaining TTL: a promoted entry must never outlive the value
// it was promoted from.
func (t *Tier) Get(ctx context.Context, key string) (cache.Entry[[]byte], bool, error) {
	e, ok, err := t.l1.Get(ctx, key)
	if err != nil {
		return cache.Entry[[]byte]{}, false, err
	}
	if ok {
		t.cfg.Metrics.Hit("l1")
		return e, true, nil
	}

	if !t.brk.Allow() {
		t.cfg.Metrics.Miss()
		return cache.Entry[[]byte]{}, false, nil
	}

	e, ok, err = t.l2.Get(ctx, key)
	if err != nil {
		t.brk.RecordFailure()
		return cache.Entry[[]byte]{}, false, err
	}
	t.brk.RecordSuccess()
	if !ok {
		t.cfg.Metrics.Miss()
		return cache.Entry[[]byte]{}, false, nil
	}
	t.cfg.Metrics.Hit("l2")

	t.promote(ctx, key, e)
	return e, true, nil
}

// promote writes a backend-format entry found in L2 into L1, bounding its
// TTL by L2's remaining TTL so the promoted copy never outlives its source.
func (t *Tier) promote(ctx context.Context, key string, e cache.Entry[[]byte]) {
	ttl := e.TTL
	if ttl > 0 {
		remaining := ttl - time.Since(e.CreatedAt)
		if remaining <= 0 {
			return
		}
		ttl = remaining
	}
	opts := cache.Options{
		TTL:      ttl,
		SWR:      e.SWR,
		Tags:     e.Tags,
		Cost:     e.Cost,
		ETag:     e.ETag,
		Version:  e.Version,
		Negative: e.Negative,
	}
	_ = t.l1.Set(ctx, key, e.Value, opts)
}

// Set writes according to Config.Strategy.
func (t *Tier) Set(ctx context.Context, key string, value []byte, opts cache.Options) error {
	switch t.cfg.Strategy {
	case WriteAround:
		return t.setL2(ctx, key, value, opts)

	case WriteBehind:
		if err := t.l1.Set(ctx, key, value, opts); err != nil {
			return err
		}
		go func() {
			_ = t.setL2(context.Background(), key, value, opts)
		}()
		return nil

	default: // WriteThrough
		if err := t.l1.Set(ctx, key, value, opts); err != nil {
			return err
		}
		return t.setL2(ctx, key, value, opts)
	}
}

func (t *Tier) setL2(ctx context.Context, key string, value []byte, opts cache.Options) error {
	if !t.brk.Allow() {
		return nil
	}
	if err := t.l2.Set(ctx, key, value, opts); err != nil {
		t.brk.RecordFailure()
		return err
	}
	t.brk.RecordSuccess()
	return nil
}

// Delete removes key from both tiers. An L1 delete always runs; the L2
// delete is skipped while the breaker is Open.
func (t *Tier) Delete(ctx context.Context, key string) (bool, error) {
	l1ok, err := t.l1.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	if !t.brk.Allow() {
		return l1ok, nil
	}
	l2ok, err := t.l2.Delete(ctx, key)
	if err != nil {
		t.brk.RecordFailure()
		return l1ok, err
	}
	t.brk.RecordSuccess()
	return l1ok || l2ok, nil
}

// Exists reports true if either tier has key.
func (t *Tier) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := t.l1.Exists(ctx, key)
	if err != nil || ok {
		return ok, err
	}
	if !t.brk.Allow() {
		return false, nil
	}
	ok, err = t.l2.Exists(ctx, key)
	if err != nil {
		t.brk.RecordFailure()
		return false, err
	}
	t.brk.RecordSuccess()
	return ok, nil
}

// GetMany reads L1 for every key, falling through to L2 for whatever L1
// missed, and promotes those L2 hits into L1.
func (t *Tier) GetMany(ctx context.Context, keys []string) ([]cache.MaybeEntry, error) {
	out, err := t.l1.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	var missKeys []string
	var missIdx []int
	for i, me := range out {
		if !me.Found {
			missKeys = append(missKeys, keys[i])
			missIdx = append(missIdx, i)
		}
	}
	if len(missKeys) == 0 || !t.brk.Allow() {
		return out, nil
	}

	l2out, err := t.l2.GetMany(ctx, missKeys)
	if err != nil {
		t.brk.RecordFailure()
		return out, nil
	}
	t.brk.RecordSuccess()

	for i, me := range l2out {
		if me.Found {
			out[missIdx[i]] = me
			t.promote(ctx, missKeys[i], me.Entry)
		}
	}
	return out, nil
}

// SetMany writes items to both tiers per Config.Strategy (WriteThrough/
// WriteBehind/WriteAround, applied uniformly to the whole batch).
func (t *Tier) SetMany(ctx context.Context, items []cache.SetItem) error {
	switch t.cfg.Strategy {
	case WriteAround:
		if !t.brk.Allow() {
			return nil
		}
		if err := t.l2.SetMany(ctx, items); err != nil {
			t.brk.RecordFailure()
			return err
		}
		t.brk.RecordSuccess()
		return nil

	case WriteBehind:
		if err := t.l1.SetMany(ctx, items); err != nil {
			return err
		}
		go func() {
			if !t.brk.Allow() {
				return
			}
			if err := t.l2.SetMany(context.Background(), items); err != nil {
				t.brk.RecordFailure()
				return
			}
			t.brk.RecordSuccess()
		}()
		return nil

	default:
		if err := t.l1.SetMany(ctx, items); err != nil {
			return err
		}
		if !t.brk.Allow() {
			return nil
		}
		if err := t.l2.SetMany(ctx, items); err != nil {
			t.brk.RecordFailure()
			return err
		}
		t.brk.RecordSuccess()
		return nil
	}
}

// DeleteMany removes keys from both tiers, returning L1's removed count (the
// tier's canonical count; L2 deletion is best-effort while its breaker is
// Open).
func (t *Tier) DeleteMany(ctx context.Context, keys []string) (int, error) {
	n, err := t.l1.DeleteMany(ctx, keys)
	if err != nil {
		return 0, err
	}
	if t.brk.Allow() {
		if _, err := t.l2.DeleteMany(ctx, keys); err != nil {
			t.brk.RecordFailure()
		} else {
			t.brk.RecordSuccess()
		}
	}
	return n, nil
}

// Clear empties both tiers.
func (t *Tier) Clear(ctx context.Context) error {
	if err := t.l1.Clear(ctx); err != nil {
		return err
	}
	if !t.brk.Allow() {
		return nil
	}
	if err := t.l2.Clear(ctx); err != nil {
		t.brk.RecordFailure()
		return err
	}
	t.brk.RecordSuccess()
	return nil
}

// Stats returns L1's stats; L2's are a separate concern (call L2.Stats
// directly if both are needed).
func (t *Tier) Stats(ctx context.Context) (cache.Stats, error) {
	return t.l1.Stats(ctx)
}

// Len returns L1's entry count.
func (t *Tier) Len(ctx context.Context) (int, error) {
	return t.l1.Len(ctx)
}

// IsEmpty reports whether L1 is empty.
func (t *Tier) IsEmpty(ctx context.Context) (bool, error) {
	return t.l1.IsEmpty(ctx)
}

// BreakerState exposes the L2 breaker's current state, mainly for
// diagnostics and metrics exporters.
func (t *Tier) BreakerState() breaker.State {
	return t.brk.State()
}
