// Package ristretto implements a cost-aware cache.Backend over
// dgraph-io/ristretto/v2, for workloads where cache.Entry.Cost (not just
// entry count) should drive admission and eviction.
package ristretto

import (
	"context"
	"fmt"
	"sync"
	"time"

	rist "github.com/dgraph-io/ristretto/v2"

	"github.com/calvinalkan/cachecore/internal/globmatch"
	"github.com/calvinalkan/cachecore/pkg/cache"
)

// Options configures a Backend.
type Options struct {
	// MaxCost is the total cost budget against which each Entry.Cost is
	// weighed, e.g. a byte budget if callers set Cost to each value's
	// serialized size.
	// Defaults to 1<<26 (64MiB) if <= 0.
	MaxCost int64

	// NumCounters sizes ristretto's admission-frequency sketch; ristretto's
	// own guidance is ~10x the number of items you expect to hold.
	// Defaults to 1e6 if <= 0.
	NumCounters int64

	// Metrics receives Eviction emissions.
	Metrics cache.Metrics
}

// Backend is a cost-aware cache.Backend. It also implements
// cache.TaggableBackend. The zero value is not usable; construct one with
// New.
type Backend struct {
	cache   *rist.Cache[string, cache.Entry[[]byte]]
	metrics cache.Metrics

	mu      sync.RWMutex
	tagKeys map[string]map[string]struct{}
	keyTags map[string][]string
}

// New returns a ready Backend.
func New(opts Options) (*Backend, error) {
	if opts.MaxCost <= 0 {
		opts.MaxCost = 1 << 26
	}
	if opts.NumCounters <= 0 {
		opts.NumCounters = 1e6
	}
	if opts.Metrics == nil {
		opts.Metrics = cache.NopMetrics{}
	}

	b := &Backend{
		metrics: opts.Metrics,
		tagKeys: make(map[string]map[string]struct{}),
		keyTags: make(map[string][]string),
	}

	c, err := rist.NewCache(&rist.Config[string, cache.Entry[[]byte]]{
		NumCounters: opts.NumCounters,
		MaxCost:     opts.MaxCost,
		BufferItems: 64,
		OnEvict:     b.onEvict,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	b.cache = c
	return b, nil
}

var (
	_ cache.Backend         = (*Backend)(nil)
	_ cache.TaggableBackend = (*Backend)(nil)
)

func (b *Backend) onEvict(item *rist.Item[cache.Entry[[]byte]]) {
	b.metrics.Eviction(cache.EvictionCapacity)
}

// Close releases ristretto's background goroutines. Call it when the
// Backend is no longer needed.
func (b *Backend) Close() { b.cache.Close() }

func (b *Backend) Get(_ context.Context, key string) (cache.Entry[[]byte], bool, error) {
	e, ok := b.cache.Get(key)
	if !ok {
		return cache.Entry[[]byte]{}, false, nil
	}
	e.Touch(time.Now())
	return e, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, opts cache.Options) error {
	b.setOne(key, value, opts)
	return nil
}

func (b *Backend) setOne(key string, value []byte, opts cache.Options) {
	cost := int64(opts.Cost)
	if cost <= 0 {
		cost = int64(len(value))
		if cost <= 0 {
			cost = 1
		}
	}

	e := cache.Entry[[]byte]{
		Value:        value,
		CreatedAt:    time.Now(),
		LastAccessed: time.Now(),
		TTL:          opts.TTL,
		SWR:          opts.SWR,
		Tags:         opts.Tags,
		Dependencies: opts.DependsOn,
		Cost:         uint64(cost),
		Size:         len(value),
		ETag:         opts.ETag,
		Version:      opts.Version,
		Negative:     opts.Negative,
	}

	b.mu.Lock()
	b.scrubTagsLocked(key)
	if len(opts.Tags) > 0 {
		b.registerTagsLocked(key, opts.Tags)
	}
	b.mu.Unlock()

	_, existed := b.cache.Get(key)

	var ttl time.Duration
	if opts.TTL > 0 {
		ttl = opts.TTL + opts.SWR
	}
	if ttl > 0 {
		b.cache.SetWithTTL(key, e, cost, ttl)
	} else {
		b.cache.Set(key, e, cost)
	}

	if existed {
		b.metrics.Eviction(cache.EvictionReplaced)
	}
}

func (b *Backend) scrubTagsLocked(key string) {
	for _, tag := range b.keyTags[key] {
		if keys, ok := b.tagKeys[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(b.tagKeys, tag)
			}
		}
	}
	delete(b.keyTags, key)
}

func (b *Backend) registerTagsLocked(key string, tags []string) {
	b.keyTags[key] = append(append([]string{}, b.keyTags[key]...), tags...)
	for _, tag := range tags {
		keys, ok := b.tagKeys[tag]
		if !ok {
			keys = make(map[string]struct{})
			b.tagKeys[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

func (b *Backend) Delete(_ context.Context, key string) (bool, error) {
	_, existed := b.cache.Get(key)
	b.cache.Del(key)
	b.mu.Lock()
	b.scrubTagsLocked(key)
	b.mu.Unlock()
	return existed, nil
}

func (b *Backend) Exists(_ context.Context, key string) (bool, error) {
	_, ok := b.cache.Get(key)
	return ok, nil
}

func (b *Backend) GetMany(ctx context.Context, keys []string) ([]cache.MaybeEntry, error) {
	out := make([]cache.MaybeEntry, len(keys))
	for i, k := range keys {
		e, ok, _ := b.Get(ctx, k)
		out[i] = cache.MaybeEntry{Entry: e, Found: ok}
	}
	return out, nil
}

func (b *Backend) SetMany(ctx context.Context, items []cache.SetItem) error {
	for _, it := range items {
		b.setOne(it.Key, it.Value, it.Options)
	}
	return nil
}

func (b *Backend) DeleteMany(ctx context.Context, keys []string) (int, error) {
	n := 0
	for _, k := range keys {
		if ok, _ := b.Delete(ctx, k); ok {
			n++
		}
	}
	return n, nil
}

func (b *Backend) Clear(_ context.Context) error {
	b.cache.Clear()
	b.mu.Lock()
	b.tagKeys = make(map[string]map[string]struct{})
	b.keyTags = make(map[string][]string)
	b.mu.Unlock()
	return nil
}

func (b *Backend) Stats(_ context.Context) (cache.Stats, error) {
	m := b.cache.Metrics
	if m == nil {
		return cache.Stats{}, nil
	}
	return cache.Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		Evictions: m.KeysEvicted(),
	}, nil
}

// Len is not tracked exactly by ristretto (an approximate, sampled
// structure); it reports the number of keys in the tag index instead: keys
// written with at least one tag, including ones ristretto has since evicted,
// expired or declined to admit. Untagged entries are not counted. Prefer
// Stats for cache-wide sizing.
func (b *Backend) Len(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.keyTags), nil
}

func (b *Backend) IsEmpty(ctx context.Context) (bool, error) {
	n, err := b.Len(ctx)
	return n == 0, err
}

func (b *Backend) KeysByTag(_ context.Context, tag string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := b.tagKeys[tag]
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out, nil
}

func (b *Backend) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	b.mu.RLock()
	keys := make([]string, 0, len(b.tagKeys[tag]))
	for k := range b.tagKeys[tag] {
		keys = append(keys, k)
	}
	b.mu.RUnlock()

	return b.DeleteMany(ctx, keys)
}

func (b *Backend) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	b.mu.RLock()
	var keys []string
	for tag, tagged := range b.tagKeys {
		matched, err := globmatch.Match(pattern, tag)
		if err != nil {
			b.mu.RUnlock()
			return 0, err
		}
		if !matched {
			continue
		}
		for k := range tagged {
			keys = append(keys, k)
		}
	}
	b.mu.RUnlock()

	return b.DeleteMany(ctx, keys)
}

func (b *Backend) RegisterTags(_ context.Context, key string, tags []string) error {
	if _, ok := b.cache.Get(key); !ok {
		return cache.ErrNotFound
	}
	b.mu.Lock()
	b.registerTagsLocked(key, tags)
	b.mu.Unlock()
	return nil
}

func (b *Backend) UnregisterTags(_ context.Context, key string) error {
	b.mu.Lock()
	b.scrubTagsLocked(key)
	b.mu.Unlock()
	return nil
}

// WaitForSet blocks until ristretto's internal write buffer has applied
// every Set issued so far, for tests that need deterministic visibility
// (ristretto admission is asynchronous).
func (b *Backend) WaitForSet() { b.cache.Wait() }
