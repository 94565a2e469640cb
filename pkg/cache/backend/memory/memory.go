// Package memory implements an in-process cache.Backend over
// hashicorp/golang-lru/v2, suitable as an L1 tier or a standalone cache.
package memory

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"
	atomicfile "github.com/natefinch/atomic"

	"github.com/calvinalkan/cachecore/internal/freshness"
	"github.com/calvinalkan/cachecore/internal/globmatch"
	"github.com/calvinalkan/cachecore/pkg/cache"
)

// Options configures a Backend.
type Options struct {
	// Capacity is the maximum number of entries. Eviction beyond this is by
	// least-recently-used. Defaults to 10,000 if <= 0.
	Capacity int

	// Metrics receives Eviction emissions: capacity evictions, TTL/SWR
	// expiry discovered on read, and same-key replacement on Set.
	// Defaults to cache.NopMetrics{}.
	Metrics cache.Metrics
}

// Backend is an LRU-capacity-bounded, tag-aware cache.Backend. It also
// implements cache.TaggableBackend. The zero value is not usable; construct
// one with New.
type Backend struct {
	mu       sync.RWMutex
	lru      *lru.Cache[string, cache.Entry[[]byte]]
	tagKeys  map[string]map[string]struct{} // tag -> keys
	keyTags  map[string][]string            // key -> tags, for eviction scrubbing
	hits     uint64
	misses   uint64
	evicts   uint64
	metrics  cache.Metrics
	expiring bool // true while removeExpiredLocked is removing a key, so onEvict doesn't also report it as a capacity eviction
}

// New returns a ready Backend.
func New(opts Options) *Backend {
	if opts.Capacity <= 0 {
		opts.Capacity = 10_000
	}
	if opts.Metrics == nil {
		opts.Metrics = cache.NopMetrics{}
	}

	b := &Backend{
		tagKeys: make(map[string]map[string]struct{}),
		keyTags: make(map[string][]string),
		metrics: opts.Metrics,
	}
	l, err := lru.NewWithEvict[string, cache.Entry[[]byte]](opts.Capacity, b.onEvict)
	if err != nil {
		// Only returns an error for a non-positive size, already guarded
		// above.
		panic(fmt.Sprintf("memory: unreachable lru.NewWithEvict error: %v", err))
	}
	b.lru = l
	return b
}

var (
	_ cache.Backend         = (*Backend)(nil)
	_ cache.TaggableBackend = (*Backend)(nil)
)

// onEvict is the LRU's eviction callback; it runs synchronously from
// whichever call (Add/Remove) triggered the eviction, so it must not
// re-enter the LRU itself. It always scrubs the tag index, which is a plain
// map guarded by the same mutex the caller already holds. It reports a
// capacity eviction unless the removal was already explained by the caller
// (see removeExpiredLocked), which would otherwise double-report it.
func (b *Backend) onEvict(key string, _ cache.Entry[[]byte]) {
	b.scrubTagsLocked(key)
	if b.expiring {
		return
	}
	b.evicts++
	b.metrics.Eviction(cache.EvictionCapacity)
}

// removeExpiredLocked removes key because its TTL+SWR window has elapsed,
// reporting EvictionExpired instead of onEvict's default capacity
// assumption. mu must already be held.
func (b *Backend) removeExpiredLocked(key string) {
	b.expiring = true
	b.lru.Remove(key)
	b.expiring = false
	b.evicts++
	b.metrics.Eviction(cache.EvictionExpired)
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

func (b *Backend) Get(_ context.Context, key string) (cache.Entry[[]byte], bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.lru.Get(key)
	if !ok {
		b.misses++
		return cache.Entry[[]byte]{}, false, nil
	}

	now := nowFunc()
	if !freshness.Evaluate(now, e.CreatedAt, e.TTL, e.SWR, e.Negative).Usable() {
		b.removeExpiredLocked(key)
		b.misses++
		return cache.Entry[[]byte]{}, false, nil
	}

	b.hits++
	e.Touch(now)
	b.lru.Add(key, e)
	return e, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, opts cache.Options) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setLocked(key, value, opts)
	return nil
}

func (b *Backend) setLocked(key string, value []byte, opts cache.Options) {
	e := cache.Entry[[]byte]{
		Value:        value,
		TTL:          opts.TTL,
		SWR:          opts.SWR,
		Tags:         opts.Tags,
		Dependencies: opts.DependsOn,
		Cost:         opts.Cost,
		Size:         len(value),
		ETag:         opts.ETag,
		Version:      opts.Version,
		Negative:     opts.Negative,
	}
	now := nowFunc()
	e.CreatedAt = now
	e.LastAccessed = now
	e.AccessCount = 0

	existed := b.lru.Contains(key)

	b.scrubTagsLocked(key)
	if len(opts.Tags) > 0 {
		b.registerTagsLocked(key, opts.Tags)
	}
	b.lru.Add(key, e)

	if existed {
		b.metrics.Eviction(cache.EvictionReplaced)
	}
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
	b.mu.Lock()
	defer b.mu.Unlock()
	ok := b.lru.Remove(key)
	b.scrubTagsLocked(key)
	return ok, nil
}

func (b *Backend) Exists(_ context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lru.Contains(key), nil
}

func (b *Backend) GetMany(ctx context.Context, keys []string) ([]cache.MaybeEntry, error) {
	out := make([]cache.MaybeEntry, len(keys))
	for i, k := range keys {
		e, ok, err := b.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out[i] = cache.MaybeEntry{Entry: e, Found: ok}
	}
	return out, nil
}

func (b *Backend) SetMany(ctx context.Context, items []cache.SetItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range items {
		b.setLocked(it.Key, it.Value, it.Options)
	}
	return nil
}

func (b *Backend) DeleteMany(ctx context.Context, keys []string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, k := range keys {
		if b.lru.Remove(k) {
			n++
		}
		b.scrubTagsLocked(k)
	}
	return n, nil
}

func (b *Backend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lru.Purge()
	b.tagKeys = make(map[string]map[string]struct{})
	b.keyTags = make(map[string][]string)
	return nil
}

func (b *Backend) Stats(_ context.Context) (cache.Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cache.Stats{
		Hits:      b.hits,
		Misses:    b.misses,
		Evictions: b.evicts,
		Len:       b.lru.Len(),
	}, nil
}

func (b *Backend) Len(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lru.Len(), nil
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

func (b *Backend) InvalidateByTag(_ context.Context, tag string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := b.tagKeys[tag]
	n := 0
	for k := range keys {
		if b.lru.Remove(k) {
			n++
		}
		b.scrubTagsLocked(k)
	}
	return n, nil
}

func (b *Backend) InvalidateByPattern(_ context.Context, pattern string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for tag, keys := range b.tagKeys {
		matched, err := globmatch.Match(pattern, tag)
		if err != nil {
			return n, err
		}
		if !matched {
			continue
		}
		for k := range keys {
			if b.lru.Remove(k) {
				n++
			}
			b.scrubTagsLocked(k)
		}
	}
	return n, nil
}

func (b *Backend) RegisterTags(_ context.Context, key string, tags []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.lru.Contains(key) {
		return cache.ErrNotFound
	}
	b.registerTagsLocked(key, tags)
	return nil
}

func (b *Backend) UnregisterTags(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scrubTagsLocked(key)
	return nil
}

// Dump serializes the entire backend to path as JSON, atomically (the
// rename only becomes visible once the full write succeeds), so a warm
// start can reload a prior run's cache contents.
func (b *Backend) Dump(path string) error {
	b.mu.RLock()
	snapshot := make(map[string]cache.Entry[[]byte], b.lru.Len())
	for _, k := range b.lru.Keys() {
		if e, ok := b.lru.Peek(k); ok {
			snapshot[k] = e
		}
	}
	b.mu.RUnlock()

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("memory: dump: %w", err)
	}
	return atomicfile.WriteFile(path, bytesReader(data))
}

// Load adds the entries of a snapshot previously written by Dump to the
// Backend. Entries already present are kept (a snapshot entry with the same
// key replaces the existing one); call Clear first to restore the snapshot
// alone.
func (b *Backend) Load(path string) error {
	data, err := readFile(path)
	if err != nil {
		return fmt.Errorf("memory: load: %w", err)
	}
	var snapshot map[string]cache.Entry[[]byte]
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("memory: load: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for k, e := range snapshot {
		b.lru.Add(k, e)
		if len(e.Tags) > 0 {
			b.registerTagsLocked(k, e.Tags)
		}
	}
	return nil
}
