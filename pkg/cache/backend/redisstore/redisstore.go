// Package redisstore implements a cache.Backend over redis/go-redis/v9,
// suitable as an L2 tier shared across process instances. It also
// implements cache.TaggableBackend and cache.DistributedBackend.
package redisstore

import (
	"context"
	"errors"
	"net"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/calvinalkan/cachecore/pkg/cache"
)

// Options configures a Backend.
type Options struct {
	// Prefix namespaces every Redis key this Backend touches, so multiple
	// caches (or other unrelated data) can share one Redis instance.
	// Defaults to "cachecore:" if empty.
	Prefix string

	// Metrics receives Eviction emissions (Redis's own TTL-based expiry is
	// reported as EvictionExpired on the next observed miss, since Redis
	// gives no eviction callback).
	Metrics cache.Metrics
}

// Backend is a Redis-backed cache.Backend.
type Backend struct {
	client  redis.UniversalClient
	prefix  string
	metrics cache.Metrics
}

// New wraps an already-constructed redis.UniversalClient (a *redis.Client,
// *redis.ClusterClient, or *redis.Ring all satisfy this).
func New(client redis.UniversalClient, opts Options) *Backend {
	if opts.Prefix == "" {
		opts.Prefix = "cachecore:"
	}
	if opts.Metrics == nil {
		opts.Metrics = cache.NopMetrics{}
	}
	return &Backend{client: client, prefix: opts.Prefix, metrics: opts.Metrics}
}

var (
	_ cache.Backend             = (*Backend)(nil)
	_ cache.TaggableBackend     = (*Backend)(nil)
	_ cache.DistributedBackend  = (*Backend)(nil)
)

func (b *Backend) dataKey(key string) string    { return b.prefix + "e:" + key }
func (b *Backend) tagKey(tag string) string      { return b.prefix + "t:" + tag }
func (b *Backend) keyTagsKey(key string) string  { return b.prefix + "kt:" + key }
func (b *Backend) lockKey(key string) string     { return b.prefix + "lock:" + key }
func (b *Backend) channel() string               { return b.prefix + "events" }

// wireEntry is the JSON shape stored in Redis: identical in substance to
// cache.Entry[[]byte], named separately so the wire format doesn't silently
// change if Entry's field set evolves.
type wireEntry struct {
	Value        []byte        `json:"v"`
	CreatedAt    time.Time     `json:"c"`
	LastAccessed time.Time     `json:"a"`
	AccessCount  uint64        `json:"n"`
	TTL          time.Duration `json:"ttl"`
	SWR          time.Duration `json:"swr"`
	Tags         []string      `json:"tags,omitempty"`
	Dependencies []string      `json:"deps,omitempty"`
	Cost         uint64        `json:"cost"`
	Size         int           `json:"size"`
	ETag         string        `json:"etag,omitempty"`
	Version      uint64        `json:"ver"`
	Negative     bool          `json:"neg,omitempty"`
}

func toWire(key string, value []byte, opts cache.Options) wireEntry {
	now := time.Now()
	return wireEntry{
		Value: value, CreatedAt: now, LastAccessed: now,
		TTL: opts.TTL, SWR: opts.SWR, Tags: opts.Tags, Dependencies: opts.DependsOn,
		Cost: opts.Cost, Size: len(value), ETag: opts.ETag, Version: opts.Version,
		Negative: opts.Negative,
	}
}

func (w wireEntry) toEntry() cache.Entry[[]byte] {
	return cache.Entry[[]byte]{
		Value: w.Value, CreatedAt: w.CreatedAt, LastAccessed: w.LastAccessed,
		AccessCount: w.AccessCount, TTL: w.TTL, SWR: w.SWR, Tags: w.Tags,
		Dependencies: w.Dependencies, Cost: w.Cost, Size: w.Size, ETag: w.ETag,
		Version: w.Version, Negative: w.Negative,
	}
}

func (b *Backend) Get(ctx context.Context, key string) (cache.Entry[[]byte], bool, error) {
	data, err := b.client.Get(ctx, b.dataKey(key)).Bytes()
	if err == redis.Nil {
		b.metrics.Eviction(cache.EvictionExpired)
		return cache.Entry[[]byte]{}, false, nil
	}
	if err != nil {
		return cache.Entry[[]byte]{}, false, classify(key, err)
	}

	var w wireEntry
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &w); err != nil {
		return cache.Entry[[]byte]{}, false, cache.NewSerializationError(err)
	}
	return w.toEntry(), true, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, opts cache.Options) error {
	w := toWire(key, value, opts)
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(w)
	if err != nil {
		return cache.NewSerializationError(err)
	}

	var expiry time.Duration
	if opts.TTL > 0 {
		expiry = opts.TTL + opts.SWR
	}
	if err := b.client.Set(ctx, b.dataKey(key), data, expiry).Err(); err != nil {
		return classify(key, err)
	}

	if len(opts.Tags) > 0 {
		if err := b.RegisterTags(ctx, key, opts.Tags); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Del(ctx, b.dataKey(key)).Result()
	if err != nil {
		return false, classify(key, err)
	}
	_ = b.UnregisterTags(ctx, key)
	return n > 0, nil
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, b.dataKey(key)).Result()
	if err != nil {
		return false, classify(key, err)
	}
	return n > 0, nil
}

func (b *Backend) GetMany(ctx context.Context, keys []string) ([]cache.MaybeEntry, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rkeys := make([]string, len(keys))
	for i, k := range keys {
		rkeys[i] = b.dataKey(k)
	}

	vals, err := b.client.MGet(ctx, rkeys...).Result()
	if err != nil {
		return nil, classify("<batch>", err)
	}

	out := make([]cache.MaybeEntry, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		var w wireEntry
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(s), &w); err != nil {
			return nil, cache.NewSerializationError(err)
		}
		out[i] = cache.MaybeEntry{Entry: w.toEntry(), Found: true}
	}
	return out, nil
}

func (b *Backend) SetMany(ctx context.Context, items []cache.SetItem) error {
	pipe := b.client.Pipeline()
	for _, it := range items {
		w := toWire(it.Key, it.Value, it.Options)
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(w)
		if err != nil {
			return cache.NewSerializationError(err)
		}
		var expiry time.Duration
		if it.Options.TTL > 0 {
			expiry = it.Options.TTL + it.Options.SWR
		}
		pipe.Set(ctx, b.dataKey(it.Key), data, expiry)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return classify("<batch>", err)
	}
	for _, it := range items {
		if len(it.Options.Tags) > 0 {
			if err := b.RegisterTags(ctx, it.Key, it.Options.Tags); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Backend) DeleteMany(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	rkeys := make([]string, len(keys))
	for i, k := range keys {
		rkeys[i] = b.dataKey(k)
	}
	n, err := b.client.Del(ctx, rkeys...).Result()
	if err != nil {
		return 0, classify("<batch>", err)
	}
	for _, k := range keys {
		_ = b.UnregisterTags(ctx, k)
	}
	return int(n), nil
}

// Clear removes every key under this Backend's prefix, via SCAN to avoid
// blocking Redis the way KEYS would on a large keyspace.
func (b *Backend) Clear(ctx context.Context) error {
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 1000).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 1000 {
			if err := b.client.Del(ctx, batch...).Err(); err != nil {
				return classify("<clear>", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return classify("<clear>", err)
	}
	if len(batch) > 0 {
		if err := b.client.Del(ctx, batch...).Err(); err != nil {
			return classify("<clear>", err)
		}
	}
	return nil
}

func (b *Backend) Stats(ctx context.Context) (cache.Stats, error) {
	n, err := b.Len(ctx)
	if err != nil {
		return cache.Stats{}, err
	}
	return cache.Stats{Len: n}, nil
}

func (b *Backend) Len(ctx context.Context) (int, error) {
	n := 0
	iter := b.client.Scan(ctx, 0, b.prefix+"e:*", 1000).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, classify("<len>", err)
	}
	return n, nil
}

func (b *Backend) IsEmpty(ctx context.Context) (bool, error) {
	n, err := b.Len(ctx)
	return n == 0, err
}

// classify maps a go-redis error into the cache package's sentinel
// hierarchy: context cancellation/deadline errors and errors reporting a
// timeout become ErrTimeout; network/pool failures (a closed client or any
// other net.Error) become ErrConnection (both also classify as ErrBackend);
// everything else is a plain ErrBackend.
func classify(key string, err error) error {
	if err == nil {
		return nil
	}
	if err == context.DeadlineExceeded || err == context.Canceled {
		return cache.NewTimeoutError(key, err)
	}
	if t, ok := err.(interface{ Timeout() bool }); ok && t.Timeout() {
		return cache.NewTimeoutError(key, err)
	}
	var netErr net.Error
	if err == redis.ErrClosed || errors.As(err, &netErr) {
		return cache.NewConnectionError(key, err)
	}
	return cache.NewBackendError(key, err)
}
