// Package wiring builds a *cache.Manager from a loaded config.Config,
// shared by the cachectl and cacheload commands so both select backends
// identically.
package wiring

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/calvinalkan/cachecore/internal/config"
	"github.com/calvinalkan/cachecore/pkg/cache"
	"github.com/calvinalkan/cachecore/pkg/cache/backend/memory"
	"github.com/calvinalkan/cachecore/pkg/cache/backend/redisstore"
	"github.com/calvinalkan/cachecore/pkg/cache/backend/ristretto"
	"github.com/calvinalkan/cachecore/pkg/cache/codec/jsoncodec"
	"github.com/calvinalkan/cachecore/pkg/cache/tier"
)

// BuildManager wires a cache.Manager from a loaded config, selecting the
// concrete backend the caller operates against. The returned func closes
// whatever underlying clients/caches need closing.
func BuildManager(cfg config.Config) (*cache.Manager, func(), error) {
	backend, closeFn, err := BuildBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	defaultTTL, err := config.ParseDuration(cfg.DefaultTTL)
	if err != nil {
		return nil, nil, err
	}
	defaultSWR, err := config.ParseDuration(cfg.DefaultSWR)
	if err != nil {
		return nil, nil, err
	}

	m := cache.NewManager(backend, jsoncodec.New(), cache.Config{
		Namespace:        cfg.Namespace,
		DefaultTTL:       defaultTTL,
		DefaultSWR:       defaultSWR,
		Jitter:           cfg.Jitter,
		EarlyRefresh:     cfg.EarlyRefresh,
		EarlyRefreshBeta: cfg.EarlyRefreshBeta,
		Coalesce:         cfg.Coalesce,
	})
	return m, closeFn, nil
}

// BuildBackend selects and constructs the cache.Backend named by
// cfg.Backend.
func BuildBackend(cfg config.Config) (cache.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(memory.Options{Capacity: cfg.MemoryCapacity}), func() {}, nil

	case config.BackendRistretto:
		b, err := ristretto.New(ristretto.Options{})
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		b := redisstore.New(client, redisstore.Options{Prefix: cfg.RedisPrefix})
		return b, func() { _ = client.Close() }, nil

	case config.BackendTiered:
		l1 := memory.New(memory.Options{Capacity: cfg.MemoryCapacity})
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		l2 := redisstore.New(client, redisstore.Options{Prefix: cfg.RedisPrefix})
		tr := tier.New(l1, l2, tier.Config{Strategy: tier.WriteThrough})
		return tr, func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("wiring: unknown backend %q", cfg.Backend)
	}
}
