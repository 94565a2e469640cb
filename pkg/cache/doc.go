// Package cache provides an in-process caching library suitable for backing
// service-layer reads: a stampede coalescer, cascade dependency
// invalidation, a TTL/stale-while-revalidate freshness model with jitter and
// probabilistic early refresh, and a pluggable tiered backend contract.
//
// cache is a coordination layer, not a storage engine - it stores nothing
// itself. Pair it with a concrete [Backend] (pkg/cache/backend/memory,
// pkg/cache/backend/ristretto, pkg/cache/backend/redisstore, or
// pkg/cache/tier to compose two of them into an L1/L2 tier) and a
// [Serializer] (pkg/cache/codec/jsoncodec, or your own).
//
// # Basic usage
//
//	m := cache.NewManager(memory.New(memory.Options{Capacity: 10_000}), jsoncodec.New(), cache.Config{
//	    DefaultTTL: time.Minute,
//	})
//
//	err := cache.Set(ctx, m, "user:42", user, cache.WithTTL(time.Minute), cache.WithSWR(10*time.Second))
//
//	result, err := cache.Get[User](ctx, m, "user:42")
//	if result.Hit() {
//	    user, _ := result.Value()
//	}
//
// # Cache-aside with stampede protection
//
//	result, err := cache.GetOrCompute(ctx, m, "user:42", func(ctx context.Context) (User, error) {
//	    return loadUserFromDB(ctx, 42)
//	}, cache.WithTTL(time.Minute), cache.WithCoalesce())
//
// # Cascade invalidation
//
//	_ = cache.Set(ctx, m, "team:7", team)
//	_ = cache.Set(ctx, m, "user:42", user, cache.WithDependsOn("team:7"))
//	n, err := m.Invalidate(ctx, "team:7") // also invalidates "user:42"; n == 2
//
// # Error handling
//
// Errors are sentinel values classified for [errors.Is]: [ErrCyclicDependency],
// [ErrVersionConflict], [ErrLockConflict], [ErrBackend] (with [ErrConnection]
// and [ErrTimeout] as more specific sub-categories), [ErrSerialization],
// [ErrCancelled], and [ErrInternal]. The manager never silently converts an
// error into a Miss.
package cache
