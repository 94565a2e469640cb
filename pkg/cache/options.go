package cache

import "time"

// Options holds the write options recognized by Set/GetOrCompute/WarmUp.
// Build one with the With* functions below, not by constructing
// the struct directly - Version is assigned internally by the manager and
// must not be set by callers.
type Options struct {
	TTL          time.Duration
	SWR          time.Duration
	Tags         []string
	DependsOn    []string
	Cost         uint64
	EarlyRefresh bool
	Coalesce     bool
	ETag         string
	Negative     bool
	IfVersion    *uint64

	// Version is the entry's new version number. Assigned by the manager
	// immediately before a backend write; backends must persist it
	// verbatim. Never set this directly.
	Version uint64
}

// Option configures an Options value. Apply one or more via With*
// constructors when calling Set, GetOrCompute, or WarmUp.
type Option func(*Options)

// WithTTL sets the entry's fresh duration, subject to write-time jitter.
func WithTTL(d time.Duration) Option {
	return func(o *Options) { o.TTL = d }
}

// WithSWR sets the additional duration an expired entry remains usable as
// Stale.
func WithSWR(d time.Duration) Option {
	return func(o *Options) { o.SWR = d }
}

// WithTags sets the entry's tag membership for bulk invalidation.
func WithTags(tags ...string) Option {
	return func(o *Options) { o.Tags = append(o.Tags, tags...) }
}

// WithDependsOn registers parent keys; the write fails with
// ErrCyclicDependency if this would create a cycle.
func WithDependsOn(keys ...string) Option {
	return func(o *Options) { o.DependsOn = append(o.DependsOn, keys...) }
}

// WithCost sets the advisory cost weight used by cost-aware backends.
func WithCost(cost uint64) Option {
	return func(o *Options) { o.Cost = cost }
}

// WithEarlyRefresh opts this entry into X-Fetch probabilistic early refresh,
// in addition to any global Config.EarlyRefresh setting.
func WithEarlyRefresh() Option {
	return func(o *Options) { o.EarlyRefresh = true }
}

// WithCoalesce opts this GetOrCompute call into singleflight coalescing on
// Miss, in addition to any global Config.Coalesce setting.
func WithCoalesce() Option {
	return func(o *Options) { o.Coalesce = true }
}

// WithETag attaches an opaque compatibility token, carried through reads.
func WithETag(etag string) Option {
	return func(o *Options) { o.ETag = etag }
}

// WithNegative marks the write as a known-absent sentinel; reads report
// NegativeHit while it is usable. Typically used via SetNegative rather
// than directly.
func WithNegative() Option {
	return func(o *Options) { o.Negative = true }
}

// WithIfVersion makes the write conditional: it only succeeds if the
// existing entry's Version equals want; otherwise it fails with
// ErrVersionConflict and leaves the entry unchanged. want == 0 matches both
// "no existing entry" and an entry explicitly at version 0.
func WithIfVersion(want uint64) Option {
	return func(o *Options) { o.IfVersion = &want }
}

func newOptions(opts ...Option) Options {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
