package cache

import (
	"context"
	"time"
)

// Backend is an opaque byte-entry store. The manager is the only caller;
// backends never see typed values, only the serializer's bytes.
//
// Implementations may additionally satisfy TaggableBackend and/or
// DistributedBackend; the manager detects those via type assertion
// at runtime.
type Backend interface {
	// Get retrieves an entry by exact key.
	Get(ctx context.Context, key string) (Entry[[]byte], bool, error)

	// Set writes an entry, atomically with respect to that key. The
	// implementation must honor opts.TTL/opts.SWR so the entry is no
	// longer returned once TTL+SWR has elapsed.
	Set(ctx context.Context, key string, value []byte, opts Options) error

	// Delete removes an entry. Returns true iff one was removed.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists reports whether key has a (possibly stale) entry, without
	// fetching its value.
	Exists(ctx context.Context, key string) (bool, error)

	// GetMany retrieves entries for keys, in the same order. Absent
	// entries are reported via MaybeEntry.Found == false at their index.
	GetMany(ctx context.Context, keys []string) ([]MaybeEntry, error)

	// SetMany writes items. Atomicity across items is best-effort (not
	// guaranteed across keys); order is preserved for same-key conflicts.
	SetMany(ctx context.Context, items []SetItem) error

	// DeleteMany removes keys, returning the count actually removed.
	DeleteMany(ctx context.Context, keys []string) (int, error)

	// Clear removes every entry in this backend's own namespace.
	Clear(ctx context.Context) error

	// Stats returns a snapshot of the backend's own counters.
	Stats(ctx context.Context) (Stats, error)

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)

	// IsEmpty reports whether Len() == 0.
	IsEmpty(ctx context.Context) (bool, error)
}

// MaybeEntry is one slot of a GetMany result.
type MaybeEntry struct {
	Entry Entry[[]byte]
	Found bool
}

// SetItem is one item of a SetMany call.
type SetItem struct {
	Key     string
	Value   []byte
	Options Options
}

// Stats is a point-in-time counters snapshot from a Backend.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Len       int
	Bytes     int64
}

// EvictionReason classifies why an entry left a backend, for the Eviction
// metric.
type EvictionReason int

const (
	EvictionExpired EvictionReason = iota
	EvictionCapacity
	EvictionInvalidated
	EvictionReplaced
	EvictionDependencyInvalidated
)

func (r EvictionReason) String() string {
	switch r {
	case EvictionExpired:
		return "expired"
	case EvictionCapacity:
		return "capacity"
	case EvictionInvalidated:
		return "invalidated"
	case EvictionReplaced:
		return "replaced"
	case EvictionDependencyInvalidated:
		return "dependency_invalidated"
	default:
		return "unknown"
	}
}

// TaggableBackend is the optional tag capability: bulk invalidation by tag
// or by a shell-style glob pattern over tag names (not key names).
type TaggableBackend interface {
	Backend

	// KeysByTag returns every key currently registered under tag.
	KeysByTag(ctx context.Context, tag string) ([]string, error)

	// InvalidateByTag deletes every entry registered under tag, returning
	// the count removed.
	InvalidateByTag(ctx context.Context, tag string) (int, error)

	// InvalidateByPattern deletes every entry whose tags match pattern
	// (shell-style glob: '*' and '?'), returning the count removed.
	InvalidateByPattern(ctx context.Context, pattern string) (int, error)

	// RegisterTags associates key with tags, in addition to any tags
	// already registered for it.
	RegisterTags(ctx context.Context, key string, tags []string) error

	// UnregisterTags removes key from every tag it is currently
	// registered under.
	UnregisterTags(ctx context.Context, key string) error
}

// EventKind classifies a pub/sub invalidation Event.
type EventKind int

const (
	EventKey EventKind = iota
	EventTag
	EventPattern
)

// Event is a pub/sub invalidation notification. Exactly one of Key, Tag, or
// Pattern is meaningful, selected by Kind. Subscribers apply the event to
// their own local L1 only.
type Event struct {
	Kind    EventKind
	Key     string
	Tag     string
	Pattern string
}

// DistributedBackend is the optional distributed capability: best-effort
// pub/sub invalidation fan-out and advisory locks. Neither is required for
// the correctness of any local operation.
type DistributedBackend interface {
	Backend

	// Publish broadcasts an invalidation event to subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe returns a channel of incoming events and an unsubscribe
	// function. The channel is closed after unsubscribe is called.
	Subscribe(ctx context.Context) (events <-chan Event, unsubscribe func() error, err error)

	// AcquireLock attempts to acquire a best-effort advisory lock on key
	// for ttl. acquired is false (with err == nil) on ordinary contention;
	// err is reserved for transport failures.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (unlock func() error, acquired bool, err error)
}
