package cache

import (
	"errors"
	"fmt"
)

// Sentinel error categories. Callers should classify errors with
// [errors.Is], never by matching error strings.
//
// ErrConnection and ErrTimeout also satisfy errors.Is(err, ErrBackend): both
// are backend-error subclasses, surfaced this way so diagnostics can tell a
// plain backend failure apart from a transport-level one without losing the
// broader classification.
var (
	// ErrNotFound marks absence. It is not normally surfaced to callers -
	// the manager reports absence as a Miss result - but backends may use
	// it internally and in error chains.
	ErrNotFound = errors.New("cache: not found")

	// ErrBackend is a transient or permanent storage failure. Repeated
	// ErrBackend failures against an L2 tier drive its circuit breaker.
	ErrBackend = errors.New("cache: backend error")

	// ErrConnection is a transport failure; always also classifies as
	// ErrBackend.
	ErrConnection = errors.New("cache: connection error")

	// ErrSerialization is an encode/decode failure. Never retried
	// automatically.
	ErrSerialization = errors.New("cache: serialization error")

	// ErrCyclicDependency is returned when registering a dependency edge
	// would create a cycle. The write is refused; nothing is persisted.
	ErrCyclicDependency = errors.New("cache: cyclic dependency")

	// ErrVersionConflict is returned by a conditional Set (WithIfVersion)
	// whose precondition did not hold. The entry is left unchanged.
	ErrVersionConflict = errors.New("cache: version conflict")

	// ErrLockConflict means a distributed-lock acquisition failed. Not
	// fatal - advisory locks are best-effort.
	ErrLockConflict = errors.New("cache: lock conflict")

	// ErrTimeout means an operation exceeded its configured budget;
	// always also classifies as ErrBackend.
	ErrTimeout = errors.New("cache: timeout")

	// ErrCancelled means a context was cancelled or its deadline passed
	// during a coalesced GetOrCompute: the caller's own context while
	// waiting, or the leader's, whose error every waiter then receives.
	// Other paths return the context error as the producer or backend
	// reports it, without this wrapper.
	ErrCancelled = errors.New("cache: cancelled")

	// ErrInternal marks an invariant violation - always a bug, never an
	// expected runtime condition.
	ErrInternal = errors.New("cache: internal error")

	// ErrClosed marks an operation on a closed Manager or Backend. No
	// Manager or backend operation in this module returns it.
	ErrClosed = errors.New("cache: closed")

	// errTagsUnsupported marks a backend that doesn't implement
	// TaggableBackend, wrapped as ErrBackend at the call site.
	errTagsUnsupported = errors.New("backend does not support tags")
)

// NewCyclicDependencyError builds the CyclicDependency(key) error.
func NewCyclicDependencyError(key string) error {
	return fmt.Errorf("%w: key %q", ErrCyclicDependency, key)
}

// NewVersionConflictError builds the VersionConflict(key) error.
func NewVersionConflictError(key string) error {
	return fmt.Errorf("%w: key %q", ErrVersionConflict, key)
}

// NewLockConflictError builds the LockConflict(key) error.
func NewLockConflictError(key string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: key %q", ErrLockConflict, key)
	}
	return fmt.Errorf("%w: key %q: %w", ErrLockConflict, key, cause)
}

// NewBackendError wraps a backend-driver failure.
func NewBackendError(key string, cause error) error {
	return fmt.Errorf("%w: key %q: %w", ErrBackend, key, cause)
}

// NewConnectionError wraps a transport failure; it classifies as both
// ErrConnection and ErrBackend.
func NewConnectionError(key string, cause error) error {
	return fmt.Errorf("%w: %w: key %q: %w", ErrBackend, ErrConnection, key, cause)
}

// NewTimeoutError wraps an operation-timeout failure; it classifies as both
// ErrTimeout and ErrBackend.
func NewTimeoutError(key string, cause error) error {
	return fmt.Errorf("%w: %w: key %q: %w", ErrBackend, ErrTimeout, key, cause)
}

// NewSerializationError wraps an encode/decode failure.
func NewSerializationError(cause error) error {
	return fmt.Errorf("%w: %w", ErrSerialization, cause)
}

// NewCancelledError wraps a cancellation.
func NewCancelledError(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// NewInternalError builds an ErrInternal with a formatted message.
func NewInternalError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
