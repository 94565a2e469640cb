// Package breaker implements a lock-free three-state circuit breaker
// (Closed/Open/HalfOpen) guarding a single unreliable dependency - here, an
// L2 cache tier.
package breaker

import (
	"sync/atomic"
	"time"
)

// State is one of Closed, Open, or HalfOpen.
type State int32

const (
	// Closed allows all traffic through.
	Closed State = iota
	// Open fails fast; no traffic is allowed through until the recovery
	// timeout elapses.
	Open
	// HalfOpen allows a single probe through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker's thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures, while
	// Closed, that trip the breaker to Open.
	FailureThreshold int64
	// RecoveryTimeout is how long the breaker stays Open before allowing
	// a single HalfOpen probe.
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of consecutive successes, while
	// HalfOpen, required to close the breaker.
	SuccessThreshold int64
}

// Breaker is a circuit breaker over state/counters/timestamp stored as
// atomics; every transition is a compare-and-swap, so Allow/RecordSuccess/
// RecordFailure never block each other. The zero value is not usable;
// construct one with New.
type Breaker struct {
	cfg Config

	state        atomic.Int32
	failures     atomic.Int64
	successes    atomic.Int64
	lastFailure  atomic.Int64 // UnixNano
	probeInFlight atomic.Bool
}

// New returns a Breaker starting Closed. Non-positive thresholds are
// replaced with 1 so the breaker is always well-defined.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	b := &Breaker{cfg: cfg}
	b.state.Store(int32(Closed))
	return b
}

// State returns the breaker's current state. Note that observing Open does
// not by itself perform the Open->HalfOpen transition; Allow does.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Allow reports whether a call to the guarded dependency should be made
// right now. In HalfOpen, at most one caller at a time is allowed through
// (the probe); concurrent callers are denied until that probe resolves via
// RecordSuccess or RecordFailure.
func (b *Breaker) Allow() bool {
	switch State(b.state.Load()) {
	case Closed:
		return true
	case HalfOpen:
		return b.probeInFlight.CompareAndSwap(false, true)
	case Open:
		last := b.lastFailure.Load()
		if time.Since(time.Unix(0, last)) < b.cfg.RecoveryTimeout {
			return false
		}
		if b.state.CompareAndSwap(int32(Open), int32(HalfOpen)) {
			b.successes.Store(0)
			b.probeInFlight.Store(true)
			return true
		}
		// Another goroutine already won the Open->HalfOpen transition;
		// let its own Allow() path decide who gets the probe.
		return false
	default:
		return false
	}
}

// RecordSuccess reports a successful call to the guarded dependency.
func (b *Breaker) RecordSuccess() {
	switch State(b.state.Load()) {
	case HalfOpen:
		n := b.successes.Add(1)
		if n >= b.cfg.SuccessThreshold && b.state.CompareAndSwap(int32(HalfOpen), int32(Closed)) {
			b.failures.Store(0)
			b.successes.Store(0)
		}
		b.probeInFlight.Store(false)
	case Closed:
		b.failures.Store(0)
	}
}

// RecordFailure reports a failed call to the guarded dependency.
func (b *Breaker) RecordFailure() {
	b.lastFailure.Store(time.Now().UnixNano())

	switch State(b.state.Load()) {
	case HalfOpen:
		b.state.CompareAndSwap(int32(HalfOpen), int32(Open))
		b.successes.Store(0)
		b.probeInFlight.Store(false)
	case Closed:
		n := b.failures.Add(1)
		if n >= b.cfg.FailureThreshold {
			b.state.CompareAndSwap(int32(Closed), int32(Open))
		}
	}
}
