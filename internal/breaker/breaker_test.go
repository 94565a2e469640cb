package breaker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/cachecore/internal/breaker"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 3, RecoveryTimeout: time.Hour, SuccessThreshold: 1})

	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, breaker.Closed, b.State())

	b.RecordFailure()
	require.Equal(t, breaker.Closed, b.State())

	b.RecordFailure()
	require.Equal(t, breaker.Open, b.State())
	require.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 2, RecoveryTimeout: time.Hour, SuccessThreshold: 1})

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	require.Equal(t, breaker.Closed, b.State(), "success should have reset the streak")
}

func TestBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond, SuccessThreshold: 1})

	b.RecordFailure()
	require.Equal(t, breaker.Open, b.State())
	require.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())
	require.Equal(t, breaker.HalfOpen, b.State())
}

func TestBreaker_HalfOpenAllowsOnlyOneProbe(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Millisecond, SuccessThreshold: 1})

	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	require.True(t, b.Allow())  // wins the probe
	require.False(t, b.Allow()) // second caller denied
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Millisecond, SuccessThreshold: 2})

	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordSuccess()
	require.Equal(t, breaker.HalfOpen, b.State(), "needs two successes")

	require.True(t, b.Allow())
	b.RecordSuccess()
	require.Equal(t, breaker.Closed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Millisecond, SuccessThreshold: 1})

	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, breaker.Open, b.State())
}

func TestBreaker_NoOperationsDuringOpenWindow(t *testing.T) {
	recovery := 30 * time.Millisecond
	b := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: recovery, SuccessThreshold: 1})

	b.RecordFailure()
	deadline := time.Now().Add(recovery - 5*time.Millisecond)
	for time.Now().Before(deadline) {
		require.False(t, b.Allow())
	}
}
