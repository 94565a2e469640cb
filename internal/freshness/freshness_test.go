package freshness_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/cachecore/internal/freshness"
)

func TestEvaluate_HitWithinTTL(t *testing.T) {
	created := time.Unix(0, 0)
	now := created.Add(500 * time.Millisecond)

	eval := freshness.Evaluate(now, created, time.Second, 0, false)
	require.Equal(t, freshness.Hit, eval.Status)
	require.True(t, eval.Usable())
}

func TestEvaluate_NoTTLNeverExpires(t *testing.T) {
	created := time.Unix(0, 0)
	now := created.Add(365 * 24 * time.Hour)

	eval := freshness.Evaluate(now, created, 0, 0, false)
	require.Equal(t, freshness.Hit, eval.Status)
}

func TestEvaluate_SWRLifecycle(t *testing.T) {
	created := time.Unix(0, 0)
	ttl := time.Second
	swr := 10 * time.Second

	atTwo := freshness.Evaluate(created.Add(2*time.Second), created, ttl, swr, false)
	require.Equal(t, freshness.Stale, atTwo.Status)
	require.True(t, atTwo.Usable())

	atTwelve := freshness.Evaluate(created.Add(12*time.Second), created, ttl, swr, false)
	require.Equal(t, freshness.Miss, atTwelve.Status)
	require.False(t, atTwelve.Usable())
}

func TestEvaluate_ExpiredWithoutSWRIsMiss(t *testing.T) {
	created := time.Unix(0, 0)
	now := created.Add(2 * time.Second)

	eval := freshness.Evaluate(now, created, time.Second, 0, false)
	require.Equal(t, freshness.Miss, eval.Status)
}

func TestEvaluate_NegativeHit(t *testing.T) {
	created := time.Unix(0, 0)
	now := created.Add(time.Millisecond)

	eval := freshness.Evaluate(now, created, time.Minute, 0, true)
	require.Equal(t, freshness.NegativeHit, eval.Status)
}

func TestEvaluate_ExpiredNegativeIsMiss(t *testing.T) {
	created := time.Unix(0, 0)
	now := created.Add(2 * time.Minute)

	eval := freshness.Evaluate(now, created, time.Minute, 0, true)
	require.Equal(t, freshness.Miss, eval.Status)
}

func TestEarlyRefreshThreshold_ZeroAtCreation(t *testing.T) {
	// age = 0 means ttlRemaining == ttl, and the threshold must never
	// exceed ttl * beta * |ln(u)|*u, which is comfortably below ttl for
	// any u in (0,1]; but more importantly the formula guarantees the
	// probability of flagging rises as ttlRemaining shrinks, which we
	// check via monotonicity below rather than an exact threshold (the
	// log term makes an exact bound not useful on its own).
	ttl := 100 * time.Second
	u := 0.999999
	got := freshness.EarlyRefreshThreshold(ttl, 1.0, u)
	require.Less(t, got, ttl)
}

func TestShouldEarlyRefresh_Distribution(t *testing.T) {
	// Quantified property: as ttlRemaining shrinks toward zero, the
	// fraction of trials flagged for refresh must not decrease. This is a
	// distribution property, not an exact threshold.
	ttl := 100 * time.Second

	frac := func(remaining time.Duration, trials int) float64 {
		hits := 0
		for i := 0; i < trials; i++ {
			if freshness.ShouldEarlyRefresh(ttl, remaining, 1.0) {
				hits++
			}
		}
		return float64(hits) / float64(trials)
	}

	const trials = 20000
	far := frac(90*time.Second, trials)
	near := frac(5*time.Second, trials)

	require.Less(t, far, near, "refresh probability should rise as ttlRemaining shrinks")
}

func TestShouldEarlyRefresh_DisabledWithoutTTL(t *testing.T) {
	require.False(t, freshness.ShouldEarlyRefresh(0, 0, 1.0))
}

func TestJitter_Bounds(t *testing.T) {
	ttl := 100 * time.Second
	jitterFrac := 0.2

	const n = 10000
	var sum time.Duration
	min, max := ttl*1000, time.Duration(0)

	for i := 0; i < n; i++ {
		got := freshness.Jitter(ttl, jitterFrac)
		require.GreaterOrEqual(t, got, ttl)
		require.LessOrEqual(t, got, ttl+time.Duration(float64(ttl)*jitterFrac))
		sum += got
		if got < min {
			min = got
		}
		if got > max {
			max = got
		}
	}

	mean := sum / n
	require.GreaterOrEqual(t, mean, 108*time.Second)
	require.LessOrEqual(t, mean, 112*time.Second)
}

func TestJitter_NoopWithoutConfig(t *testing.T) {
	require.Equal(t, time.Second, freshness.Jitter(time.Second, 0))
	require.Equal(t, time.Duration(0), freshness.Jitter(0, 0.5))
}
