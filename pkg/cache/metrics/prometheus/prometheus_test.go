package prometheus

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/cachecore/pkg/cache"
)

func TestSink_RecordsHitsAndMisses(t *testing.T) {
	reg := prom.NewRegistry()
	sink := New(reg, "cachecore_test")

	sink.Hit("l1")
	sink.Hit("l1")
	sink.Miss()
	sink.Latency(cache.OpGet, 5*time.Millisecond)
	sink.Eviction(cache.EvictionCapacity)

	require.Equal(t, float64(2), testutil.ToFloat64(sink.hits.WithLabelValues("l1")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.misses))
}
