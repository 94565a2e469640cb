package compress_test

import (
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/cachecore/pkg/cache/codec/compress"
	"github.com/calvinalkan/cachecore/pkg/cache/codec/jsoncodec"
)

type payload struct {
	Body string
}

func TestCodec_RoundTrip(t *testing.T) {
	c, err := compress.New(jsoncodec.New(), zstd.SpeedFastest)
	require.NoError(t, err)
	defer c.Close()

	data, err := c.Serialize(payload{Body: "hello world, compressed"})
	require.NoError(t, err)

	var got payload
	require.NoError(t, c.Deserialize(data, &got))
	require.Equal(t, payload{Body: "hello world, compressed"}, got)
}
