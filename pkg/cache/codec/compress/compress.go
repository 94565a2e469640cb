// Package compress implements a cache.Serializer decorator that compresses
// an inner Serializer's output with klauspost/compress's zstd, for backends
// where payload size (network bandwidth to Redis, ristretto's cost budget)
// matters more than CPU.
package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/calvinalkan/cachecore/pkg/cache"
)

// Codec wraps an inner cache.Serializer, compressing/decompressing its
// output transparently. The zero value is not usable; construct one with
// New.
type Codec struct {
	inner cache.Serializer
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// New wraps inner with zstd compression at the given level (zstd.SpeedFastest
// if level == 0).
func New(inner cache.Serializer, level zstd.EncoderLevel) (*Codec, error) {
	if level == 0 {
		level = zstd.SpeedFastest
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("compress: new encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("compress: new decoder: %w", err)
	}
	return &Codec{inner: inner, enc: enc, dec: dec}, nil
}

var _ cache.Serializer = (*Codec)(nil)

// Close releases the encoder/decoder's background resources.
func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}

func (c *Codec) Serialize(v any) ([]byte, error) {
	raw, err := c.inner.Serialize(v)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *Codec) Deserialize(data []byte, v any) error {
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("compress: decode: %w", err)
	}
	return c.inner.Deserialize(raw, v)
}
