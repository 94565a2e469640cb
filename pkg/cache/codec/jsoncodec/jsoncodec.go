// Package jsoncodec implements cache.Serializer over json-iterator/go, a
// drop-in, allocation-lighter replacement for encoding/json.
package jsoncodec

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/calvinalkan/cachecore/pkg/cache"
)

// Codec is a cache.Serializer backed by json-iterator/go.
type Codec struct {
	api jsoniter.API
}

// New returns a Codec configured to be wire-compatible with
// encoding/json (field tags, number handling, map key ordering).
func New() *Codec {
	return &Codec{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

var _ cache.Serializer = (*Codec)(nil)

func (c *Codec) Serialize(v any) ([]byte, error) {
	return c.api.Marshal(v)
}

func (c *Codec) Deserialize(data []byte, v any) error {
	return c.api.Unmarshal(data, v)
}
