package cache

// Serializer is the byte-level encode/decode boundary between typed values
// and the backend's opaque byte storage.
//
// Serialize/Deserialize must be deterministic for identical inputs within a
// process lifetime: the coalescer encodes the leader's result once and
// hands every waiter an independently deserialized copy, so a
// non-deterministic codec would let waiters observe a value that differs
// from what the leader computed.
type Serializer interface {
	// Serialize encodes v to bytes, mirroring json.Marshal's contract.
	Serialize(v any) ([]byte, error)

	// Deserialize decodes data into v, which must be a non-nil pointer,
	// mirroring json.Unmarshal's contract.
	Deserialize(data []byte, v any) error
}
