package redisstore

import (
	"crypto/rand"
	"encoding/hex"
)

// lockToken returns a fresh random token identifying this lock acquisition,
// so unlockScript can tell "my lease" apart from a later holder's.
func lockToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
