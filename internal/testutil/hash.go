package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
)

// SHA256Hex returns the SHA-256 checksum of data as a lowercase hex string.
// Matches the checksum format used by the identity store.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// RandomBytes returns n deterministic pseudo-random bytes for seed.
func RandomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}
