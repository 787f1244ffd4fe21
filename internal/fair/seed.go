// Package fair implements the provably-fair primitives: commit-reveal seed
// generation and the deterministic outcome draw over a weighted die.
package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// seedBytes is the entropy of a generated seed (128 bits, 32 hex chars).
const seedBytes = 16

// GenerateServerSeed creates a cryptographically secure random server seed.
func GenerateServerSeed() string {
	b := make([]byte, seedBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}

// GenerateClientSeed creates the initial client seed assigned to a new user
// before they supply their own entropy.
func GenerateClientSeed() string {
	return GenerateServerSeed()
}

// Commitment returns the SHA-256 hash of a server seed, published before
// the seed is used so the draw can be verified after reveal.
func Commitment(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// VerifyCommitment reports whether a revealed seed matches its published
// commitment.
func VerifyCommitment(seed, commitment string) bool {
	return hmac.Equal([]byte(Commitment(seed)), []byte(commitment))
}
