// Package types contains the core data types shared across subspacer.
package types

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	// HashSize is the size of a SHA-256 hash in bytes.
	HashSize = sha256.Size // 32 bytes

	// OwnerKeySize is the size of a SEC1 compressed secp256k1 public key.
	OwnerKeySize = 33

	// SignatureSize is the size of a compact ECDSA signature (r || s).
	SignatureSize = 64

	// WitnessTypeSignature tags a witness carrying a compact ECDSA signature.
	WitnessTypeSignature byte = 0x00

	// WitnessSize is the size of a signature witness: type tag plus signature.
	WitnessSize = 1 + SignatureSize
)

// Hash is a SHA-256 digest. Subspace identifiers and merkle roots are hashes.
type Hash []byte

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h)
}

// Equal reports whether two hashes are identical.
func (h Hash) Equal(other Hash) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

// HashBytes computes the SHA-256 hash of arbitrary bytes.
func HashBytes(data []byte) Hash {
	h := sha256.Sum256(data)
	return h[:]
}

// HashName computes the identifier of a space or subspace name.
func HashName(name string) Hash {
	return HashBytes([]byte(name))
}

// HashConcat computes the SHA-256 hash of the concatenation of the inputs.
func HashConcat(parts ...[]byte) Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
