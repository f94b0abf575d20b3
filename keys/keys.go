// Package keys handles secp256k1 owner keys and compact signatures.
//
// Owners are identified by SEC1 compressed public keys (33 bytes).
// Witness signatures are compact 64-byte r || s encodings over the
// SHA-256 digest of the canonical signing message.
package keys

import (
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/spacesprotocol/subspacer/types"
)

// PrivateKeySize is the size of a serialized private key in bytes.
const PrivateKeySize = 32

// Generate creates a new secp256k1 private key.
func Generate() (*secp256k1.PrivateKey, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating private key: %w", err)
	}
	return priv, nil
}

// Save writes the raw private key to a credential file readable only by
// the owner. The private key never appears anywhere else.
func Save(path string, priv *secp256k1.PrivateKey) error {
	if err := os.WriteFile(path, priv.Serialize(), 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	return nil
}

// Load reads a private key from a credential file.
func Load(path string) (*secp256k1.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	if len(data) != PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", PrivateKeySize, len(data))
	}
	return secp256k1.PrivKeyFromBytes(data), nil
}

// OwnerKey returns the SEC1 compressed public key for a private key.
func OwnerKey(priv *secp256k1.PrivateKey) [types.OwnerKeySize]byte {
	var owner [types.OwnerKeySize]byte
	copy(owner[:], priv.PubKey().SerializeCompressed())
	return owner
}

// ParseOwnerKey validates and parses a SEC1 compressed public key.
func ParseOwnerKey(owner []byte) (*secp256k1.PublicKey, error) {
	if len(owner) != types.OwnerKeySize {
		return nil, fmt.Errorf("owner key must be %d bytes, got %d: %w",
			types.OwnerKeySize, len(owner), types.ErrInvalidOwnerKey)
	}
	pub, err := secp256k1.ParsePubKey(owner)
	if err != nil {
		return nil, fmt.Errorf("parsing owner key: %w", types.ErrInvalidOwnerKey)
	}
	return pub, nil
}

// Sign produces a compact signature over the SHA-256 digest of msg.
func Sign(priv *secp256k1.PrivateKey, msg []byte) [types.SignatureSize]byte {
	digest := sha256.Sum256(msg)
	compact := ecdsa.SignCompact(priv, digest[:], true)

	// Drop the recovery byte; verification is against a known owner key.
	var sig [types.SignatureSize]byte
	copy(sig[:], compact[1:])
	return sig
}

// Verify checks a compact signature over the SHA-256 digest of msg
// against the given owner public key.
func Verify(owner []byte, msg []byte, sig []byte) error {
	pub, err := ParseOwnerKey(owner)
	if err != nil {
		return err
	}
	if len(sig) != types.SignatureSize {
		return fmt.Errorf("signature must be %d bytes, got %d: %w",
			types.SignatureSize, len(sig), types.ErrInvalidSignature)
	}

	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow {
		return types.ErrInvalidSignature
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow {
		return types.ErrInvalidSignature
	}

	digest := sha256.Sum256(msg)
	if !ecdsa.NewSignature(&r, &s).Verify(digest[:], pub) {
		return types.ErrInvalidSignature
	}
	return nil
}
