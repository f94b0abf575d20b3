// Package statestore provides merkleized state storage with verifiable
// membership and non-membership proofs.
package statestore

import (
	"fmt"

	ics23 "github.com/cosmos/ics23/go"

	"github.com/spacesprotocol/subspacer/types"
)

// StateStore defines the interface for merkleized key-value state storage.
// Implementations must be safe for concurrent use.
//
// Set is the only mutator; records are never deleted. Mutations live in the
// working tree until Commit saves them as a new version, and Rollback
// discards them.
type StateStore interface {
	// Get retrieves the value for a key from the working tree.
	// Returns nil, nil if the key does not exist.
	Get(key []byte) ([]byte, error)

	// Has checks if a key exists.
	Has(key []byte) (bool, error)

	// Set stores a key-value pair in the working tree.
	// The change is not persisted until Commit is called.
	Set(key []byte, value []byte) error

	// Commit saves the current working tree as a new version.
	// Returns the root hash and version number.
	Commit() (root []byte, version int64, err error)

	// Rollback discards all uncommitted changes in the working tree.
	Rollback()

	// RootHash returns the root hash of the working tree.
	// This reflects uncommitted changes.
	RootHash() []byte

	// Version returns the latest committed version number.
	// Returns 0 if no versions have been committed.
	Version() int64

	// LoadVersion loads a specific version of the tree.
	// Returns types.ErrStaleRoot if the version does not exist.
	LoadVersion(version int64) error

	// GetProof returns a merkle proof for a key: a membership proof if the
	// key exists, a non-membership proof otherwise. The proof verifies
	// against the working root with no access to the tree.
	GetProof(key []byte) (*Proof, error)

	// Close closes the store and releases resources.
	Close() error
}

// Proof is a merkle witness for one key. It proves either the existence of
// (Key, Value) or the absence of Key under RootHash, and is verifiable
// given only the proof and a claimed root.
type Proof struct {
	// Key is the key this proof is for.
	Key []byte

	// Value is the value if the key exists, nil otherwise.
	Value []byte

	// Exists indicates whether the key exists in the tree.
	Exists bool

	// RootHash is the root hash of the tree this proof was generated from.
	RootHash []byte

	// Version is the version of the tree this proof was generated from.
	Version int64

	// ProofBytes contains the serialized ICS23 commitment proof.
	ProofBytes []byte
}

// Verify checks the proof against a claimed root hash. It returns
// types.ErrProofMismatch if the proof does not verify; a failed
// verification is never treated as absence.
func (p *Proof) Verify(rootHash []byte) error {
	if p == nil {
		return fmt.Errorf("nil proof: %w", types.ErrProofMismatch)
	}

	var commitment ics23.CommitmentProof
	if err := commitment.Unmarshal(p.ProofBytes); err != nil {
		return fmt.Errorf("unmarshaling commitment proof: %w", types.ErrProofMismatch)
	}

	if p.Exists {
		if !ics23.VerifyMembership(ics23.IavlSpec, rootHash, &commitment, p.Key, p.Value) {
			return fmt.Errorf("membership of key %x: %w", p.Key, types.ErrProofMismatch)
		}
		return nil
	}
	if !ics23.VerifyNonMembership(ics23.IavlSpec, rootHash, &commitment, p.Key) {
		return fmt.Errorf("non-membership of key %x: %w", p.Key, types.ErrProofMismatch)
	}
	return nil
}
