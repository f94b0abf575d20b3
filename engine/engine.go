// Package engine implements the deterministic state-transition function
// that proofs attest to.
//
// Apply is written once and runs identically on the host (for fast
// pre-validation) and inside the proving environment: it has no ambient
// I/O and reads record state exclusively from the proof-carrying inputs
// threaded through the batch. The only capability it needs is a tree
// updater to fold applied transactions into a new root.
package engine

import (
	"bytes"
	"fmt"

	"github.com/spacesprotocol/subspacer/keys"
	"github.com/spacesprotocol/subspacer/statestore"
	"github.com/spacesprotocol/subspacer/tx"
	"github.com/spacesprotocol/subspacer/types"
)

// Tree is the tree-update capability the engine folds transactions into.
// Reads never go through it; they come from the batch witnesses.
type Tree interface {
	// Set stores a key-value pair in the working tree.
	Set(key, value []byte) error

	// RootHash returns the root hash of the working tree.
	RootHash() []byte
}

// Batch is one space's proving input: the prior root, the canonical
// transaction set and the per-transaction witnesses.
type Batch struct {
	// Space is the identifier of the space the batch applies to.
	Space types.Hash

	// InitialRoot is the committed root the batch was staged against.
	InitialRoot types.Hash

	// Raw is the canonical transaction set encoding.
	Raw []byte

	// Witnesses holds one proof per transaction, aligned with the decoded
	// entry order. A witness may be nil only if an earlier transaction in
	// the batch already touched the same key, or if Bootstrap is set.
	Witnesses []*statestore.Proof

	// Bootstrap marks a batch applied against an empty tree, before the
	// space's first commit. Every key is absent, so transactions carry no
	// witnesses and a nil witness reads as non-membership.
	Bootstrap bool

	// Timestamp is the unix time fixed when the batch was snapshotted.
	// Expiry arithmetic uses it so that host and prover agree byte for byte.
	Timestamp int64

	// RenewalPeriod is how far, in seconds, a registration or renewal
	// pushes the record expiry past Timestamp.
	RenewalPeriod int64
}

// TxError attributes a batch failure to one transaction, so the caller
// can drop it and retry the rest instead of abandoning the whole batch.
type TxError struct {
	// Index is the transaction's position in the decoded entry order.
	Index int

	// Key is the subspace identifier the transaction targeted.
	Key types.Hash

	// Err is the underlying failure.
	Err error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("tx %d (%s): %v", e.Index, e.Key, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// Apply executes the batch against the tree and returns the journal.
//
// Transactions are processed strictly in the order they appear in the
// transaction set. Any violation fails the whole batch; the caller owns
// rolling the working tree back, so a failed batch never leaks partial
// state into a commit.
func Apply(tree Tree, b *Batch) (*types.Journal, error) {
	reader, err := tx.NewReader(b.Raw)
	if err != nil {
		return nil, err
	}
	if !reader.SpaceHash().Equal(b.Space) {
		return nil, fmt.Errorf("transaction set targets space %s, batch is for %s: %w",
			reader.SpaceHash(), b.Space, types.ErrProofMismatch)
	}
	if root := tree.RootHash(); !b.InitialRoot.Equal(root) {
		return nil, fmt.Errorf("tree root %s does not match batch root %s: %w",
			types.Hash(root), b.InitialRoot, types.ErrStaleRoot)
	}

	entries, err := reader.Entries()
	if err != nil {
		return nil, err
	}
	witnesses := b.Witnesses
	if b.Bootstrap && len(witnesses) == 0 {
		witnesses = make([]*statestore.Proof, len(entries))
	}
	if len(witnesses) != len(entries) {
		return nil, fmt.Errorf("%d witnesses for %d transactions: %w",
			len(witnesses), len(entries), types.ErrProofMismatch)
	}

	journal := &types.Journal{
		Space:       b.Space,
		InitialRoot: b.InitialRoot,
	}

	// Keys touched earlier in the batch are read from the overlay so each
	// transaction sees its predecessors' effects.
	overlay := make(map[string]*types.Record)

	for i, e := range entries {
		current, err := currentRecord(b, overlay, e, witnesses[i])
		if err != nil {
			return nil, &TxError{Index: i, Key: e.Key, Err: err}
		}

		next, err := transition(reader.Version(), b, e, current)
		if err != nil {
			return nil, &TxError{Index: i, Key: e.Key, Err: err}
		}

		if err := tree.Set(e.Key, next.Encode()); err != nil {
			return nil, &TxError{Index: i, Key: e.Key, Err: fmt.Errorf("updating tree: %w", err)}
		}
		overlay[string(e.Key)] = next

		if e.IsRegistration() {
			journal.Registered++
		} else {
			journal.Updated++
		}
		journal.Affected = append(journal.Affected, e.Key)
	}

	journal.FinalRoot = types.Hash(tree.RootHash())
	return journal, nil
}

// currentRecord resolves the record state a transaction is validated
// against: the in-batch overlay if the key was already touched, otherwise
// the supplied witness verified against the initial root.
func currentRecord(b *Batch, overlay map[string]*types.Record, e *tx.Entry, witness *statestore.Proof) (*types.Record, error) {
	if rec, ok := overlay[string(e.Key)]; ok {
		return rec, nil
	}

	if witness == nil {
		if b.Bootstrap {
			return nil, nil
		}
		return nil, fmt.Errorf("missing witness: %w", types.ErrProofMismatch)
	}
	if !bytes.Equal(witness.Key, e.Key) {
		return nil, fmt.Errorf("witness is for key %x: %w", witness.Key, types.ErrProofMismatch)
	}
	if err := witness.Verify(b.InitialRoot); err != nil {
		return nil, err
	}

	if !witness.Exists {
		return nil, nil
	}
	rec, err := types.DecodeRecord(witness.Value)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// transition runs the transaction's validity predicate against the current
// record (or its absence) and computes the successor record.
func transition(version byte, b *Batch, e *tx.Entry, current *types.Record) (*types.Record, error) {
	if e.IsRegistration() {
		if current != nil {
			return nil, types.ErrNameExists
		}
		if e.Sequence != 0 {
			return nil, types.ErrStaleSequence
		}
		return &types.Record{
			Owner:     e.Owner,
			Sequence:  0,
			ExpiresAt: b.Timestamp + b.RenewalPeriod,
		}, nil
	}

	if current == nil {
		return nil, types.ErrNameNotFound
	}
	if e.Sequence != current.Sequence {
		return nil, fmt.Errorf("signed sequence %d, record at %d: %w",
			e.Sequence, current.Sequence, types.ErrStaleSequence)
	}

	msg := tx.SigningMessage(version, b.Space, e.Key, e.Owner, e.Sequence)
	if err := keys.Verify(current.Owner[:], msg, e.Witness[1:]); err != nil {
		return nil, err
	}

	next := &types.Record{
		Owner:    e.Owner,
		Sequence: current.Sequence + 1,
	}
	if e.Owner == current.Owner {
		// Renewal: owner unchanged, expiry extended.
		next.ExpiresAt = b.Timestamp + b.RenewalPeriod
	} else {
		// Transfer: expiry carries over.
		next.ExpiresAt = current.ExpiresAt
	}
	return next, nil
}
