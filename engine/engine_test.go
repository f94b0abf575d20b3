package engine

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/spacesprotocol/subspacer/keys"
	"github.com/spacesprotocol/subspacer/statestore"
	"github.com/spacesprotocol/subspacer/tx"
	"github.com/spacesprotocol/subspacer/types"
)

const (
	testSpace  = "example"
	renewalSec = int64(365 * 24 * 3600)
)

var testTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Unix()

func newKey(t *testing.T) (*secp256k1.PrivateKey, [types.OwnerKeySize]byte) {
	t.Helper()
	priv, err := keys.Generate()
	require.NoError(t, err)
	return priv, keys.OwnerKey(priv)
}

// encodeSet encodes entries in the exact order given, bypassing the
// builder's canonical sort, so order-sensitivity can be exercised.
func encodeSet(space string, txs []*tx.Transaction) []byte {
	buf := []byte{tx.Version}
	buf = append(buf, types.HashName(space)...)
	for _, t := range txs {
		payload := tx.EntryFixedSize + len(t.Witness)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(payload))
		buf = append(buf, t.Key()...)
		buf = append(buf, t.Owner...)
		buf = binary.BigEndian.AppendUint64(buf, t.Sequence)
		buf = append(buf, t.Witness...)
	}
	return buf
}

// seededStore returns a store with one committed record so that
// non-membership proofs can be generated.
func seededStore(t *testing.T, owner [types.OwnerKeySize]byte) *statestore.IAVLStore {
	t.Helper()
	store, err := statestore.NewMemoryIAVLStore(100)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := &types.Record{Owner: owner, Sequence: 0, ExpiresAt: testTime + renewalSec}
	require.NoError(t, store.Set(types.HashName("genesis"), rec.Encode()))
	_, _, err = store.Commit()
	require.NoError(t, err)
	return store
}

// makeBatch builds a batch over raw transaction bytes, collecting one
// witness per entry from the store's committed tree.
func makeBatch(t *testing.T, store *statestore.IAVLStore, raw []byte) *Batch {
	t.Helper()
	reader, err := tx.NewReader(raw)
	require.NoError(t, err)
	entries, err := reader.Entries()
	require.NoError(t, err)

	witnesses := make([]*statestore.Proof, len(entries))
	seen := make(map[string]bool)
	for i, e := range entries {
		if seen[string(e.Key)] {
			continue
		}
		seen[string(e.Key)] = true
		proof, err := store.GetProof(e.Key)
		require.NoError(t, err)
		witnesses[i] = proof
	}

	return &Batch{
		Space:         reader.SpaceHash(),
		InitialRoot:   types.Hash(store.RootHash()),
		Raw:           raw,
		Witnesses:     witnesses,
		Timestamp:     testTime,
		RenewalPeriod: renewalSec,
	}
}

func TestApplyEmptyBatch(t *testing.T) {
	_, owner := newKey(t)
	store := seededStore(t, owner)

	raw := encodeSet(testSpace, nil)
	batch := makeBatch(t, store, raw)

	journal, err := Apply(store, batch)
	require.NoError(t, err)
	require.True(t, journal.InitialRoot.Equal(journal.FinalRoot))
	require.Zero(t, journal.Registered)
	require.Zero(t, journal.Updated)
	require.Empty(t, journal.Affected)
}

func TestApplyRegister(t *testing.T) {
	_, owner := newKey(t)
	store := seededStore(t, owner)

	raw := encodeSet(testSpace, []*tx.Transaction{{Name: "bob", Owner: owner[:]}})
	batch := makeBatch(t, store, raw)

	journal, err := Apply(store, batch)
	require.NoError(t, err)
	require.Equal(t, uint64(1), journal.Registered)
	require.Equal(t, uint64(0), journal.Updated)
	require.Len(t, journal.Affected, 1)
	require.True(t, journal.Affected[0].Equal(types.HashName("bob")))
	require.False(t, journal.InitialRoot.Equal(journal.FinalRoot))

	// Lookup returns the new owner with sequence zero.
	value, err := store.Get(types.HashName("bob"))
	require.NoError(t, err)
	rec, err := types.DecodeRecord(value)
	require.NoError(t, err)
	require.Equal(t, owner, rec.Owner)
	require.Equal(t, uint64(0), rec.Sequence)
	require.Equal(t, testTime+renewalSec, rec.ExpiresAt)
}

func TestApplyRegisterExistingFails(t *testing.T) {
	_, owner := newKey(t)
	store := seededStore(t, owner)

	raw := encodeSet(testSpace, []*tx.Transaction{{Name: "genesis", Owner: owner[:]}})
	batch := makeBatch(t, store, raw)

	_, err := Apply(store, batch)
	require.ErrorIs(t, err, types.ErrNameExists)
	require.True(t, types.IsValidation(err))
}

func registerAndCommit(t *testing.T, store *statestore.IAVLStore, name string, owner [types.OwnerKeySize]byte) {
	t.Helper()
	rec := &types.Record{Owner: owner, Sequence: 0, ExpiresAt: testTime + renewalSec}
	require.NoError(t, store.Set(types.HashName(name), rec.Encode()))
	_, _, err := store.Commit()
	require.NoError(t, err)
}

func TestApplyTransfer(t *testing.T) {
	alicePriv, alice := newKey(t)
	_, bob := newKey(t)

	store := seededStore(t, alice)
	registerAndCommit(t, store, "mail", alice)

	transfer := &tx.Transaction{Name: "mail", Owner: bob[:], Sequence: 0}
	require.NoError(t, transfer.Sign(testSpace, alicePriv))

	raw := encodeSet(testSpace, []*tx.Transaction{transfer})
	batch := makeBatch(t, store, raw)

	journal, err := Apply(store, batch)
	require.NoError(t, err)
	require.Equal(t, uint64(1), journal.Updated)

	value, err := store.Get(types.HashName("mail"))
	require.NoError(t, err)
	rec, err := types.DecodeRecord(value)
	require.NoError(t, err)
	require.Equal(t, bob, rec.Owner)
	require.Equal(t, uint64(1), rec.Sequence, "sequence strictly increases")
	require.Equal(t, testTime+renewalSec, rec.ExpiresAt, "transfer preserves expiry")
}

func TestOldOwnerCannotTransferAfterTransfer(t *testing.T) {
	alicePriv, alice := newKey(t)
	_, bob := newKey(t)
	_, carol := newKey(t)

	store := seededStore(t, alice)
	registerAndCommit(t, store, "mail", alice)

	// Alice transfers to Bob and the batch commits.
	transfer := &tx.Transaction{Name: "mail", Owner: bob[:], Sequence: 0}
	require.NoError(t, transfer.Sign(testSpace, alicePriv))
	batch := makeBatch(t, store, encodeSet(testSpace, []*tx.Transaction{transfer}))
	_, err := Apply(store, batch)
	require.NoError(t, err)
	_, _, err = store.Commit()
	require.NoError(t, err)

	// Alice tries to steal it back, signing against the new sequence.
	steal := &tx.Transaction{Name: "mail", Owner: carol[:], Sequence: 1}
	require.NoError(t, steal.Sign(testSpace, alicePriv))
	batch = makeBatch(t, store, encodeSet(testSpace, []*tx.Transaction{steal}))
	_, err = Apply(store, batch)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
	store.Rollback()

	// Replaying her original signature fails on the stale sequence.
	batch = makeBatch(t, store, encodeSet(testSpace, []*tx.Transaction{transfer}))
	_, err = Apply(store, batch)
	require.ErrorIs(t, err, types.ErrStaleSequence)
}

func TestNonOwnerTransferLeavesStateUnchanged(t *testing.T) {
	_, alice := newKey(t)
	malloryPriv, mallory := newKey(t)

	store := seededStore(t, alice)
	registerAndCommit(t, store, "mail", alice)
	rootBefore := store.RootHash()

	steal := &tx.Transaction{Name: "mail", Owner: mallory[:], Sequence: 0}
	require.NoError(t, steal.Sign(testSpace, malloryPriv))

	batch := makeBatch(t, store, encodeSet(testSpace, []*tx.Transaction{steal}))
	_, err := Apply(store, batch)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
	require.True(t, types.IsValidation(err))

	store.Rollback()
	require.Equal(t, rootBefore, store.RootHash())

	value, err := store.Get(types.HashName("mail"))
	require.NoError(t, err)
	rec, err := types.DecodeRecord(value)
	require.NoError(t, err)
	require.Equal(t, alice, rec.Owner)
}

func TestOrderSensitivity(t *testing.T) {
	registrantPriv, registrant := newKey(t)
	_, recipient := newKey(t)

	register := &tx.Transaction{Name: "bob", Owner: registrant[:]}
	transfer := &tx.Transaction{Name: "bob", Owner: recipient[:], Sequence: 0}
	require.NoError(t, transfer.Sign(testSpace, registrantPriv))

	t.Run("register then transfer succeeds", func(t *testing.T) {
		_, seed := newKey(t)
		store := seededStore(t, seed)

		raw := encodeSet(testSpace, []*tx.Transaction{register, transfer})
		batch := makeBatch(t, store, raw)

		journal, err := Apply(store, batch)
		require.NoError(t, err)
		require.Equal(t, uint64(1), journal.Registered)
		require.Equal(t, uint64(1), journal.Updated)

		value, err := store.Get(types.HashName("bob"))
		require.NoError(t, err)
		rec, err := types.DecodeRecord(value)
		require.NoError(t, err)
		require.Equal(t, recipient, rec.Owner)
		require.Equal(t, uint64(1), rec.Sequence)
	})

	t.Run("transfer before register fails", func(t *testing.T) {
		_, seed := newKey(t)
		store := seededStore(t, seed)

		raw := encodeSet(testSpace, []*tx.Transaction{transfer, register})
		batch := makeBatch(t, store, raw)

		_, err := Apply(store, batch)
		require.ErrorIs(t, err, types.ErrNameNotFound)
	})
}

func TestSequentialRenewalsInOneBatch(t *testing.T) {
	ownerPriv, owner := newKey(t)

	store := seededStore(t, owner)
	registerAndCommit(t, store, "mail", owner)

	renew0 := &tx.Transaction{Name: "mail", Owner: owner[:], Sequence: 0}
	require.NoError(t, renew0.Sign(testSpace, ownerPriv))
	renew1 := &tx.Transaction{Name: "mail", Owner: owner[:], Sequence: 1}
	require.NoError(t, renew1.Sign(testSpace, ownerPriv))

	raw := encodeSet(testSpace, []*tx.Transaction{renew0, renew1})
	batch := makeBatch(t, store, raw)

	journal, err := Apply(store, batch)
	require.NoError(t, err)
	require.Equal(t, uint64(2), journal.Updated)

	value, err := store.Get(types.HashName("mail"))
	require.NoError(t, err)
	rec, err := types.DecodeRecord(value)
	require.NoError(t, err)
	require.Equal(t, owner, rec.Owner)
	require.Equal(t, uint64(2), rec.Sequence)
	require.Equal(t, testTime+renewalSec, rec.ExpiresAt)
}

func TestApplyBootstrapEmptyTree(t *testing.T) {
	_, owner := newKey(t)
	store, err := statestore.NewMemoryIAVLStore(100)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	raw := encodeSet(testSpace, []*tx.Transaction{
		{Name: "alpha", Owner: owner[:]},
		{Name: "beta", Owner: owner[:]},
	})
	batch := &Batch{
		Space:         types.HashName(testSpace),
		InitialRoot:   types.Hash(store.RootHash()),
		Raw:           raw,
		Bootstrap:     true,
		Timestamp:     testTime,
		RenewalPeriod: renewalSec,
	}

	journal, err := Apply(store, batch)
	require.NoError(t, err)
	require.Equal(t, uint64(2), journal.Registered)
	require.False(t, journal.InitialRoot.Equal(journal.FinalRoot))

	value, err := store.Get(types.HashName("alpha"))
	require.NoError(t, err)
	rec, err := types.DecodeRecord(value)
	require.NoError(t, err)
	require.Equal(t, owner, rec.Owner)
}

func TestApplyBootstrapDuplicateInBatch(t *testing.T) {
	_, alice := newKey(t)
	_, bob := newKey(t)
	store, err := statestore.NewMemoryIAVLStore(100)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// The overlay tracks the first registration, so the second collides
	// even with no committed state to prove against.
	raw := encodeSet(testSpace, []*tx.Transaction{
		{Name: "alpha", Owner: alice[:]},
		{Name: "alpha", Owner: bob[:]},
	})
	batch := &Batch{
		Space:         types.HashName(testSpace),
		InitialRoot:   types.Hash(store.RootHash()),
		Raw:           raw,
		Bootstrap:     true,
		Timestamp:     testTime,
		RenewalPeriod: renewalSec,
	}

	_, err = Apply(store, batch)
	require.ErrorIs(t, err, types.ErrNameExists)
}

func TestApplyReportsFailingTransaction(t *testing.T) {
	_, owner := newKey(t)
	store := seededStore(t, owner)

	raw := encodeSet(testSpace, []*tx.Transaction{
		{Name: "bob", Owner: owner[:]},
		{Name: "genesis", Owner: owner[:]},
	})
	batch := makeBatch(t, store, raw)

	_, err := Apply(store, batch)
	require.ErrorIs(t, err, types.ErrNameExists)

	var txErr *TxError
	require.ErrorAs(t, err, &txErr)
	require.Equal(t, 1, txErr.Index)
	require.True(t, txErr.Key.Equal(types.HashName("genesis")))
}

func TestApplyRejectsStaleRoot(t *testing.T) {
	_, owner := newKey(t)
	store := seededStore(t, owner)

	raw := encodeSet(testSpace, []*tx.Transaction{{Name: "bob", Owner: owner[:]}})
	batch := makeBatch(t, store, raw)

	// The tree moves on before the batch is applied.
	require.NoError(t, store.Set([]byte("unrelated"), []byte("value")))

	_, err := Apply(store, batch)
	require.ErrorIs(t, err, types.ErrStaleRoot)
}

func TestApplyRejectsMissingWitness(t *testing.T) {
	_, owner := newKey(t)
	store := seededStore(t, owner)

	raw := encodeSet(testSpace, []*tx.Transaction{{Name: "bob", Owner: owner[:]}})
	batch := makeBatch(t, store, raw)
	batch.Witnesses[0] = nil

	_, err := Apply(store, batch)
	require.ErrorIs(t, err, types.ErrProofMismatch)
}

func TestApplyRejectsWitnessForWrongKey(t *testing.T) {
	_, owner := newKey(t)
	store := seededStore(t, owner)

	raw := encodeSet(testSpace, []*tx.Transaction{{Name: "bob", Owner: owner[:]}})
	batch := makeBatch(t, store, raw)

	wrong, err := store.GetProof(types.HashName("somethingelse"))
	require.NoError(t, err)
	batch.Witnesses[0] = wrong

	_, err = Apply(store, batch)
	require.ErrorIs(t, err, types.ErrProofMismatch)
}

func TestApplyRejectsWitnessAgainstForeignRoot(t *testing.T) {
	_, owner := newKey(t)
	store := seededStore(t, owner)

	// Witness generated from a different tree.
	other, err := statestore.NewMemoryIAVLStore(100)
	require.NoError(t, err)
	defer other.Close()
	rec := &types.Record{Owner: owner, Sequence: 0, ExpiresAt: testTime}
	require.NoError(t, other.Set(types.HashName("other"), rec.Encode()))
	_, _, err = other.Commit()
	require.NoError(t, err)

	raw := encodeSet(testSpace, []*tx.Transaction{{Name: "bob", Owner: owner[:]}})
	batch := makeBatch(t, store, raw)

	foreign, err := other.GetProof(types.HashName("bob"))
	require.NoError(t, err)
	batch.Witnesses[0] = foreign

	_, err = Apply(store, batch)
	require.ErrorIs(t, err, types.ErrProofMismatch)
}

func TestApplyRejectsMismatchedSpace(t *testing.T) {
	_, owner := newKey(t)
	store := seededStore(t, owner)

	raw := encodeSet("otherspace", []*tx.Transaction{{Name: "bob", Owner: owner[:]}})
	batch := makeBatch(t, store, raw)
	batch.Space = types.HashName(testSpace)

	_, err := Apply(store, batch)
	require.ErrorIs(t, err, types.ErrProofMismatch)
}
