package receiptstore

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacesprotocol/subspacer/config"
	"github.com/spacesprotocol/subspacer/prover"
	"github.com/spacesprotocol/subspacer/types"
)

// testCommit builds a commit whose receipt covers one space with a final
// root derived from the sequence number.
func testCommit(seq int64) *Commit {
	journal := types.Journal{
		Space:       types.HashName("example"),
		InitialRoot: seqRoot(seq - 1),
		FinalRoot:   seqRoot(seq),
		Registered:  1,
		Affected:    []types.Hash{types.HashName("alpha")},
	}
	receipt := &prover.Receipt{
		ImageID: prover.ImageID(),
		Journal: types.EncodeJournals([]types.Journal{journal}),
	}
	// Seal contents are opaque to the store.
	seal := sha256.Sum256(receipt.Journal)
	receipt.Seal = seal[:]

	return &Commit{
		Seq:       seq,
		Timestamp: 1700000000 + seq,
		Receipt:   receipt,
	}
}

func seqRoot(seq int64) types.Hash {
	return types.HashBytes([]byte{byte(seq), byte(seq >> 8)})
}

// runStoreTests exercises the ReceiptStore contract against any backend.
func runStoreTests(t *testing.T, open func(t *testing.T) ReceiptStore) {
	t.Run("empty store", func(t *testing.T) {
		s := open(t)
		require.Equal(t, int64(0), s.Height())
		require.Equal(t, int64(0), s.Base())
		require.False(t, s.HasCommit(1))

		_, err := s.LoadCommit(1)
		require.ErrorIs(t, err, types.ErrReceiptNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		s := open(t)
		c := testCommit(1)
		require.NoError(t, s.SaveCommit(c))

		loaded, err := s.LoadCommit(1)
		require.NoError(t, err)
		require.Equal(t, c.Seq, loaded.Seq)
		require.Equal(t, c.Timestamp, loaded.Timestamp)
		require.True(t, loaded.Receipt.ImageID.Equal(c.Receipt.ImageID))
		require.Equal(t, c.Receipt.Journal, loaded.Receipt.Journal)

		journals, err := loaded.Journals()
		require.NoError(t, err)
		require.Len(t, journals, 1)
		require.Equal(t, uint64(1), journals[0].Registered)
	})

	t.Run("duplicate sequence rejected", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.SaveCommit(testCommit(1)))
		require.ErrorIs(t, s.SaveCommit(testCommit(1)), types.ErrCommitExists)
	})

	t.Run("lookup by final root", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.SaveCommit(testCommit(1)))
		require.NoError(t, s.SaveCommit(testCommit(2)))

		c, err := s.LoadCommitByRoot(seqRoot(2))
		require.NoError(t, err)
		require.Equal(t, int64(2), c.Seq)

		_, err = s.LoadCommitByRoot(types.HashBytes([]byte("unknown")))
		require.ErrorIs(t, err, types.ErrReceiptNotFound)
	})

	t.Run("height and base track commits", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.SaveCommit(testCommit(3)))
		require.NoError(t, s.SaveCommit(testCommit(5)))
		require.NoError(t, s.SaveCommit(testCommit(4)))

		require.Equal(t, int64(5), s.Height())
		require.Equal(t, int64(3), s.Base())
		require.True(t, s.HasCommit(4))
		require.False(t, s.HasCommit(6))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) ReceiptStore {
		s := NewMemoryStore()
		t.Cleanup(func() { s.Close() })
		return s
	})

	t.Run("closed store rejects operations", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Close())
		require.ErrorIs(t, s.SaveCommit(testCommit(1)), types.ErrStoreClosed)

		_, err := s.LoadCommit(1)
		require.ErrorIs(t, err, types.ErrStoreClosed)
	})
}

func TestLevelDBStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) ReceiptStore {
		s, err := NewLevelDBStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})

	t.Run("metadata survives reopen", func(t *testing.T) {
		dir := t.TempDir()

		s, err := NewLevelDBStore(dir)
		require.NoError(t, err)
		require.NoError(t, s.SaveCommit(testCommit(1)))
		require.NoError(t, s.SaveCommit(testCommit(2)))
		require.NoError(t, s.Close())

		reopened, err := NewLevelDBStore(dir)
		require.NoError(t, err)
		defer reopened.Close()

		require.Equal(t, int64(2), reopened.Height())
		require.Equal(t, int64(1), reopened.Base())

		c, err := reopened.LoadCommitByRoot(seqRoot(1))
		require.NoError(t, err)
		require.Equal(t, int64(1), c.Seq)
	})
}

func TestBadgerDBStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) ReceiptStore {
		s, err := NewBadgerDBStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestNewReceiptStore(t *testing.T) {
	t.Run("leveldb backend", func(t *testing.T) {
		s, err := NewReceiptStore(config.ReceiptStoreConfig{Backend: "leveldb", Path: t.TempDir()})
		require.NoError(t, err)
		require.IsType(t, (*LevelDBStore)(nil), s)
		require.NoError(t, s.Close())
	})

	t.Run("badgerdb backend", func(t *testing.T) {
		s, err := NewReceiptStore(config.ReceiptStoreConfig{Backend: "badgerdb", Path: t.TempDir()})
		require.NoError(t, err)
		require.IsType(t, (*BadgerDBStore)(nil), s)
		require.NoError(t, s.Close())
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewReceiptStore(config.ReceiptStoreConfig{Backend: "rocksdb"})
		require.Error(t, err)
	})
}
