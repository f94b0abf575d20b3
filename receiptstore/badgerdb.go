package receiptstore

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/spacesprotocol/subspacer/types"
)

// BadgerDBStore implements ReceiptStore using BadgerDB. Badger performs
// better than LevelDB on SSDs under write-heavy loads; the registry's
// commit rate rarely demands it, but operators that already run badger
// elsewhere can keep a single storage engine.
type BadgerDBStore struct {
	db     *badger.DB
	path   string
	height int64
	base   int64
	mu     sync.RWMutex
}

// NewBadgerDBStore creates a new BadgerDB-backed receipt store.
func NewBadgerDBStore(path string) (*BadgerDBStore, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithSyncWrites(true)
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badgerdb: %w", err)
	}

	store := &BadgerDBStore{
		db:   db,
		path: path,
	}
	if err := store.loadMetadata(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading metadata: %w", err)
	}
	return store, nil
}

// loadMetadata loads the height and base from the database.
func (s *BadgerDBStore) loadMetadata() error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyHeight)
		if err == nil {
			err = item.Value(func(val []byte) error {
				s.height = decodeInt64(val)
				return nil
			})
			if err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		item, err = txn.Get(keyBase)
		if err == nil {
			err = item.Value(func(val []byte) error {
				s.base = decodeInt64(val)
				return nil
			})
			if err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
}

// SaveCommit persists a commit at its sequence number.
func (s *BadgerDBStore) SaveCommit(c *Commit) error {
	roots, err := rootsOf(c)
	if err != nil {
		return fmt.Errorf("indexing commit roots: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seqKey := makeSeqKey(c.Seq)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(seqKey); err == nil {
			return fmt.Errorf("commit %d: %w", c.Seq, types.ErrCommitExists)
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := txn.Set(seqKey, encodeCommit(c)); err != nil {
			return err
		}
		for _, root := range roots {
			if err := txn.Set(makeRootKey(root), encodeInt64(c.Seq)); err != nil {
				return err
			}
		}
		if c.Seq > s.height {
			if err := txn.Set(keyHeight, encodeInt64(c.Seq)); err != nil {
				return err
			}
		}
		if s.base == 0 || c.Seq < s.base {
			if err := txn.Set(keyBase, encodeInt64(c.Seq)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if c.Seq > s.height {
		s.height = c.Seq
	}
	if s.base == 0 || c.Seq < s.base {
		s.base = c.Seq
	}
	return nil
}

// LoadCommit retrieves a commit by sequence number.
func (s *BadgerDBStore) LoadCommit(seq int64) (*Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadCommitUnlocked(seq)
}

// LoadCommitByRoot retrieves the commit that produced the given final root.
func (s *BadgerDBStore) LoadCommitByRoot(root types.Hash) (*Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seq int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeRootKey(root))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("root %s: %w", root, types.ErrReceiptNotFound)
		}
		if err != nil {
			return fmt.Errorf("getting commit for root: %w", err)
		}
		return item.Value(func(val []byte) error {
			seq = decodeInt64(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.loadCommitUnlocked(seq)
}

// loadCommitUnlocked retrieves a commit without holding the lock.
// Caller must hold at least a read lock.
func (s *BadgerDBStore) loadCommitUnlocked(seq int64) (*Commit, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeSeqKey(seq))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("commit %d: %w", seq, types.ErrReceiptNotFound)
		}
		if err != nil {
			return fmt.Errorf("getting commit %d: %w", seq, err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeCommit(seq, value)
}

// HasCommit checks if a commit exists at the given sequence.
func (s *BadgerDBStore) HasCommit(seq int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exists := false
	s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(makeSeqKey(seq)); err == nil {
			exists = true
		}
		return nil
	})
	return exists
}

// Height returns the latest commit sequence.
func (s *BadgerDBStore) Height() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// Base returns the earliest stored commit sequence.
func (s *BadgerDBStore) Base() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// Close closes the database.
func (s *BadgerDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ ReceiptStore = (*BadgerDBStore)(nil)
