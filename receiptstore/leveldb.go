package receiptstore

import (
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/spacesprotocol/subspacer/types"
)

// LevelDBStore implements ReceiptStore using LevelDB.
type LevelDBStore struct {
	db     *leveldb.DB
	path   string
	height int64
	base   int64
	mu     sync.RWMutex
}

// NewLevelDBStore creates a new LevelDB-backed receipt store.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		NoSync: false,
	})
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}

	store := &LevelDBStore{
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
func (s *LevelDBStore) loadMetadata() error {
	data, err := s.db.Get(keyHeight, nil)
	if err == nil {
		s.height = decodeInt64(data)
	} else if err != leveldb.ErrNotFound {
		return err
	}

	data, err = s.db.Get(keyBase, nil)
	if err == nil {
		s.base = decodeInt64(data)
	} else if err != leveldb.ErrNotFound {
		return err
	}
	return nil
}

// SaveCommit persists a commit at its sequence number.
func (s *LevelDBStore) SaveCommit(c *Commit) error {
	roots, err := rootsOf(c)
	if err != nil {
		return fmt.Errorf("indexing commit roots: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seqKey := makeSeqKey(c.Seq)
	exists, err := s.db.Has(seqKey, nil)
	if err != nil {
		return fmt.Errorf("checking commit existence: %w", err)
	}
	if exists {
		return fmt.Errorf("commit %d: %w", c.Seq, types.ErrCommitExists)
	}

	batch := new(leveldb.Batch)
	batch.Put(seqKey, encodeCommit(c))
	for _, root := range roots {
		batch.Put(makeRootKey(root), encodeInt64(c.Seq))
	}
	if c.Seq > s.height {
		batch.Put(keyHeight, encodeInt64(c.Seq))
	}
	if s.base == 0 || c.Seq < s.base {
		batch.Put(keyBase, encodeInt64(c.Seq))
	}

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("writing commit: %w", err)
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
func (s *LevelDBStore) LoadCommit(seq int64) (*Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadCommitUnlocked(seq)
}

// LoadCommitByRoot retrieves the commit that produced the given final root.
func (s *LevelDBStore) LoadCommitByRoot(root types.Hash) (*Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.db.Get(makeRootKey(root), nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("root %s: %w", root, types.ErrReceiptNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting commit for root: %w", err)
	}
	return s.loadCommitUnlocked(decodeInt64(data))
}

// loadCommitUnlocked retrieves a commit without holding the lock.
// Caller must hold at least a read lock.
func (s *LevelDBStore) loadCommitUnlocked(seq int64) (*Commit, error) {
	value, err := s.db.Get(makeSeqKey(seq), nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("commit %d: %w", seq, types.ErrReceiptNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting commit %d: %w", seq, err)
	}
	return decodeCommit(seq, value)
}

// HasCommit checks if a commit exists at the given sequence.
func (s *LevelDBStore) HasCommit(seq int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exists, _ := s.db.Has(makeSeqKey(seq), nil)
	return exists
}

// Height returns the latest commit sequence.
func (s *LevelDBStore) Height() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// Base returns the earliest stored commit sequence.
func (s *LevelDBStore) Base() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// Close closes the database.
func (s *LevelDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ ReceiptStore = (*LevelDBStore)(nil)
