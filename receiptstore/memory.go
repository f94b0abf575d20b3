package receiptstore

import (
	"fmt"
	"sync"

	"github.com/spacesprotocol/subspacer/types"
)

// MemoryStore implements ReceiptStore with in-memory storage.
// Primarily used for testing.
type MemoryStore struct {
	commits map[int64][]byte
	byRoot  map[string]int64
	height  int64
	base    int64
	closed  bool
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory receipt store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		commits: make(map[int64][]byte),
		byRoot:  make(map[string]int64),
	}
}

// SaveCommit stores a commit at its sequence number.
func (m *MemoryStore) SaveCommit(c *Commit) error {
	roots, err := rootsOf(c)
	if err != nil {
		return fmt.Errorf("indexing commit roots: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return types.ErrStoreClosed
	}
	if _, exists := m.commits[c.Seq]; exists {
		return fmt.Errorf("commit %d: %w", c.Seq, types.ErrCommitExists)
	}

	m.commits[c.Seq] = encodeCommit(c)
	for _, root := range roots {
		m.byRoot[string(root)] = c.Seq
	}

	if c.Seq > m.height {
		m.height = c.Seq
	}
	if m.base == 0 || c.Seq < m.base {
		m.base = c.Seq
	}
	return nil
}

// LoadCommit retrieves a commit by sequence number.
func (m *MemoryStore) LoadCommit(seq int64) (*Commit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, types.ErrStoreClosed
	}
	value, exists := m.commits[seq]
	if !exists {
		return nil, fmt.Errorf("commit %d: %w", seq, types.ErrReceiptNotFound)
	}
	return decodeCommit(seq, value)
}

// LoadCommitByRoot retrieves the commit that produced the given final root.
func (m *MemoryStore) LoadCommitByRoot(root types.Hash) (*Commit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, types.ErrStoreClosed
	}
	seq, exists := m.byRoot[string(root)]
	if !exists {
		return nil, fmt.Errorf("root %s: %w", root, types.ErrReceiptNotFound)
	}
	return decodeCommit(seq, m.commits[seq])
}

// HasCommit checks if a commit exists at the given sequence.
func (m *MemoryStore) HasCommit(seq int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.commits[seq]
	return exists
}

// Height returns the latest commit sequence.
func (m *MemoryStore) Height() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height
}

// Base returns the earliest stored commit sequence.
func (m *MemoryStore) Base() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.base
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ ReceiptStore = (*MemoryStore)(nil)
