// Package receiptstore persists the registry's commit audit trail: every
// committed receipt, indexed by commit sequence and by the final roots it
// attests to.
package receiptstore

import (
	"encoding/binary"
	"fmt"

	"github.com/spacesprotocol/subspacer/config"
	"github.com/spacesprotocol/subspacer/prover"
	"github.com/spacesprotocol/subspacer/types"
)

// Commit is one committed proving attempt: a sequence number, the time it
// landed and the verified receipt covering every space in the attempt.
type Commit struct {
	Seq       int64
	Timestamp int64
	Receipt   *prover.Receipt
}

// Journals returns the journals the commit's receipt attests to.
func (c *Commit) Journals() ([]types.Journal, error) {
	return c.Receipt.Journals()
}

// ReceiptStore defines the commit audit-trail storage interface.
// Implementations must be safe for concurrent use.
type ReceiptStore interface {
	// SaveCommit persists a commit at its sequence number.
	// Returns types.ErrCommitExists if the sequence is already occupied.
	SaveCommit(c *Commit) error

	// LoadCommit retrieves a commit by sequence number.
	// Returns types.ErrReceiptNotFound if no such commit exists.
	LoadCommit(seq int64) (*Commit, error)

	// LoadCommitByRoot retrieves the commit whose receipt produced the
	// given final root in any space.
	LoadCommitByRoot(root types.Hash) (*Commit, error)

	// HasCommit checks if a commit exists at the given sequence.
	HasCommit(seq int64) bool

	// Height returns the latest commit sequence, 0 when empty.
	Height() int64

	// Base returns the earliest stored commit sequence, 0 when empty.
	Base() int64

	// Close releases the underlying storage.
	Close() error
}

// NewReceiptStore creates a receipt store for the configured backend.
func NewReceiptStore(cfg config.ReceiptStoreConfig) (ReceiptStore, error) {
	switch cfg.Backend {
	case "leveldb":
		return NewLevelDBStore(cfg.Path)
	case "badgerdb":
		return NewBadgerDBStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown receiptstore backend: %q", cfg.Backend)
	}
}

// Key prefixes shared by the persistent backends.
var (
	prefixSeq  = []byte("S:") // S:<seq> -> commit value
	prefixRoot = []byte("R:") // R:<final root> -> seq
	keyHeight  = []byte("M:height")
	keyBase    = []byte("M:base")
)

func makeSeqKey(seq int64) []byte {
	key := make([]byte, len(prefixSeq)+8)
	copy(key, prefixSeq)
	binary.BigEndian.PutUint64(key[len(prefixSeq):], uint64(seq))
	return key
}

func makeRootKey(root types.Hash) []byte {
	key := make([]byte, len(prefixRoot)+len(root))
	copy(key, prefixRoot)
	copy(key[len(prefixRoot):], root)
	return key
}

// encodeCommit lays a commit value out as timestamp || receipt.
func encodeCommit(c *Commit) []byte {
	receipt := c.Receipt.Encode()
	value := make([]byte, 8+len(receipt))
	binary.BigEndian.PutUint64(value[:8], uint64(c.Timestamp))
	copy(value[8:], receipt)
	return value
}

func decodeCommit(seq int64, value []byte) (*Commit, error) {
	if len(value) < 8 {
		return nil, fmt.Errorf("commit %d value truncated: %w", seq, types.ErrReceiptNotFound)
	}
	receipt, err := prover.DecodeReceipt(value[8:])
	if err != nil {
		return nil, fmt.Errorf("commit %d: %w", seq, err)
	}
	return &Commit{
		Seq:       seq,
		Timestamp: int64(binary.BigEndian.Uint64(value[:8])),
		Receipt:   receipt,
	}, nil
}

// rootsOf lists the final roots a commit's receipt attests to, for the
// reverse index.
func rootsOf(c *Commit) ([]types.Hash, error) {
	journals, err := c.Journals()
	if err != nil {
		return nil, err
	}
	roots := make([]types.Hash, 0, len(journals))
	for i := range journals {
		roots = append(roots, journals[i].FinalRoot)
	}
	return roots, nil
}

func encodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeInt64(data []byte) int64 {
	if len(data) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(data))
}
