// Package pending manages the staged transaction sets awaiting the next
// commit, one builder per space. The pool survives restarts through a
// JSON staging file and is safe for concurrent use.
package pending

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spacesprotocol/subspacer/config"
	"github.com/spacesprotocol/subspacer/logging"
	"github.com/spacesprotocol/subspacer/tx"
	"github.com/spacesprotocol/subspacer/types"
)

// Stats summarizes staged transactions.
type Stats struct {
	Spaces        int
	Transactions  int
	Registrations int
	Updates       int
}

// Snapshot is the pending set handed to a commit attempt: the staged
// builders keyed by space label. Once taken it is owned by the commit
// attempt until it is either restored or marked committed.
type Snapshot map[string]*tx.Builder

// Pool is the pending transaction set across all spaces.
type Pool struct {
	mu       sync.RWMutex
	builders map[string]*tx.Builder
	count    int
	maxTxs   int

	// committed caches identities of recently committed transactions so
	// exact replays are dropped before they waste a proving cycle.
	committed *lru.Cache[string, struct{}]

	log *logging.Logger
}

// New creates an empty pool.
func New(cfg config.PendingConfig, log *logging.Logger) (*Pool, error) {
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 1
	}
	committed, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating replay cache: %w", err)
	}
	return &Pool{
		builders:  make(map[string]*tx.Builder),
		maxTxs:    cfg.MaxTxs,
		committed: committed,
		log:       log.WithComponent("pending"),
	}, nil
}

// Add stages one transaction under a space. The transaction must be well
// formed, must not duplicate a staged subspace in the same space, must not
// replay a recently committed transaction, and must fit the pool capacity.
func (p *Pool) Add(space string, t *tx.Transaction) error {
	if !tx.ValidLabel(space) {
		return fmt.Errorf("space %q: %w", space, types.ErrInvalidName)
	}
	if err := t.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.committed.Contains(txIdentity(space, t)) {
		return fmt.Errorf("subspace %q: transaction already committed: %w",
			t.Name, types.ErrDuplicateName)
	}
	if p.maxTxs > 0 && p.count >= p.maxTxs {
		return fmt.Errorf("%d transactions staged: %w", p.count, types.ErrPendingFull)
	}

	b, ok := p.builders[space]
	if !ok {
		b = tx.NewBuilder()
		p.builders[space] = b
	}
	if err := b.Add(t); err != nil {
		return err
	}
	p.count++

	p.log.Debug("staged transaction",
		logging.Space(space),
		logging.Subspace(t.Name),
		"registration", t.IsRegistration())
	return nil
}

// Merge stages every transaction from a builder, typically one loaded
// from a batch file. Staging stops at the first rejected transaction.
func (p *Pool) Merge(space string, b *tx.Builder) error {
	if b.Version != tx.Version {
		return fmt.Errorf("batch version %d: %w", b.Version, types.ErrVersionMismatch)
	}
	for _, t := range b.Transactions {
		if err := p.Add(space, t); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns totals across all spaces.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Stats{Spaces: len(p.builders)}
	for _, b := range p.builders {
		reg, upd := b.Stats()
		s.Registrations += reg
		s.Updates += upd
		s.Transactions += reg + upd
	}
	return s
}

// PerSpace returns staged totals for each space.
func (p *Pool) PerSpace() map[string]Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]Stats, len(p.builders))
	for space, b := range p.builders {
		reg, upd := b.Stats()
		out[space] = Stats{
			Spaces:        1,
			Transactions:  reg + upd,
			Registrations: reg,
			Updates:       upd,
		}
	}
	return out
}

// Spaces returns the staged space labels in sorted order.
func (p *Pool) Spaces() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	spaces := make([]string, 0, len(p.builders))
	for space := range p.builders {
		spaces = append(spaces, space)
	}
	sort.Strings(spaces)
	return spaces
}

// Size returns the total number of staged transactions.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.count
}

// Take removes and returns the entire pending set for a commit attempt.
// Transactions staged after Take go into fresh builders and ride the next
// commit. Returns types.ErrNoPendingChanges if nothing is staged.
func (p *Pool) Take() (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.count == 0 {
		return nil, types.ErrNoPendingChanges
	}
	snap := Snapshot(p.builders)
	p.builders = make(map[string]*tx.Builder)
	p.count = 0
	return snap, nil
}

// Restore returns a taken snapshot to the pool after a failed commit
// attempt. Anything staged since Take is merged on top; a transaction
// staged twice for the same subspace keeps the snapshot's copy.
func (p *Pool) Restore(snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for space, staged := range p.builders {
		base, ok := snap[space]
		if !ok {
			snap[space] = staged
			continue
		}
		for _, t := range staged.Transactions {
			if err := base.Add(t); err != nil {
				p.log.Warn("dropping transaction staged during failed commit",
					logging.Space(space),
					logging.Subspace(t.Name),
					logging.Err(err))
			}
		}
	}

	p.builders = map[string]*tx.Builder(snap)
	p.count = 0
	for _, b := range p.builders {
		p.count += len(b.Transactions)
	}
}

// MarkCommitted records the snapshot's transactions in the replay cache
// after a successful commit. The snapshot is discarded.
func (p *Pool) MarkCommitted(snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for space, b := range snap {
		for _, t := range b.Transactions {
			p.committed.Add(txIdentity(space, t), struct{}{})
		}
	}
}

// Flush drops all staged transactions.
func (p *Pool) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.builders = make(map[string]*tx.Builder)
	p.count = 0
}

// txIdentity derives the replay-cache key for a staged transaction. The
// sequence number is included so a later renewal of the same subspace is
// not mistaken for a replay.
func txIdentity(space string, t *tx.Transaction) string {
	buf := make([]byte, 0, 2*types.HashSize+types.OwnerKeySize+8+len(t.Witness))
	buf = append(buf, types.HashName(space)...)
	buf = append(buf, t.Key()...)
	buf = append(buf, t.Owner...)
	buf = binary.BigEndian.AppendUint64(buf, t.Sequence)
	buf = append(buf, t.Witness...)
	return string(types.HashBytes(buf))
}
