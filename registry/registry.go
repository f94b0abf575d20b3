// Package registry wires the subspacer components into the commit
// orchestrator: it stages client transactions per space, and on demand
// proves and commits them as one atomic state transition per space.
package registry

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spacesprotocol/subspacer/config"
	"github.com/spacesprotocol/subspacer/logging"
	"github.com/spacesprotocol/subspacer/metrics"
	"github.com/spacesprotocol/subspacer/pending"
	"github.com/spacesprotocol/subspacer/prover"
	"github.com/spacesprotocol/subspacer/receiptstore"
	"github.com/spacesprotocol/subspacer/statestore"
	"github.com/spacesprotocol/subspacer/tx"
	"github.com/spacesprotocol/subspacer/types"
)

// Registry is the commit orchestrator. It owns one authenticated state
// tree per space, the pending set, the proving backend and the commit
// audit trail.
type Registry struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics metrics.Metrics

	pool     *pending.Pool
	prov     prover.Prover
	verifier prover.Verifier
	receipts receiptstore.ReceiptStore

	mu          sync.Mutex
	stores      map[string]*statestore.IAVLStore
	spaceByHash map[string]string
	inFlight    bool
	memState    bool

	stagingPath string
}

// Option customizes registry construction. Used by tests to swap in
// in-memory state and alternative proving backends.
type Option func(*Registry)

// WithProver replaces the configured proving backend.
func WithProver(p prover.Prover) Option {
	return func(r *Registry) { r.prov = p }
}

// WithVerifier replaces the receipt verifier.
func WithVerifier(v prover.Verifier) Option {
	return func(r *Registry) { r.verifier = v }
}

// WithReceiptStore replaces the configured receipt store.
func WithReceiptStore(s receiptstore.ReceiptStore) Option {
	return func(r *Registry) { r.receipts = s }
}

// WithMetrics replaces the metrics implementation.
func WithMetrics(m metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithMemoryState keeps every space's state tree in memory.
func WithMemoryState() Option {
	return func(r *Registry) { r.memState = true }
}

// New creates a registry from configuration. Staged transactions from a
// previous run are reloaded from the staging file.
func New(cfg *config.Config, log *logging.Logger, opts ...Option) (*Registry, error) {
	r := &Registry{
		cfg:         cfg,
		log:         log.WithComponent("registry"),
		stores:      make(map[string]*statestore.IAVLStore),
		spaceByHash: make(map[string]string),
		stagingPath: filepath.Join(cfg.Registry.DataDir, cfg.Pending.StagingFile),
	}

	pool, err := pending.New(cfg.Pending, log)
	if err != nil {
		return nil, err
	}
	r.pool = pool

	for _, opt := range opts {
		opt(r)
	}

	if r.metrics == nil {
		if cfg.Metrics.Enabled {
			r.metrics = metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		} else {
			r.metrics = metrics.NewNopMetrics()
		}
	}
	if r.receipts == nil {
		receipts, err := receiptstore.NewReceiptStore(cfg.ReceiptStore)
		if err != nil {
			return nil, fmt.Errorf("opening receipt store: %w", err)
		}
		r.receipts = receipts
	}
	if r.verifier == nil {
		r.verifier = prover.NewVerifier()
	}
	if r.prov == nil {
		switch cfg.Prover.Backend {
		case config.BackendRemote:
			r.prov = prover.NewRemoteProver(cfg.Prover, log)
		default:
			r.prov = prover.NewLocalProver(&executor{r: r}, log)
		}
	}

	if err := r.pool.Load(r.stagingPath); err != nil {
		r.receipts.Close()
		return nil, fmt.Errorf("loading staged transactions: %w", err)
	}
	r.syncPendingMetrics()
	r.metrics.SetCommitHeight(r.receipts.Height())

	return r, nil
}

// storeFor opens (or returns the already-open) state tree for a space.
func (r *Registry) storeFor(space string) (*statestore.IAVLStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.stores[space]; ok {
		return store, nil
	}

	var store *statestore.IAVLStore
	var err error
	if r.memState {
		store, err = statestore.NewMemoryIAVLStore(r.cfg.StateStore.CacheSize)
	} else {
		store, err = statestore.NewIAVLStore(
			filepath.Join(r.cfg.StateStore.Path, space), r.cfg.StateStore.CacheSize)
	}
	if err != nil {
		return nil, fmt.Errorf("opening state for space %q: %w", space, err)
	}

	r.stores[space] = store
	r.spaceByHash[string(types.HashName(space))] = space
	return store, nil
}

// spaceLabel resolves a space hash back to its label. Only spaces with an
// open store resolve; the orchestrator opens stores before proving.
func (r *Registry) spaceLabel(hash types.Hash) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	label, ok := r.spaceByHash[string(hash)]
	return label, ok
}

// Add stages a single transaction and persists the staging file.
func (r *Registry) Add(space string, t *tx.Transaction) error {
	if err := r.pool.Add(space, t); err != nil {
		r.metrics.IncTxsRejected(rejectReason(err))
		return err
	}
	r.metrics.IncTxsStaged()
	r.syncPendingMetrics()
	return r.pool.Save(r.stagingPath)
}

// AddBatch merges a client batch file into the pending set and persists
// the staging file.
func (r *Registry) AddBatch(space string, b *tx.Builder) error {
	if err := r.pool.Merge(space, b); err != nil {
		r.metrics.IncTxsRejected(rejectReason(err))
		return err
	}
	r.syncPendingMetrics()
	return r.pool.Save(r.stagingPath)
}

// SpaceStatus is the per-space view of committed state and staged work.
type SpaceStatus struct {
	Space   string
	Version int64
	Root    types.Hash
	Pending pending.Stats
}

// Status is the registry overview: commit height and the pending set.
type Status struct {
	CommitHeight int64
	Pending      pending.Stats
	Spaces       []SpaceStatus
}

// Status reports committed and staged state without mutating anything.
func (r *Registry) Status() (*Status, error) {
	st := &Status{
		CommitHeight: r.receipts.Height(),
		Pending:      r.pool.Stats(),
	}

	perSpace := r.pool.PerSpace()
	for _, space := range r.knownSpaces() {
		store, err := r.storeFor(space)
		if err != nil {
			return nil, err
		}
		st.Spaces = append(st.Spaces, SpaceStatus{
			Space:   space,
			Version: store.Version(),
			Root:    types.Hash(store.RootHash()),
			Pending: perSpace[space],
		})
	}
	return st, nil
}

// knownSpaces lists every space with staged work or committed state,
// sorted and deduplicated.
func (r *Registry) knownSpaces() []string {
	seen := make(map[string]bool)
	var spaces []string
	for _, space := range r.pool.Spaces() {
		seen[space] = true
		spaces = append(spaces, space)
	}

	// Committed spaces live as subdirectories of the state path.
	if !r.memState {
		if entries, err := os.ReadDir(r.cfg.StateStore.Path); err == nil {
			for _, e := range entries {
				if e.IsDir() && tx.ValidLabel(e.Name()) && !seen[e.Name()] {
					spaces = append(spaces, e.Name())
				}
			}
		}
	} else {
		r.mu.Lock()
		for space := range r.stores {
			if !seen[space] {
				spaces = append(spaces, space)
			}
		}
		r.mu.Unlock()
	}

	sort.Strings(spaces)
	return spaces
}

// Lookup returns the committed record for label@space together with a
// proof against the space's current root. The record is nil if the
// subspace is not registered; the proof then shows non-membership.
func (r *Registry) Lookup(space, label string) (*types.Record, *statestore.Proof, error) {
	if !tx.ValidLabel(space) || !tx.ValidLabel(label) {
		return nil, nil, fmt.Errorf("%q@%q: %w", label, space, types.ErrInvalidName)
	}

	store, err := r.storeFor(space)
	if err != nil {
		return nil, nil, err
	}
	proof, err := store.GetProof(types.HashName(label))
	if err != nil {
		return nil, nil, err
	}
	if !proof.Exists {
		return nil, proof, nil
	}
	rec, err := types.DecodeRecord(proof.Value)
	if err != nil {
		return nil, nil, err
	}
	return rec, proof, nil
}

// MetricsHandler exposes the metrics scrape handler, nil for Nop metrics.
func (r *Registry) MetricsHandler() http.Handler {
	return r.metrics.Handler()
}

// Receipt retrieves a committed receipt by commit sequence.
func (r *Registry) Receipt(seq int64) (*receiptstore.Commit, error) {
	return r.receipts.LoadCommit(seq)
}

// Close releases every store. Staged transactions are already durable in
// the staging file.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for space, store := range r.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing state for space %q: %w", space, err)
		}
	}
	r.stores = make(map[string]*statestore.IAVLStore)

	if err := r.receipts.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (r *Registry) syncPendingMetrics() {
	stats := r.pool.Stats()
	r.metrics.SetPendingSize(stats.Transactions)
	r.metrics.SetPendingSpaces(stats.Spaces)
}

// rejectReason maps a staging error to a metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, types.ErrDuplicateName):
		return "duplicate"
	case errors.Is(err, types.ErrPendingFull):
		return "full"
	case errors.Is(err, types.ErrInvalidName),
		errors.Is(err, types.ErrInvalidOwnerKey),
		errors.Is(err, types.ErrInvalidWitness),
		errors.Is(err, types.ErrVersionMismatch):
		return "invalid"
	default:
		return "other"
	}
}
