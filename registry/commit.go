package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spacesprotocol/subspacer/engine"
	"github.com/spacesprotocol/subspacer/logging"
	"github.com/spacesprotocol/subspacer/metrics"
	"github.com/spacesprotocol/subspacer/pending"
	"github.com/spacesprotocol/subspacer/prover"
	"github.com/spacesprotocol/subspacer/receiptstore"
	"github.com/spacesprotocol/subspacer/statestore"
	"github.com/spacesprotocol/subspacer/tx"
	"github.com/spacesprotocol/subspacer/types"
)

// RejectedTx reports a staged transaction dropped during pre-validation.
type RejectedTx struct {
	Space    string
	Subspace types.Hash
	Reason   string
}

// CommitResult is the outcome of a commit attempt.
type CommitResult struct {
	// Seq is the commit sequence number, 0 for dry runs and attempts that
	// committed nothing.
	Seq int64

	// Journals holds one journal per committed space, in space order.
	Journals []types.Journal

	// Receipt covers the journals. Nil for dry runs.
	Receipt *prover.Receipt

	// Rejected lists transactions dropped by pre-validation.
	Rejected []RejectedTx

	// Proved is false when every batch was a bootstrap batch and proving
	// was skipped, and for dry runs.
	Proved bool

	// DryRun reports whether state was left untouched.
	DryRun bool

	// Prover names the proving backend used.
	Prover string

	// Took is the end-to-end duration of the attempt.
	Took time.Duration
}

// spaceBatch pairs a batch with the store it applies to.
type spaceBatch struct {
	space string
	store *statestore.IAVLStore
	batch *engine.Batch
}

// Commit proves and commits the entire pending set. Only one commit may
// be in flight at a time. On any proving or verification failure the
// committed roots do not advance and the pending set is restored; with
// dryRun set, state is never touched and the pending set is kept.
func (r *Registry) Commit(ctx context.Context, dryRun bool) (*CommitResult, error) {
	if err := r.beginCommit(); err != nil {
		return nil, err
	}
	defer r.endCommit()

	start := time.Now()

	snap, err := r.pool.Take()
	if err != nil {
		return nil, err
	}
	r.syncPendingMetrics()

	result, err := r.commit(ctx, snap, dryRun)
	if err != nil || dryRun {
		// Failed or dry-run attempts leave the staged work in place.
		// Re-save the staging file: a transaction added while the proof
		// was in flight persisted it without the snapshot.
		r.pool.Restore(snap)
		r.syncPendingMetrics()
		if saveErr := r.pool.Save(r.stagingPath); saveErr != nil {
			r.log.Error("persisting staging file after restore", logging.Err(saveErr))
		}
		if err != nil {
			r.metrics.IncCommits(metrics.ResultFailed)
			return nil, err
		}
	} else {
		// Rejected transactions were already pruned from the snapshot, so
		// only what actually committed enters the replay cache.
		if result.Seq > 0 {
			r.pool.MarkCommitted(snap)
		}
		if err := r.pool.Save(r.stagingPath); err != nil {
			r.log.Error("persisting staging file after commit", logging.Err(err))
		}
	}

	result.Took = time.Since(start)
	r.metrics.ObserveCommitDuration(result.Took)
	return result, nil
}

func (r *Registry) beginCommit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight {
		return types.ErrCommitInFlight
	}
	r.inFlight = true
	return nil
}

func (r *Registry) endCommit() {
	r.mu.Lock()
	r.inFlight = false
	r.mu.Unlock()
}

func (r *Registry) commit(ctx context.Context, snap pending.Snapshot, dryRun bool) (*CommitResult, error) {
	result := &CommitResult{
		DryRun: dryRun,
		Prover: r.prov.Name(),
	}

	timestamp := time.Now().Unix()
	batches, rejected, err := r.buildBatches(snap, timestamp)
	if err != nil {
		return nil, err
	}
	result.Rejected = rejected
	for _, rej := range rejected {
		r.metrics.IncTxsRejected("validation")
		r.log.Warn("dropped staged transaction",
			logging.Space(rej.Space),
			logging.Subspace(rej.Subspace.String()),
			"reason", rej.Reason)
	}
	if len(batches) == 0 {
		r.metrics.IncCommits(metrics.ResultRejected)
		return result, nil
	}

	// Pre-validation already proved these batches apply cleanly; execute
	// once more to capture the journals, then roll back so proving starts
	// from the committed roots.
	journals := make([]types.Journal, 0, len(batches))
	for _, sb := range batches {
		journal, err := engine.Apply(sb.store, sb.batch)
		sb.store.Rollback()
		if err != nil {
			return nil, fmt.Errorf("space %q: %w", sb.space, err)
		}
		journals = append(journals, *journal)
	}
	result.Journals = journals

	if dryRun {
		return result, nil
	}

	receipt, proved, err := r.prove(ctx, batches, journals)
	if err != nil {
		return nil, err
	}
	result.Receipt = receipt
	result.Proved = proved

	// The receipt is verified; fold the transitions into the trees and
	// persist the new versions.
	for _, sb := range batches {
		if _, err := engine.Apply(sb.store, sb.batch); err != nil {
			r.rollbackAll(batches)
			return nil, fmt.Errorf("space %q: re-applying batch: %w", sb.space, err)
		}
	}
	for _, sb := range batches {
		_, version, err := sb.store.Commit()
		if err != nil {
			// Partially saved versions cannot be unsaved; surface loudly.
			return nil, fmt.Errorf("space %q: saving version: %w", sb.space, err)
		}
		r.metrics.SetStateVersion(sb.space, version)
	}

	seq := r.receipts.Height() + 1
	commit := &receiptstore.Commit{
		Seq:       seq,
		Timestamp: timestamp,
		Receipt:   receipt,
	}
	if err := r.receipts.SaveCommit(commit); err != nil {
		// The state transition is already durable; a missing audit entry
		// is an operator problem, not a reason to diverge the roots.
		r.log.Error("persisting commit receipt", logging.Seq(seq), logging.Err(err))
	}
	result.Seq = seq

	r.metrics.IncCommits(metrics.ResultCommitted)
	r.metrics.SetCommitHeight(r.receipts.Height())
	for i := range journals {
		r.log.Info("committed space",
			logging.Space(journals[i].Space.String()),
			logging.Root(journals[i].FinalRoot),
			"registered", journals[i].Registered,
			"updated", journals[i].Updated)
	}
	return result, nil
}

// buildBatches compiles each staged builder into a proof-carrying batch,
// dropping transactions that fail validation against the committed state.
func (r *Registry) buildBatches(snap pending.Snapshot, timestamp int64) ([]*spaceBatch, []RejectedTx, error) {
	var rejected []RejectedTx
	var batches []*spaceBatch

	spaces := make([]string, 0, len(snap))
	for space := range snap {
		spaces = append(spaces, space)
	}
	sort.Strings(spaces)

	for _, space := range spaces {
		builder := snap[space]
		store, err := r.storeFor(space)
		if err != nil {
			return nil, nil, err
		}

		// Drop invalid transactions one at a time until the batch applies
		// cleanly. Each retry re-validates against the same committed root.
		for len(builder.Transactions) > 0 {
			sb, err := r.compileBatch(space, store, builder, timestamp)
			if err != nil {
				return nil, nil, err
			}

			_, err = engine.Apply(store, sb.batch)
			store.Rollback()
			if err == nil {
				batches = append(batches, sb)
				break
			}

			var txErr *engine.TxError
			if !errors.As(err, &txErr) || !types.IsValidation(txErr.Err) {
				return nil, nil, fmt.Errorf("space %q: %w", space, err)
			}
			rejected = append(rejected, RejectedTx{
				Space:    space,
				Subspace: txErr.Key,
				Reason:   txErr.Err.Error(),
			})
			builder.Transactions = removeByKey(builder.Transactions, txErr.Key)
		}
	}
	return batches, rejected, nil
}

// compileBatch builds the canonical transaction set and gathers one
// witness per first-touched key from the committed tree. A space with no
// committed versions yields a bootstrap batch with no witnesses.
func (r *Registry) compileBatch(space string, store *statestore.IAVLStore, builder *tx.Builder, timestamp int64) (*spaceBatch, error) {
	raw, err := builder.Build(space)
	if err != nil {
		return nil, fmt.Errorf("space %q: building transaction set: %w", space, err)
	}

	batch := &engine.Batch{
		Space:         types.HashName(space),
		InitialRoot:   types.Hash(store.RootHash()),
		Raw:           raw,
		Timestamp:     timestamp,
		RenewalPeriod: int64(r.cfg.Registry.RenewalPeriod.Duration().Seconds()),
	}

	if store.Version() == 0 {
		// Nothing is committed yet; absence proofs are impossible and
		// unnecessary.
		batch.Bootstrap = true
		return &spaceBatch{space: space, store: store, batch: batch}, nil
	}

	reader, err := tx.NewReader(raw)
	if err != nil {
		return nil, err
	}
	entries, err := reader.Entries()
	if err != nil {
		return nil, err
	}

	witnesses := make([]*statestore.Proof, len(entries))
	seen := make(map[string]bool)
	for i, e := range entries {
		if seen[string(e.Key)] {
			continue // later touches read the in-batch overlay
		}
		proof, err := store.GetProof(e.Key)
		if err != nil {
			return nil, fmt.Errorf("space %q: witness for %s: %w", space, e.Key, err)
		}
		witnesses[i] = proof
		seen[string(e.Key)] = true
	}
	batch.Witnesses = witnesses

	return &spaceBatch{space: space, store: store, batch: batch}, nil
}

// prove obtains a verified receipt over the journals. Bootstrap-only
// attempts skip the prover and seal locally.
func (r *Registry) prove(ctx context.Context, batches []*spaceBatch, journals []types.Journal) (*prover.Receipt, bool, error) {
	allBootstrap := true
	engineBatches := make([]*engine.Batch, 0, len(batches))
	for _, sb := range batches {
		engineBatches = append(engineBatches, sb.batch)
		if !sb.batch.Bootstrap {
			allBootstrap = false
		}
	}

	var receipt *prover.Receipt
	proved := false
	if allBootstrap {
		receipt = prover.SealLocal(journals)
	} else {
		start := time.Now()
		var err error
		receipt, err = r.prov.Prove(ctx, engineBatches)
		if err != nil {
			return nil, false, err
		}
		r.metrics.ObserveProvingDuration(r.prov.Name(), time.Since(start))
		proved = true
	}

	if err := r.verifier.Verify(receipt, prover.ImageID()); err != nil {
		return nil, false, err
	}

	// The receipt must attest to exactly the journals computed here; a
	// prover returning different journals is as fatal as a bad seal.
	if !bytes.Equal(receipt.Journal, types.EncodeJournals(journals)) {
		return nil, false, fmt.Errorf("receipt journals differ from local execution: %w",
			types.ErrReceiptVerification)
	}
	return receipt, proved, nil
}

func (r *Registry) rollbackAll(batches []*spaceBatch) {
	for _, sb := range batches {
		sb.store.Rollback()
	}
}

// executor runs batches against the registry's own trees for in-process
// proving, leaving them rolled back.
type executor struct {
	r *Registry
}

// Execute implements prover.Executor.
func (e *executor) Execute(ctx context.Context, batches []*engine.Batch) ([]types.Journal, error) {
	journals := make([]types.Journal, 0, len(batches))
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		space, ok := e.r.spaceLabel(b.Space)
		if !ok {
			return nil, fmt.Errorf("unknown space %s", b.Space)
		}
		store, err := e.r.storeFor(space)
		if err != nil {
			return nil, err
		}

		journal, applyErr := engine.Apply(store, b)
		store.Rollback()
		if applyErr != nil {
			return nil, applyErr
		}
		journals = append(journals, *journal)
	}
	return journals, nil
}

func removeByKey(txs []*tx.Transaction, key types.Hash) []*tx.Transaction {
	out := txs[:0]
	for _, t := range txs {
		if !t.Key().Equal(key) {
			out = append(out, t)
		}
	}
	return out
}
