// Package prover provides the proof orchestration capabilities: proving a
// batch execution and verifying the resulting receipt.
//
// Two interchangeable strategies are supported, selected by configuration
// and invisible to the engine: local in-process proving and delegation to
// a remote proving service.
package prover

import (
	"context"

	"github.com/spacesprotocol/subspacer/engine"
	"github.com/spacesprotocol/subspacer/types"
)

// guestVersion identifies the exact guest program logic a receipt attests
// to. It must change whenever the engine's semantics change.
const guestVersion = "subspacer-guest-v0"

// ImageID returns the program identity receipts are bound to.
func ImageID() types.Hash {
	return types.HashBytes([]byte(guestVersion))
}

// Prover produces a receipt attesting that executing the guest program on
// the given batches yields the embedded journal.
//
// Proving never discovers validity: batches are validated locally before
// a prover sees them, so a proving-time rejection signals an orchestrator
// bug, not a client error.
type Prover interface {
	// Name identifies the proving strategy for operator reporting.
	Name() string

	// Prove proves the execution of the guest program over the batches.
	// Resource or connectivity failures return types.ErrProvingFailed and
	// may be retried; rejection of the batch itself returns
	// types.ErrBatchRejected.
	Prove(ctx context.Context, batches []*engine.Batch) (*Receipt, error)
}

// Verifier checks a receipt against an expected program identity.
// A verified receipt is the only basis for trusting a journal.
type Verifier interface {
	// Verify returns types.ErrReceiptVerification unless the receipt is
	// authentic and bound to the expected image ID.
	Verify(r *Receipt, imageID types.Hash) error
}

// Executor runs the guest program over proof-carrying batches. The
// orchestrator supplies an executor bound to its state trees; executing
// must leave the trees exactly as they were.
type Executor interface {
	Execute(ctx context.Context, batches []*engine.Batch) ([]types.Journal, error)
}
