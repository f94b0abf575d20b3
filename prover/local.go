package prover

import (
	"context"
	"fmt"
	"time"

	"github.com/spacesprotocol/subspacer/engine"
	"github.com/spacesprotocol/subspacer/logging"
	"github.com/spacesprotocol/subspacer/types"
)

// LocalProver proves by executing the guest program in-process and sealing
// the resulting journal under the current image ID. It is the development
// backend: receipts are attestations by this process, not by a proving
// system, and carry no trust across a machine boundary.
type LocalProver struct {
	exec Executor
	log  *logging.Logger
}

// NewLocalProver creates a prover that executes batches with exec.
func NewLocalProver(exec Executor, log *logging.Logger) *LocalProver {
	return &LocalProver{exec: exec, log: log.WithComponent("prover")}
}

// Name implements Prover.
func (p *LocalProver) Name() string { return "local" }

// SealLocal seals an already-executed journal list under the current image
// ID without a proving round-trip. Bootstrap commits use it: every claim in
// their journals is checkable against an empty tree, so there is nothing
// for a prover to add.
func SealLocal(journals []types.Journal) *Receipt {
	receipt := &Receipt{
		ImageID: ImageID(),
		Journal: types.EncodeJournals(journals),
	}
	receipt.Seal = computeSeal(receipt.ImageID, receipt.Journal)
	return receipt
}

// Prove implements Prover.
func (p *LocalProver) Prove(ctx context.Context, batches []*engine.Batch) (*Receipt, error) {
	start := time.Now()

	journals, err := p.exec.Execute(ctx, batches)
	if err != nil {
		// Batches are pre-validated; execution failing here means the
		// inputs handed to the prover were wrong, not merely unlucky.
		return nil, fmt.Errorf("executing guest: %v: %w", err, types.ErrBatchRejected)
	}
	if len(journals) != len(batches) {
		return nil, fmt.Errorf("%d journals for %d batches: %w",
			len(journals), len(batches), types.ErrBatchRejected)
	}

	receipt := SealLocal(journals)

	p.log.Debug("proved batch set",
		logging.Backend(p.Name()),
		"batches", len(batches),
		logging.Took(time.Since(start)))
	return receipt, nil
}
