package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacesprotocol/subspacer/types"
)

var commitDryRun bool

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Prove and commit the pending set",
	Long: `Prove the staged state transition and commit the new roots.

All staged transactions are compiled into one batch per space, proved by
the configured backend, and committed atomically after the receipt
verifies. With --dry-run the transition is validated and reported but
nothing is proved or committed.

Example:
  registry commit
  registry commit --dry-run`,
	RunE: runCommit,
}

func init() {
	commitCmd.Flags().BoolVar(&commitDryRun, "dry-run", false, "validate and report without committing")
}

func runCommit(cmd *cobra.Command, args []string) error {
	r, _, err := openRegistry()
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := r.Commit(ctx, commitDryRun)
	if errors.Is(err, types.ErrNoPendingChanges) {
		fmt.Println("Nothing to commit")
		return nil
	}
	if err != nil {
		return err
	}

	for _, rej := range result.Rejected {
		fmt.Printf("Rejected %s in space %q: %s\n", rej.Subspace, rej.Space, rej.Reason)
	}
	if len(result.Journals) == 0 {
		fmt.Println("Nothing to commit")
		return nil
	}

	for i := range result.Journals {
		j := &result.Journals[i]
		fmt.Printf("Space %s\n", j.Space)
		fmt.Printf("  Initial root: %s\n", hex.EncodeToString(j.InitialRoot))
		fmt.Printf("  Final root:   %s\n", hex.EncodeToString(j.FinalRoot))
		fmt.Printf("  Registered:   %d\n", j.Registered)
		fmt.Printf("  Updated:      %d\n", j.Updated)
	}

	switch {
	case result.DryRun:
		fmt.Printf("Dry run: %d space(s) would commit cleanly\n", len(result.Journals))
	case result.Proved:
		fmt.Printf("Committed seq %d, proved by %s prover in %s\n",
			result.Seq, result.Prover, result.Took.Round(10*time.Millisecond))
	default:
		fmt.Printf("Committed seq %d (bootstrap, no proving required) in %s\n",
			result.Seq, result.Took.Round(10*time.Millisecond))
	}
	return nil
}
