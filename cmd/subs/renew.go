package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacesprotocol/subspacer/keys"
	"github.com/spacesprotocol/subspacer/tx"
)

var (
	renewKey string
	renewSeq uint64
	renewOut string
)

var renewCmd = &cobra.Command{
	Use:   "renew <label@space>",
	Short: "Renew a subspace before it expires",
	Long: `Build a signed renewal extending a subspace's expiry.

A renewal is an update that keeps the current owner: the owner signs a
transfer to themselves over the record's committed sequence number
(--sequence, see "registry status"), which restarts the renewal period
at the next commit.

Example:
  subs renew alpha@example --key alpha@example.priv --sequence 2`,
	Args: cobra.ExactArgs(1),
	RunE: runRenew,
}

func init() {
	renewCmd.Flags().StringVarP(&renewKey, "key", "k", "", "owner key file")
	renewCmd.Flags().Uint64Var(&renewSeq, "sequence", 0, "record's committed sequence number")
	renewCmd.Flags().StringVarP(&renewOut, "out", "o", "", "batch file to write or merge into (default stdout)")
	renewCmd.Flags().SortFlags = false
}

func runRenew(cmd *cobra.Command, args []string) error {
	label, space, err := tx.ParseName(args[0])
	if err != nil {
		return err
	}

	priv, err := loadSigner(renewKey)
	if err != nil {
		return err
	}
	owner := keys.OwnerKey(priv)

	t := &tx.Transaction{Name: label, Owner: owner[:], Sequence: renewSeq}
	if err := t.Sign(space, priv); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Renewing %s@%s (sequence %d)\n", label, space, renewSeq)
	return emitBatch(space, t, renewOut)
}
