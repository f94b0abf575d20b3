package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacesprotocol/subspacer/tx"
)

var (
	transferKey string
	transferTo  string
	transferSeq uint64
	transferOut string
)

var transferCmd = &cobra.Command{
	Use:   "transfer <label@space>",
	Short: "Transfer a subspace to a new owner",
	Long: `Build a signed transfer handing a subspace to a new owner.

The transaction is signed by the current owner (--key) over the new
owner and the record's committed sequence number (--sequence, see
"registry status"). Transfers keep the expiry; they do not renew.

Example:
  subs transfer alpha@example --key alpha@example.priv \
    --to 02a1b2... --sequence 0`,
	Args: cobra.ExactArgs(1),
	RunE: runTransfer,
}

func init() {
	transferCmd.Flags().StringVarP(&transferKey, "key", "k", "", "current owner key file")
	transferCmd.Flags().StringVar(&transferTo, "to", "", "new owner: hex public key or key file")
	transferCmd.Flags().Uint64Var(&transferSeq, "sequence", 0, "record's committed sequence number")
	transferCmd.Flags().StringVarP(&transferOut, "out", "o", "", "batch file to write or merge into (default stdout)")
	transferCmd.Flags().SortFlags = false
}

func runTransfer(cmd *cobra.Command, args []string) error {
	label, space, err := tx.ParseName(args[0])
	if err != nil {
		return err
	}
	if transferTo == "" {
		return fmt.Errorf("a recipient is required (--to)")
	}

	priv, err := loadSigner(transferKey)
	if err != nil {
		return err
	}
	newOwner, err := resolveOwner(transferTo)
	if err != nil {
		return err
	}

	t := &tx.Transaction{Name: label, Owner: newOwner, Sequence: transferSeq}
	if err := t.Sign(space, priv); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Transferring %s@%s to %s (sequence %d)\n",
		label, space, hex.EncodeToString(newOwner), transferSeq)
	return emitBatch(space, t, transferOut)
}
