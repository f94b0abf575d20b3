package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacesprotocol/subspacer/keys"
	"github.com/spacesprotocol/subspacer/tx"
)

var (
	createKey string
	createOut string
)

var createCmd = &cobra.Command{
	Use:   "create <label@space>",
	Short: "Register a new subspace",
	Long: `Build a registration transaction for a new subspace.

Registrations carry no signature; the first valid registration for a
name wins. Without --key a fresh owner key is generated and saved next
to the batch as <label>@<space>.priv.

Example:
  subs create alpha@example
  subs create alpha@example --key alice.priv --out batch.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createKey, "key", "k", "", "owner key file (generated when omitted)")
	createCmd.Flags().StringVarP(&createOut, "out", "o", "", "batch file to write or merge into (default stdout)")
	createCmd.Flags().SortFlags = false
}

func runCreate(cmd *cobra.Command, args []string) error {
	label, space, err := tx.ParseName(args[0])
	if err != nil {
		return err
	}

	keyPath := createKey
	if keyPath == "" {
		keyPath = fmt.Sprintf("%s@%s.priv", label, space)
		if _, err := os.Stat(keyPath); err == nil {
			return fmt.Errorf("%s already exists; pass it with --key to reuse it", keyPath)
		}
		priv, err := keys.Generate()
		if err != nil {
			return err
		}
		if err := keys.Save(keyPath, priv); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Generated owner key %s\n", keyPath)
	}

	priv, err := keys.Load(keyPath)
	if err != nil {
		return err
	}
	owner := keys.OwnerKey(priv)

	t := &tx.Transaction{Name: label, Owner: owner[:]}
	fmt.Fprintf(os.Stderr, "Registering %s@%s to %s\n", label, space, hex.EncodeToString(owner[:]))
	return emitBatch(space, t, createOut)
}
