package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacesprotocol/subspacer/registry"
	"github.com/spacesprotocol/subspacer/tx"
)

var addCmd = &cobra.Command{
	Use:   "add [batch-file...]",
	Short: "Stage client batch files",
	Long: `Stage transactions from client batch files into the pending set.

Each file is a JSON batch produced by the subs CLI. With no arguments the
batch is read from stdin. Staged transactions survive restarts and ride
the next commit.

Example:
  registry add batch.json
  subs create alpha@example | registry add`,
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	r, _, err := openRegistry()
	if err != nil {
		return err
	}
	defer r.Close()

	if len(args) == 0 {
		return stageBatch(r, cmd.InOrStdin())
	}
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening batch file: %w", err)
		}
		err = stageBatch(r, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func stageBatch(r *registry.Registry, in io.Reader) error {
	bf, err := tx.ReadBatchFile(in)
	if err != nil {
		return err
	}
	if err := r.AddBatch(bf.Space, bf.Builder); err != nil {
		return err
	}

	reg, upd := bf.Stats()
	fmt.Printf("Staged %d transaction(s) for space %q (%d registrations, %d updates)\n",
		reg+upd, bf.Space, reg, upd)
	return nil
}
