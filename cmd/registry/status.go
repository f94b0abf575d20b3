package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [space]",
	Short: "Show committed and staged state",
	Long: `Show the registry status: commit height, staged transactions and
per-space committed roots. With a space argument, only that space is shown.

Example:
  registry status
  registry status example`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	r, _, err := openRegistry()
	if err != nil {
		return err
	}
	defer r.Close()

	st, err := r.Status()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		for _, sp := range st.Spaces {
			if sp.Space == args[0] {
				fmt.Printf("Space:         %s\n", sp.Space)
				fmt.Printf("  Version:     %d\n", sp.Version)
				fmt.Printf("  Root:        %s\n", hex.EncodeToString(sp.Root))
				fmt.Printf("  Staged:      %d (%d registrations, %d updates)\n",
					sp.Pending.Transactions, sp.Pending.Registrations, sp.Pending.Updates)
				return nil
			}
		}
		return fmt.Errorf("space %q has no committed state or staged transactions", args[0])
	}

	fmt.Printf("Commit height: %d\n", st.CommitHeight)
	fmt.Printf("Staged:        %d transaction(s) across %d space(s)\n",
		st.Pending.Transactions, st.Pending.Spaces)
	for _, sp := range st.Spaces {
		fmt.Printf("  %-16s version %-4d staged %-3d root %s\n",
			sp.Space, sp.Version, sp.Pending.Transactions, hex.EncodeToString(sp.Root))
	}
	return nil
}
