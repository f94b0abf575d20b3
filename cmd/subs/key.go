package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacesprotocol/subspacer/keys"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage owner keys",
}

var keyGenOut string

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a new owner key",
	Long: `Generate a secp256k1 owner key and save it to a credential file.

Without --out the file is named k-<pubkey prefix>.priv in the current
directory. The file holds the raw private key and is readable only by
the owner; keep it safe, it is the sole proof of ownership.

Example:
  subs key gen
  subs key gen --out alice.priv`,
	Args: cobra.NoArgs,
	RunE: runKeyGen,
}

var keyInspectCmd = &cobra.Command{
	Use:   "inspect <key-file>",
	Short: "Show the public key for a key file",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyInspect,
}

func init() {
	keyGenCmd.Flags().StringVar(&keyGenOut, "out", "", "key file path")
	keyCmd.AddCommand(keyGenCmd)
	keyCmd.AddCommand(keyInspectCmd)
}

func runKeyGen(cmd *cobra.Command, args []string) error {
	priv, err := keys.Generate()
	if err != nil {
		return err
	}
	owner := keys.OwnerKey(priv)
	pub := hex.EncodeToString(owner[:])

	path := keyGenOut
	if path == "" {
		path = fmt.Sprintf("k-%s.priv", pub[:8])
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}
	if err := keys.Save(path, priv); err != nil {
		return err
	}

	fmt.Printf("Key file:   %s\n", path)
	fmt.Printf("Public key: %s\n", pub)
	return nil
}

func runKeyInspect(cmd *cobra.Command, args []string) error {
	priv, err := keys.Load(args[0])
	if err != nil {
		return err
	}
	owner := keys.OwnerKey(priv)
	fmt.Printf("Public key: %s\n", hex.EncodeToString(owner[:]))
	return nil
}
