package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/spf13/cobra"

	"github.com/spacesprotocol/subspacer/keys"
	"github.com/spacesprotocol/subspacer/tx"
	"github.com/spacesprotocol/subspacer/types"
)

// Version information (set at build time)
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "subs",
	Short: "Subspacer client",
	Long: `Subs builds signed subspace transactions for a subspacer registry.

Transactions are emitted as JSON batch files; hand them to the registry
operator with "registry add". Names are written label@space, lowercase
ascii letters only.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(renewCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// emitBatch writes a one-transaction batch for the space. With an output
// path, an existing batch file is merged into instead of overwritten.
func emitBatch(space string, t *tx.Transaction, outPath string) error {
	bf := tx.NewBatchFile(space)

	if outPath != "" {
		if f, err := os.Open(outPath); err == nil {
			existing, rerr := tx.ReadBatchFile(f)
			f.Close()
			if rerr != nil {
				return fmt.Errorf("%s: %w", outPath, rerr)
			}
			if existing.Space != space {
				return fmt.Errorf("%s targets space %q, not %q", outPath, existing.Space, space)
			}
			bf = existing
		}
	}

	if err := bf.Add(t); err != nil {
		return err
	}

	if outPath == "" {
		return bf.Write(os.Stdout)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating batch file: %w", err)
	}
	defer f.Close()
	if err := bf.Write(f); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (%d transaction(s))\n", outPath, len(bf.Transactions))
	return nil
}

// resolveOwner turns a --to argument into an owner public key: either a
// hex-encoded compressed key or a path to a private key file.
func resolveOwner(arg string) (tx.HexBytes, error) {
	if b, err := hex.DecodeString(arg); err == nil && len(b) == types.OwnerKeySize {
		if _, err := keys.ParseOwnerKey(b); err != nil {
			return nil, err
		}
		return b, nil
	}
	priv, err := keys.Load(arg)
	if err != nil {
		return nil, fmt.Errorf("owner %q is neither a compressed public key nor a key file: %w", arg, err)
	}
	owner := keys.OwnerKey(priv)
	return owner[:], nil
}

// loadSigner loads the private key that authorizes an update.
func loadSigner(path string) (*secp256k1.PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("an owner key file is required (--key)")
	}
	return keys.Load(path)
}
