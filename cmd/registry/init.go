package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spacesprotocol/subspacer/config"
)

var (
	initDataDir  string
	initOverride bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a registry",
	Long: `Initialize a registry working directory.

This command creates:
  - config.toml: Registry configuration
  - data/: Data directory for state, receipts and staged transactions

Example:
  registry init --data-dir /var/lib/subspacer`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDataDir, "data-dir", ".", "directory for configuration and data")
	initCmd.Flags().BoolVar(&initOverride, "force", false, "override existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir := initDataDir
	if dataDir == "" {
		dataDir = "."
	}

	configPath := filepath.Join(dataDir, "config.toml")
	if _, err := os.Stat(configPath); err == nil && !initOverride {
		return fmt.Errorf("config.toml already exists; use --force to override")
	}

	cfg := config.DefaultConfig()
	cfg.Registry.DataDir = filepath.Join(dataDir, "data")
	cfg.StateStore.Path = filepath.Join(dataDir, "data", "state")
	cfg.ReceiptStore.Path = filepath.Join(dataDir, "data", "receipts")

	dirs := []string{
		dataDir,
		cfg.Registry.DataDir,
		cfg.StateStore.Path,
		cfg.ReceiptStore.Path,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("Initialized subspacer registry\n")
	fmt.Printf("  Config:    %s\n", configPath)
	fmt.Printf("  Data dir:  %s\n", cfg.Registry.DataDir)
	fmt.Printf("  Prover:    %s\n", cfg.Prover.Backend)
	return nil
}
