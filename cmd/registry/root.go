package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacesprotocol/subspacer/config"
	"github.com/spacesprotocol/subspacer/logging"
	"github.com/spacesprotocol/subspacer/registry"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"

	// Global flags
	cfgFile string
	workDir string
)

var rootCmd = &cobra.Command{
	Use:   "registry",
	Short: "Subspacer registry operator",
	Long: `Registry operates a proved subspace registry.

It stages signed client transactions per space, and on commit proves the
whole state transition and persists the new merkle roots together with
the verified receipt.`,
	Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.toml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&workDir, "chdir", "C", "", "change working directory before running")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openRegistry loads configuration and wires up a registry instance.
func openRegistry() (*registry.Registry, *config.Config, error) {
	if workDir != "" {
		if err := os.Chdir(workDir); err != nil {
			return nil, nil, fmt.Errorf("changing directory: %w", err)
		}
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	r, err := registry.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr != "" {
		if h := r.MetricsHandler(); h != nil {
			go func() {
				if err := http.ListenAndServe(cfg.Metrics.ListenAddr, h); err != nil {
					log.Warn("metrics listener stopped", logging.Err(err))
				}
			}()
		}
	}
	return r, cfg, nil
}
