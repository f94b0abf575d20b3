package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, BackendLocal, cfg.Prover.Backend)
	require.Equal(t, "leveldb", cfg.ReceiptStore.Backend)
	require.Equal(t, 365*24*time.Hour, cfg.Registry.RenewalPeriod.Duration())
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads overrides", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		data := `
[registry]
data_dir = "/var/lib/subspacer"
renewal_period = "720h"

[prover]
backend = "remote"
endpoint = "https://prover.example.com"
timeout = "5m"

[logging]
level = "debug"
format = "json"
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, "/var/lib/subspacer", cfg.Registry.DataDir)
		require.Equal(t, 720*time.Hour, cfg.Registry.RenewalPeriod.Duration())
		require.Equal(t, BackendRemote, cfg.Prover.Backend)
		require.Equal(t, "https://prover.example.com", cfg.Prover.Endpoint)
		require.Equal(t, 5*time.Minute, cfg.Prover.Timeout.Duration())
		require.Equal(t, "debug", cfg.Logging.Level)
		// Untouched values keep defaults.
		require.Equal(t, 5000, cfg.Pending.MaxTxs)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		require.Error(t, err)
	})

	t.Run("rejects invalid backend", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("[prover]\nbackend = \"gpu\"\n"), 0644))

		_, err := LoadConfig(path)
		require.Error(t, err)
		require.Contains(t, err.Error(), "prover backend")
	})

	t.Run("remote requires endpoint", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("[prover]\nbackend = \"remote\"\n"), 0644))

		_, err := LoadConfig(path)
		require.Error(t, err)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.Registry.DataDir = "custom"
	cfg.Metrics.Enabled = true
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	require.Equal(t, 90*time.Second, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1m30s", string(text))

	require.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}
