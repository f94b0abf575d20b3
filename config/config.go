// Package config provides TOML configuration for a subspacer registry.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ProverBackend selects the proving execution strategy.
type ProverBackend string

// Prover backend constants.
const (
	// BackendLocal proves by executing the guest program in-process.
	BackendLocal ProverBackend = "local"

	// BackendRemote delegates proving to a remote proving service.
	BackendRemote ProverBackend = "remote"
)

// IsValid returns true if the backend is a known proving strategy.
func (b ProverBackend) IsValid() bool {
	return b == BackendLocal || b == BackendRemote
}

// Config is the main configuration for a subspacer registry.
type Config struct {
	Registry     RegistryConfig     `toml:"registry"`
	StateStore   StateStoreConfig   `toml:"statestore"`
	ReceiptStore ReceiptStoreConfig `toml:"receiptstore"`
	Pending      PendingConfig      `toml:"pending"`
	Prover       ProverConfig       `toml:"prover"`
	Metrics      MetricsConfig      `toml:"metrics"`
	Logging      LoggingConfig      `toml:"logging"`
}

// RegistryConfig contains registry identity and layout configuration.
type RegistryConfig struct {
	// DataDir is the directory holding state, receipts and the staging file.
	DataDir string `toml:"data_dir"`

	// RenewalPeriod is how far a registration or renewal pushes the expiry.
	RenewalPeriod Duration `toml:"renewal_period"`
}

// StateStoreConfig contains authenticated state storage configuration.
type StateStoreConfig struct {
	// Path is the directory path for state storage, one tree per space.
	Path string `toml:"path"`

	// CacheSize is the IAVL node cache size.
	CacheSize int `toml:"cache_size"`
}

// ReceiptStoreConfig contains receipt audit-trail storage configuration.
type ReceiptStoreConfig struct {
	// Backend is the storage backend to use ("leveldb" or "badgerdb").
	Backend string `toml:"backend"`

	// Path is the directory path for receipt storage.
	Path string `toml:"path"`
}

// PendingConfig contains pending-set configuration.
type PendingConfig struct {
	// MaxTxs is the maximum number of staged transactions across all spaces.
	MaxTxs int `toml:"max_txs"`

	// CacheSize is the size of the recently committed transaction hash cache
	// used to drop replays cheaply.
	CacheSize int `toml:"cache_size"`

	// StagingFile is the staging file name inside the data directory.
	StagingFile string `toml:"staging_file"`
}

// ProverConfig contains proving backend configuration.
type ProverConfig struct {
	// Backend selects local or remote proving.
	Backend ProverBackend `toml:"backend"`

	// Endpoint is the remote proving service URL. Remote backend only.
	Endpoint string `toml:"endpoint"`

	// APIKeyEnv names the environment variable holding the remote service
	// credential. The credential itself never appears in the config file.
	APIKeyEnv string `toml:"api_key_env"`

	// Timeout bounds a single remote proving request.
	Timeout Duration `toml:"timeout"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled determines whether metrics collection is active.
	Enabled bool `toml:"enabled"`

	// Namespace is the Prometheus metrics namespace prefix.
	Namespace string `toml:"namespace"`

	// ListenAddr is the address to serve metrics on (e.g., ":9090").
	ListenAddr string `toml:"listen_addr"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is the log output format ("text" or "json").
	Format string `toml:"format"`

	// Output is the log output destination ("stdout", "stderr", or a file path).
	Output string `toml:"output"`
}

// Duration is a wrapper around time.Duration for TOML unmarshaling.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			DataDir:       "data",
			RenewalPeriod: Duration(365 * 24 * time.Hour),
		},
		StateStore: StateStoreConfig{
			Path:      "data/state",
			CacheSize: 10000,
		},
		ReceiptStore: ReceiptStoreConfig{
			Backend: "leveldb",
			Path:    "data/receipts",
		},
		Pending: PendingConfig{
			MaxTxs:      5000,
			CacheSize:   10000,
			StagingFile: "uncommitted.json",
		},
		Prover: ProverConfig{
			Backend:   BackendLocal,
			Endpoint:  "",
			APIKeyEnv: "SUBSPACER_PROVER_KEY",
			Timeout:   Duration(10 * time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Namespace:  "subspacer",
			ListenAddr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadConfig loads configuration from a TOML file.
// Missing values are filled with defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a TOML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Registry.DataDir == "" {
		return errors.New("registry data_dir cannot be empty")
	}
	if c.Registry.RenewalPeriod <= 0 {
		return errors.New("registry renewal_period must be positive")
	}
	if c.StateStore.Path == "" {
		return errors.New("statestore path cannot be empty")
	}
	if c.StateStore.CacheSize < 0 {
		return errors.New("statestore cache_size cannot be negative")
	}
	if c.ReceiptStore.Backend != "leveldb" && c.ReceiptStore.Backend != "badgerdb" {
		return fmt.Errorf("unknown receiptstore backend: %q", c.ReceiptStore.Backend)
	}
	if c.ReceiptStore.Path == "" {
		return errors.New("receiptstore path cannot be empty")
	}
	if c.Pending.MaxTxs <= 0 {
		return errors.New("pending max_txs must be positive")
	}
	if c.Pending.StagingFile == "" {
		return errors.New("pending staging_file cannot be empty")
	}
	if !c.Prover.Backend.IsValid() {
		return fmt.Errorf("unknown prover backend: %q", c.Prover.Backend)
	}
	if c.Prover.Backend == BackendRemote {
		if c.Prover.Endpoint == "" {
			return errors.New("remote prover requires an endpoint")
		}
		if c.Prover.Timeout <= 0 {
			return errors.New("remote prover requires a positive timeout")
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", c.Logging.Format)
	}
	return nil
}
