package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/selq/internal/selection"
)

// Backend names accepted in config and on the command line.
const (
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// DefaultDatabase is the SQLite file used when nothing else is configured.
const DefaultDatabase = "selq.db"

// Config is the optional YAML configuration file:
//
//	backend: sqlite
//	database: ./albums.db
//	cache_size: 256
//	collection: albums
type Config struct {
	Backend    string `yaml:"backend"`
	Database   string `yaml:"database"`
	CacheSize  int    `yaml:"cache_size"`
	Collection string `yaml:"collection"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendSQLite,
		Database:  DefaultDatabase,
		CacheSize: selection.DefaultCacheSize,
	}
}

// LoadConfig reads a config file. Omitted keys take their defaults; the
// default database applies only to the sqlite backend. Unknown keys are
// rejected.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Backend == "" {
		cfg.Backend = BackendSQLite
	}
	if cfg.Database == "" && cfg.Backend == BackendSQLite {
		cfg.Database = DefaultDatabase
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = selection.DefaultCacheSize
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks backend and cache size.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendBadger:
	case BackendPostgres:
		if c.Database == "" {
			return fmt.Errorf("backend postgres needs a database DSN")
		}
	default:
		return fmt.Errorf("unknown backend %q (want sqlite, badger or postgres)", c.Backend)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}
	return nil
}

// resolveConfig loads the config file, if any, and applies flag
// overrides on top. Flags win over the file.
func resolveConfig(opts *RootOptions, cmd *cobra.Command) (Config, error) {
	cfg := DefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := LoadConfig(opts.ConfigPath)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = opts.Backend
		if !flags.Changed("db") && cfg.Backend != BackendSQLite && cfg.Database == DefaultDatabase {
			// The default SQLite path means nothing to another backend.
			cfg.Database = ""
		}
	}
	if flags.Changed("db") {
		cfg.Database = opts.Database
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
