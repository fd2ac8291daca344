// Package config loads and validates the daemon's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Server contains the HTTP listen configuration.
type Server struct {
	ListenAddr   string `toml:"listen_addr"`
	MaxUploadMiB int64  `toml:"max_upload_mib"`
}

// Quota contains the credit ledger configuration. Secret may also come from
// the VERIMEDIA_QUOTA_SECRET environment variable, which takes precedence.
type Quota struct {
	Secret               string `toml:"secret"`
	GuestCredits         int    `toml:"guest_credits"`
	AuthenticatedCredits int    `toml:"authenticated_credits"`
}

// Pipeline contains orchestrator timing options.
type Pipeline struct {
	AnalyzerTimeoutSeconds int `toml:"analyzer_timeout_seconds"`
}

// Storage selects and configures the media blob backend.
type Storage struct {
	// Backend is "fs" or "minio". The minio backend falls back to the
	// filesystem store when the object store is unreachable.
	Backend string `toml:"backend"`
	Root    string `toml:"root"`
	Minio   Minio  `toml:"minio"`
}

// Minio contains object store connection settings.
type Minio struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Results selects and configures the job result backend.
type Results struct {
	// Backend is "memory", "sqlite", or "redis".
	Backend    string `toml:"backend"`
	TTLMinutes int    `toml:"ttl_minutes"`
	SQLitePath string `toml:"sqlite_path"`
	RedisURL   string `toml:"redis_url"`
}

// Config is the full daemon configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Quota    Quota    `toml:"quota"`
	Pipeline Pipeline `toml:"pipeline"`
	Storage  Storage  `toml:"storage"`
	Results  Results  `toml:"results"`
}

const (
	defaultListenAddr      = "127.0.0.1:8420"
	defaultMaxUploadMiB    = 50
	defaultAnalyzerTimeout = 30
	defaultStorageRoot     = "~/.local/share/verimedia/media"
	defaultSQLitePath      = "~/.local/share/verimedia/results.db"
	defaultRedisURL        = "redis://127.0.0.1:6379/0"
	defaultResultTTL       = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			ListenAddr:   defaultListenAddr,
			MaxUploadMiB: defaultMaxUploadMiB,
		},
		Pipeline: Pipeline{
			AnalyzerTimeoutSeconds: defaultAnalyzerTimeout,
		},
		Storage: Storage{
			Backend: "fs",
			Root:    defaultStorageRoot,
		},
		Results: Results{
			Backend:    "memory",
			TTLMinutes: defaultResultTTL,
			SQLitePath: defaultSQLitePath,
			RedisURL:   defaultRedisURL,
		},
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/verimedia/config.toml")
}

// Load parses and validates the configuration file at path. A missing file is
// not an error; defaults apply. Path fields come back expanded.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		path, err = expandPath(path)
		if err != nil {
			return nil, err
		}
	}

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open config: %w", err)
	}

	if secret := os.Getenv("VERIMEDIA_QUOTA_SECRET"); secret != "" {
		cfg.Quota.Secret = secret
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Storage.Root, err = expandPath(c.Storage.Root); err != nil {
		return err
	}
	if c.Results.SQLitePath, err = expandPath(c.Results.SQLitePath); err != nil {
		return err
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Quota.Secret == "" {
		return errors.New("quota.secret is required. Set VERIMEDIA_QUOTA_SECRET or add it to the config file")
	}
	if c.Quota.GuestCredits < 0 || c.Quota.AuthenticatedCredits < 0 {
		return errors.New("quota credits must not be negative")
	}
	if c.Server.MaxUploadMiB <= 0 {
		return errors.New("server.max_upload_mib must be positive")
	}
	if c.Pipeline.AnalyzerTimeoutSeconds < 0 {
		return errors.New("pipeline.analyzer_timeout_seconds must not be negative")
	}

	switch c.Storage.Backend {
	case "fs":
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return errors.New("storage.minio requires endpoint and bucket")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of fs, minio", c.Storage.Backend)
	}

	switch c.Results.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("results.backend %q is not one of memory, sqlite, redis", c.Results.Backend)
	}
	if c.Results.TTLMinutes < 0 {
		return errors.New("results.ttl_minutes must not be negative")
	}
	return nil
}

func expandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
