// Package config loads plugpep configuration from an optional TOML base
// file, an environment overlay, and PLUGPEP_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/plugpep/pkg/alphafold"
	"github.com/JaimeStill/plugpep/pkg/database"
	"github.com/JaimeStill/plugpep/pkg/storage"
	"github.com/JaimeStill/plugpep/pkg/uniprot"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvPlugpepEnv             = "PLUGPEP_ENV"
	EnvPlugpepShutdownTimeout = "PLUGPEP_SHUTDOWN_TIMEOUT"
	EnvPlugpepVersion         = "PLUGPEP_VERSION"
)

var databaseEnv = &database.Env{
	Enabled:         "PLUGPEP_DB_ENABLED",
	Host:            "PLUGPEP_DB_HOST",
	Port:            "PLUGPEP_DB_PORT",
	Name:            "PLUGPEP_DB_NAME",
	User:            "PLUGPEP_DB_USER",
	Password:        "PLUGPEP_DB_PASSWORD",
	SSLMode:         "PLUGPEP_DB_SSL_MODE",
	MaxOpenConns:    "PLUGPEP_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "PLUGPEP_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "PLUGPEP_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "PLUGPEP_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Enabled:          "PLUGPEP_STORAGE_ENABLED",
	ContainerName:    "PLUGPEP_STORAGE_CONTAINER_NAME",
	ConnectionString: "PLUGPEP_STORAGE_CONNECTION_STRING",
	MaxFileSize:      "PLUGPEP_STORAGE_MAX_FILE_SIZE",
}

var retrievalEnv = &alphafold.Env{
	BaseURL:      "PLUGPEP_RETRIEVAL_BASE_URL",
	APIKey:       "PLUGPEP_RETRIEVAL_API_KEY",
	ModelVersion: "PLUGPEP_RETRIEVAL_MODEL_VERSION",
	Timeout:      "PLUGPEP_RETRIEVAL_TIMEOUT",
}

var uniprotEnv = &uniprot.Env{
	BaseURL: "PLUGPEP_UNIPROT_BASE_URL",
	Timeout: "PLUGPEP_UNIPROT_TIMEOUT",
}

// Config is the root configuration for plugpep.
type Config struct {
	Logging         LoggingConfig    `toml:"logging"`
	Workflow        WorkflowConfig   `toml:"workflow"`
	Retrieval       alphafold.Config `toml:"retrieval"`
	UniProt         uniprot.Config   `toml:"uniprot"`
	Agent           AgentConfig      `toml:"agent"`
	Report          ReportConfig     `toml:"report"`
	State           StateConfig      `toml:"state"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	Metrics         MetricsConfig    `toml:"metrics"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the PLUGPEP_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvPlugpepEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config, applies any environment overlay found next to
// it, and finalizes all values. An empty path means config.toml in the
// working directory, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	base := path
	if base == "" {
		base = BaseConfigFile
	}

	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if path != "" {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if overlay := overlayPath(base); overlay != "" {
		loaded, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(loaded)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Logging.Merge(&overlay.Logging)
	c.Workflow.Merge(&overlay.Workflow)
	c.Retrieval.Merge(&overlay.Retrieval)
	c.UniProt.Merge(&overlay.UniProt)
	c.Agent.Merge(&overlay.Agent)
	c.Report.Merge(&overlay.Report)
	c.State.Merge(&overlay.State)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Metrics.Merge(&overlay.Metrics)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Workflow.Finalize(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if err := c.Retrieval.Finalize(retrievalEnv); err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	if err := c.UniProt.Finalize(uniprotEnv); err != nil {
		return fmt.Errorf("uniprot: %w", err)
	}
	if err := c.Agent.Finalize(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.State.Finalize(); err != nil {
		return fmt.Errorf("state: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if c.State.Postgres && !c.Database.Enabled {
		return fmt.Errorf("state: postgres mirror requires database.enabled")
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvPlugpepShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvPlugpepVersion); v != "" {
		c.Version = v
	}
	c.Report.loadEnv()
	c.Metrics.loadEnv()
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// overlayPath returns config.<PLUGPEP_ENV>.toml beside base when it exists.
func overlayPath(base string) string {
	env := os.Getenv(EnvPlugpepEnv)
	if env == "" {
		return ""
	}
	path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
