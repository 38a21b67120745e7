package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all service configuration.
type Config struct {
	// Forge API access
	Forge ForgeConfig `yaml:"forge" mapstructure:"forge"`

	// Webhook HTTP server
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Evaluation pipeline
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`

	// Periodic open-PR reconciliation
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`

	// Signature store
	Signatures SignaturesConfig `yaml:"signatures" mapstructure:"signatures"`

	// Delivery dedup / hook handle cache
	Deliveries DeliveriesConfig `yaml:"deliveries" mapstructure:"deliveries"`

	// Audit log
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Agreement presentation
	Agreements AgreementsConfig `yaml:"agreements" mapstructure:"agreements"`
}

type ForgeConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	RateLimit int    `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	// Repositories watched by reconciliation, "owner/name". Empty means
	// every repository visible to the credential.
	Repositories []string `yaml:"repositories" mapstructure:"repositories"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr" mapstructure:"addr"`
	WebhookSecret string `yaml:"webhook_secret" mapstructure:"webhook_secret"`
	// PublicURL is the externally reachable base URL registered as the
	// webhook target, e.g. https://cla.example.com
	PublicURL string `yaml:"public_url" mapstructure:"public_url"`
}

type PipelineConfig struct {
	// Enabled gates the whole evaluation pipeline. Passed explicitly into
	// the scheduler and workers, never read from process-global state.
	Enabled   bool `yaml:"enabled" mapstructure:"enabled"`
	Workers   int  `yaml:"workers" mapstructure:"workers"`
	QueueSize int  `yaml:"queue_size" mapstructure:"queue_size"`
}

type ReconcileConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

type SignaturesConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type DeliveriesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

type AuditConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	MaxSize    int64  `yaml:"max_size" mapstructure:"max_size"` // bytes
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

type AgreementsConfig struct {
	// SigningURL is the page contributors are sent to; it is included in
	// failure status descriptions and opened by `clawarden agreements open`.
	SigningURL string `yaml:"signing_url" mapstructure:"signing_url"`
}

// Default returns default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Forge: ForgeConfig{
			RateLimit: 10,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Pipeline: PipelineConfig{
			Enabled:   true,
			Workers:   8,
			QueueSize: 256,
		},
		Reconcile: ReconcileConfig{
			Interval: 15 * time.Minute,
		},
		Signatures: SignaturesConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".clawarden", "signatures.db"),
		},
		Deliveries: DeliveriesConfig{
			Path: filepath.Join(homeDir, ".clawarden", "deliveries.db"),
		},
		Audit: AuditConfig{
			File:       filepath.Join(homeDir, ".clawarden", "audit.log"),
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 3,
		},
	}
}

// Load reads configuration from the given file (or the default search path),
// with CLAWARDEN_* environment variables taking precedence.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".clawarden")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".clawarden"))
		}
	}

	// Every key is registered as a default so AutomaticEnv can resolve it;
	// the replacer maps nested keys onto CLAWARDEN_SECTION_KEY variables.
	cfg := Default()
	v.SetDefault("forge.token", cfg.Forge.Token)
	v.SetDefault("forge.rate_limit", cfg.Forge.RateLimit)
	v.SetDefault("forge.repositories", cfg.Forge.Repositories)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.webhook_secret", cfg.Server.WebhookSecret)
	v.SetDefault("server.public_url", cfg.Server.PublicURL)
	v.SetDefault("pipeline.enabled", cfg.Pipeline.Enabled)
	v.SetDefault("pipeline.workers", cfg.Pipeline.Workers)
	v.SetDefault("pipeline.queue_size", cfg.Pipeline.QueueSize)
	v.SetDefault("reconcile.interval", cfg.Reconcile.Interval)
	v.SetDefault("signatures.type", cfg.Signatures.Type)
	v.SetDefault("signatures.postgres_dsn", cfg.Signatures.PostgresDSN)
	v.SetDefault("signatures.local_path", cfg.Signatures.LocalPath)
	v.SetDefault("deliveries.path", cfg.Deliveries.Path)
	v.SetDefault("audit.file", cfg.Audit.File)
	v.SetDefault("audit.max_size", cfg.Audit.MaxSize)
	v.SetDefault("audit.max_backups", cfg.Audit.MaxBackups)
	v.SetDefault("agreements.signing_url", cfg.Agreements.SigningURL)

	v.SetEnvPrefix("CLAWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file is fine; defaults plus env apply.
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Token may come from env or the OS keychain instead of the file.
	if cfg.Forge.Token == "" {
		cfg.Forge.Token = os.Getenv("GITHUB_TOKEN")
	}

	return cfg, nil
}

// Validate checks settings required to run the pipeline.
func (c *Config) Validate() error {
	if c.Forge.Token == "" {
		return fmt.Errorf("forge token not configured (set forge.token, GITHUB_TOKEN, or run 'clawarden token set')")
	}
	if c.Forge.RateLimit <= 0 {
		return fmt.Errorf("forge.rate_limit must be positive")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive")
	}
	switch c.Signatures.Type {
	case "postgres":
		if c.Signatures.PostgresDSN == "" {
			return fmt.Errorf("signatures.postgres_dsn required for postgres store")
		}
	case "sqlite":
		if c.Signatures.LocalPath == "" {
			return fmt.Errorf("signatures.local_path required for sqlite store")
		}
	default:
		return fmt.Errorf("unknown signatures.type %q", c.Signatures.Type)
	}
	return nil
}

// WriteDefault writes a commented starter config to the given path.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	out, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	header := []byte("# clawarden configuration\n# Tokens and the webhook secret may also come from the environment:\n#   GITHUB_TOKEN, CLAWARDEN_SERVER_WEBHOOK_SECRET\n")
	return os.WriteFile(path, append(header, out...), 0644)
}
