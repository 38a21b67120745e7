package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Forge.Token = "ghp_test"
	return cfg
}

func TestDefaultIsRunnable(t *testing.T) {
	cfg := Default()
	if !cfg.Pipeline.Enabled {
		t.Error("pipeline should default to enabled")
	}
	if cfg.Pipeline.Workers <= 0 || cfg.Pipeline.QueueSize <= 0 {
		t.Errorf("worker defaults must be positive: %+v", cfg.Pipeline)
	}
	if cfg.Reconcile.Interval < time.Minute {
		t.Errorf("reconcile interval %v is too aggressive for a default", cfg.Reconcile.Interval)
	}
	if cfg.Forge.RateLimit <= 0 {
		t.Errorf("rate limit default must be positive, got %d", cfg.Forge.RateLimit)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid sqlite", func(c *Config) {}, false},
		{"valid postgres", func(c *Config) {
			c.Signatures.Type = "postgres"
			c.Signatures.PostgresDSN = "postgres://localhost/cla"
		}, false},
		{"missing token", func(c *Config) { c.Forge.Token = "" }, true},
		{"zero rate limit", func(c *Config) { c.Forge.RateLimit = 0 }, true},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }, true},
		{"postgres without dsn", func(c *Config) {
			c.Signatures.Type = "postgres"
			c.Signatures.PostgresDSN = ""
		}, true},
		{"sqlite without path", func(c *Config) {
			c.Signatures.Type = "sqlite"
			c.Signatures.LocalPath = ""
		}, true},
		{"unknown store type", func(c *Config) { c.Signatures.Type = "dynamo" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
forge:
  token: ghp_fromfile
  rate_limit: 5
  repositories:
    - acme/widget
server:
  addr: ":9090"
  webhook_secret: hush
pipeline:
  enabled: false
  workers: 2
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Forge.Token != "ghp_fromfile" || cfg.Forge.RateLimit != 5 {
		t.Errorf("forge section not loaded: %+v", cfg.Forge)
	}
	if len(cfg.Forge.Repositories) != 1 || cfg.Forge.Repositories[0] != "acme/widget" {
		t.Errorf("repositories not loaded: %v", cfg.Forge.Repositories)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Pipeline.Enabled {
		t.Error("pipeline.enabled=false in file must override the default")
	}
	if cfg.Pipeline.QueueSize == 0 {
		t.Error("unset fields must keep their defaults")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CLAWARDEN_SERVER_ADDR", ":7777")
	t.Setenv("CLAWARDEN_FORGE_RATE_LIMIT", "99")
	t.Setenv("CLAWARDEN_PIPELINE_ENABLED", "false")
	t.Setenv("CLAWARDEN_SERVER_WEBHOOK_SECRET", "hush-from-env")

	// Environment beats both the file and the defaults.
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  addr: \":9090\"\nforge:\n  rate_limit: 5\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Errorf("addr = %q, want env override :7777", cfg.Server.Addr)
	}
	if cfg.Forge.RateLimit != 99 {
		t.Errorf("rate_limit = %d, want env override 99", cfg.Forge.RateLimit)
	}
	if cfg.Pipeline.Enabled {
		t.Error("pipeline.enabled env override ignored")
	}
	if cfg.Server.WebhookSecret != "hush-from-env" {
		t.Errorf("webhook_secret = %q, want env override", cfg.Server.WebhookSecret)
	}
}

func TestLoadTokenFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_fromenv")

	// A file without a token falls back to the environment.
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":8080\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Forge.Token != "ghp_fromenv" {
		t.Errorf("token = %q, want env fallback", cfg.Forge.Token)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load written defaults: %v", err)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Errorf("round-trip changed addr: %q", cfg.Server.Addr)
	}
}
