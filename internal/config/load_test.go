package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromYAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
env: production
database:
  driver: sqlite
  sqlite_path: /tmp/x.db
dispatch:
  concurrency: 3
  retry_backoff: 250ms
  timeout: 30s
providers:
  local:
    type: openai_http
    base_url: http://localhost:8000/
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ESSAYFEED_CONFIG_PATH", path)
	t.Setenv("DISPATCH_MAX_RETRIES", "1")
	t.Setenv("LOG_MODE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "production" {
		t.Fatalf("env=%q", cfg.Env)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLitePath != "/tmp/x.db" {
		t.Fatalf("database=%+v", cfg.Database)
	}
	if cfg.Dispatch.Concurrency != 3 || cfg.Dispatch.MaxRetries != 1 {
		t.Fatalf("dispatch=%+v", cfg.Dispatch)
	}
	if cfg.Dispatch.RetryBackoff.Duration != 250*time.Millisecond || cfg.Dispatch.Timeout.Duration != 30*time.Second {
		t.Fatalf("durations=%+v", cfg.Dispatch)
	}
	local, ok := cfg.Providers["local"]
	if !ok {
		t.Fatalf("local provider missing")
	}
	if local.Type != "oai_http" || local.BaseURL != "http://localhost:8000" || local.ChatCompletionsPath != "/v1/chat/completions" {
		t.Fatalf("local=%+v", local)
	}
	if _, ok := cfg.Providers["anthropic"]; !ok {
		t.Fatalf("default providers must survive a partial providers section")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(c *Config){
		"driver":      func(c *Config) { c.Database.Driver = "mysql" },
		"concurrency": func(c *Config) { c.Dispatch.Concurrency = 0 },
		"retries":     func(c *Config) { c.Dispatch.MaxRetries = -1 },
		"provider":    func(c *Config) { c.Providers["x"] = ProviderConfig{Type: "carrier-pigeon"} },
		"no_base_url": func(c *Config) { c.Providers["y"] = ProviderConfig{Type: "oai_http"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
