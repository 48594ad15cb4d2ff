package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/essayfeed-backend/internal/platform/envutil"
)

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	s := strings.TrimSpace(node.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if dd, err := time.ParseDuration(s); err == nil {
		d.Duration = dd
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or an int nanoseconds: %q", s)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func Default() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{Duration: 15 * time.Second},
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:        "postgres",
			Host:          "localhost",
			Port:          "5432",
			User:          "postgres",
			Name:          "essayfeed",
			SQLitePath:    "essayfeed.db",
			SlowThreshold: Duration{Duration: time.Second},
		},
		Redis: RedisConfig{Channel: "essayfeed:events"},
		Dispatch: DispatchConfig{
			Concurrency: 5,
			MaxRetries:  3,
			Timeout:     Duration{Duration: 180 * time.Second},
			RecordCalls: true,
		},
		Worker: WorkerConfig{
			Concurrency:  2,
			PollInterval: Duration{Duration: time.Second},
			MaxAttempts:  3,
			RetryDelay:   Duration{Duration: 30 * time.Second},
			StaleAfter:   Duration{Duration: 2 * time.Minute},
		},
		Vault: VaultConfig{EnvFallback: true},
		Providers: map[string]ProviderConfig{
			"openai":     {Type: "openai", BaseURL: "https://api.openai.com/v1"},
			"openrouter": {Type: "oai_http", BaseURL: "https://openrouter.ai/api/v1", ChatCompletionsPath: "/chat/completions"},
			"deepseek":   {Type: "oai_http", BaseURL: "https://api.deepseek.com", ChatCompletionsPath: "/chat/completions"},
			"anthropic":  {Type: "anthropic", BaseURL: "https://api.anthropic.com/v1", APIVersion: "2023-06-01"},
		},
		OTel:    OTelConfig{ServiceName: "essayfeed", SampleRatio: 0.1},
		Metrics: MetricsConfig{ScrapeInterval: Duration{Duration: 15 * time.Second}},
	}
}

// Load reads defaults, then the YAML file (ESSAYFEED_CONFIG_PATH or ./config/config.yaml),
// then .env, then environment overrides, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	cfgPath := strings.TrimSpace(os.Getenv("ESSAYFEED_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		if err := Parse(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse overlays YAML onto cfg. Provider entries merge with the defaults by name.
func Parse(b []byte, cfg *Config) error {
	defaults := cfg.Providers
	cfg.Providers = nil
	if err := yaml.Unmarshal(b, cfg); err != nil {
		cfg.Providers = defaults
		return err
	}
	merged := make(map[string]ProviderConfig, len(defaults)+len(cfg.Providers))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range cfg.Providers {
		merged[strings.ToLower(strings.TrimSpace(k))] = v
	}
	cfg.Providers = merged
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)

	if port := envutil.String("PORT", ""); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	if v := envutil.String("CORS_ORIGINS", ""); v != "" {
		cfg.HTTP.CORSOrigins = splitCSV(v)
	}

	cfg.Database.Driver = envutil.String("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envutil.String("DATABASE_URL", cfg.Database.DSN)
	cfg.Database.Host = envutil.String("POSTGRES_HOST", cfg.Database.Host)
	cfg.Database.Port = envutil.String("POSTGRES_PORT", cfg.Database.Port)
	cfg.Database.User = envutil.String("POSTGRES_USER", cfg.Database.User)
	cfg.Database.Password = envutil.String("POSTGRES_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = envutil.String("POSTGRES_NAME", cfg.Database.Name)
	cfg.Database.SQLitePath = envutil.String("SQLITE_PATH", cfg.Database.SQLitePath)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.Dispatch.Concurrency = envutil.Int("DISPATCH_CONCURRENCY", cfg.Dispatch.Concurrency)
	cfg.Dispatch.MaxRetries = envutil.Int("DISPATCH_MAX_RETRIES", cfg.Dispatch.MaxRetries)
	cfg.Dispatch.RetryBackoff.Duration = envutil.Duration("DISPATCH_RETRY_BACKOFF", cfg.Dispatch.RetryBackoff.Duration)
	cfg.Dispatch.SkipClientErrors = envutil.Bool("DISPATCH_SKIP_CLIENT_ERRORS", cfg.Dispatch.SkipClientErrors)
	cfg.Dispatch.Timeout.Duration = envutil.Duration("DISPATCH_TIMEOUT", cfg.Dispatch.Timeout.Duration)
	cfg.Dispatch.StreamTimeout.Duration = envutil.Duration("DISPATCH_STREAM_TIMEOUT", cfg.Dispatch.StreamTimeout.Duration)
	cfg.Dispatch.RecordCalls = envutil.Bool("DISPATCH_RECORD_CALLS", cfg.Dispatch.RecordCalls)

	cfg.Worker.Concurrency = envutil.Int("WORKER_CONCURRENCY", cfg.Worker.Concurrency)
	cfg.Worker.MaxAttempts = envutil.Int("WORKER_MAX_ATTEMPTS", cfg.Worker.MaxAttempts)
	cfg.Worker.RetryDelay.Duration = envutil.Duration("WORKER_RETRY_DELAY", cfg.Worker.RetryDelay.Duration)

	cfg.Vault.MasterKey = envutil.String("VAULT_MASTER_KEY", cfg.Vault.MasterKey)
	cfg.Vault.EnvFallback = envutil.Bool("VAULT_ENV_FALLBACK", cfg.Vault.EnvFallback)

	cfg.OTel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.OTel.Enabled)
	cfg.OTel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTel.Endpoint)
	cfg.OTel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OTel.Insecure)
	cfg.OTel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.OTel.ServiceName)
	if v := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); v != "" {
		cfg.OTel.Headers = splitKV(v)
	}
	if v := envutil.String("OTEL_SAMPLER_RATIO", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.OTel.SampleRatio = f
		}
	}

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)
}

func (c *Config) Validate() error {
	if c.Env == "" {
		c.Env = "development"
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		c.HTTP.Addr = ":8080"
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid database.driver=%q", c.Database.Driver)
	}

	if c.Dispatch.Concurrency < 1 {
		return errors.New("dispatch.concurrency must be >= 1")
	}
	if c.Dispatch.MaxRetries < 0 {
		return errors.New("dispatch.max_retries must be >= 0")
	}
	if c.Dispatch.RetryBackoff.Duration < 0 || c.Dispatch.Timeout.Duration < 0 || c.Dispatch.StreamTimeout.Duration < 0 {
		return errors.New("dispatch durations must be >= 0")
	}

	if c.Worker.Concurrency < 0 {
		return errors.New("worker.concurrency must be >= 0")
	}
	if c.Worker.PollInterval.Duration <= 0 {
		c.Worker.PollInterval = Duration{Duration: time.Second}
	}
	if c.Worker.MaxAttempts < 1 {
		c.Worker.MaxAttempts = 1
	}
	if c.Worker.StaleAfter.Duration <= 0 {
		c.Worker.StaleAfter = Duration{Duration: 2 * time.Minute}
	}

	for name, p := range c.Providers {
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		switch p.Type {
		case "oai_http", "openai_http":
			p.Type = "oai_http"
			if p.BaseURL == "" {
				return fmt.Errorf("provider %q (oai_http) missing base_url", name)
			}
			if strings.TrimSpace(p.ChatCompletionsPath) == "" {
				p.ChatCompletionsPath = "/v1/chat/completions"
			}
		case "anthropic":
			if p.BaseURL == "" {
				p.BaseURL = "https://api.anthropic.com/v1"
			}
			if p.APIVersion == "" {
				p.APIVersion = "2023-06-01"
			}
		case "openai":
		default:
			return fmt.Errorf("provider %q has invalid type %q", name, p.Type)
		}
		c.Providers[name] = p
	}

	if c.OTel.SampleRatio < 0 {
		c.OTel.SampleRatio = 0
	}
	if c.OTel.SampleRatio > 1 {
		c.OTel.SampleRatio = 1
	}
	return nil
}

// splitKV parses "k1=v1,k2=v2", skipping malformed pairs.
func splitKV(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range splitCSV(raw) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
