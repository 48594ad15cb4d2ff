package config

import "time"

type Duration struct {
	Duration time.Duration
}

type Config struct {
	Env       string                    `yaml:"env"`
	HTTP      HTTPConfig                `yaml:"http"`
	Database  DatabaseConfig            `yaml:"database"`
	Redis     RedisConfig               `yaml:"redis"`
	Dispatch  DispatchConfig            `yaml:"dispatch"`
	Worker    WorkerConfig              `yaml:"worker"`
	Vault     VaultConfig               `yaml:"vault"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	OTel      OTelConfig                `yaml:"otel"`
	Metrics   MetricsConfig             `yaml:"metrics"`
}

type HTTPConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// SQLitePath is used when Driver is "sqlite" and DSN is empty.
	SQLitePath    string   `yaml:"sqlite_path"`
	SlowThreshold Duration `yaml:"slow_threshold"`
}

type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

type DispatchConfig struct {
	// Concurrency caps in-flight requests in pooled mode.
	Concurrency int `yaml:"concurrency"`
	// MaxRetries is the number of additional attempts per request.
	MaxRetries   int      `yaml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff"`
	// SkipClientErrors stops retrying on 4xx responses (other than 408/429). Off by default.
	SkipClientErrors bool     `yaml:"skip_client_errors"`
	Timeout          Duration `yaml:"timeout"`
	StreamTimeout    Duration `yaml:"stream_timeout"`
	RecordCalls      bool     `yaml:"record_calls"`
}

type WorkerConfig struct {
	// Concurrency is the number of claim loops; 0 disables the worker.
	Concurrency  int      `yaml:"concurrency"`
	PollInterval Duration `yaml:"poll_interval"`
	MaxAttempts  int      `yaml:"max_attempts"`
	RetryDelay   Duration `yaml:"retry_delay"`
	// StaleAfter is how long a running job may go without a heartbeat before it is reclaimed.
	StaleAfter Duration `yaml:"stale_after"`
}

type VaultConfig struct {
	// MasterKey is a base64-encoded 32-byte key used to seal stored provider keys.
	MasterKey string `yaml:"master_key"`
	// EnvFallback resolves <PROVIDER>_API_KEY from the environment when no stored key exists.
	EnvFallback bool `yaml:"env_fallback"`
}

type ProviderConfig struct {
	// Type is "oai_http", "anthropic" or "openai".
	Type                string `yaml:"type"`
	BaseURL             string `yaml:"base_url"`
	ChatCompletionsPath string `yaml:"chat_completions_path"`
	APIVersion          string `yaml:"api_version"`
}

type OTelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	// Endpoint is the OTLP/HTTP collector; spans go to stdout when empty.
	Endpoint    string            `yaml:"endpoint"`
	Headers     map[string]string `yaml:"headers"`
	Insecure    bool              `yaml:"insecure"`
	SampleRatio float64           `yaml:"sample_ratio"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addr serves /metrics on a separate listener. Empty mounts it on the API router.
	Addr           string   `yaml:"addr"`
	ScrapeInterval Duration `yaml:"scrape_interval"`
}
