// Package logger wraps zap's sugared logger with key/value scrubbing. Provider credentials never
// reach the log, and essay text (prompts, completions, feedback) is clipped so a single request
// cannot flood it.
package logger

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

// New builds a logger for mode: "prod"/"production" writes JSON at info, "test" only warnings,
// anything else the colored console encoder at debug. LOG_LEVEL overrides the level outside tests.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(envLevel(zap.InfoLevel))
	case "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Level = zap.NewAtomicLevelAt(envLevel(zap.DebugLevel))
	}
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build %s logger: %w", mode, err)
	}
	return &Logger{SugaredLogger: z.Sugar()}, nil
}

func Nop() *Logger { return &Logger{SugaredLogger: zap.NewNop().Sugar()} }

func (l *Logger) Sync() { _ = l.SugaredLogger.Sync() }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.SugaredLogger.Debugw(msg, scrub(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.SugaredLogger.Infow(msg, scrub(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.SugaredLogger.Warnw(msg, scrub(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.SugaredLogger.Errorw(msg, scrub(kv)...) }
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.SugaredLogger.Fatalw(msg, scrub(kv)...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(scrub(kv)...)}
}

func envLevel(def zapcore.Level) zapcore.Level {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if raw == "" {
		return def
	}
	lvl, err := zapcore.ParseLevel(raw)
	if err != nil {
		return def
	}
	return lvl
}

const redacted = "[REDACTED]"

// policy is read from the environment once per process.
type policy struct {
	enabled   bool
	textLimit int
}

var (
	policyOnce sync.Once
	active     policy
)

func currentPolicy() policy {
	policyOnce.Do(func() {
		active = policy{enabled: true, textLimit: 240}
		switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			active.enabled = false
		}
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("LOG_TEXT_LIMIT"))); err == nil {
			active.textLimit = n
		}
	})
	return active
}

var (
	secretKeys = []string{"api_key", "apikey", "authorization", "token", "password", "secret", "credential", "ciphertext", "master_key"}
	textKeys   = []string{"prompt", "content", "completion", "feedback", "cot", "body"}
)

func scrub(kv []interface{}) []interface{} {
	p := currentPolicy()
	if len(kv) == 0 || !p.enabled {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		out[i+1] = p.value(normKey(out[i]), out[i+1])
	}
	return out
}

func (p policy) value(key string, val interface{}) interface{} {
	if key == "" {
		return val
	}
	if keyMatches(key, secretKeys) {
		return redacted
	}
	switch v := val.(type) {
	case string:
		if looksLikeCredential(v) {
			return redacted
		}
		if keyMatches(key, textKeys) {
			return clip(v, p.textLimit)
		}
		return v
	case map[string]interface{}:
		nested := make(map[string]interface{}, len(v))
		for k, inner := range v {
			nested[k] = p.value(normKey(k), inner)
		}
		return nested
	default:
		return val
	}
}

func normKey(k interface{}) string {
	s, ok := k.(string)
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func keyMatches(key string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(key, n) {
			return true
		}
	}
	return false
}

// clip keeps the first limit runes of s. A limit <= 0 disables clipping.
func clip(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return fmt.Sprintf("%s...(+%d chars)", string(runes[:limit]), len(runes)-limit)
}

// Provider keys ("sk-...", "sk-ant-...") and bearer headers tend to leak through error strings.
func looksLikeCredential(s string) bool {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "Bearer ") {
		return true
	}
	return strings.HasPrefix(s, "sk-") && len(s) > 20 && !strings.ContainsAny(s, " \n")
}
