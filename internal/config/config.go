// Package config loads and validates all settings at startup. Every other
// package receives typed values; nothing reads os.Getenv directly.
//
// Precedence, lowest first: built-in defaults, the YAML file named by
// CONFIG_FILE, a .env file in the working directory, real environment
// variables.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port     string // default "8080"
	Env      string // "development" | "staging" | "production"
	LogLevel string // "debug" | "info" | "warn" | "error"

	// ── History database ──────────────────────────────────────────────────────
	// Optional. postgres://… or sqlite://path. Empty disables history.
	DatabaseURL  string
	HistoryLimit int // evaluations kept per user, default 10

	// ── Shared cache ──────────────────────────────────────────────────────────
	// Optional. When set, model responses are also cached in Redis.
	RedisURL string
	CacheTTL time.Duration // default 24h

	// ── OpenRouter (primary model provider) ───────────────────────────────────
	OpenRouterAPIKey  string
	OpenRouterModel   string // default "qwen/qwen-2.5-72b-instruct"
	OpenRouterBaseURL string // default "https://openrouter.ai/api/v1"

	// ── Anthropic (fallback model provider) ───────────────────────────────────
	AnthropicAPIKey string
	AnthropicModel  string // default "claude-opus-4-6"

	// ── Model client ──────────────────────────────────────────────────────────
	ModelTimeout   time.Duration // default 20s
	ModelCacheSize int           // default 256

	// ── Embeddings / retrieval ────────────────────────────────────────────────
	EmbedModelDir  string // holds model.onnx and vocab.txt; empty disables video ranking
	ONNXRuntimeLib string // path to libonnxruntime; empty means probe
	EmbedCacheSize int    // default 4096
	FetchTimeout   time.Duration

	// ── Worker ────────────────────────────────────────────────────────────────
	WorkerCount int           // default 2
	JobTimeout  time.Duration // default 10s
	MaxRetries  int           // default 3
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:              "8080",
		Env:               "development",
		LogLevel:          "info",
		HistoryLimit:      10,
		CacheTTL:          24 * time.Hour,
		OpenRouterModel:   "qwen/qwen-2.5-72b-instruct",
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		AnthropicModel:    "claude-opus-4-6",
		ModelTimeout:      20 * time.Second,
		ModelCacheSize:    256,
		EmbedCacheSize:    4096,
		FetchTimeout:      8 * time.Second,
		WorkerCount:       2,
		JobTimeout:        10 * time.Second,
		MaxRetries:        3,
	}
}

// Load reads all settings and returns a validated Config.
// It automatically loads a .env file from the working directory when present,
// so plain `go run ./cmd/api` works in development without any wrapper.
// Real environment variables always take precedence over .env values.
func Load() (*Config, error) {
	loadDotEnv(".env")

	base := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(&base, path); err != nil {
			return nil, err
		}
	}

	c := &Config{
		Port:              getEnv("PORT", base.Port),
		Env:               getEnv("ENV", base.Env),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", base.LogLevel)),
		DatabaseURL:       getEnv("DATABASE_URL", base.DatabaseURL),
		HistoryLimit:      getEnvAsInt("HISTORY_LIMIT", base.HistoryLimit),
		RedisURL:          getEnv("REDIS_URL", base.RedisURL),
		CacheTTL:          getEnvAsDuration("CACHE_TTL", base.CacheTTL),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", base.OpenRouterAPIKey),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", base.OpenRouterModel),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", base.OpenRouterBaseURL),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", base.AnthropicAPIKey),
		AnthropicModel:    getEnv("ANTHROPIC_MODEL", base.AnthropicModel),
		ModelTimeout:      getEnvAsDuration("MODEL_TIMEOUT", base.ModelTimeout),
		ModelCacheSize:    getEnvAsInt("MODEL_CACHE_SIZE", base.ModelCacheSize),
		EmbedModelDir:     getEnv("EMBED_MODEL_DIR", base.EmbedModelDir),
		ONNXRuntimeLib:    getEnv("ONNXRUNTIME_LIB", base.ONNXRuntimeLib),
		EmbedCacheSize:    getEnvAsInt("EMBED_CACHE_SIZE", base.EmbedCacheSize),
		FetchTimeout:      getEnvAsDuration("FETCH_TIMEOUT", base.FetchTimeout),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", base.WorkerCount),
		JobTimeout:        getEnvAsDuration("JOB_TIMEOUT", base.JobTimeout),
		MaxRetries:        getEnvAsInt("MAX_RETRIES", base.MaxRetries),
	}

	return c, c.validate()
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasModelProvider reports whether any model API key is configured. Without
// one the service still runs; every model-backed feature degrades to its
// heuristic path.
func (c *Config) HasModelProvider() bool {
	return c.OpenRouterAPIKey != "" || c.AnthropicAPIKey != ""
}

func (c *Config) validate() error {
	var errs []error

	if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		errs = append(errs, fmt.Errorf("PORT=%q is not a valid port", c.Port))
	}

	switch c.Env {
	case "development", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("ENV=%q must be development, staging or production", c.Env))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL=%q must be debug, info, warn or error", c.LogLevel))
	}

	if c.DatabaseURL != "" && !hasAnyPrefix(c.DatabaseURL, "postgres://", "postgresql://", "sqlite:") {
		errs = append(errs, fmt.Errorf("DATABASE_URL must start with postgres:// or sqlite://"))
	}

	positive := map[string]int{
		"HISTORY_LIMIT":    c.HistoryLimit,
		"MODEL_CACHE_SIZE": c.ModelCacheSize,
		"EMBED_CACHE_SIZE": c.EmbedCacheSize,
		"WORKER_COUNT":     c.WorkerCount,
		"MAX_RETRIES":      c.MaxRetries,
	}
	for name, val := range positive {
		if val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, val))
		}
	}

	durations := map[string]time.Duration{
		"MODEL_TIMEOUT": c.ModelTimeout,
		"FETCH_TIMEOUT": c.FetchTimeout,
		"JOB_TIMEOUT":   c.JobTimeout,
	}
	for name, val := range durations {
		if val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, val))
		}
	}

	return errors.Join(errs...)
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// ─── DOT-ENV LOADER ──────────────────────────────────────────────────────────

// loadDotEnv reads key=value pairs from path and sets them in the environment,
// but only for keys that are not already set. This means real env vars (e.g.
// from Docker / Railway / your shell) always win over the file.
// Missing file, blank lines, and #-comments are all silently ignored.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // file absent, that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		// Strip optional surrounding quotes: KEY="value" or KEY='value'
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		// Only set if the key isn't already present in the environment.
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	// A plain integer is read as seconds.
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Second
	}
	// Fall back to Go duration syntax: "30s", "5m", "1h", etc.
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}
