package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML layout of CONFIG_FILE. Every field is optional;
// only the ones present replace the defaults.
//
//	server:
//	  port: "8080"
//	  env: production
//	history:
//	  database_url: sqlite:///var/lib/guardian/history.db
//	  limit: 10
//	models:
//	  timeout: 20s
//	  openrouter:
//	    model: qwen/qwen-2.5-72b-instruct
type fileConfig struct {
	Server struct {
		Port     string `yaml:"port"`
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`

	History struct {
		DatabaseURL string `yaml:"database_url"`
		Limit       int    `yaml:"limit"`
	} `yaml:"history"`

	Cache struct {
		RedisURL string        `yaml:"redis_url"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Models struct {
		Timeout    time.Duration `yaml:"timeout"`
		CacheSize  int           `yaml:"cache_size"`
		OpenRouter struct {
			APIKey  string `yaml:"api_key"`
			Model   string `yaml:"model"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"openrouter"`
		Anthropic struct {
			APIKey string `yaml:"api_key"`
			Model  string `yaml:"model"`
		} `yaml:"anthropic"`
	} `yaml:"models"`

	Embedding struct {
		ModelDir       string `yaml:"model_dir"`
		ONNXRuntimeLib string `yaml:"onnxruntime_lib"`
		CacheSize      int    `yaml:"cache_size"`
	} `yaml:"embedding"`

	Retrieval struct {
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
	} `yaml:"retrieval"`

	Worker struct {
		Count      int           `yaml:"count"`
		JobTimeout time.Duration `yaml:"job_timeout"`
		MaxRetries int           `yaml:"max_retries"`
	} `yaml:"worker"`
}

// applyFile overlays the YAML file at path onto c. A missing file is an
// error because CONFIG_FILE was set explicitly.
func applyFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setString(&c.Port, f.Server.Port)
	setString(&c.Env, f.Server.Env)
	setString(&c.LogLevel, f.Server.LogLevel)
	setString(&c.DatabaseURL, f.History.DatabaseURL)
	setInt(&c.HistoryLimit, f.History.Limit)
	setString(&c.RedisURL, f.Cache.RedisURL)
	setDuration(&c.CacheTTL, f.Cache.TTL)
	setDuration(&c.ModelTimeout, f.Models.Timeout)
	setInt(&c.ModelCacheSize, f.Models.CacheSize)
	setString(&c.OpenRouterAPIKey, f.Models.OpenRouter.APIKey)
	setString(&c.OpenRouterModel, f.Models.OpenRouter.Model)
	setString(&c.OpenRouterBaseURL, f.Models.OpenRouter.BaseURL)
	setString(&c.AnthropicAPIKey, f.Models.Anthropic.APIKey)
	setString(&c.AnthropicModel, f.Models.Anthropic.Model)
	setString(&c.EmbedModelDir, f.Embedding.ModelDir)
	setString(&c.ONNXRuntimeLib, f.Embedding.ONNXRuntimeLib)
	setInt(&c.EmbedCacheSize, f.Embedding.CacheSize)
	setDuration(&c.FetchTimeout, f.Retrieval.FetchTimeout)
	setInt(&c.WorkerCount, f.Worker.Count)
	setDuration(&c.JobTimeout, f.Worker.JobTimeout)
	setInt(&c.MaxRetries, f.Worker.MaxRetries)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
