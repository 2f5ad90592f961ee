// Package app assembles the service's long-lived components from a Config.
// Both binaries (the HTTP server and the operator CLI) build through here so
// they evaluate and rank exactly the same way.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nyashahama/cognitive-guardian-backend/internal/ai"
	"github.com/nyashahama/cognitive-guardian-backend/internal/cache"
	"github.com/nyashahama/cognitive-guardian-backend/internal/config"
	"github.com/nyashahama/cognitive-guardian-backend/internal/embed"
	"github.com/nyashahama/cognitive-guardian-backend/internal/pipeline"
	"github.com/nyashahama/cognitive-guardian-backend/internal/retrieval"
)

// Components are the request-independent services shared by every handler.
type Components struct {
	Model    *ai.Client
	Pipeline *pipeline.Pipeline
	Engine   *retrieval.Engine

	embedder *embed.Lazy
	redis    *redis.Client
}

// NewLogger returns a JSON logger in production and a text logger otherwise.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Build wires the model client, the scoring pipeline and the retrieval
// engine. Nothing here is required: without provider keys the model client
// reports no results, without REDIS_URL caches stay in process, and without
// EMBED_MODEL_DIR video ranking returns empty lists.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	c := &Components{}

	// ── Shared cache (optional) ───────────────────────────────────────────────
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		c.redis = client
		logger.Info("cache: redis connected")
	}

	// ── Model client ──────────────────────────────────────────────────────────
	// OpenRouter is primary. Anthropic is the fallback when its key is also
	// set. Either alone works; with neither every model feature degrades.
	var primary, secondary ai.Completer
	if cfg.OpenRouterAPIKey != "" {
		primary = ai.NewOpenAIClient(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
	}
	if cfg.AnthropicAPIKey != "" {
		secondary = ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, "")
	}
	var completer ai.Completer
	switch {
	case primary != nil && secondary != nil:
		completer = ai.NewFallbackCompleter(primary, secondary, logger)
		logger.Info("ai: using OpenRouter with Anthropic fallback")
	case primary != nil:
		completer = primary
		logger.Info("ai: using OpenRouter only")
	case secondary != nil:
		completer = secondary
		logger.Info("ai: using Anthropic only")
	default:
		logger.Warn("ai: no provider configured; semantic tagging, query rewrite and relevance checks are off")
	}

	responses, err := newTiered[string](cfg.ModelCacheSize, c.redis, "guardian:llm:", cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Model = ai.NewClient(completer, responses, cfg.ModelTimeout, logger)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	var tagger pipeline.SemanticTagger
	if completer != nil {
		tagger = c.Model
	}
	c.Pipeline = pipeline.New(tagger, logger)

	// ── Embeddings + retrieval ────────────────────────────────────────────────
	onnxCfg := embed.ONNXConfig{ModelDir: cfg.EmbedModelDir, LibraryPath: cfg.ONNXRuntimeLib}
	c.embedder = embed.NewLazy(func() (embed.Embedder, error) {
		m, err := embed.LoadONNX(onnxCfg)
		if err != nil {
			logger.Error("embed: model unavailable; video ranking disabled", "error", err)
			return nil, err
		}
		logger.Info("embed: model loaded", "dir", onnxCfg.ModelDir)
		return m, nil
	})
	if cfg.EmbedModelDir == "" {
		logger.Warn("embed: EMBED_MODEL_DIR not set; video ranking returns no results")
	}

	vectors, err := newTiered[[]float32](cfg.EmbedCacheSize, c.redis, "guardian:vec:", cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	var verifier retrieval.Verifier
	if completer != nil {
		verifier = c.Model
	}
	c.Engine = retrieval.NewEngine(
		retrieval.NewYouTubeSource("", cfg.FetchTimeout),
		c.embedder,
		vectors,
		verifier,
		logger,
	)

	return c, nil
}

// newTiered returns an in-process LRU, backed by Redis under prefix when a
// client is available.
func newTiered[V any](size int, client *redis.Client, prefix string, cfg *config.Config, logger *slog.Logger) (cache.Cache[string, V], error) {
	local, err := cache.NewLRU[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if client == nil {
		return local, nil
	}
	return cache.NewTiered[string, V](local, cache.NewRedis[V](client, prefix, cfg.CacheTTL, logger)), nil
}

// Close releases the embedding model and the Redis connection.
func (c *Components) Close() error {
	var errs []error
	if c.embedder != nil {
		errs = append(errs, c.embedder.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	return errors.Join(errs...)
}
