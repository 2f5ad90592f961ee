// Package ai is the gateway to remote text-completion models. Completer is
// the raw provider contract (OpenRouter/OpenAI-compatible or Anthropic);
// Client wraps one with memoisation, a per-call deadline and tolerant JSON
// extraction, and turns every failure into an absent result.
package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nyashahama/cognitive-guardian-backend/internal/cache"
)

// Completer is the interface every provider implements.
// Implementations must be safe to call concurrently.
type Completer interface {
	// Complete sends one system + user prompt pair and returns the model's
	// text. A non-nil error means no usable text was produced.
	Complete(ctx context.Context, system, user string) (string, error)
}

// Response is a successful completion. Text is the trimmed raw output; JSON
// holds the first object found in it, or nil when the output is plain text.
type Response struct {
	Text string
	JSON map[string]any
}

// DefaultTimeout bounds a single completion when the caller sets none.
const DefaultTimeout = 20 * time.Second

// Client is the fault-tolerant front for a Completer.
type Client struct {
	completer Completer
	cache     cache.Cache[string, string]
	timeout   time.Duration
	logger    *slog.Logger
}

// NewClient wraps completer. completer may be nil, in which case every call
// reports no result; responses is required (use cache.Noop to disable).
func NewClient(completer Completer, responses cache.Cache[string, string], timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		completer: completer,
		cache:     responses,
		timeout:   timeout,
		logger:    logger,
	}
}

// Call runs one completion. ok is false when no provider is configured, the
// call failed or timed out, or the model returned nothing. It never panics on
// provider errors and never returns them: they are logged here.
func (c *Client) Call(ctx context.Context, system, user string) (Response, bool) {
	if c == nil || c.completer == nil {
		return Response{}, false
	}

	key := cacheKey(system, user)
	if raw, ok := c.cache.Get(ctx, key); ok {
		return parseResponse(raw), true
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.completer.Complete(callCtx, system, user)
	if err != nil {
		c.logger.Warn("ai: completion failed",
			"error", err,
			"timed_out", errors.Is(err, context.DeadlineExceeded),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return Response{}, false
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		c.logger.Warn("ai: completion returned empty text")
		return Response{}, false
	}

	// Only successes are memoised so a transient outage is not pinned.
	c.cache.Add(ctx, key, raw)
	return parseResponse(raw), true
}

func parseResponse(raw string) Response {
	obj, _ := ExtractJSON(raw)
	return Response{Text: raw, JSON: obj}
}

// cacheKey hashes the prompt pair; the separator keeps ("ab","c") and
// ("a","bc") apart.
func cacheKey(system, user string) string {
	h := sha256.New()
	h.Write([]byte(system))
	h.Write([]byte{0})
	h.Write([]byte(user))
	return hex.EncodeToString(h.Sum(nil))
}

// ExtractJSON pulls the first JSON object out of model output that may be
// wrapped in markdown fences or surrounded by prose. It spans from the first
// '{' to the last '}' and reports false if that span is not a valid object.
func ExtractJSON(raw string) (map[string]any, bool) {
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")
	raw = strings.TrimSpace(raw)

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
