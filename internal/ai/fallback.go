package ai

import (
	"context"
	"fmt"
	"log/slog"
)

// fallbackCompleter wraps two Completer implementations. It calls the primary
// first; if that returns an error it logs the failure and tries the secondary.
type fallbackCompleter struct {
	primary   Completer
	secondary Completer
	logger    *slog.Logger
}

// NewFallbackCompleter returns a Completer that calls primary and, on
// failure, falls back to secondary. Either argument may be nil. If primary
// is nil it goes straight to secondary; if secondary is nil and primary
// fails, the primary error is returned wrapped, so errors.Is still matches it.
func NewFallbackCompleter(primary, secondary Completer, logger *slog.Logger) Completer {
	return &fallbackCompleter{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Complete tries the primary Completer. If it fails and a secondary is
// configured, it logs the primary error and tries the secondary.
func (f *fallbackCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if f.primary != nil {
		text, err := f.primary.Complete(ctx, system, user)
		if err == nil {
			return text, nil
		}
		f.logger.Warn("ai: primary completer failed, trying secondary", "error", err)
		if f.secondary == nil {
			return "", fmt.Errorf("ai: primary failed and no secondary configured: %w", err)
		}
	}
	if f.secondary == nil {
		return "", fmt.Errorf("ai: no completer configured")
	}

	return f.secondary.Complete(ctx, system, user)
}
