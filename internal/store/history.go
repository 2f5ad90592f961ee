package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/nyashahama/cognitive-guardian-backend/internal/db"
)

// DefaultHistoryLimit is how many evaluations are kept per user when the
// caller does not say.
const DefaultHistoryLimit = 10

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// SaveEvaluationParams is one finished evaluation to record.
type SaveEvaluationParams struct {
	ID            uuid.UUID
	UserID        string
	CreatedAt     time.Time
	DecisionText  string
	Domain        string
	Verdict       string
	PressureScore int
	OverallRisk   int
	// Signals is the listener's category → hits map, stored as JSON.
	Signals map[string]int
	// Keep is how many of the user's newest rows survive the save. <= 0 means
	// DefaultHistoryLimit.
	Keep int
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrNotFound is returned when a requested evaluation does not exist for the
// given user.
var ErrNotFound = errors.New("store: not found")

// ErrMissingUser is returned when a write names no user.
var ErrMissingUser = errors.New("store: user id is required")

// ─── METHODS ─────────────────────────────────────────────────────────────────

// SaveEvaluation inserts the evaluation and trims the user's history to the
// newest p.Keep rows in one transaction, so a reader never sees more than
// Keep rows for a user.
func (s *Store) SaveEvaluation(ctx context.Context, p SaveEvaluationParams) (db.EvaluationHistory, error) {
	if p.UserID == "" {
		return db.EvaluationHistory{}, ErrMissingUser
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Keep <= 0 {
		p.Keep = DefaultHistoryLimit
	}

	var signals pqtype.NullRawMessage
	if p.Signals != nil {
		raw, err := json.Marshal(p.Signals)
		if err != nil {
			return db.EvaluationHistory{}, fmt.Errorf("SaveEvaluation: marshal signals: %w", err)
		}
		signals = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	var saved db.EvaluationHistory
	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		row, err := q.InsertEvaluation(ctx, db.InsertEvaluationParams{
			ID:            p.ID,
			UserID:        p.UserID,
			CreatedAt:     p.CreatedAt.UTC().Truncate(time.Microsecond),
			DecisionText:  p.DecisionText,
			Domain:        p.Domain,
			Verdict:       p.Verdict,
			PressureScore: int32(p.PressureScore),
			OverallRisk:   int32(p.OverallRisk),
			Signals:       signals,
		})
		if err != nil {
			return fmt.Errorf("SaveEvaluation: insert: %w", err)
		}

		if _, err := q.TrimHistory(ctx, db.TrimHistoryParams{
			UserID: p.UserID,
			Keep:   int32(p.Keep),
		}); err != nil {
			return fmt.Errorf("SaveEvaluation: trim: %w", err)
		}

		saved = row
		return nil
	})
	if err != nil {
		return db.EvaluationHistory{}, err
	}
	return saved, nil
}

// ListHistory returns up to limit of the user's evaluations, newest first.
// An unknown user has an empty, non-nil history.
func (s *Store) ListHistory(ctx context.Context, userID string, limit int) ([]db.EvaluationHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.q.ListHistoryByUser(ctx, db.ListHistoryByUserParams{
		UserID: userID,
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("ListHistory: %w", err)
	}
	return rows, nil
}

// GetEvaluation returns one of the user's evaluations, or ErrNotFound.
func (s *Store) GetEvaluation(ctx context.Context, userID string, id uuid.UUID) (db.EvaluationHistory, error) {
	row, err := s.q.GetEvaluation(ctx, db.GetEvaluationParams{UserID: userID, ID: id})
	if errors.Is(err, sql.ErrNoRows) {
		return db.EvaluationHistory{}, ErrNotFound
	}
	if err != nil {
		return db.EvaluationHistory{}, fmt.Errorf("GetEvaluation: %w", err)
	}
	return row, nil
}

// ClearHistory deletes every evaluation of the user and reports how many
// rows went. Clearing an empty history is not an error.
func (s *Store) ClearHistory(ctx context.Context, userID string) (int64, error) {
	n, err := s.q.DeleteHistoryByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("ClearHistory: %w", err)
	}
	return n, nil
}
