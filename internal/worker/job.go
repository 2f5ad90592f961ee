package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nyashahama/cognitive-guardian-backend/internal/db"
	"github.com/nyashahama/cognitive-guardian-backend/internal/store"
)

// Saver is the one store operation a Job needs. *store.Store satisfies it.
type Saver interface {
	SaveEvaluation(ctx context.Context, p store.SaveEvaluationParams) (db.EvaluationHistory, error)
}

// Job persists one finished evaluation into the user's history.
type Job struct {
	saver  Saver
	keep   int
	logger *slog.Logger
}

// NewJob constructs a Job. keep is the per-user history length applied to
// records that do not set their own.
func NewJob(saver Saver, keep int, logger *slog.Logger) *Job {
	if keep <= 0 {
		keep = store.DefaultHistoryLimit
	}
	return &Job{saver: saver, keep: keep, logger: logger}
}

// Run saves rec. Any error is returned to the Runner, which retries up to
// MaxRetries times before dropping the record.
func (j *Job) Run(ctx context.Context, rec store.SaveEvaluationParams) error {
	if rec.Keep <= 0 {
		rec.Keep = j.keep
	}

	row, err := j.saver.SaveEvaluation(ctx, rec)
	if err != nil {
		return fmt.Errorf("job: save evaluation: %w", err)
	}

	j.logger.Debug("job: evaluation saved",
		"evaluation_id", row.ID,
		"user_id", row.UserID,
		"verdict", row.Verdict,
	)
	return nil
}
