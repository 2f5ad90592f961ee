package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const evaluationColumns = `seq, id, user_id, created_at, decision_text, domain, verdict, pressure_score, overall_risk, signals`

func scanEvaluation(row interface{ Scan(...interface{}) error }) (EvaluationHistory, error) {
	var i EvaluationHistory
	err := row.Scan(
		&i.Seq,
		&i.ID,
		&i.UserID,
		&i.CreatedAt,
		&i.DecisionText,
		&i.Domain,
		&i.Verdict,
		&i.PressureScore,
		&i.OverallRisk,
		&i.Signals,
	)
	return i, err
}

const insertEvaluation = `-- name: InsertEvaluation :one
INSERT INTO evaluation_history (
    id, user_id, created_at, decision_text, domain, verdict, pressure_score, overall_risk, signals
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9
)
RETURNING ` + evaluationColumns

type InsertEvaluationParams struct {
	ID            uuid.UUID             `json:"id"`
	UserID        string                `json:"user_id"`
	CreatedAt     time.Time             `json:"created_at"`
	DecisionText  string                `json:"decision_text"`
	Domain        string                `json:"domain"`
	Verdict       string                `json:"verdict"`
	PressureScore int32                 `json:"pressure_score"`
	OverallRisk   int32                 `json:"overall_risk"`
	Signals       pqtype.NullRawMessage `json:"signals"`
}

func (q *Queries) InsertEvaluation(ctx context.Context, arg InsertEvaluationParams) (EvaluationHistory, error) {
	row := q.db.QueryRowContext(ctx, q.rebind(insertEvaluation),
		arg.ID,
		arg.UserID,
		arg.CreatedAt,
		arg.DecisionText,
		arg.Domain,
		arg.Verdict,
		arg.PressureScore,
		arg.OverallRisk,
		arg.Signals,
	)
	return scanEvaluation(row)
}

const getEvaluation = `-- name: GetEvaluation :one
SELECT ` + evaluationColumns + `
FROM evaluation_history
WHERE user_id = $1 AND id = $2`

type GetEvaluationParams struct {
	UserID string    `json:"user_id"`
	ID     uuid.UUID `json:"id"`
}

func (q *Queries) GetEvaluation(ctx context.Context, arg GetEvaluationParams) (EvaluationHistory, error) {
	row := q.db.QueryRowContext(ctx, q.rebind(getEvaluation), arg.UserID, arg.ID)
	return scanEvaluation(row)
}

const listHistoryByUser = `-- name: ListHistoryByUser :many
SELECT ` + evaluationColumns + `
FROM evaluation_history
WHERE user_id = $1
ORDER BY created_at DESC, seq DESC
LIMIT $2`

type ListHistoryByUserParams struct {
	UserID string `json:"user_id"`
	Limit  int32  `json:"limit"`
}

func (q *Queries) ListHistoryByUser(ctx context.Context, arg ListHistoryByUserParams) ([]EvaluationHistory, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(listHistoryByUser), arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []EvaluationHistory{}
	for rows.Next() {
		i, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const trimHistory = `-- name: TrimHistory :execrows
DELETE FROM evaluation_history
WHERE user_id = $1
  AND seq NOT IN (
    SELECT seq FROM evaluation_history
    WHERE user_id = $1
    ORDER BY created_at DESC, seq DESC
    LIMIT $2
  )`

type TrimHistoryParams struct {
	UserID string `json:"user_id"`
	Keep   int32  `json:"keep"`
}

func (q *Queries) TrimHistory(ctx context.Context, arg TrimHistoryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, q.rebind(trimHistory), arg.UserID, arg.Keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteHistoryByUser = `-- name: DeleteHistoryByUser :execrows
DELETE FROM evaluation_history
WHERE user_id = $1`

func (q *Queries) DeleteHistoryByUser(ctx context.Context, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, q.rebind(deleteHistoryByUser), userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countHistory = `-- name: CountHistory :one
SELECT COUNT(*) FROM evaluation_history
WHERE user_id = $1`

func (q *Queries) CountHistory(ctx context.Context, userID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, q.rebind(countHistory), userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
