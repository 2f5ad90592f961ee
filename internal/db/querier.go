package db

import (
	"context"
)

type Querier interface {
	CountHistory(ctx context.Context, userID string) (int64, error)
	DeleteHistoryByUser(ctx context.Context, userID string) (int64, error)
	GetEvaluation(ctx context.Context, arg GetEvaluationParams) (EvaluationHistory, error)
	InsertEvaluation(ctx context.Context, arg InsertEvaluationParams) (EvaluationHistory, error)
	ListHistoryByUser(ctx context.Context, arg ListHistoryByUserParams) ([]EvaluationHistory, error)
	TrimHistory(ctx context.Context, arg TrimHistoryParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
