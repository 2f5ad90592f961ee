package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type EvaluationHistory struct {
	Seq           int64                 `json:"-"`
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
