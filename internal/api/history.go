package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nyashahama/cognitive-guardian-backend/internal/db"
	"github.com/nyashahama/cognitive-guardian-backend/internal/store"
)

// historyItem flattens db.EvaluationHistory into a clean JSON structure.
type historyItem struct {
	EvaluationID  string          `json:"evaluation_id"`
	CreatedAt     string          `json:"created_at"`
	DecisionText  string          `json:"decision_text"`
	Domain        string          `json:"domain"`
	Verdict       string          `json:"verdict"`
	PressureScore int32           `json:"pressure_score"`
	OverallRisk   int32           `json:"overall_risk"`
	Signals       json.RawMessage `json:"signals,omitempty"`
}

func toHistoryItem(row db.EvaluationHistory) historyItem {
	item := historyItem{
		EvaluationID:  row.ID.String(),
		CreatedAt:     row.CreatedAt.UTC().Format(time.RFC3339),
		DecisionText:  row.DecisionText,
		Domain:        row.Domain,
		Verdict:       row.Verdict,
		PressureScore: row.PressureScore,
		OverallRisk:   row.OverallRisk,
	}
	if row.Signals.Valid {
		item.Signals = row.Signals.RawMessage
	}
	return item
}

// ─── GET /api/history/:userID ─────────────────────────────────────────────────

type historyResponse struct {
	UserID      string        `json:"user_id"`
	Evaluations []historyItem `json:"evaluations"`
}

// handleListHistory returns the user's stored evaluations, newest first.
// An optional ?limit= narrows the list; it cannot exceed the server's
// history limit.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	limit := s.cfg.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, s.cfg.HistoryLimit)
	}

	rows, err := s.history.ListHistory(r.Context(), userID, limit)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list history: %w", err))
		return
	}

	items := make([]historyItem, len(rows))
	for i, row := range rows {
		items[i] = toHistoryItem(row)
	}
	respond(w, http.StatusOK, historyResponse{UserID: userID, Evaluations: items})
}

// ─── GET /api/history/:userID/:evaluationID ───────────────────────────────────

// handleGetEvaluation returns one stored evaluation. Another user's
// evaluation id is reported as not found.
func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "evaluationID"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid evaluation_id")
		return
	}

	row, err := s.history.GetEvaluation(r.Context(), userIDFrom(r.Context()), id)
	if errors.Is(err, store.ErrNotFound) {
		respondErr(w, http.StatusNotFound, "evaluation not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get evaluation: %w", err))
		return
	}

	respond(w, http.StatusOK, toHistoryItem(row))
}

// ─── DELETE /api/history/:userID ──────────────────────────────────────────────

type clearHistoryResponse struct {
	UserID  string `json:"user_id"`
	Deleted int64  `json:"deleted"`
}

// handleClearHistory deletes every stored evaluation of the user. Clearing an
// empty history succeeds with deleted=0.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	n, err := s.history.ClearHistory(r.Context(), userID)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("clear history: %w", err))
		return
	}

	respond(w, http.StatusOK, clearHistoryResponse{UserID: userID, Deleted: n})
}
