package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/cognitive-guardian-backend/internal/pipeline"
	"github.com/nyashahama/cognitive-guardian-backend/internal/scoring"
	"github.com/nyashahama/cognitive-guardian-backend/internal/store"
)

// ─── POST /api/evaluate ───────────────────────────────────────────────────────

type evaluateRequest struct {
	Text          string `json:"text"`
	Urgency       int    `json:"urgency"`
	Reversibility int    `json:"reversibility"`
	Domain        string `json:"domain"`

	// UserID is optional. When set, the evaluation is appended to that
	// user's history in the background.
	UserID string `json:"user_id,omitempty"`
}

type evaluateResponse struct {
	EvaluationID string `json:"evaluation_id"`
	pipeline.Result
	// HistoryQueued is true when the evaluation was handed to the history
	// writer. It does not mean the row is already stored.
	HistoryQueued bool `json:"history_queued"`
}

type validationErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems"`
}

// handleEvaluate runs one decision through the pipeline and returns the
// verdict with every intermediate stage output.
//
// Returns 422 with the full problem list when the decision is invalid.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decode(w, r, &req) {
		return
	}

	if req.UserID != "" && !validUserID(req.UserID) {
		respondErr(w, http.StatusBadRequest, "user_id must be 1-128 letters, digits, '-' or '_'")
		return
	}

	decision, err := scoring.NewDecision(req.Text, req.Urgency, req.Reversibility, req.Domain)
	if err != nil {
		respondValidationErr(w, err)
		return
	}

	result, err := s.evaluator.Evaluate(r.Context(), decision)
	if err != nil {
		var verr *scoring.ValidationError
		if errors.As(err, &verr) {
			respondValidationErr(w, err)
			return
		}
		s.respondInternalErr(w, r, fmt.Errorf("evaluate: %w", err))
		return
	}

	id := uuid.New()
	queued := false
	if req.UserID != "" && s.worker != nil {
		err := s.worker.Enqueue(r.Context(), store.SaveEvaluationParams{
			ID:            id,
			UserID:        req.UserID,
			CreatedAt:     time.Now(),
			DecisionText:  decision.Text(),
			Domain:        string(decision.Domain()),
			Verdict:       string(result.Verdict.Verdict),
			PressureScore: result.Profile.PressureScore,
			OverallRisk:   result.OverallRisk,
			Signals:       result.Profile.Signals,
			Keep:          s.cfg.HistoryLimit,
		})
		if err != nil {
			// Non-fatal: the caller still gets the verdict.
			s.logger.Warn("evaluate: history not queued",
				"evaluation_id", id,
				"error", err,
				logField(r),
			)
		} else {
			queued = true
		}
	}

	respond(w, http.StatusOK, evaluateResponse{
		EvaluationID:  id.String(),
		Result:        result,
		HistoryQueued: queued,
	})
}

// respondValidationErr writes a 422 listing each problem separately when err
// carries a *scoring.ValidationError.
func respondValidationErr(w http.ResponseWriter, err error) {
	body := validationErrorResponse{Error: err.Error(), Problems: []string{}}
	var verr *scoring.ValidationError
	if errors.As(err, &verr) {
		for _, p := range verr.Problems {
			body.Problems = append(body.Problems, p.Error())
		}
	}
	respond(w, http.StatusUnprocessableEntity, body)
}
