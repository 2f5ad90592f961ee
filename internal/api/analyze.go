package api

import (
	"net/http"
	"strings"

	"github.com/nyashahama/cognitive-guardian-backend/internal/ai"
)

// ─── POST /api/analyze ────────────────────────────────────────────────────────

type analyzeRequest struct {
	Text     string `json:"text"`
	Persona  string `json:"persona"`
	Scenario string `json:"scenario"`
}

// handleAnalyze returns the model's persona-toned reading of a situation,
// optionally under a what-if scenario.
//
// Returns 503 when no model is configured or the model gave no usable answer.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decode(w, r, &req) {
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		respondErr(w, http.StatusBadRequest, "text is required")
		return
	}
	persona, err := ai.ParsePersona(req.Persona)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "persona must be coach, therapist, strict_mentor or friend")
		return
	}
	scenario, err := ai.ParseScenario(req.Scenario)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "scenario must be continue, wait_3_months or earlier_3_months")
		return
	}

	if s.analyzer == nil {
		respondErr(w, http.StatusServiceUnavailable, "analysis is not available")
		return
	}
	analysis := s.analyzer.CognitiveAnalyze(r.Context(), text, persona, scenario)
	if analysis == nil {
		s.logger.Warn("analyze: no usable model answer", "persona", persona, "scenario", scenario)
		respondErr(w, http.StatusServiceUnavailable, "analysis is not available")
		return
	}

	respond(w, http.StatusOK, analysis)
}
