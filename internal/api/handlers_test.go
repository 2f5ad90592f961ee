package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/nyashahama/cognitive-guardian-backend/internal/ai"
	"github.com/nyashahama/cognitive-guardian-backend/internal/api"
	"github.com/nyashahama/cognitive-guardian-backend/internal/db"
	"github.com/nyashahama/cognitive-guardian-backend/internal/pipeline"
	"github.com/nyashahama/cognitive-guardian-backend/internal/retrieval"
	"github.com/nyashahama/cognitive-guardian-backend/internal/scoring"
	"github.com/nyashahama/cognitive-guardian-backend/internal/store"
	"github.com/nyashahama/cognitive-guardian-backend/internal/worker"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// failingEvaluator always returns err.
type failingEvaluator struct{ err error }

func (e failingEvaluator) Evaluate(context.Context, scoring.Decision) (pipeline.Result, error) {
	return pipeline.Result{}, e.err
}

// stubRanker records every query and returns one candidate per query.
type stubRanker struct {
	mu      sync.Mutex
	queries []string
	maxes   []int
}

func (s *stubRanker) Rank(_ context.Context, query string, maxResults int) []retrieval.RankedCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	s.maxes = append(s.maxes, maxResults)
	return []retrieval.RankedCandidate{{
		Candidate:    retrieval.Candidate{ID: "vid1", Title: "About " + query},
		MatchPercent: 80,
	}}
}

// stubRewriter prefixes the text so tests can tell it ran.
type stubRewriter struct{}

func (stubRewriter) RewriteQuery(_ context.Context, text string) string {
	return "rewritten " + strings.ToLower(text)
}

// stubAnalyzer returns result and records what it was asked.
type stubAnalyzer struct {
	mu        sync.Mutex
	result    *ai.Analysis
	texts     []string
	personas  []ai.Persona
	scenarios []ai.Scenario
}

func (a *stubAnalyzer) CognitiveAnalyze(_ context.Context, text string, persona ai.Persona, scenario ai.Scenario) *ai.Analysis {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
	a.personas = append(a.personas, persona)
	a.scenarios = append(a.scenarios, scenario)
	if a.result == nil {
		return nil
	}
	res := *a.result
	res.Persona, res.Scenario = persona, scenario
	return &res
}

// stubHistory is an in-memory HistoryStore.
type stubHistory struct {
	rows    map[string][]db.EvaluationHistory
	listErr error
	limits  []int
}

func newStubHistory() *stubHistory {
	return &stubHistory{rows: make(map[string][]db.EvaluationHistory)}
}

func (h *stubHistory) ListHistory(_ context.Context, userID string, limit int) ([]db.EvaluationHistory, error) {
	h.limits = append(h.limits, limit)
	if h.listErr != nil {
		return nil, h.listErr
	}
	rows := h.rows[userID]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]db.EvaluationHistory{}, rows...), nil
}

func (h *stubHistory) GetEvaluation(_ context.Context, userID string, id uuid.UUID) (db.EvaluationHistory, error) {
	for _, row := range h.rows[userID] {
		if row.ID == id {
			return row, nil
		}
	}
	return db.EvaluationHistory{}, store.ErrNotFound
}

func (h *stubHistory) ClearHistory(_ context.Context, userID string) (int64, error) {
	n := int64(len(h.rows[userID]))
	delete(h.rows, userID)
	return n, nil
}

// stubWorker records enqueued records.
type stubWorker struct {
	mu       sync.Mutex
	enqueued []store.SaveEvaluationParams
	err      error
}

func (w *stubWorker) Enqueue(_ context.Context, rec store.SaveEvaluationParams) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.enqueued = append(w.enqueued, rec)
	return nil
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testDeps struct {
	evaluator api.Evaluator
	ranker    *stubRanker
	analyzer  *stubAnalyzer
	history   *stubHistory
	worker    *stubWorker
	handler   http.Handler
}

type option func(*testDeps)

func withoutHistory() option {
	return func(d *testDeps) { d.history = nil; d.worker = nil }
}

func withoutAnalyzer() option {
	return func(d *testDeps) { d.analyzer = nil }
}

func withEvaluator(e api.Evaluator) option {
	return func(d *testDeps) { d.evaluator = e }
}

var sampleAnalysis = ai.Analysis{
	MoodLabel:     "Anxious",
	PressureScore: 70,
	RiskScore:     55,
	Advice:        "Book one mock interview this week.",
	Theme:         "stress",
}

func newTestServer(t *testing.T, opts ...option) *testDeps {
	t.Helper()

	deps := &testDeps{
		evaluator: pipeline.New(nil, discardLogger()),
		ranker:    &stubRanker{},
		analyzer:  &stubAnalyzer{result: &sampleAnalysis},
		history:   newStubHistory(),
		worker:    &stubWorker{},
	}
	for _, opt := range opts {
		opt(deps)
	}

	// Typed nils must not reach the interfaces.
	var history api.HistoryStore
	if deps.history != nil {
		history = deps.history
	}
	var analyzer api.Analyzer
	if deps.analyzer != nil {
		analyzer = deps.analyzer
	}
	var enqueuer worker.Enqueuer
	if deps.worker != nil {
		enqueuer = deps.worker
	}

	deps.handler = api.NewServer(
		deps.evaluator,
		deps.ranker,
		stubRewriter{},
		analyzer,
		history,
		enqueuer,
		api.Config{Env: "development", HistoryLimit: 10},
		discardLogger(),
	)
	return deps
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response body: %v (raw: %s)", err, rr.Body.String())
	}
}

func seedHistory(h *stubHistory, userID string, n int) []db.EvaluationHistory {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := make([]db.EvaluationHistory, n)
	for i := range n {
		rows[i] = db.EvaluationHistory{
			ID:            uuid.New(),
			UserID:        userID,
			CreatedAt:     base.Add(-time.Duration(i) * time.Hour),
			DecisionText:  "Should I change teams this quarter",
			Domain:        "career",
			Verdict:       string(scoring.VerdictCaution),
			PressureScore: 50,
			OverallRisk:   60,
			Signals: pqtype.NullRawMessage{
				RawMessage: json.RawMessage(`{"emotional_hits":1}`),
				Valid:      true,
			},
		}
	}
	h.rows[userID] = rows
	return rows
}

// ─── GET /healthz ─────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

// ─── POST /api/evaluate ───────────────────────────────────────────────────────

type evaluateBody struct {
	EvaluationID string `json:"evaluation_id"`
	Listener     struct {
		PressureScore int      `json:"pressure_score"`
		RiskFlags     []string `json:"risk_flags"`
	} `json:"listener"`
	CriticNotes []string `json:"critic_notes"`
	OverallRisk int      `json:"overall_risk"`
	Verdict     struct {
		Verdict         string          `json:"verdict"`
		Recommendations json.RawMessage `json:"recommendations"`
	} `json:"verdict"`
	HistoryQueued bool `json:"history_queued"`
}

func TestEvaluate_SafeDecision(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/evaluate", map[string]any{
		"text": "Should I repaint the spare room blue", "urgency": 1, "reversibility": 5, "domain": "personal",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp evaluateBody
	decodeJSON(t, rr, &resp)
	if _, err := uuid.Parse(resp.EvaluationID); err != nil {
		t.Errorf("evaluation_id %q is not a uuid", resp.EvaluationID)
	}
	if resp.Verdict.Verdict != string(scoring.VerdictSafe) {
		t.Errorf("verdict: got %q, want SAFE_TO_PROCEED", resp.Verdict.Verdict)
	}
	if resp.OverallRisk != 30 {
		t.Errorf("overall_risk: got %d, want 30", resp.OverallRisk)
	}
	if len(resp.CriticNotes) != 1 || resp.CriticNotes[0] != scoring.NoteNoMajorRisks {
		t.Errorf("critic_notes: got %v", resp.CriticNotes)
	}
	if resp.HistoryQueued {
		t.Error("no user_id given, nothing should be queued")
	}
	if len(deps.worker.enqueued) != 0 {
		t.Errorf("worker received %d records", len(deps.worker.enqueued))
	}
}

func TestEvaluate_SelfHarmBlocksWithBundle(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/evaluate", map[string]any{
		"text": "I want to end my life, nothing matters", "urgency": 2, "reversibility": 4, "domain": "health",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp evaluateBody
	decodeJSON(t, rr, &resp)
	if resp.Verdict.Verdict != string(scoring.VerdictBlock) {
		t.Errorf("verdict: got %q, want BLOCK", resp.Verdict.Verdict)
	}
	if len(resp.Verdict.Recommendations) == 0 || string(resp.Verdict.Recommendations) == "null" {
		t.Error("expected crisis recommendations in the verdict")
	}
	if len(resp.Listener.RiskFlags) != 1 || resp.Listener.RiskFlags[0] != scoring.FlagSelfHarm {
		t.Errorf("risk_flags: got %v", resp.Listener.RiskFlags)
	}
}

func TestEvaluate_InvalidDecisionReturns422WithProblems(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/evaluate", map[string]any{
		"text": "short", "urgency": 9, "reversibility": 3, "domain": "sports",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Error    string   `json:"error"`
		Problems []string `json:"problems"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Error == "" {
		t.Error("error should not be empty")
	}
	if len(resp.Problems) != 3 {
		t.Errorf("expected 3 problems, got %d: %v", len(resp.Problems), resp.Problems)
	}
}

func TestEvaluate_UnknownFieldsReturns400(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/evaluate", map[string]any{
		"text": "Should I repaint the spare room blue", "urgency": 1, "reversibility": 5,
		"domain": "personal", "mood": "fine",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}
}

func TestEvaluate_InvalidJSONReturns400(t *testing.T) {
	deps := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", bytes.NewBufferString(`{bad json`))
	rr := httptest.NewRecorder()
	deps.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestEvaluate_QueuesHistoryForUser(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/evaluate", map[string]any{
		"text": "Should I repaint the spare room blue", "urgency": 1, "reversibility": 5,
		"domain": "Personal", "user_id": "anon_42",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp evaluateBody
	decodeJSON(t, rr, &resp)
	if !resp.HistoryQueued {
		t.Error("expected history_queued=true")
	}
	if len(deps.worker.enqueued) != 1 {
		t.Fatalf("expected 1 queued record, got %d", len(deps.worker.enqueued))
	}

	rec := deps.worker.enqueued[0]
	if rec.ID.String() != resp.EvaluationID {
		t.Errorf("record id %s does not match response %s", rec.ID, resp.EvaluationID)
	}
	if rec.UserID != "anon_42" || rec.Domain != "personal" || rec.Keep != 10 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Verdict != string(scoring.VerdictSafe) || rec.OverallRisk != 30 || rec.PressureScore != 20 {
		t.Errorf("record does not carry the result: %+v", rec)
	}
}

func TestEvaluate_QueueFullStillReturnsVerdict(t *testing.T) {
	deps := newTestServer(t)
	deps.worker.err = worker.ErrQueueFull

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/evaluate", map[string]any{
		"text": "Should I repaint the spare room blue", "urgency": 1, "reversibility": 5,
		"domain": "personal", "user_id": "anon_42",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp evaluateBody
	decodeJSON(t, rr, &resp)
	if resp.HistoryQueued {
		t.Error("history_queued should be false when the queue rejects the record")
	}
}

func TestEvaluate_WithoutHistoryIgnoresUserID(t *testing.T) {
	deps := newTestServer(t, withoutHistory())
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/evaluate", map[string]any{
		"text": "Should I repaint the spare room blue", "urgency": 1, "reversibility": 5,
		"domain": "personal", "user_id": "anon_42",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestEvaluate_BadUserIDReturns400(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/evaluate", map[string]any{
		"text": "Should I repaint the spare room blue", "urgency": 1, "reversibility": 5,
		"domain": "personal", "user_id": "../etc/passwd",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestEvaluate_PipelineErrorReturns500(t *testing.T) {
	deps := newTestServer(t, withEvaluator(failingEvaluator{err: pipeline.ErrInvariantViolated}))
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/evaluate", map[string]any{
		"text": "Should I repaint the spare room blue", "urgency": 1, "reversibility": 5, "domain": "personal",
	})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "invariant") {
		t.Error("internal error details leaked to the client")
	}
}

// ─── POST /api/videos ─────────────────────────────────────────────────────────

func TestVideos_QueryUsedVerbatim(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/videos", map[string]any{
		"query": "box breathing", "max_results": 3,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(deps.ranker.queries) != 1 || deps.ranker.queries[0] != "box breathing" {
		t.Errorf("ranker queries: %v", deps.ranker.queries)
	}
	if deps.ranker.maxes[0] != 3 {
		t.Errorf("max_results: got %d, want 3", deps.ranker.maxes[0])
	}
}

func TestVideos_TextIsRewritten(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/videos", map[string]any{
		"text": "I Cannot Sleep",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Query  string `json:"query"`
		Videos []struct {
			ID           string `json:"id"`
			MatchPercent int    `json:"match_percent"`
		} `json:"videos"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Query != "rewritten i cannot sleep" {
		t.Errorf("query: got %q", resp.Query)
	}
	if len(resp.Videos) != 1 || resp.Videos[0].ID != "vid1" {
		t.Errorf("videos: got %+v", resp.Videos)
	}
	if deps.ranker.maxes[0] != 5 {
		t.Errorf("default max_results: got %d, want 5", deps.ranker.maxes[0])
	}
}

func TestVideos_MaxResultsClamped(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/videos", map[string]any{
		"query": "focus music", "max_results": 500,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if deps.ranker.maxes[0] != 20 {
		t.Errorf("max_results: got %d, want 20", deps.ranker.maxes[0])
	}
}

func TestVideos_HobbyQuery(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/videos", map[string]any{
		"query": "calm down", "hobby": "  Guitar ",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		HobbyQuery  string            `json:"hobby_query"`
		HobbyVideos []json.RawMessage `json:"hobby_videos"`
	}
	decodeJSON(t, rr, &resp)
	if resp.HobbyQuery != "calm down guitar" {
		t.Errorf("hobby_query: got %q", resp.HobbyQuery)
	}
	if len(resp.HobbyVideos) != 1 {
		t.Errorf("hobby_videos: got %d", len(resp.HobbyVideos))
	}
}

func TestVideos_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"neither query nor text", map[string]any{"hobby": "chess"}},
		{"blank query", map[string]any{"query": "   "}},
		{"negative max", map[string]any{"query": "sleep", "max_results": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestServer(t)
			rr := doRequest(t, deps.handler, http.MethodPost, "/api/videos", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

// ─── POST /api/recommend ──────────────────────────────────────────────────────

func TestRecommend_BundleAndVideos(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/recommend", map[string]any{
		"text": "I have insomnia and cannot sleep", "hobby": "Yoga",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Intent       string            `json:"intent"`
		PrimaryQuery string            `json:"youtube_primary_query"`
		HobbyQuery   string            `json:"youtube_hobby_query"`
		Videos       []json.RawMessage `json:"videos"`
		HobbyVideos  []json.RawMessage `json:"hobby_videos"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Intent != "sleep" {
		t.Errorf("intent: got %q, want sleep", resp.Intent)
	}
	if resp.HobbyQuery != resp.PrimaryQuery+" yoga" {
		t.Errorf("hobby query: got %q", resp.HobbyQuery)
	}
	if len(resp.Videos) != 1 || len(resp.HobbyVideos) != 1 {
		t.Errorf("videos=%d hobby_videos=%d", len(resp.Videos), len(resp.HobbyVideos))
	}
	if len(deps.ranker.queries) != 2 || deps.ranker.queries[0] != resp.PrimaryQuery {
		t.Errorf("ranker queries: %v", deps.ranker.queries)
	}
}

func TestRecommend_EmptyTextReturns400(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/recommend", map[string]any{"text": " "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

// ─── /api/analyze ─────────────────────────────────────────────────────────────

func TestAnalyze_ReturnsAnalysis(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/analyze", map[string]any{
		"text":     "  I haven't had an interview in years  ",
		"persona":  "Strict Mentor",
		"scenario": "wait_3_months",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		MoodLabel     string `json:"mood_label"`
		PressureScore int    `json:"pressure_score"`
		Theme         string `json:"theme"`
		Persona       string `json:"persona"`
		Scenario      string `json:"scenario"`
	}
	decodeJSON(t, rr, &resp)
	if resp.MoodLabel != "Anxious" || resp.PressureScore != 70 || resp.Theme != "stress" {
		t.Errorf("unexpected body: %+v", resp)
	}
	if resp.Persona != "strict_mentor" || resp.Scenario != "wait_3_months" {
		t.Errorf("persona/scenario: got %q %q", resp.Persona, resp.Scenario)
	}
	if got := deps.analyzer.texts; len(got) != 1 || got[0] != "I haven't had an interview in years" {
		t.Errorf("analyzer text: %q", got)
	}
}

func TestAnalyze_DefaultsToFriendWithoutScenario(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/analyze", map[string]any{"text": "tired today"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if deps.analyzer.personas[0] != ai.PersonaFriend || deps.analyzer.scenarios[0] != ai.ScenarioNone {
		t.Errorf("got persona %q scenario %q", deps.analyzer.personas[0], deps.analyzer.scenarios[0])
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty text", map[string]any{"text": "   "}},
		{"unknown persona", map[string]any{"text": "x", "persona": "guru"}},
		{"unknown scenario", map[string]any{"text": "x", "scenario": "next year"}},
		{"unknown field", map[string]any{"text": "x", "mood": "sad"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestServer(t)
			rr := doRequest(t, deps.handler, http.MethodPost, "/api/analyze", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if len(deps.analyzer.texts) != 0 {
				t.Error("analyzer should not be called for an invalid request")
			}
		})
	}
}

func TestAnalyze_UnavailableReturns503(t *testing.T) {
	t.Run("no analyzer", func(t *testing.T) {
		deps := newTestServer(t, withoutAnalyzer())
		rr := doRequest(t, deps.handler, http.MethodPost, "/api/analyze", map[string]any{"text": "x"})
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rr.Code)
		}
	})
	t.Run("no usable answer", func(t *testing.T) {
		deps := newTestServer(t)
		deps.analyzer.result = nil
		rr := doRequest(t, deps.handler, http.MethodPost, "/api/analyze", map[string]any{"text": "x"})
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rr.Code)
		}
	})
}

// ─── /api/history ─────────────────────────────────────────────────────────────

func TestHistory_DisabledReturns503(t *testing.T) {
	deps := newTestServer(t, withoutHistory())
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rr := doRequest(t, deps.handler, method, "/api/history/anon_1", nil)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", method, rr.Code)
		}
	}
}

func TestHistory_ListNewestFirst(t *testing.T) {
	deps := newTestServer(t)
	rows := seedHistory(deps.history, "anon_1", 3)

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/history/anon_1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		UserID      string `json:"user_id"`
		Evaluations []struct {
			EvaluationID string          `json:"evaluation_id"`
			CreatedAt    string          `json:"created_at"`
			Signals      json.RawMessage `json:"signals"`
		} `json:"evaluations"`
	}
	decodeJSON(t, rr, &resp)
	if resp.UserID != "anon_1" || len(resp.Evaluations) != 3 {
		t.Fatalf("got user=%q n=%d", resp.UserID, len(resp.Evaluations))
	}
	if resp.Evaluations[0].EvaluationID != rows[0].ID.String() {
		t.Error("first evaluation should be the newest")
	}
	if resp.Evaluations[0].CreatedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("created_at: got %q", resp.Evaluations[0].CreatedAt)
	}
	if string(resp.Evaluations[0].Signals) != `{"emotional_hits":1}` {
		t.Errorf("signals: got %s", resp.Evaluations[0].Signals)
	}
	if deps.history.limits[0] != 10 {
		t.Errorf("default limit: got %d, want 10", deps.history.limits[0])
	}
}

func TestHistory_UnknownUserIsEmptyArray(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/api/history/nobody", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"evaluations":[]`) {
		t.Errorf("expected empty array, got %s", rr.Body.String())
	}
}

func TestHistory_LimitParam(t *testing.T) {
	tests := []struct {
		query     string
		wantCode  int
		wantLimit int
	}{
		{"?limit=2", http.StatusOK, 2},
		{"?limit=99", http.StatusOK, 10},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			deps := newTestServer(t)
			seedHistory(deps.history, "anon_1", 5)
			rr := doRequest(t, deps.handler, http.MethodGet, "/api/history/anon_1"+tt.query, nil)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if tt.wantCode == http.StatusOK && deps.history.limits[0] != tt.wantLimit {
				t.Errorf("limit: got %d, want %d", deps.history.limits[0], tt.wantLimit)
			}
		})
	}
}

func TestHistory_ListErrorReturns500(t *testing.T) {
	deps := newTestServer(t)
	deps.history.listErr = errors.New("db connection lost")
	rr := doRequest(t, deps.handler, http.MethodGet, "/api/history/anon_1", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestHistory_InvalidUserIDReturns400(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/api/history/"+strings.Repeat("x", 129), nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHistory_GetEvaluation(t *testing.T) {
	deps := newTestServer(t)
	rows := seedHistory(deps.history, "anon_1", 2)

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/history/anon_1/"+rows[1].ID.String(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		EvaluationID string `json:"evaluation_id"`
		Verdict      string `json:"verdict"`
	}
	decodeJSON(t, rr, &resp)
	if resp.EvaluationID != rows[1].ID.String() || resp.Verdict != string(scoring.VerdictCaution) {
		t.Errorf("unexpected evaluation: %+v", resp)
	}
}

func TestHistory_GetEvaluationErrors(t *testing.T) {
	deps := newTestServer(t)
	rows := seedHistory(deps.history, "anon_1", 1)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"bad uuid", "/api/history/anon_1/not-a-uuid", http.StatusBadRequest},
		{"unknown id", "/api/history/anon_1/" + uuid.NewString(), http.StatusNotFound},
		{"other user's id", "/api/history/anon_2/" + rows[0].ID.String(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, deps.handler, http.MethodGet, tt.path, nil)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestHistory_Clear(t *testing.T) {
	deps := newTestServer(t)
	seedHistory(deps.history, "anon_1", 4)

	rr := doRequest(t, deps.handler, http.MethodDelete, "/api/history/anon_1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Deleted != 4 {
		t.Errorf("deleted: got %d, want 4", resp.Deleted)
	}

	rr = doRequest(t, deps.handler, http.MethodDelete, "/api/history/anon_1", nil)
	decodeJSON(t, rr, &resp)
	if rr.Code != http.StatusOK || resp.Deleted != 0 {
		t.Errorf("second clear: code=%d deleted=%d", rr.Code, resp.Deleted)
	}
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

func TestCORS_PreflightReturns204(t *testing.T) {
	deps := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/evaluate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	deps.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin: got %q", got)
	}
}
