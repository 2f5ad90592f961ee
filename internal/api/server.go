// Package api implements the HTTP layer for the Cognitive Guardian service.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nyashahama/cognitive-guardian-backend/internal/ai"
	"github.com/nyashahama/cognitive-guardian-backend/internal/db"
	"github.com/nyashahama/cognitive-guardian-backend/internal/pipeline"
	"github.com/nyashahama/cognitive-guardian-backend/internal/retrieval"
	"github.com/nyashahama/cognitive-guardian-backend/internal/scoring"
	"github.com/nyashahama/cognitive-guardian-backend/internal/worker"
)

// Config holds values read from the environment at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// HistoryLimit is how many evaluations are kept and listed per user.
	HistoryLimit int
}

// ─── DEPENDENCY INTERFACES ───────────────────────────────────────────────────

// Evaluator runs a decision through the scoring pipeline. *pipeline.Pipeline
// implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, d scoring.Decision) (pipeline.Result, error)
}

// Ranker returns videos for a search query. *retrieval.Engine implements it.
type Ranker interface {
	Rank(ctx context.Context, query string, maxResults int) []retrieval.RankedCandidate
}

// QueryRewriter turns free-form problem text into a search query. *ai.Client
// implements it.
type QueryRewriter interface {
	RewriteQuery(ctx context.Context, text string) string
}

// Analyzer gives a persona-toned reading of a situation. *ai.Client
// implements it; a nil result means no usable answer.
type Analyzer interface {
	CognitiveAnalyze(ctx context.Context, text string, persona ai.Persona, scenario ai.Scenario) *ai.Analysis
}

// HistoryStore reads and clears stored evaluations. *store.Store implements
// it. Writes go through the worker.
type HistoryStore interface {
	ListHistory(ctx context.Context, userID string, limit int) ([]db.EvaluationHistory, error)
	GetEvaluation(ctx context.Context, userID string, id uuid.UUID) (db.EvaluationHistory, error)
	ClearHistory(ctx context.Context, userID string) (int64, error)
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	evaluator Evaluator
	ranker    Ranker
	rewriter  QueryRewriter
	analyzer  Analyzer

	// history and worker are nil when no database is configured; the
	// history routes then answer 503 and evaluations are not recorded.
	history HistoryStore
	worker  worker.Enqueuer

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.Serve.
func NewServer(
	evaluator Evaluator,
	ranker Ranker,
	rewriter QueryRewriter,
	analyzer Analyzer,
	history HistoryStore,
	enqueuer worker.Enqueuer,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	s := &Server{
		evaluator: evaluator,
		ranker:    ranker,
		rewriter:  rewriter,
		analyzer:  analyzer,
		history:   history,
		worker:    enqueuer,
		cfg:       cfg,
		logger:    logger,
	}

	return s.routes()
}

const defaultHistoryLimit = 10

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/videos", s.handleVideos)
		r.Post("/recommend", s.handleRecommend)
		r.Post("/analyze", s.handleAnalyze)

		// History is keyed by an anonymous, client-chosen user id.
		r.Route("/history/{userID}", func(r chi.Router) {
			r.Use(s.requireHistory)
			r.Use(requireUserID)
			r.Get("/", s.handleListHistory)
			r.Delete("/", s.handleClearHistory)
			r.Get("/{evaluationID}", s.handleGetEvaluation)
		})
	})

	return r
}
