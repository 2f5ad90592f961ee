package api

import (
	"net/http"
	"strings"

	"github.com/nyashahama/cognitive-guardian-backend/internal/ai"
	"github.com/nyashahama/cognitive-guardian-backend/internal/recommend"
	"github.com/nyashahama/cognitive-guardian-backend/internal/retrieval"
)

const (
	defaultMaxResults = 5
	maxMaxResults     = 20
)

// ─── POST /api/videos ─────────────────────────────────────────────────────────

type videosRequest struct {
	// Query is used verbatim when set. Otherwise Text is rewritten into a
	// search query first.
	Query      string `json:"query"`
	Text       string `json:"text"`
	Hobby      string `json:"hobby"`
	MaxResults int    `json:"max_results"`
}

type videosResponse struct {
	Query       string                      `json:"query"`
	Videos      []retrieval.RankedCandidate `json:"videos"`
	HobbyQuery  string                      `json:"hobby_query,omitempty"`
	HobbyVideos []retrieval.RankedCandidate `json:"hobby_videos,omitempty"`
}

// handleVideos ranks videos for a query or for problem text. The result list
// is empty, never null, when nothing could be ranked.
func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	var req videosRequest
	if !decode(w, r, &req) {
		return
	}

	query := strings.TrimSpace(req.Query)
	text := strings.TrimSpace(req.Text)
	if query == "" && text == "" {
		respondErr(w, http.StatusBadRequest, "query or text is required")
		return
	}
	if req.MaxResults < 0 {
		respondErr(w, http.StatusBadRequest, "max_results must not be negative")
		return
	}
	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}
	maxResults = min(maxResults, maxMaxResults)

	if query == "" {
		query = s.rewrite(r, text)
	}

	resp := videosResponse{
		Query:  query,
		Videos: s.rank(r, query, maxResults),
	}
	if hobby := strings.ToLower(strings.TrimSpace(req.Hobby)); hobby != "" {
		resp.HobbyQuery = query + " " + hobby
		resp.HobbyVideos = s.rank(r, resp.HobbyQuery, maxResults)
	}

	respond(w, http.StatusOK, resp)
}

// ─── POST /api/recommend ──────────────────────────────────────────────────────

type recommendRequest struct {
	Text  string `json:"text"`
	Hobby string `json:"hobby"`
}

type recommendResponse struct {
	recommend.Bundle
	Videos      []retrieval.RankedCandidate `json:"videos"`
	HobbyVideos []retrieval.RankedCandidate `json:"hobby_videos,omitempty"`
}

// handleRecommend returns the intent-based recommendation bundle together
// with videos for its primary and hobby queries.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondErr(w, http.StatusBadRequest, "text is required")
		return
	}

	bundle := recommend.Recommend(req.Text, req.Hobby)
	resp := recommendResponse{
		Bundle: bundle,
		Videos: s.rank(r, bundle.PrimaryQuery, defaultMaxResults),
	}
	if bundle.HobbyQuery != "" {
		resp.HobbyVideos = s.rank(r, bundle.HobbyQuery, defaultMaxResults)
	}

	respond(w, http.StatusOK, resp)
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func (s *Server) rewrite(r *http.Request, text string) string {
	if s.rewriter == nil {
		return ai.CleanQuery(text)
	}
	return s.rewriter.RewriteQuery(r.Context(), text)
}

func (s *Server) rank(r *http.Request, query string, maxResults int) []retrieval.RankedCandidate {
	if s.ranker == nil {
		return []retrieval.RankedCandidate{}
	}
	return s.ranker.Rank(r.Context(), query, maxResults)
}
