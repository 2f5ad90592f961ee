// Package retrieval finds third-party videos that speak to a user's problem.
// A Source supplies raw candidates; the Engine filters them, recalls the most
// similar titles by embedding, reranks with lexical overlap and a non-linear
// confidence curve, and finally lets a model judge raise the best few.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/nyashahama/cognitive-guardian-backend/internal/cache"
	"github.com/nyashahama/cognitive-guardian-backend/internal/embed"
)

// ─── CONSTANTS ────────────────────────────────────────────────────────────────

const (
	MaxCandidates = 30 // kept from one Source.Fetch
	RecallTopK    = 15 // kept after embedding recall
	VerifyTopN    = 4  // sent to the relevance judge

	minTitleLength = 6

	semanticWeight = 0.75
	overlapWeight  = 0.25
	curveSteepness = 3.0

	floorPercent     = 30
	ceilingPercent   = 98
	clickbaitPenalty = 10
	minPercent       = 25
)

var (
	excludedTitleMarkers  = []string{"shorts", "trailer", "edit"}
	clickbaitTitleMarkers = []string{"shocking", "secret", "must watch"}
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Candidate is one video as returned by a Source.
type Candidate struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// RankedCandidate is a Candidate with its ranking scores. MatchPercent is in
// [25, 98] unless the relevance judge raised it to 65, 85 or 95.
type RankedCandidate struct {
	Candidate
	SemanticScore float64 `json:"semantic_score"`
	MatchPercent  int     `json:"match_percent"`
}

// Source supplies raw candidates for a query.
type Source interface {
	Fetch(ctx context.Context, query string) ([]Candidate, error)
}

// Verifier judges whether a title helps with a problem and returns the match
// percent for that judgement. ok is false when no judgement was made.
// *ai.Client implements it.
type Verifier interface {
	JudgeRelevance(ctx context.Context, problem, title string) (percent int, ok bool)
}

// ─── ENGINE ───────────────────────────────────────────────────────────────────

// Engine ranks candidates for a query. It is safe for concurrent use as long
// as its collaborators are.
type Engine struct {
	source   Source
	embedder embed.Embedder
	vectors  cache.Cache[string, []float32]
	verifier Verifier
	logger   *slog.Logger
}

// NewEngine wires an Engine. vectors memoises embeddings by cleaned text;
// verifier may be nil to skip the relevance boost.
func NewEngine(source Source, embedder embed.Embedder, vectors cache.Cache[string, []float32], verifier Verifier, logger *slog.Logger) *Engine {
	return &Engine{
		source:   source,
		embedder: embedder,
		vectors:  vectors,
		verifier: verifier,
		logger:   logger,
	}
}

// Rank returns at most maxResults candidates ordered by MatchPercent,
// highest first. Source or embedder failures are logged and yield an empty,
// non-nil slice.
func (e *Engine) Rank(ctx context.Context, query string, maxResults int) []RankedCandidate {
	if maxResults <= 0 {
		return []RankedCandidate{}
	}

	raw, err := e.source.Fetch(ctx, query)
	if err != nil {
		e.logger.Warn("retrieval: fetch failed", "query", query, "error", err)
		return []RankedCandidate{}
	}
	candidates := filterCandidates(raw)
	if len(candidates) == 0 {
		return []RankedCandidate{}
	}

	recalled, err := e.recall(ctx, query, candidates)
	if err != nil {
		e.logger.Warn("retrieval: recall failed", "query", query, "error", err)
		return []RankedCandidate{}
	}

	ranked := rerank(query, recalled)
	e.verify(ctx, query, ranked)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchPercent > ranked[j].MatchPercent
	})
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	e.logger.Debug("retrieval: ranked", "query", query, "candidates", len(candidates), "returned", len(ranked))
	return ranked
}

// filterCandidates drops short and excluded titles and duplicate IDs, and
// keeps at most MaxCandidates.
func filterCandidates(in []Candidate) []Candidate {
	seen := make(map[string]bool, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		title := strings.TrimSpace(c.Title)
		if utf8.RuneCountInString(title) < minTitleLength || containsAny(strings.ToLower(title), excludedTitleMarkers) {
			continue
		}
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		c.Title = title
		out = append(out, c)
		if len(out) == MaxCandidates {
			break
		}
	}
	return out
}

// recall scores every candidate by cosine similarity between its cleaned
// title and the normalised intent, and keeps the RecallTopK best.
func (e *Engine) recall(ctx context.Context, query string, candidates []Candidate) ([]RankedCandidate, error) {
	qv, err := e.vector(ctx, CleanText(NormalizeIntent(query)))
	if err != nil {
		return nil, err
	}

	scored := make([]RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		tv, err := e.vector(ctx, CleanText(c.Title))
		if err != nil {
			return nil, err
		}
		sim, err := embed.Cosine(qv, tv)
		if err != nil {
			return nil, fmt.Errorf("retrieval: similarity for %q: %w", c.ID, err)
		}
		scored = append(scored, RankedCandidate{Candidate: c, SemanticScore: sim})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].SemanticScore > scored[j].SemanticScore
	})
	if len(scored) > RecallTopK {
		scored = scored[:RecallTopK]
	}
	return scored, nil
}

func (e *Engine) vector(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors.Get(ctx, text); ok {
		return v, nil
	}
	v, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed %q: %w", text, err)
	}
	e.vectors.Add(ctx, text, v)
	return v, nil
}

// rerank blends semantic similarity with token overlap against the raw
// query, maps the blend through 1-e^(-3x), penalises clickbait and sorts by
// the resulting percent.
func rerank(query string, recalled []RankedCandidate) []RankedCandidate {
	queryTokens := tokenSet(query)

	out := make([]RankedCandidate, len(recalled))
	for i, c := range recalled {
		titleTokens := tokenSet(c.Title)
		shared := 0
		for tok := range queryTokens {
			if titleTokens[tok] {
				shared++
			}
		}
		overlap := float64(shared) / float64(max(len(queryTokens), 1))

		combined := c.SemanticScore*semanticWeight + overlap*overlapWeight
		confidence := 1 - math.Exp(-curveSteepness*combined)
		percent := int(clampFloat(confidence*100, floorPercent, ceilingPercent))

		if containsAny(strings.ToLower(c.Title), clickbaitTitleMarkers) {
			percent -= clickbaitPenalty
		}
		c.MatchPercent = min(max(percent, minPercent), ceilingPercent)
		out[i] = c
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchPercent > out[j].MatchPercent
	})
	return out
}

// verify asks the judge about the top VerifyTopN candidates concurrently and
// raises a percent when the judgement is higher. It never lowers one.
func (e *Engine) verify(ctx context.Context, query string, ranked []RankedCandidate) {
	if e.verifier == nil {
		return
	}

	n := min(len(ranked), VerifyTopN)
	boosts := make([]int, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if score, ok := e.verifier.JudgeRelevance(ctx, query, ranked[i].Title); ok {
				boosts[i] = score
			}
			return nil
		})
	}
	_ = g.Wait() // judges never fail the group

	for i, b := range boosts {
		if b > ranked[i].MatchPercent {
			ranked[i].MatchPercent = b
		}
	}
}

// ─── TEXT HELPERS ─────────────────────────────────────────────────────────────

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9 ]`)

// CleanText lower-cases s, replaces every character outside [a-z0-9 ] with
// a space and collapses runs of whitespace.
func CleanText(s string) string {
	s = nonAlphanumeric.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(CleanText(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// NormalizeIntent maps common problem phrasings onto a canonical search
// intent. Unrecognised queries are returned unchanged.
func NormalizeIntent(query string) string {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, []string{"not improving", "stuck", "plateau"}):
		return "skill improvement plateau how to get better"
	case strings.Contains(q, "interview") && containsAny(q, []string{"fear", "anxiety"}):
		return "interview anxiety how to prepare calmly"
	case strings.Contains(q, "job") && strings.Contains(q, "gap"):
		return "explain career gap in interviews"
	case containsAny(q, []string{"burnout", "burnt out"}):
		return "burnout recovery motivation focus"
	default:
		return query
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
