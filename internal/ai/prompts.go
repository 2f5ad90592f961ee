package ai

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/nyashahama/cognitive-guardian-backend/internal/scoring"
)

// ─── SEMANTIC TAGGER ─────────────────────────────────────────────────────────

const semanticTaggerPrompt = `You analyze a human decision for cognitive and emotional signals.

Return JSON only:

{
  "inferred_domain": string,
  "emotional_intensity": number between 0 and 1,
  "impulsiveness": number between 0 and 1,
  "uncertainty": number between 0 and 1,
  "risk_summary": string
}`

// SemanticTag asks the model for a structured reading of the decision text.
// It returns nil when the call fails or the reply holds no JSON object.
// Numeric fields are clamped to [0, 1]; missing ones read as 0.
func (c *Client) SemanticTag(ctx context.Context, text string) *scoring.Semantic {
	resp, ok := c.Call(ctx, semanticTaggerPrompt, text)
	if !ok || resp.JSON == nil {
		return nil
	}

	return &scoring.Semantic{
		InferredDomain:     stringField(resp.JSON, "inferred_domain"),
		EmotionalIntensity: unitField(resp.JSON, "emotional_intensity"),
		Impulsiveness:      unitField(resp.JSON, "impulsiveness"),
		Uncertainty:        unitField(resp.JSON, "uncertainty"),
		RiskSummary:        stringField(resp.JSON, "risk_summary"),
	}
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// unitField reads a number (or numeric string) and clamps it to [0, 1].
func unitField(obj map[string]any, key string) float64 {
	var v float64
	switch n := obj[key].(type) {
	case float64:
		v = n
	case string:
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &v); err != nil {
			return 0
		}
	default:
		return 0
	}
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// ─── QUERY REWRITE ───────────────────────────────────────────────────────────

const queryRewritePrompt = `Convert the user's problem into a short, precise YouTube search query.

Rules:
- Output ONLY one line (no JSON).
- Remove emotions and filler words.
- Preserve core intent.
- Make it searchable and concrete.
- No explanations.

Examples:
User: "I can't sleep properly and my mind keeps racing"
Output: how to fall asleep fast racing thoughts

User: "I'm stressed about money and salary is low"
Output: increase income financial stress

User: "I am scared of interviews and haven't given one in years"
Output: overcome interview fear after long gap`

const (
	minRewriteLength = 5
	maxQueryLength   = 80
)

// RewriteQuery turns a free-form problem description into a one-line search
// query. The model's first line is used when it is plain text of at least
// five characters. Anything else falls back to CleanQuery.
func (c *Client) RewriteQuery(ctx context.Context, text string) string {
	resp, ok := c.Call(ctx, queryRewritePrompt, text)
	if ok && resp.JSON == nil {
		line, _, _ := strings.Cut(resp.Text, "\n")
		line = strings.ToLower(strings.TrimSpace(line))
		if len(line) >= minRewriteLength {
			return line
		}
	}
	return CleanQuery(text)
}

var nonQueryChars = regexp.MustCompile(`[^a-z0-9 ]`)

// CleanQuery lower-cases text, replaces everything outside [a-z0-9 ] with a
// space, collapses whitespace and cuts the result to 80 bytes.
func CleanQuery(text string) string {
	q := nonQueryChars.ReplaceAllString(strings.ToLower(text), " ")
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > maxQueryLength {
		q = strings.TrimSpace(q[:maxQueryLength])
	}
	return q
}

// ─── RELEVANCE JUDGE ─────────────────────────────────────────────────────────

const relevancePrompt = `Judge if this video meaningfully helps the user's problem.

Answer ONLY one:
EXACT_MATCH
STRONG_MATCH
PARTIAL_MATCH
NOT_RELEVANT`

// Relevance labels and the match percent each one maps to.
var relevanceScores = map[string]int{
	"EXACT_MATCH":   95,
	"STRONG_MATCH":  85,
	"PARTIAL_MATCH": 65,
	"NOT_RELEVANT":  0,
}

// JudgeRelevance asks the model whether a video title helps with the
// problem. ok is false when the call fails or the reply is not one of the
// four labels.
func (c *Client) JudgeRelevance(ctx context.Context, problem, title string) (int, bool) {
	user := fmt.Sprintf("User problem:\n%q\n\nVideo title:\n%q", problem, title)
	resp, ok := c.Call(ctx, relevancePrompt, user)
	if !ok {
		return 0, false
	}

	label := strings.ToUpper(strings.Trim(resp.Text, " \t\r\n\"'`."))
	score, known := relevanceScores[label]
	if !known {
		c.logger.Debug("ai: unrecognised relevance label", "label", label)
		return 0, false
	}
	return score, true
}
