// Package pipeline runs one decision through the five scoring stages in
// order: listen, simulate, critique, score, gate. Only the optional semantic
// augmentation leaves the process; every stage itself is a pure function
// from the scoring package.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nyashahama/cognitive-guardian-backend/internal/scoring"
)

// ErrInvariantViolated means a stage produced output its successors cannot
// accept. It indicates a bug, never bad input.
var ErrInvariantViolated = errors.New("pipeline: invariant violated")

// SemanticTagger reads the decision text with a language model. It returns
// nil when no reading is available. *ai.Client implements it.
type SemanticTagger interface {
	SemanticTag(ctx context.Context, text string) *scoring.Semantic
}

// Result is the flattened, serialisable view of a finished State.
type Result struct {
	Profile     scoring.SignalProfile     `json:"listener"`
	Simulation  scoring.SimulationOutcome `json:"simulation"`
	Critique    []string                  `json:"critic_notes"`
	OverallRisk int                       `json:"overall_risk"`
	Verdict     scoring.Verdict           `json:"verdict"`
}

// Pipeline evaluates decisions. The zero value is not usable; call New.
type Pipeline struct {
	tagger SemanticTagger
	critic func(scoring.FieldGetter, scoring.SimulationOutcome) []string
	logger *slog.Logger
}

// New returns a Pipeline. tagger may be nil to skip semantic augmentation.
func New(tagger SemanticTagger, logger *slog.Logger) *Pipeline {
	return &Pipeline{tagger: tagger, critic: scoring.Critique, logger: logger}
}

// Evaluate runs every stage for d and returns the final verdict together with
// each intermediate output.
//
//  1. Re-validate d (the zero Decision is rejected with *scoring.ValidationError).
//  2. Listen, then attach the semantic reading if a tagger is configured.
//  3. Simulate from the pressure score.
//  4. Critique; an empty list is ErrInvariantViolated.
//  5. Score.
//  6. Gate.
func (p *Pipeline) Evaluate(ctx context.Context, d scoring.Decision) (Result, error) {
	// ── 1. Validate ──────────────────────────────────────────────────────────
	if _, err := scoring.NewDecision(d.Text(), d.Urgency(), d.Reversibility(), string(d.Domain())); err != nil {
		return Result{}, err
	}
	st := newState(d)

	// ── 2. Listen ────────────────────────────────────────────────────────────
	profile := scoring.Listen(d.Text(), d.Urgency(), d.Reversibility())
	if p.tagger != nil {
		profile.Semantic = p.tagger.SemanticTag(ctx, d.Text())
		if profile.Semantic == nil {
			p.logger.Debug("pipeline: semantic augmentation unavailable")
		}
	}
	st = st.withProfile(profile)

	// ── 3. Simulate ──────────────────────────────────────────────────────────
	st = st.withSimulation(scoring.Simulate(profile.PressureScore))

	// ── 4. Critique ──────────────────────────────────────────────────────────
	sim, _ := st.Simulation()
	notes := p.critic(d, sim)
	if len(notes) == 0 {
		return Result{}, fmt.Errorf("%w: critic returned no notes", ErrInvariantViolated)
	}
	st = st.withCritique(notes)

	// ── 5. Score ─────────────────────────────────────────────────────────────
	st = st.withScore(scoring.Score(profile.PressureScore, len(notes)))

	// ── 6. Gate ──────────────────────────────────────────────────────────────
	score, _ := st.Score()
	st = st.withVerdict(scoring.Gate(score, profile))

	res := resultOf(st)
	p.logger.Info("pipeline: evaluated",
		"domain", d.Domain(),
		"pressure", res.Profile.PressureScore,
		"overall_risk", res.OverallRisk,
		"verdict", res.Verdict.Verdict,
		"self_harm", profile.HasFlag(scoring.FlagSelfHarm),
	)
	return res, nil
}

func resultOf(st State) Result {
	profile, _ := st.Profile()
	sim, _ := st.Simulation()
	score, _ := st.Score()
	verdict, _ := st.Verdict()
	return Result{
		Profile:     profile,
		Simulation:  sim,
		Critique:    st.Critique(),
		OverallRisk: score.OverallRisk,
		Verdict:     verdict,
	}
}
