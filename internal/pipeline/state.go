package pipeline

import "github.com/nyashahama/cognitive-guardian-backend/internal/scoring"

// State is the record threaded through the stages. Each stage receives the
// state so far and returns a copy with exactly one more field set; fields
// that are already set are never overwritten. The zero State holds nothing,
// so use newState.
type State struct {
	decision   scoring.Decision
	profile    *scoring.SignalProfile
	simulation *scoring.SimulationOutcome
	critique   []string
	score      *scoring.RiskScore
	verdict    *scoring.Verdict
}

func newState(d scoring.Decision) State {
	return State{decision: d}
}

func (s State) Decision() scoring.Decision { return s.decision }

// Profile returns the listener output, or false before the listener ran.
func (s State) Profile() (scoring.SignalProfile, bool) {
	if s.profile == nil {
		return scoring.SignalProfile{}, false
	}
	return *s.profile, true
}

// Simulation returns the simulator output, or false before it ran.
func (s State) Simulation() (scoring.SimulationOutcome, bool) {
	if s.simulation == nil {
		return scoring.SimulationOutcome{}, false
	}
	return *s.simulation, true
}

// Critique returns a copy of the critic notes, or nil before the critic ran.
func (s State) Critique() []string {
	if s.critique == nil {
		return nil
	}
	return append([]string(nil), s.critique...)
}

// Score returns the scorer output, or false before it ran.
func (s State) Score() (scoring.RiskScore, bool) {
	if s.score == nil {
		return scoring.RiskScore{}, false
	}
	return *s.score, true
}

// Verdict returns the gatekeeper output, or false before it ran.
func (s State) Verdict() (scoring.Verdict, bool) {
	if s.verdict == nil {
		return scoring.Verdict{}, false
	}
	return *s.verdict, true
}

// ─── APPENDERS ────────────────────────────────────────────────────────────────

// Each appender copies s, so earlier State values stay as they were. They
// panic on a second write because only this package calls them, in a fixed
// order.

func (s State) withProfile(p scoring.SignalProfile) State {
	if s.profile != nil {
		panic("pipeline: listener output already recorded")
	}
	s.profile = &p
	return s
}

func (s State) withSimulation(sim scoring.SimulationOutcome) State {
	if s.simulation != nil {
		panic("pipeline: simulation already recorded")
	}
	s.simulation = &sim
	return s
}

func (s State) withCritique(notes []string) State {
	if s.critique != nil {
		panic("pipeline: critique already recorded")
	}
	s.critique = append(make([]string, 0, len(notes)), notes...)
	return s
}

func (s State) withScore(r scoring.RiskScore) State {
	if s.score != nil {
		panic("pipeline: score already recorded")
	}
	s.score = &r
	return s
}

func (s State) withVerdict(v scoring.Verdict) State {
	if s.verdict != nil {
		panic("pipeline: verdict already recorded")
	}
	s.verdict = &v
	return s
}
