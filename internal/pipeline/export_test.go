package pipeline

import "github.com/nyashahama/cognitive-guardian-backend/internal/scoring"

// SetCritic replaces the critic stage.
func (p *Pipeline) SetCritic(fn func(scoring.FieldGetter, scoring.SimulationOutcome) []string) {
	p.critic = fn
}

var NewState = newState

func (s State) WithProfile(p scoring.SignalProfile) State { return s.withProfile(p) }

func (s State) WithCritique(notes []string) State { return s.withCritique(notes) }
