// Package scoring implements the five deterministic stages of a decision
// evaluation: listen, simulate, critique, score and gate. It is intentionally
// dependency-free: it imports nothing from internal/ and makes no external
// calls, so every stage can be tested as a plain function.
package scoring

// ─── CONSTANTS ────────────────────────────────────────────────────────────────

const (
	highFutureThreshold   = 75 // pressure >= 75 → high future risk
	mediumFutureThreshold = 40 // pressure >= 40 → medium future risk

	blockThreshold   = 80 // overall >= 80 → BLOCK
	cautionThreshold = 50 // overall >= 50 → PROCEED_WITH_CAUTION

	pointsPerNote = 10
)

// Critic note texts.
const (
	NoteHighHarm      = "Simulated future indicates high potential harm."
	NoteHardToReverse = "This decision may be difficult to reverse once taken."
	NoteImpulsive     = "High urgency may increase impulsive action."
	NoteNoMajorRisks  = "No major structural risks detected."
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// FutureRisk is the coarse simulated outcome tier.
type FutureRisk string

const (
	FutureLow    FutureRisk = "low"
	FutureMedium FutureRisk = "medium"
	FutureHigh   FutureRisk = "high"
)

// SimulationOutcome is the simulator stage output.
type SimulationOutcome struct {
	FutureRisk  FutureRisk `json:"future_risk"`
	Description string     `json:"description"`
}

// RiskScore is the scorer stage output.
type RiskScore struct {
	OverallRisk int `json:"overall_risk"`
}

// VerdictKind is the gatekeeper's terminal state.
type VerdictKind string

const (
	VerdictBlock   VerdictKind = "BLOCK"
	VerdictCaution VerdictKind = "PROCEED_WITH_CAUTION"
	VerdictSafe    VerdictKind = "SAFE_TO_PROCEED"
)

// Recommendations is the grounding bundle attached to a crisis block.
type Recommendations struct {
	Song     string `json:"song"`
	YouTube  string `json:"youtube"`
	Movie    string `json:"movie"`
	Activity string `json:"activity"`
}

// Verdict is the gatekeeper stage output.
type Verdict struct {
	Verdict VerdictKind `json:"verdict"`
	Advice  string      `json:"advice"`

	// Recommendations is set only when the self-harm override fires.
	Recommendations *Recommendations `json:"recommendations,omitempty"`
}

// ─── CORE FUNCTIONS ───────────────────────────────────────────────────────────

// clampPercent constrains v to [0, 100].
func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Simulate maps the current pressure onto a coarse future-risk tier.
func Simulate(pressure int) SimulationOutcome {
	switch {
	case pressure >= highFutureThreshold:
		return SimulationOutcome{
			FutureRisk:  FutureHigh,
			Description: "Likely negative consequences, irreversible damage, or regret.",
		}
	case pressure >= mediumFutureThreshold:
		return SimulationOutcome{
			FutureRisk:  FutureMedium,
			Description: "Possible setbacks, moderate uncertainty.",
		}
	default:
		return SimulationOutcome{
			FutureRisk:  FutureLow,
			Description: "Low immediate risk, reversible outcome.",
		}
	}
}

// Critique inspects the decision's structure and the simulated outcome and
// returns one note per triggered rule. A decision missing urgency or
// reversibility is read as 3 for that field. The result is never empty.
func Critique(decision FieldGetter, sim SimulationOutcome) []string {
	reversibility := fieldOr(decision, FieldReversibility, 3)
	urgency := fieldOr(decision, FieldUrgency, 3)

	var notes []string
	if sim.FutureRisk == FutureHigh {
		notes = append(notes, NoteHighHarm)
	}
	if reversibility <= 2 {
		notes = append(notes, NoteHardToReverse)
	}
	if urgency >= 4 {
		notes = append(notes, NoteImpulsive)
	}
	if len(notes) == 0 {
		notes = append(notes, NoteNoMajorRisks)
	}
	return notes
}

func fieldOr(d FieldGetter, name string, def int) int {
	if d == nil {
		return def
	}
	if v, ok := d.Field(name); ok {
		return v
	}
	return def
}

// Score combines the pressure score with the critic's note volume.
func Score(pressure, noteCount int) RiskScore {
	return RiskScore{OverallRisk: clampPercent(pressure + pointsPerNote*noteCount)}
}

// crisisRecommendations is the fixed bundle returned with a self-harm block.
var crisisRecommendations = Recommendations{
	Song:     "Fix You – Coldplay",
	YouTube:  "Guided Breathing for Anxiety – 5 Minutes (The Honest Guys)",
	Movie:    "The Pursuit of Happyness (2006)",
	Activity: "Drink a glass of water, take 5 slow breaths, and step outside for fresh air if possible.",
}

// Gate selects the terminal verdict. Rules are evaluated in priority order:
//
//	1. self_harm_detected flag → BLOCK with crisis advice (score ignored)
//	2. overall >= 80           → BLOCK
//	3. overall >= 50           → PROCEED_WITH_CAUTION
//	4. otherwise               → SAFE_TO_PROCEED
func Gate(score RiskScore, profile SignalProfile) Verdict {
	if profile.HasFlag(FlagSelfHarm) {
		recs := crisisRecommendations
		return Verdict{
			Verdict: VerdictBlock,
			Advice: "You're going through intense thoughts right now. You deserve care, support, and time. " +
				"Please pause before taking any action.",
			Recommendations: &recs,
		}
	}

	switch {
	case score.OverallRisk >= blockThreshold:
		return Verdict{
			Verdict: VerdictBlock,
			Advice:  "High risk detected. Do NOT proceed without expert guidance.",
		}
	case score.OverallRisk >= cautionThreshold:
		return Verdict{
			Verdict: VerdictCaution,
			Advice:  "Risk is moderate. Consider safeguards and delay irreversible actions.",
		}
	default:
		return Verdict{
			Verdict: VerdictSafe,
			Advice:  "Risk appears low. Proceed carefully.",
		}
	}
}
