package scoring

import (
	"regexp"
	"strings"
)

// ─── LEXICONS ────────────────────────────────────────────────────────────────

var (
	emotionalDistress = []string{
		"fed up", "done", "angry", "furious", "tired", "exhausted", "burnt out",
		"can't take", "cannot take", "had enough", "sick of", "frustrated",
		"hopeless", "helpless", "worthless", "hate", "depressed", "miserable",
		"crying", "broken", "stressed", "stress", "anxious", "panic", "scared",
		"worried", "terrified", "overwhelmed", "pressure", "mentally tired",
	}

	selfHarm = []string{
		"suicide", "kill myself", "end my life", "die", "want to die",
		"self harm", "cut myself", "jump off", "hang myself",
		"overdose", "poison myself", "no reason to live",
		"better off dead", "can't go on",
	}

	cognitiveOverload = []string{
		"too much", "can't think", "confused", "lost", "no idea", "don't know",
		"everything at once", "mess", "chaos", "nothing working", "stuck",
		"trapped", "no way out", "brain dead", "can't decide",
	}

	impulsiveLanguage = []string{
		"now", "today", "immediately", "right away", "asap", "instantly",
		"this moment", "can't wait", "must do", "have to", "right now",
	}

	absoluteLanguage = []string{
		"always", "never", "nothing", "everything", "no one", "everyone",
	}
)

var (
	repeatedExclamation = regexp.MustCompile(`!{2,}`)
	shoutedWord         = regexp.MustCompile(`\b[A-Z]{3,}\b`)
)

// Signal category keys reported in SignalProfile.Signals.
const (
	SignalEmotional = "emotional_hits"
	SignalOverload  = "overload_hits"
	SignalImpulsive = "impulsive_hits"
	SignalAbsolute  = "absolute_hits"
	SignalSelfHarm  = "self_harm_hits"
)

// FlagSelfHarm is raised whenever any self-harm phrase is present. The
// gatekeeper treats it as a hard override.
const FlagSelfHarm = "self_harm_detected"

// ─── TYPES ───────────────────────────────────────────────────────────────────

// PressureLabel is the coarse reading of a pressure score.
type PressureLabel string

const (
	LabelLow      PressureLabel = "LOW RISK"
	LabelModerate PressureLabel = "MODERATE RISK"
	LabelHigh     PressureLabel = "HIGH RISK"
	LabelCritical PressureLabel = "CRITICAL RISK"
)

// Semantic is the optional model-inferred reading of the decision text. Every
// numeric field is in [0, 1].
type Semantic struct {
	InferredDomain     string  `json:"inferred_domain,omitempty"`
	EmotionalIntensity float64 `json:"emotional_intensity"`
	Impulsiveness      float64 `json:"impulsiveness"`
	Uncertainty        float64 `json:"uncertainty"`
	RiskSummary        string  `json:"risk_summary,omitempty"`
}

// SignalProfile is the listener stage output.
type SignalProfile struct {
	PressureScore int            `json:"pressure_score"`
	Label         PressureLabel  `json:"verdict"`
	Advice        string         `json:"advice"`
	Signals       map[string]int `json:"signals"`
	RiskFlags     []string       `json:"risk_flags"`

	// Semantic is nil when no augmentation was requested or the model call
	// failed. Downstream stages never read it.
	Semantic *Semantic `json:"semantic,omitempty"`
}

// HasFlag reports whether flag is among the profile's risk flags.
func (p SignalProfile) HasFlag(flag string) bool {
	for _, f := range p.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// ─── LISTENER ────────────────────────────────────────────────────────────────

// countHits returns how many keywords occur in lower at least once.
func countHits(lower string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}

// Listen scores raw decision text for emotional and cognitive pressure. It is
// a pure function of its arguments.
func Listen(text string, urgency, reversibility int) SignalProfile {
	lower := strings.ToLower(text)

	signals := map[string]int{
		SignalEmotional: countHits(lower, emotionalDistress),
		SignalOverload:  countHits(lower, cognitiveOverload),
		SignalImpulsive: countHits(lower, impulsiveLanguage),
		SignalAbsolute:  countHits(lower, absoluteLanguage),
		SignalSelfHarm:  countHits(lower, selfHarm),
	}

	score := signals[SignalEmotional]*8 +
		signals[SignalOverload]*8 +
		signals[SignalImpulsive]*6 +
		signals[SignalAbsolute]*4

	score += urgency * 10
	score += (6 - reversibility) * 10

	if repeatedExclamation.MatchString(text) {
		score += 8
	}
	if shoutedWord.MatchString(text) {
		score += 5
	}

	selfHarmHit := signals[SignalSelfHarm] > 0
	if selfHarmHit {
		score += 40
	}

	score = clampPercent(score)

	flags := []string{}
	if selfHarmHit {
		flags = append(flags, FlagSelfHarm)
	}

	label, advice := labelFor(score, selfHarmHit)
	return SignalProfile{
		PressureScore: score,
		Label:         label,
		Advice:        advice,
		Signals:       signals,
		RiskFlags:     flags,
	}
}

func labelFor(score int, selfHarmHit bool) (PressureLabel, string) {
	switch {
	case selfHarmHit || score >= 80:
		return LabelCritical, "This sounds very intense and painful. You deserve support and care. " +
			"Please consider reaching out to someone you trust or a professional right now."
	case score >= 60:
		return LabelHigh, "Strong emotional or cognitive pressure detected. " +
			"Avoid irreversible actions and slow down decision-making."
	case score >= 35:
		return LabelModerate, "Some stress signals detected. Give yourself time and avoid acting impulsively."
	default:
		return LabelLow, "Your emotional and cognitive signals appear stable."
	}
}
