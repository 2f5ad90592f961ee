package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// ─── PERSONA & SCENARIO ──────────────────────────────────────────────────────

// Persona selects the tone of a cognitive analysis.
type Persona string

const (
	PersonaCoach        Persona = "coach"
	PersonaTherapist    Persona = "therapist"
	PersonaStrictMentor Persona = "strict_mentor"
	PersonaFriend       Persona = "friend"
)

var personaStyles = map[Persona]string{
	PersonaCoach:        "Be encouraging, structured, motivating, and growth-focused.",
	PersonaTherapist:    "Be empathetic, validating, calm, and reflective.",
	PersonaStrictMentor: "Be direct, honest, realistic, and firm but respectful.",
	PersonaFriend:       "Be warm, casual, understanding, and supportive.",
}

const fallbackPersonaStyle = "Be supportive and clear."

// ParsePersona accepts a persona name case-insensitively. An empty name is
// PersonaFriend.
func ParsePersona(s string) (Persona, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PersonaFriend, nil
	}
	p := Persona(strings.ReplaceAll(s, " ", "_"))
	if _, ok := personaStyles[p]; !ok {
		return "", fmt.Errorf("ai: unknown persona %q (want coach, therapist, strict_mentor or friend)", s)
	}
	return p, nil
}

// Scenario is a what-if the model must treat as having happened. The zero
// value means no scenario.
type Scenario string

const (
	ScenarioNone     Scenario = ""
	ScenarioContinue Scenario = "continue"
	ScenarioWait     Scenario = "wait_3_months"
	ScenarioEarlier  Scenario = "earlier_3_months"
)

var scenarioText = map[Scenario]string{
	ScenarioContinue: "If I continue current path",
	ScenarioWait:     "If I wait 3 months",
	ScenarioEarlier:  "If I had done this 3 months ago",
}

// ParseScenario accepts a scenario name case-insensitively. An empty name is
// ScenarioNone.
func ParseScenario(s string) (Scenario, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ScenarioNone, nil
	}
	sc := Scenario(s)
	if _, ok := scenarioText[sc]; !ok {
		return "", fmt.Errorf("ai: unknown scenario %q (want continue, wait_3_months or earlier_3_months)", s)
	}
	return sc, nil
}

// ─── COGNITIVE ANALYSIS ──────────────────────────────────────────────────────

const analysisPrompt = `You are a human-centered cognitive analyst AI.

You MUST return JSON ONLY in the exact format below:

{
  "mood_label": string,
  "pressure_score": number (0-100),
  "risk_score": number (0-100),
  "human_explanation": string,
  "human_advice": string,
  "emotional_summary": string,
  "confidence_level": string,
  "grounding_suggestions": {
        "movie": string,
        "song": string,
        "activity": string
  }
}

Pressure score meaning:
- 10-25: casual / low emotional load
- 30-45: mild stress or uncertainty
- 50-65: moderate ongoing concern
- 70-85: high emotional strain or worry
- 90-100: crisis-level distress

Risk score meaning:
- 10-30: low risk
- 40-60: moderate caution
- 70-90: high risk
- 90-100: critical

Rules:
- Pressure reflects emotional load, fear, rumination, and avoidance.
- Risk reflects likelihood of negative long-term consequences.
- Career, interview gaps, income fear, or long uncertainty should rarely be below pressure 40.
- Avoid unrealistically low scores.
- Explanations must be empathetic, human, and contextual.
- Advice must be practical and grounded.
- Grounding suggestions must vary and be relevant.`

const scenarioPromptTemplate = `SIMULATION MODE, DO NOT IGNORE:

Assume this scenario is TRUE and has already occurred:
%s

MANDATORY RULES:
- Speak in past or comparative tense where appropriate.
- Describe how emotions, confidence, and pressure differ from today.
- Describe what realistic progress or consequences would exist now.
- Compare this scenario to the current situation.
- DO NOT give generic advice like "start by".
- Advice should be scenario-specific, not baseline guidance.`

// AnalysisPrompt composes the system prompt for CognitiveAnalyze. Unknown
// personas get a neutral tone; ScenarioNone adds no simulation block.
func AnalysisPrompt(persona Persona, scenario Scenario) string {
	style, ok := personaStyles[persona]
	if !ok {
		style = fallbackPersonaStyle
	}

	var b strings.Builder
	b.WriteString(analysisPrompt)
	b.WriteString("\n\nPersona style:\n")
	b.WriteString(style)
	if text, ok := scenarioText[scenario]; ok {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, scenarioPromptTemplate, text)
	}
	return b.String()
}

// Grounding is a small, concrete thing to do right now.
type Grounding struct {
	Movie    string `json:"movie"`
	Song     string `json:"song"`
	Activity string `json:"activity"`
}

// Analysis is the model's reading of a situation. Missing fields take the
// defaults below; scores are clamped to [0, 100].
type Analysis struct {
	MoodLabel        string    `json:"mood_label"`
	PressureScore    int       `json:"pressure_score"`
	RiskScore        int       `json:"risk_score"`
	Explanation      string    `json:"explanation"`
	Advice           string    `json:"advice"`
	EmotionalSummary string    `json:"emotional_summary"`
	ConfidenceLevel  string    `json:"confidence_level"`
	Grounding        Grounding `json:"grounding"`
	Theme            string    `json:"theme"`
	Persona          Persona   `json:"persona"`
	Scenario         Scenario  `json:"scenario,omitempty"`
}

const (
	defaultMood       = "Neutral"
	defaultScore      = 50
	defaultConfidence = "Medium"
	defaultMovie      = "A calming movie"
	defaultSong       = "Relaxing music"
	defaultActivity   = "Take a short mindful break"
)

// Theme buckets a pressure score: calm below 35, stress from 65.
func Theme(pressure int) string {
	switch {
	case pressure < 35:
		return "calm"
	case pressure < 65:
		return "neutral"
	default:
		return "stress"
	}
}

// CognitiveAnalyze asks the model for a persona-toned reading of text,
// optionally framed by a what-if scenario. It returns nil when the call
// fails or the reply holds no JSON object.
func (c *Client) CognitiveAnalyze(ctx context.Context, text string, persona Persona, scenario Scenario) *Analysis {
	resp, ok := c.Call(ctx, AnalysisPrompt(persona, scenario), text)
	if !ok || resp.JSON == nil {
		return nil
	}
	obj := resp.JSON

	a := &Analysis{
		MoodLabel:        orDefault(stringField(obj, "mood_label"), defaultMood),
		PressureScore:    scoreField(obj, "pressure_score"),
		RiskScore:        scoreField(obj, "risk_score"),
		Explanation:      stringField(obj, "human_explanation"),
		Advice:           stringField(obj, "human_advice"),
		EmotionalSummary: stringField(obj, "emotional_summary"),
		ConfidenceLevel:  orDefault(stringField(obj, "confidence_level"), defaultConfidence),
		Grounding:        Grounding{Movie: defaultMovie, Song: defaultSong, Activity: defaultActivity},
		Persona:          persona,
		Scenario:         scenario,
	}
	if g, ok := obj["grounding_suggestions"].(map[string]any); ok {
		a.Grounding.Movie = orDefault(stringField(g, "movie"), defaultMovie)
		a.Grounding.Song = orDefault(stringField(g, "song"), defaultSong)
		a.Grounding.Activity = orDefault(stringField(g, "activity"), defaultActivity)
	}
	a.Theme = Theme(a.PressureScore)
	return a
}

// scoreField reads a 0-100 score, rounding and clamping it. Missing or
// unreadable values are 50.
func scoreField(obj map[string]any, key string) int {
	var v float64
	switch n := obj[key].(type) {
	case float64:
		v = n
	case string:
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &v); err != nil {
			return defaultScore
		}
	default:
		return defaultScore
	}
	if math.IsNaN(v) {
		return defaultScore
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
