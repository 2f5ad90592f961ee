package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nyashahama/cognitive-guardian-backend/internal/ai"
)

func TestParsePersona(t *testing.T) {
	tests := []struct {
		in      string
		want    ai.Persona
		wantErr bool
	}{
		{"", ai.PersonaFriend, false},
		{"Coach", ai.PersonaCoach, false},
		{" therapist ", ai.PersonaTherapist, false},
		{"Strict Mentor", ai.PersonaStrictMentor, false},
		{"strict_mentor", ai.PersonaStrictMentor, false},
		{"guru", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ai.ParsePersona(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseScenario(t *testing.T) {
	tests := []struct {
		in      string
		want    ai.Scenario
		wantErr bool
	}{
		{"", ai.ScenarioNone, false},
		{"CONTINUE", ai.ScenarioContinue, false},
		{"wait_3_months", ai.ScenarioWait, false},
		{"earlier_3_months", ai.ScenarioEarlier, false},
		{"next year", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ai.ParseScenario(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalysisPrompt_Composition(t *testing.T) {
	tests := []struct {
		name        string
		persona     ai.Persona
		scenario    ai.Scenario
		wantStyle   string
		wantScene   string
		noSimulator bool
	}{
		{"friend without scenario", ai.PersonaFriend, ai.ScenarioNone, "Be warm, casual, understanding, and supportive.", "", true},
		{"coach continuing", ai.PersonaCoach, ai.ScenarioContinue, "growth-focused", "If I continue current path", false},
		{"mentor waiting", ai.PersonaStrictMentor, ai.ScenarioWait, "firm but respectful", "If I wait 3 months", false},
		{"therapist earlier", ai.PersonaTherapist, ai.ScenarioEarlier, "calm, and reflective", "If I had done this 3 months ago", false},
		{"unknown persona", ai.Persona("guru"), ai.ScenarioNone, "Be supportive and clear.", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ai.AnalysisPrompt(tt.persona, tt.scenario)
			if !strings.Contains(p, `"pressure_score"`) {
				t.Error("base analysis prompt missing")
			}
			if !strings.Contains(p, "Persona style:\n") || !strings.Contains(p, tt.wantStyle) {
				t.Errorf("persona style %q missing from prompt", tt.wantStyle)
			}
			hasSim := strings.Contains(p, "SIMULATION MODE")
			if hasSim == tt.noSimulator {
				t.Errorf("simulation block present = %v, want %v", hasSim, !tt.noSimulator)
			}
			if tt.wantScene != "" && !strings.Contains(p, tt.wantScene) {
				t.Errorf("scenario %q missing from prompt", tt.wantScene)
			}
			// The style comes after the base prompt and before the scenario.
			if tt.wantScene != "" && strings.Index(p, tt.wantStyle) > strings.Index(p, tt.wantScene) {
				t.Error("persona style should precede the scenario block")
			}
		})
	}
}

func TestCognitiveAnalyze_ParsesAndSendsComposedPrompt(t *testing.T) {
	stub := &stubCompleter{text: "Here you go:\n```json\n" + `{
		"mood_label": "Anxious",
		"pressure_score": 72.6,
		"risk_score": "140",
		"human_explanation": "You have been carrying this for a while.",
		"human_advice": "Book one mock interview this week.",
		"emotional_summary": "Worried but motivated.",
		"confidence_level": "High",
		"grounding_suggestions": {"movie": "The Pursuit of Happyness", "song": "", "activity": "A 10 minute walk"}
	}` + "\n```"}

	const text = "I haven't had an interview in years and I'm scared"
	a := newClient(t, stub).CognitiveAnalyze(context.Background(), text, ai.PersonaCoach, ai.ScenarioWait)
	if a == nil {
		t.Fatal("expected an analysis")
	}
	if a.MoodLabel != "Anxious" || a.ConfidenceLevel != "High" {
		t.Errorf("labels: got %+v", a)
	}
	if a.PressureScore != 73 || a.RiskScore != 100 {
		t.Errorf("scores: got pressure %d risk %d, want 73 and 100", a.PressureScore, a.RiskScore)
	}
	if a.Theme != "stress" {
		t.Errorf("theme: got %q, want stress", a.Theme)
	}
	if a.Grounding.Movie != "The Pursuit of Happyness" || a.Grounding.Song != "Relaxing music" {
		t.Errorf("grounding: got %+v", a.Grounding)
	}
	if a.Persona != ai.PersonaCoach || a.Scenario != ai.ScenarioWait {
		t.Errorf("persona/scenario not echoed: got %q %q", a.Persona, a.Scenario)
	}

	if len(stub.systems) != 1 || stub.systems[0] != ai.AnalysisPrompt(ai.PersonaCoach, ai.ScenarioWait) {
		t.Error("system prompt was not the composed analysis prompt")
	}
	if stub.users[0] != text {
		t.Errorf("user prompt: got %q", stub.users[0])
	}
}

func TestCognitiveAnalyze_Defaults(t *testing.T) {
	a := newClient(t, &stubCompleter{text: `{"human_advice":"Rest tonight."}`}).
		CognitiveAnalyze(context.Background(), "tired", ai.PersonaFriend, ai.ScenarioNone)
	if a == nil {
		t.Fatal("expected an analysis")
	}
	if a.MoodLabel != "Neutral" || a.ConfidenceLevel != "Medium" {
		t.Errorf("label defaults: got %+v", a)
	}
	if a.PressureScore != 50 || a.RiskScore != 50 || a.Theme != "neutral" {
		t.Errorf("score defaults: got %+v", a)
	}
	want := ai.Grounding{Movie: "A calming movie", Song: "Relaxing music", Activity: "Take a short mindful break"}
	if a.Grounding != want {
		t.Errorf("grounding defaults: got %+v", a.Grounding)
	}
}

func TestCognitiveAnalyze_FailureIsNil(t *testing.T) {
	tests := []struct {
		name   string
		client func(t *testing.T) *ai.Client
	}{
		{"no provider", func(*testing.T) *ai.Client { return nil }},
		{"provider error", func(t *testing.T) *ai.Client { return newClient(t, &stubCompleter{err: errors.New("down")}) }},
		{"not json", func(t *testing.T) *ai.Client { return newClient(t, &stubCompleter{text: "I'd rather not say"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if a := tt.client(t).CognitiveAnalyze(context.Background(), "text", ai.PersonaFriend, ai.ScenarioNone); a != nil {
				t.Errorf("expected nil, got %+v", a)
			}
		})
	}
}

func TestTheme(t *testing.T) {
	tests := []struct {
		pressure int
		want     string
	}{
		{0, "calm"}, {34, "calm"}, {35, "neutral"}, {64, "neutral"}, {65, "stress"}, {100, "stress"},
	}
	for _, tt := range tests {
		if got := ai.Theme(tt.pressure); got != tt.want {
			t.Errorf("Theme(%d) = %q, want %q", tt.pressure, got, tt.want)
		}
	}
}
