// Package recommend picks a grounding bundle (a short reflection, a film, a
// song, an activity and a video search) from the mood the text suggests.
package recommend

import "strings"

// Intent is the dominant need detected in the text.
type Intent string

const (
	IntentSleep   Intent = "sleep"
	IntentAnxious Intent = "anxious"
	IntentSad     Intent = "sad"
	IntentStable  Intent = "stable"
)

var (
	sleepMarkers   = []string{"sleep", "insomnia", "can't sleep", "sleepless"}
	anxiousMarkers = []string{"stress", "pressure", "anxious", "worried", "panic"}
	sadMarkers     = []string{"sad", "depressed", "hopeless", "lonely", "tired"}
)

// Bundle is one recommendation set. HobbyQuery is empty unless a hobby was
// given.
type Bundle struct {
	Intent           Intent `json:"intent"`
	EmotionalSummary string `json:"emotional_summary"`
	SupportMessage   string `json:"support_message"`
	Movie            string `json:"movie_recommendation"`
	Song             string `json:"song_recommendation"`
	Activity         string `json:"activity_recommendation"`
	PrimaryQuery     string `json:"youtube_primary_query"`
	HobbyQuery       string `json:"youtube_hobby_query,omitempty"`
}

var bundles = map[Intent]Bundle{
	IntentSleep: {
		EmotionalSummary: "Your message suggests difficulty sleeping or mental fatigue.",
		SupportMessage:   "Improving sleep often starts with calming your nervous system and building a consistent routine.",
		Movie:            "Inception",
		Song:             "Weightless – Marconi Union",
		Activity:         "Dim lights, avoid screens before bed, and practice slow breathing for 5 minutes.",
		PrimaryQuery:     "how to sleep better naturally guided relaxation breathing for sleep",
	},
	IntentAnxious: {
		EmotionalSummary: "Your text shows signs of stress or anxiety.",
		SupportMessage:   "Slowing your breathing and grounding your body helps your nervous system stabilize quickly.",
		Movie:            "Peaceful Warrior",
		Song:             "Weightless – Marconi Union",
		Activity:         "Light stretching, breathing exercises, or a short walk.",
		PrimaryQuery:     "guided breathing for anxiety calm nervous system mindfulness grounding",
	},
	IntentSad: {
		EmotionalSummary: "Your text suggests emotional heaviness or low motivation.",
		SupportMessage:   "Small positive actions rebuild emotional momentum. Be patient with yourself.",
		Movie:            "The Pursuit of Happyness",
		Song:             "Hall of Fame – The Script",
		Activity:         "Do one small enjoyable activity that lifts your mood.",
		PrimaryQuery:     "motivational video overcoming sadness rebuilding confidence mindset",
	},
	IntentStable: {
		EmotionalSummary: "You appear emotionally stable and reflective.",
		SupportMessage:   "Maintaining balance and consistency builds long-term clarity and confidence.",
		Movie:            "Forrest Gump",
		Song:             "Beautiful Day – U2",
		Activity:         "Do a small activity that refreshes your mind.",
		PrimaryQuery:     "positive mindset mental clarity focus habits self improvement",
	},
}

// Detect returns the first matching intent in priority order: sleep,
// anxious, sad, then stable.
func Detect(text string) Intent {
	t := strings.ToLower(text)
	switch {
	case containsAny(t, sleepMarkers):
		return IntentSleep
	case containsAny(t, anxiousMarkers):
		return IntentAnxious
	case containsAny(t, sadMarkers):
		return IntentSad
	default:
		return IntentStable
	}
}

// Recommend builds the bundle for text. A non-blank hobby adds a second
// search query that appends it to the primary one.
func Recommend(text, hobby string) Bundle {
	intent := Detect(text)
	b := bundles[intent]
	b.Intent = intent
	if h := strings.ToLower(strings.TrimSpace(hobby)); h != "" {
		b.HobbyQuery = b.PrimaryQuery + " " + h
	}
	return b
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
