// Command guardian evaluates decisions and ranks videos from the terminal,
// using the same configuration and components as the HTTP server.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nyashahama/cognitive-guardian-backend/internal/ai"
	"github.com/nyashahama/cognitive-guardian-backend/internal/app"
	"github.com/nyashahama/cognitive-guardian-backend/internal/config"
	"github.com/nyashahama/cognitive-guardian-backend/internal/pipeline"
	"github.com/nyashahama/cognitive-guardian-backend/internal/recommend"
	"github.com/nyashahama/cognitive-guardian-backend/internal/retrieval"
	"github.com/nyashahama/cognitive-guardian-backend/internal/scoring"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries the components built once per invocation.
type cli struct {
	out   io.Writer
	comps *app.Components
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:          "guardian",
		Short:        "Evaluate decisions and find supporting videos",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			comps, err := app.Build(cmd.Context(), cfg, app.NewLogger(errOut, cfg))
			if err != nil {
				return err
			}
			c.comps = comps
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.comps == nil {
				return nil
			}
			return c.comps.Close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(c.evaluateCmd(), c.analyzeCmd(), c.videosCmd(), c.recommendCmd())
	return root
}

// ─── evaluate ─────────────────────────────────────────────────────────────────

func (c *cli) evaluateCmd() *cobra.Command {
	var (
		text          string
		urgency       int
		reversibility int
		domain        string
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run a decision through the risk pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := scoring.NewDecision(text, urgency, reversibility, domain)
			if err != nil {
				return err
			}
			res, err := c.comps.Pipeline.Evaluate(cmd.Context(), d)
			if err != nil {
				return err
			}
			if asJSON {
				return c.writeJSON(res)
			}
			c.printResult(res)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "decision text (required)")
	cmd.Flags().IntVar(&urgency, "urgency", 3, "urgency 1-5")
	cmd.Flags().IntVar(&reversibility, "reversibility", 3, "reversibility 1-5 (5 = easily undone)")
	cmd.Flags().StringVar(&domain, "domain", string(scoring.DomainPersonal), "career|finance|education|personal|health")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func (c *cli) printResult(res pipeline.Result) {
	fmt.Fprintf(c.out, "Verdict:       %s\n", res.Verdict.Verdict)
	fmt.Fprintf(c.out, "Overall risk:  %d\n", res.OverallRisk)
	fmt.Fprintf(c.out, "Pressure:      %d (%s)\n", res.Profile.PressureScore, res.Profile.Label)
	fmt.Fprintf(c.out, "Future risk:   %s: %s\n", res.Simulation.FutureRisk, res.Simulation.Description)
	fmt.Fprintln(c.out, "Critic notes:")
	for _, n := range res.Critique {
		fmt.Fprintf(c.out, "  - %s\n", n)
	}
	if s := res.Profile.Semantic; s != nil && s.RiskSummary != "" {
		fmt.Fprintf(c.out, "Reading:       %s\n", s.RiskSummary)
	}
	fmt.Fprintf(c.out, "Advice:        %s\n", res.Verdict.Advice)
	if r := res.Verdict.Recommendations; r != nil {
		fmt.Fprintln(c.out, "Right now:")
		fmt.Fprintf(c.out, "  activity: %s\n  song:     %s\n  watch:    %s\n  movie:    %s\n",
			r.Activity, r.Song, r.YouTube, r.Movie)
	}
}

// ─── analyze ──────────────────────────────────────────────────────────────────

var errNoAnalysis = errors.New("analysis unavailable: no model provider configured or the model gave no usable answer")

func (c *cli) analyzeCmd() *cobra.Command {
	var (
		text     string
		persona  string
		scenario string
		asJSON   bool

		p  ai.Persona
		sc ai.Scenario
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Ask the model for a persona-toned reading of your situation",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			var err error
			if p, err = ai.ParsePersona(persona); err != nil {
				return err
			}
			sc, err = ai.ParseScenario(scenario)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.comps.Model.CognitiveAnalyze(cmd.Context(), text, p, sc)
			if a == nil {
				return errNoAnalysis
			}
			if asJSON {
				return c.writeJSON(a)
			}
			fmt.Fprintf(c.out, "Mood:        %s (%s)\n", a.MoodLabel, a.ConfidenceLevel)
			fmt.Fprintf(c.out, "Pressure:    %d/100\nRisk:        %d/100\n", a.PressureScore, a.RiskScore)
			fmt.Fprintf(c.out, "\n%s\n\n%s\n\n%s\n", a.Explanation, a.Advice, a.EmotionalSummary)
			fmt.Fprintf(c.out, "\nMovie:    %s\nSong:     %s\nActivity: %s\n", a.Grounding.Movie, a.Grounding.Song, a.Grounding.Activity)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "your situation (required)")
	cmd.Flags().StringVar(&persona, "persona", string(ai.PersonaFriend), "coach|therapist|strict_mentor|friend")
	cmd.Flags().StringVar(&scenario, "scenario", "", "continue|wait_3_months|earlier_3_months")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

// ─── videos ───────────────────────────────────────────────────────────────────

func (c *cli) videosCmd() *cobra.Command {
	var (
		query      string
		text       string
		maxResults int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Rank videos for a search query or problem text",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if strings.TrimSpace(query) == "" && strings.TrimSpace(text) == "" {
				return errors.New("one of --query or --text is required")
			}
			if maxResults < 1 || maxResults > 20 {
				return fmt.Errorf("--max must be between 1 and 20, got %d", maxResults)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(query) == "" {
				query = c.comps.Model.RewriteQuery(cmd.Context(), text)
			}
			ranked := c.comps.Engine.Rank(cmd.Context(), query, maxResults)
			if asJSON {
				return c.writeJSON(map[string]any{"query": query, "videos": ranked})
			}
			c.printVideos(query, ranked)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "search query, used verbatim")
	cmd.Flags().StringVar(&text, "text", "", "problem text, rewritten into a query")
	cmd.Flags().IntVar(&maxResults, "max", 5, "number of videos (1-20)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *cli) printVideos(query string, ranked []retrieval.RankedCandidate) {
	fmt.Fprintf(c.out, "Query: %s\n", query)
	if len(ranked) == 0 {
		fmt.Fprintln(c.out, "No videos found.")
		return
	}
	for i, v := range ranked {
		fmt.Fprintf(c.out, "%2d. [%d%%] %s\n    %s\n", i+1, v.MatchPercent, v.Title, v.URL)
	}
}

// ─── recommend ────────────────────────────────────────────────────────────────

func (c *cli) recommendCmd() *cobra.Command {
	var (
		text   string
		hobby  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Suggest a movie, song, activity and video queries for how you feel",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			b := recommend.Recommend(text, hobby)
			if asJSON {
				return c.writeJSON(b)
			}
			fmt.Fprintf(c.out, "%s\n%s\n\n", b.EmotionalSummary, b.SupportMessage)
			fmt.Fprintf(c.out, "Movie:    %s\nSong:     %s\nActivity: %s\nSearch:   %s\n", b.Movie, b.Song, b.Activity, b.PrimaryQuery)
			if b.HobbyQuery != "" {
				fmt.Fprintf(c.out, "Hobby:    %s\n", b.HobbyQuery)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "how you feel (required)")
	cmd.Flags().StringVar(&hobby, "hobby", "", "a hobby to tailor a second video query")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
