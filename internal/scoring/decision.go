package scoring

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MinTextLength is the shortest decision text accepted, in runes, after
// surrounding whitespace is trimmed.
const MinTextLength = 10

// Domain is the life area a decision belongs to.
type Domain string

const (
	DomainCareer    Domain = "career"
	DomainFinance   Domain = "finance"
	DomainEducation Domain = "education"
	DomainPersonal  Domain = "personal"
	DomainHealth    Domain = "health"
)

// Domains lists every accepted domain in display order.
var Domains = []Domain{DomainCareer, DomainFinance, DomainEducation, DomainPersonal, DomainHealth}

func (d Domain) valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// ─── VALIDATION ──────────────────────────────────────────────────────────────

// ValidationError lists every problem found with a decision. It is returned
// before any pipeline stage runs and is safe to show to the caller verbatim.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	return "invalid decision: " + errors.Join(e.Problems...).Error()
}

// Unwrap exposes the individual problems to errors.Is / errors.As.
func (e *ValidationError) Unwrap() []error { return e.Problems }

// ─── DECISION ────────────────────────────────────────────────────────────────

// Decision is the validated, immutable input to one pipeline run. The zero
// value is not valid; construct it with NewDecision.
type Decision struct {
	text          string
	urgency       int
	reversibility int
	domain        Domain
}

// NewDecision validates the raw fields and returns a Decision. The domain is
// matched case-insensitively and stored lower-cased. All problems are reported
// together in a *ValidationError.
func NewDecision(text string, urgency, reversibility int, domain string) (Decision, error) {
	var errs []error

	trimmed := strings.TrimSpace(text)
	if n := utf8.RuneCountInString(trimmed); n < MinTextLength {
		errs = append(errs, fmt.Errorf("text must be at least %d characters, got %d", MinTextLength, n))
	}
	if urgency < 1 || urgency > 5 {
		errs = append(errs, fmt.Errorf("urgency=%d out of range [1,5]", urgency))
	}
	if reversibility < 1 || reversibility > 5 {
		errs = append(errs, fmt.Errorf("reversibility=%d out of range [1,5]", reversibility))
	}
	d := Domain(strings.ToLower(strings.TrimSpace(domain)))
	if !d.valid() {
		errs = append(errs, fmt.Errorf("domain %q must be one of %v", domain, Domains))
	}

	if len(errs) > 0 {
		return Decision{}, &ValidationError{Problems: errs}
	}
	return Decision{
		text:          text,
		urgency:       urgency,
		reversibility: reversibility,
		domain:        d,
	}, nil
}

func (d Decision) Text() string       { return d.text }
func (d Decision) Urgency() int       { return d.urgency }
func (d Decision) Reversibility() int { return d.reversibility }
func (d Decision) Domain() Domain     { return d.domain }

// Field implements FieldGetter.
func (d Decision) Field(name string) (int, bool) {
	switch name {
	case FieldUrgency:
		return d.urgency, true
	case FieldReversibility:
		return d.reversibility, true
	default:
		return 0, false
	}
}

// ─── FIELD ACCESS ────────────────────────────────────────────────────────────

// Field names the critic reads.
const (
	FieldUrgency       = "urgency"
	FieldReversibility = "reversibility"
)

// FieldGetter is the one capability the critic needs from a decision: look up
// an integer attribute by name. Decision and MapDecision both implement it.
type FieldGetter interface {
	Field(name string) (int, bool)
}

// MapDecision adapts a loosely typed map (decoded JSON, a form post) to
// FieldGetter. Numbers may arrive as any integer or float type, or as a
// numeric string.
type MapDecision map[string]any

// Field implements FieldGetter.
func (m MapDecision) Field(name string) (int, bool) {
	v, ok := m[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
