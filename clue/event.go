// Package clue defines the records that flow through the clue pipeline:
// candidate events, their critiques, and the summary of the target year.
package clue

import (
	"fmt"
	"strings"
)

// MaxTextLength is the maximum clue text length in characters.
const MaxTextLength = 100

// Domain is the subject area of a historical event.
type Domain string

const (
	DomainPolitics Domain = "politics"
	DomainScience  Domain = "science"
	DomainCulture  Domain = "culture"
	DomainTech     Domain = "tech"
	DomainSports   Domain = "sports"
	DomainEconomy  Domain = "economy"
	DomainWar      Domain = "war"
	DomainReligion Domain = "religion"
)

// Domains lists every valid domain in prompt order.
var Domains = []Domain{
	DomainPolitics,
	DomainScience,
	DomainCulture,
	DomainTech,
	DomainSports,
	DomainEconomy,
	DomainWar,
	DomainReligion,
}

// IsValid reports whether d is a known domain.
func (d Domain) IsValid() bool {
	switch d {
	case DomainPolitics, DomainScience, DomainCulture, DomainTech,
		DomainSports, DomainEconomy, DomainWar, DomainReligion:
		return true
	}
	return false
}

// String returns the string representation of the domain.
func (d Domain) String() string {
	return string(d)
}

// ParseDomain converts s to a Domain, ignoring case and surrounding space.
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("unknown domain %q", s)
	}
	return d, nil
}

// LeakFlags are the generator's own assessment of year leakage.
type LeakFlags struct {
	HasDigits       bool `json:"has_digits"`
	HasCenturyTerms bool `json:"has_century_terms"`
	HasSpelledYear  bool `json:"has_spelled_year"`
}

// Any reports whether any flag is set.
func (f LeakFlags) Any() bool {
	return f.HasDigits || f.HasCenturyTerms || f.HasSpelledYear
}

// CandidateEvent is one unverified clue proposal for a target year.
// Values are treated as immutable once a stage returns them.
type CandidateEvent struct {
	Title           string    `json:"title"`
	Text            string    `json:"text"`
	Domain          Domain    `json:"domain"`
	Geo             string    `json:"geo"`
	DifficultyGuess int       `json:"difficulty_guess"`
	Confidence      float64   `json:"confidence"`
	LeakFlags       LeakFlags `json:"leak_flags"`
}

// Validate checks the field constraints of a candidate.
func (e CandidateEvent) Validate() error {
	if strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if n := len([]rune(e.Text)); n > MaxTextLength {
		return fmt.Errorf("text is %d characters, max %d", n, MaxTextLength)
	}
	if !e.Domain.IsValid() {
		return fmt.Errorf("unknown domain %q", e.Domain)
	}
	if e.DifficultyGuess < 1 || e.DifficultyGuess > 5 {
		return fmt.Errorf("difficulty_guess %d out of range 1..5", e.DifficultyGuess)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence %.3f out of range 0..1", e.Confidence)
	}
	return nil
}

// Sanitized returns a copy with whitespace collapsed in the free-text fields
// and the domain lower-cased.
func (e CandidateEvent) Sanitized() CandidateEvent {
	e.Title = NormalizeSpace(e.Title)
	e.Text = NormalizeSpace(e.Text)
	e.Geo = NormalizeSpace(e.Geo)
	e.Domain = Domain(strings.ToLower(strings.TrimSpace(string(e.Domain))))
	return e
}

// Scores are the critic's per-candidate quality scores, each in 0..1.
type Scores struct {
	Factual      float64 `json:"factual"`
	LeakRisk     float64 `json:"leak_risk"`
	Ambiguity    float64 `json:"ambiguity"`
	Guessability float64 `json:"guessability"`
	Diversity    float64 `json:"diversity"`
}

// Validate checks that every score lies in 0..1.
func (s Scores) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"factual", s.Factual},
		{"leak_risk", s.LeakRisk},
		{"ambiguity", s.Ambiguity},
		{"guessability", s.Guessability},
		{"diversity", s.Diversity},
	}
	for _, n := range named {
		if n.value < 0 || n.value > 1 {
			return fmt.Errorf("score %s=%.3f out of range 0..1", n.name, n.value)
		}
	}
	return nil
}

// CritiqueResult is the critic's verdict on one candidate for one cycle.
type CritiqueResult struct {
	Event        CandidateEvent `json:"event"`
	Passed       bool           `json:"passed"`
	Scores       Scores         `json:"scores"`
	Issues       []string       `json:"issues"`
	RewriteHints []string       `json:"rewrite_hints"`
}

// Texts returns the clue text of each event, in order.
func Texts(events []CandidateEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Text
	}
	return out
}
