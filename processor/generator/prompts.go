package generator

import (
	"fmt"
	"strings"

	"github.com/c360studio/yearclue/clue"
)

// SystemPrompt returns the fixed system prompt for candidate generation.
func SystemPrompt() string {
	return `You write clues for a daily history guessing game. Players see a handful of
short event descriptions and must guess the year they all happened in.

## Rules

1. Never reveal the year. No digits, no century, decade or millennium wording,
   no era labels (BC, BCE, AD, CE), and no years spelled out in words.
2. Each clue is at most 20 words and at most 100 characters.
3. Write in the present tense ("Astronauts walk on the Moon").
4. Name something specific: a person, place, institution or object.
5. Spread the clues across domains (` + domainList() + `)
   and across world regions. No more than 3 clues may share a domain.
6. Only include events you are confident happened in the target year.

## Fields

- title: a short label for the event
- text: the clue shown to players
- domain: one of the domains above
- geo: the country or region where the event happened
- difficulty_guess: 1 (very well known) to 5 (obscure)
- confidence: 0 to 1, how sure you are the event belongs to the year
- leak_flags: your own check of the clue text for year leakage

## Output Format

Respond with JSON only:

` + "```json" + `
{
  "year": {"value": 1969, "era": "CE"},
  "events": [
    {
      "title": "Moon landing",
      "text": "Astronauts walk on the Moon for the first time",
      "domain": "science",
      "geo": "United States",
      "difficulty_guess": 1,
      "confidence": 0.98,
      "leak_flags": {"has_digits": false, "has_century_terms": false, "has_spelled_year": false}
    }
  ]
}
` + "```" + `
`
}

// UserPrompt returns the year-specific prompt.
func UserPrompt(year clue.YearSummary, minEvents, maxEvents int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Target year: %s (value %d, era %s).\n\n", year.Label(), year.Value, year.Era))
	sb.WriteString(fmt.Sprintf("Propose between %d and %d candidate events from this year.\n", minEvents, maxEvents))
	sb.WriteString("Echo the target year in the \"year\" block exactly as given.\n")
	if year.Era == clue.EraBCE {
		sb.WriteString("This year is before the common era. Prefer events with solid historical attestation.\n")
	}
	return sb.String()
}

func domainList() string {
	names := make([]string, len(clue.Domains))
	for i, d := range clue.Domains {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}
