package reviser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/yearclue/clue"
)

// SystemPrompt returns the system prompt for rewriting failed clues.
func SystemPrompt() string {
	return `You repair clues for a daily history guessing game. Each clue you receive
failed review. Rewrite it so it passes, following its rewrite hints.

## Rules

- Keep the same year. You may pick a different event from that year when the
  original cannot be fixed.
- Never reveal the year: no digits, century, decade or era wording, and no
  spelled-out years.
- At most 20 words and 100 characters, present tense.
- Name a specific person, place or institution.

## Output Format

Return exactly one rewrite per input clue, in the same order. Respond with
JSON only:

` + "```json" + `
{
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

// revisionItem is one failing clue as shown to the model.
type revisionItem struct {
	Event        clue.CandidateEvent `json:"event"`
	Issues       []string            `json:"issues"`
	RewriteHints []string            `json:"rewrite_hints"`
}

// UserPrompt lists the failing clues with their issues and hints.
func UserPrompt(year clue.YearSummary, failing []clue.CritiqueResult) string {
	items := make([]revisionItem, len(failing))
	for i, r := range failing {
		items[i] = revisionItem{Event: r.Event, Issues: r.Issues, RewriteHints: r.RewriteHints}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Target year: %s.\n\n", year.Label()))
	sb.WriteString(fmt.Sprintf("## Clues to Rewrite (%d)\n\n", len(items)))

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		sb.WriteString("(Error formatting clues)\n\n")
	} else {
		sb.WriteString("```json\n")
		sb.WriteString(string(data))
		sb.WriteString("\n```\n\n")
	}

	sb.WriteString(fmt.Sprintf("Return exactly %d rewritten events.\n", len(items)))
	return sb.String()
}
