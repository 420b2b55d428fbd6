package critic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/yearclue/clue"
)

// SystemPrompt returns the system prompt for the scored pass.
func SystemPrompt() string {
	return `You are the editor of a daily history guessing game. You review candidate
clues for one target year and score each one.

## Scores (0 to 1)

- factual: how certain it is that the event happened in the target year
- leak_risk: how much the wording gives the year away
- ambiguity: how likely the clue matches events in other years
- guessability: how much the clue helps an informed player
- diversity: how much the clue adds variety to the set

## Verdict

Set "passed" to true only when the clue is accurate, does not leak the
year, points to one event and is fair to players. List concrete problems
in "issues" and concrete fixes in "rewrite_hints".

## Output Format

Return exactly one result per candidate, in the same order. Respond with
JSON only:

` + "```json" + `
{
  "results": [
    {
      "passed": true,
      "scores": {"factual": 0.95, "leak_risk": 0.05, "ambiguity": 0.1, "guessability": 0.7, "diversity": 0.6},
      "issues": [],
      "rewrite_hints": []
    }
  ]
}
` + "```" + `
`
}

// UserPrompt lists the candidates for review.
func UserPrompt(year clue.YearSummary, events []clue.CandidateEvent) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Target year: %s.\n\n", year.Label()))
	sb.WriteString(fmt.Sprintf("## Candidates (%d)\n\n", len(events)))

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		sb.WriteString("(Error formatting candidates)\n\n")
	} else {
		sb.WriteString("```json\n")
		sb.WriteString(string(data))
		sb.WriteString("\n```\n\n")
	}

	sb.WriteString(fmt.Sprintf("Return exactly %d results in candidate order.\n", len(events)))
	return sb.String()
}
