package critic

import (
	"fmt"
	"strconv"

	"github.com/c360studio/yearclue/clue"
)

// Deterministic issue messages.
const (
	IssueFlaggedLeakage = "Generator flagged possible year leakage"
	IssueTextLeakage    = "Clue text may reveal the year"
	IssueNoAnchor       = "Clue lacks a proper noun or specific anchor"
)

// finding is an issue and the hint that addresses it.
type finding struct {
	issue string
	hint  string
}

// IssueTooLong returns the length issue for maxWords.
func IssueTooLong(maxWords int) string {
	return fmt.Sprintf("Clue exceeds %d words", maxWords)
}

// IssueDomainOverused returns the overuse issue for d.
func IssueDomainOverused(d clue.Domain) string {
	return fmt.Sprintf("Domain %s is overused in this batch", d)
}

// checkEvents runs the deterministic pass over the batch. The result is
// aligned with events.
func checkEvents(events []clue.CandidateEvent, maxWords, maxDomainDuplicates int) [][]finding {
	counts := make(map[clue.Domain]int)
	for _, e := range events {
		counts[e.Domain]++
	}

	out := make([][]finding, len(events))
	for i, e := range events {
		var fs []finding
		if e.LeakFlags.Any() {
			fs = append(fs, finding{IssueFlaggedLeakage, "Remove anything that hints at the date"})
		}
		if clue.DetectLeakage(e.Text).Any() {
			fs = append(fs, finding{IssueTextLeakage, "Remove numbers, century or era wording and spelled-out years"})
		}
		if clue.WordCount(e.Text) > maxWords {
			fs = append(fs, finding{IssueTooLong(maxWords), fmt.Sprintf("Shorten the clue to %d words or fewer", maxWords)})
		}
		if !clue.HasAnchor(e.Text) {
			fs = append(fs, finding{IssueNoAnchor, "Name a specific person, place or institution"})
		}
		if counts[e.Domain] > maxDomainDuplicates {
			fs = append(fs, finding{IssueDomainOverused(e.Domain), "Choose an event from a less represented domain"})
		}
		out[i] = fs
	}
	return out
}

// checkThresholds returns the threshold violations for s.
func checkThresholds(s clue.Scores, t Thresholds) []finding {
	var fs []finding
	if s.Factual < t.MinFactual {
		fs = append(fs, finding{"Factual confidence below " + formatScore(t.MinFactual), "Choose a better attested event"})
	}
	if s.LeakRisk > t.MaxLeakRisk {
		fs = append(fs, finding{"Leak risk above " + formatScore(t.MaxLeakRisk), "Remove wording that narrows down the date"})
	}
	if s.Ambiguity > t.MaxAmbiguity {
		fs = append(fs, finding{"Ambiguity above " + formatScore(t.MaxAmbiguity), "Make the clue point to a single event"})
	}
	if s.Guessability < t.MinGuessability {
		fs = append(fs, finding{"Guessability below " + formatScore(t.MinGuessability), "Choose a better known event"})
	}
	return fs
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// union appends the non-empty values of each list in order, skipping
// duplicates.
func union(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func issues(fs []finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.issue
	}
	return out
}

func hints(fs []finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.hint
	}
	return out
}
