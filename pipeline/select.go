package pipeline

import (
	"cmp"
	"math"
	"slices"

	"github.com/c360studio/yearclue/clue"
)

// tieEpsilon is the score difference treated as a tie.
const tieEpsilon = 0.0001

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= tieEpsilon
}

// Rank returns passing sorted best first: guessability desc, then factual
// desc, then leak risk asc. Scores chained within tieEpsilon of their
// neighbour form one tie group for the next key. Equal entries keep their
// order.
func Rank(passing []clue.CritiqueResult) []clue.CritiqueResult {
	ranked := slices.Clone(passing)
	rankBy(ranked, func(s clue.Scores) float64 { return -s.Guessability }, func(g []clue.CritiqueResult) {
		rankBy(g, func(s clue.Scores) float64 { return -s.Factual }, func(f []clue.CritiqueResult) {
			slices.SortStableFunc(f, func(a, b clue.CritiqueResult) int {
				return cmp.Compare(a.Scores.LeakRisk, b.Scores.LeakRisk)
			})
		})
	})
	return ranked
}

// rankBy stable-sorts s ascending by key and passes each run of entries
// whose adjacent keys are nearly equal to tie.
func rankBy(s []clue.CritiqueResult, key func(clue.Scores) float64, tie func([]clue.CritiqueResult)) {
	slices.SortStableFunc(s, func(a, b clue.CritiqueResult) int {
		return cmp.Compare(key(a.Scores), key(b.Scores))
	})
	start := 0
	for i := 1; i <= len(s); i++ {
		if i < len(s) && nearlyEqual(key(s[i-1].Scores), key(s[i].Scores)) {
			continue
		}
		if i-start > 1 {
			tie(s[start:i])
		}
		start = i
	}
}

// Select picks the final events from the passing results. A domain already
// taken cfg.MaxDomainDuplicates times is deferred to an overflow list, which
// only tops up a selection still short of cfg.MinRequiredEvents.
func Select(passing []clue.CritiqueResult, cfg Config) []clue.CritiqueResult {
	ranked := Rank(passing)

	selected := make([]clue.CritiqueResult, 0, cfg.MaxSelectedEvents)
	var overflow []clue.CritiqueResult
	perDomain := make(map[clue.Domain]int)

	for _, r := range ranked {
		if len(selected) >= cfg.MaxSelectedEvents {
			break
		}
		d := r.Event.Domain
		if perDomain[d] >= cfg.MaxDomainDuplicates {
			overflow = append(overflow, r)
			continue
		}
		selected = append(selected, r)
		perDomain[d]++
	}

	for _, r := range overflow {
		if len(selected) >= cfg.MinRequiredEvents {
			break
		}
		selected = append(selected, r)
	}

	if len(selected) > cfg.MaxSelectedEvents {
		selected = selected[:cfg.MaxSelectedEvents]
	}
	return selected
}
