package clue

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)

	// digitPattern matches any run of ASCII digits.
	digitPattern = regexp.MustCompile(`[0-9]+`)

	// centuryPattern matches century, millennium and decade wording.
	centuryPattern = regexp.MustCompile(`(?i)\b(centur(y|ies)|millenni(um|a)|decades?)\b`)

	// eraPattern matches era abbreviations. Case-sensitive so "ad" and "ce" in
	// ordinary words do not trigger it.
	eraPattern = regexp.MustCompile(`(^|[^A-Za-z.])(BCE|BC|AD|CE|B\.C\.E\.|B\.C\.|A\.D\.|C\.E\.)([^A-Za-z]|$)`)

	// spelledYearPattern matches years written out in words, e.g. "nineteen sixty-nine".
	spelledYearPattern = regexp.MustCompile(`(?i)\b(ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty)[\s-]+(hundred|oh|twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety)\b|\b(one|two) thousand\b`)
)

// structuralIndicators are words that anchor a clue to a specific entity even
// when it contains no capitalized proper noun.
var structuralIndicators = map[string]bool{
	"treaty": true, "empire": true, "kingdom": true, "dynasty": true,
	"republic": true, "emperor": true, "empress": true, "king": true,
	"queen": true, "pope": true, "pharaoh": true, "sultan": true,
	"caliph": true, "shogun": true, "tsar": true, "president": true,
	"parliament": true, "senate": true, "council": true, "revolution": true,
	"battle": true, "siege": true, "expedition": true, "olympics": true,
	"cathedral": true, "university": true, "company": true, "constitution": true,
}

// NormalizeSpace collapses runs of whitespace and trims the result.
func NormalizeSpace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// HasDigits reports whether s contains a run of digits.
func HasDigits(s string) bool {
	return digitPattern.MatchString(s)
}

// HasCenturyTerms reports whether s uses century, decade or era wording.
func HasCenturyTerms(s string) bool {
	return centuryPattern.MatchString(s) || eraPattern.MatchString(s)
}

// HasSpelledYear reports whether s spells out a year in words.
func HasSpelledYear(s string) bool {
	return spelledYearPattern.MatchString(s)
}

// DetectLeakage evaluates the leakage heuristics against clue text.
func DetectLeakage(s string) LeakFlags {
	return LeakFlags{
		HasDigits:       HasDigits(s),
		HasCenturyTerms: HasCenturyTerms(s),
		HasSpelledYear:  HasSpelledYear(s),
	}
}

// HasAnchor reports whether s names something specific: a capitalized token
// after the first word, or a structural indicator word anywhere.
func HasAnchor(s string) bool {
	words := strings.Fields(s)
	for i, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if trimmed == "" {
			continue
		}
		if structuralIndicators[strings.ToLower(trimmed)] {
			return true
		}
		if i > 0 && unicode.IsUpper([]rune(trimmed)[0]) {
			return true
		}
	}
	return false
}
