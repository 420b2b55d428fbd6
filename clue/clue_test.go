package clue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeYear(t *testing.T) {
	tests := []struct {
		year   int
		era    Era
		digits int
	}{
		{1969, EraCE, 4},
		{1, EraCE, 1},
		{0, EraBCE, 1},
		{-44, EraBCE, 2},
		{-753, EraBCE, 3},
		{476, EraCE, 3},
		{-10000, EraBCE, 4},
		{12345, EraCE, 4},
	}

	for _, tc := range tests {
		got := SummarizeYear(tc.year)
		assert.Equal(t, tc.year, got.Value, "year %d", tc.year)
		assert.Equal(t, tc.era, got.Era, "year %d", tc.year)
		assert.Equal(t, tc.digits, got.Digits, "year %d", tc.year)
	}
}

func TestEraOf_BoundaryAtZero(t *testing.T) {
	for y := -3; y <= 3; y++ {
		if y <= 0 {
			assert.Equal(t, EraBCE, EraOf(y), "year %d", y)
		} else {
			assert.Equal(t, EraCE, EraOf(y), "year %d", y)
		}
	}
}

func TestYearSummary_Label(t *testing.T) {
	assert.Equal(t, "1969 CE", SummarizeYear(1969).Label())
	assert.Equal(t, "44 BCE", SummarizeYear(-44).Label())
}

func TestParseEra(t *testing.T) {
	era, err := ParseEra("bce")
	require.NoError(t, err)
	assert.Equal(t, EraBCE, era)

	era, err = ParseEra(" AD ")
	require.NoError(t, err)
	assert.Equal(t, EraCE, era)

	_, err = ParseEra("later")
	assert.Error(t, err)
}

func TestParseDomain(t *testing.T) {
	d, err := ParseDomain("  Science ")
	require.NoError(t, err)
	assert.Equal(t, DomainScience, d)

	_, err = ParseDomain("astrology")
	assert.Error(t, err)
}

func TestCandidateEvent_Validate(t *testing.T) {
	valid := CandidateEvent{
		Title:           "Moon landing",
		Text:            "Apollo astronauts walk on the Moon",
		Domain:          DomainScience,
		Geo:             "United States",
		DifficultyGuess: 2,
		Confidence:      0.9,
	}
	require.NoError(t, valid.Validate())

	tooLong := valid
	tooLong.Text = strings.Repeat("a", MaxTextLength+1)
	assert.Error(t, tooLong.Validate())

	badDifficulty := valid
	badDifficulty.DifficultyGuess = 6
	assert.Error(t, badDifficulty.Validate())

	badConfidence := valid
	badConfidence.Confidence = 1.2
	assert.Error(t, badConfidence.Validate())

	badDomain := valid
	badDomain.Domain = "fashion"
	assert.Error(t, badDomain.Validate())

	empty := valid
	empty.Text = "   "
	assert.Error(t, empty.Validate())
}

func TestCandidateEvent_Sanitized(t *testing.T) {
	e := CandidateEvent{
		Title:  "  Moon \n landing ",
		Text:   "Apollo   astronauts\twalk on the Moon ",
		Domain: " SCIENCE ",
		Geo:    " United  States",
	}

	got := e.Sanitized()
	assert.Equal(t, "Moon landing", got.Title)
	assert.Equal(t, "Apollo astronauts walk on the Moon", got.Text)
	assert.Equal(t, DomainScience, got.Domain)
	assert.Equal(t, "United States", got.Geo)

	// Original is untouched.
	assert.Equal(t, "  Moon \n landing ", e.Title)
}

func TestScores_Validate(t *testing.T) {
	assert.NoError(t, Scores{Factual: 1, LeakRisk: 0, Ambiguity: 0.2, Guessability: 0.5, Diversity: 0.5}.Validate())
	assert.Error(t, Scores{Factual: 1.5}.Validate())
	assert.Error(t, Scores{LeakRisk: -0.1}.Validate())
}

func TestDetectLeakage(t *testing.T) {
	tests := []struct {
		text string
		want LeakFlags
	}{
		{"Apollo astronauts walk on the Moon", LeakFlags{}},
		{"Apollo 11 lands on the Moon", LeakFlags{HasDigits: true}},
		{"The last decade of the Cold War begins", LeakFlags{HasCenturyTerms: true}},
		{"A new century dawns over Europe", LeakFlags{HasCenturyTerms: true}},
		{"Caesar is stabbed in 44 BC", LeakFlags{HasDigits: true, HasCenturyTerms: true}},
		{"Rome adopts the A.D. calendar", LeakFlags{HasCenturyTerms: true}},
		{"An ad campaign sells cereal", LeakFlags{}},
		{"Events of nineteen sixty-nine shock Paris", LeakFlags{HasSpelledYear: true}},
		{"Two thousand pilgrims reach Mecca", LeakFlags{HasSpelledYear: true}},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, DetectLeakage(tc.text), tc.text)
	}
}

func TestHasAnchor(t *testing.T) {
	assert.True(t, HasAnchor("Astronauts walk on the Moon"))
	assert.True(t, HasAnchor("a treaty ends the long war"))
	assert.False(t, HasAnchor("People celebrate a big victory"))
	assert.False(t, HasAnchor(""))
	// Capitalized first word alone is not an anchor.
	assert.False(t, HasAnchor("Farmers harvest wheat early"))
}

func TestWordCountAndNormalize(t *testing.T) {
	assert.Equal(t, 4, WordCount("  one two\tthree\nfour "))
	assert.Equal(t, "a b c", NormalizeSpace(" a\n\nb   c "))
}

func TestTexts(t *testing.T) {
	events := []CandidateEvent{{Text: "a"}, {Text: "b"}}
	assert.Equal(t, []string{"a", "b"}, Texts(events))
}

func TestLeakFlags_Any(t *testing.T) {
	assert.False(t, LeakFlags{}.Any())
	assert.True(t, LeakFlags{HasSpelledYear: true}.Any())
}
