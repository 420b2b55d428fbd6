package clue

import (
	"fmt"
	"strconv"
	"strings"
)

// Era is the calendar era of a year.
type Era string

const (
	EraBCE Era = "BCE"
	EraCE  Era = "CE"
)

// ParseEra converts s to an Era, ignoring case.
func ParseEra(s string) (Era, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BCE", "BC":
		return EraBCE, nil
	case "CE", "AD":
		return EraCE, nil
	}
	return "", fmt.Errorf("unknown era %q", s)
}

// EraOf returns BCE for years at or below zero and CE otherwise.
func EraOf(year int) Era {
	if year <= 0 {
		return EraBCE
	}
	return EraCE
}

// YearSummary describes the requested year. It is derived once per run.
type YearSummary struct {
	Value  int `json:"value"`
	Era    Era `json:"era"`
	Digits int `json:"digits"`
}

// SummarizeYear derives the era and digit count for year.
// Digits is the length of |year| in decimal, clamped to 1..4.
func SummarizeYear(year int) YearSummary {
	abs := year
	if abs < 0 {
		abs = -abs
	}
	digits := len(strconv.Itoa(abs))
	digits = max(1, min(4, digits))
	return YearSummary{
		Value:  year,
		Era:    EraOf(year),
		Digits: digits,
	}
}

// Label renders the year for prompts, e.g. "1969 CE" or "44 BCE" for -44.
func (y YearSummary) Label() string {
	if y.Era == EraBCE {
		return fmt.Sprintf("%d BCE", -y.Value)
	}
	return fmt.Sprintf("%d CE", y.Value)
}
