package pipeline

import "github.com/c360studio/yearclue/clue"

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ReasonInsufficientQuality is the failure reason when every attempt ran
// out without enough passing candidates.
const ReasonInsufficientQuality = "insufficient_quality"

// Metadata counts the work a run performed.
type Metadata struct {
	Attempts              int `json:"attempts"`
	CriticCycles          int `json:"critic_cycles"`
	Revisions             int `json:"revisions"`
	DeterministicFailures int `json:"deterministic_failures"`
}

// RunResult is the outcome of a run: *Success or *Failure.
type RunResult interface {
	Status() string
	Meta() Metadata
	Totals() UsageSummary
	runResult()
}

// Success is a run that selected enough events.
type Success struct {
	Year          clue.YearSummary      `json:"year"`
	Events        []clue.CandidateEvent `json:"events"`
	SelectedCount int                   `json:"selected_count"`
	Metadata      Metadata              `json:"metadata"`
	Usage         UsageSummary          `json:"usage"`
}

// Failure is a run that exhausted its attempts.
type Failure struct {
	Year     clue.YearSummary `json:"year"`
	Reason   string           `json:"reason"`
	Metadata Metadata         `json:"metadata"`
	Usage    UsageSummary     `json:"usage"`
}

// Status implements RunResult.
func (*Success) Status() string { return StatusSuccess }

// Meta implements RunResult.
func (s *Success) Meta() Metadata { return s.Metadata }

// Totals implements RunResult.
func (s *Success) Totals() UsageSummary { return s.Usage }

func (*Success) runResult() {}

// Status implements RunResult.
func (*Failure) Status() string { return StatusFailed }

// Meta implements RunResult.
func (f *Failure) Meta() Metadata { return f.Metadata }

// Totals implements RunResult.
func (f *Failure) Totals() UsageSummary { return f.Usage }

func (*Failure) runResult() {}

// Texts returns the clue text of each selected event.
func (s *Success) Texts() []string {
	return clue.Texts(s.Events)
}
