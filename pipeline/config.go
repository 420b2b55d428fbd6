package pipeline

import "fmt"

// Config bounds the orchestrator's iteration and selection.
type Config struct {
	// MaxTotalAttempts is the number of full regenerations per run.
	MaxTotalAttempts int `json:"max_total_attempts" yaml:"max_total_attempts"`

	// MaxCriticCycles is the number of critique passes per attempt.
	MaxCriticCycles int `json:"max_critic_cycles" yaml:"max_critic_cycles"`

	MinRequiredEvents   int `json:"min_required_events" yaml:"min_required_events"`
	MaxSelectedEvents   int `json:"max_selected_events" yaml:"max_selected_events"`
	MaxDomainDuplicates int `json:"max_domain_duplicates" yaml:"max_domain_duplicates"`
}

// DefaultConfig returns the standard bounds.
func DefaultConfig() Config {
	return Config{
		MaxTotalAttempts:    4,
		MaxCriticCycles:     2,
		MinRequiredEvents:   6,
		MaxSelectedEvents:   10,
		MaxDomainDuplicates: 3,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxTotalAttempts < 1 {
		return fmt.Errorf("max_total_attempts must be at least 1")
	}
	if c.MaxCriticCycles < 1 {
		return fmt.Errorf("max_critic_cycles must be at least 1")
	}
	if c.MinRequiredEvents < 1 {
		return fmt.Errorf("min_required_events must be at least 1")
	}
	if c.MaxSelectedEvents < c.MinRequiredEvents {
		return fmt.Errorf("max_selected_events (%d) below min_required_events (%d)",
			c.MaxSelectedEvents, c.MinRequiredEvents)
	}
	if c.MaxDomainDuplicates < 1 {
		return fmt.Errorf("max_domain_duplicates must be at least 1")
	}
	return nil
}
