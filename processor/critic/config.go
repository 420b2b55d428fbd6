package critic

import (
	"fmt"

	"github.com/c360studio/yearclue/model"
)

// Thresholds are the score limits applied regardless of the model's verdict.
type Thresholds struct {
	MinFactual      float64 `json:"min_factual" yaml:"min_factual"`
	MaxLeakRisk     float64 `json:"max_leak_risk" yaml:"max_leak_risk"`
	MaxAmbiguity    float64 `json:"max_ambiguity" yaml:"max_ambiguity"`
	MinGuessability float64 `json:"min_guessability" yaml:"min_guessability"`
}

// Config holds configuration for the critic stage.
type Config struct {
	Capability      model.Capability `json:"capability" yaml:"capability"`
	PreferredModel  string           `json:"preferred_model,omitempty" yaml:"preferred_model,omitempty"`
	Temperature     float64          `json:"temperature" yaml:"temperature"`
	MaxOutputTokens int              `json:"max_output_tokens" yaml:"max_output_tokens"`

	// MaxWords is the longest clue, in words, the deterministic pass accepts.
	MaxWords int `json:"max_words" yaml:"max_words"`

	// MaxDomainDuplicates is the per-domain count above which every member
	// of that domain is flagged.
	MaxDomainDuplicates int `json:"max_domain_duplicates" yaml:"max_domain_duplicates"`

	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`
}

// DefaultConfig returns the default critic configuration.
func DefaultConfig() Config {
	return Config{
		Capability:          model.CapabilityCritique,
		Temperature:         0.2,
		MaxOutputTokens:     4096,
		MaxWords:            20,
		MaxDomainDuplicates: 3,
		Thresholds: Thresholds{
			MinFactual:      0.75,
			MaxLeakRisk:     0.15,
			MaxAmbiguity:    0.25,
			MinGuessability: 0.4,
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !c.Capability.IsValid() {
		return fmt.Errorf("invalid capability %q", c.Capability)
	}
	if c.MaxWords < 1 {
		return fmt.Errorf("max_words must be positive")
	}
	if c.MaxDomainDuplicates < 1 {
		return fmt.Errorf("max_domain_duplicates must be positive")
	}
	t := c.Thresholds
	for name, v := range map[string]float64{
		"min_factual":      t.MinFactual,
		"max_leak_risk":    t.MaxLeakRisk,
		"max_ambiguity":    t.MaxAmbiguity,
		"min_guessability": t.MinGuessability,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("threshold %s=%.3f out of range 0..1", name, v)
		}
	}
	return nil
}
