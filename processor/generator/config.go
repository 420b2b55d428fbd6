package generator

import (
	"fmt"

	"github.com/c360studio/yearclue/model"
)

// Config holds configuration for the generator stage.
type Config struct {
	// Capability selects the model priority list.
	Capability model.Capability `json:"capability" yaml:"capability"`

	// PreferredModel is where failover starts. Empty uses the registry order.
	PreferredModel string `json:"preferred_model,omitempty" yaml:"preferred_model,omitempty"`

	// Temperature for generation. Generation favours variety.
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxOutputTokens limits the response. 0 uses the endpoint default.
	MaxOutputTokens int `json:"max_output_tokens" yaml:"max_output_tokens"`

	// MinEvents and MaxEvents bound the candidate count the model must return.
	MinEvents int `json:"min_events" yaml:"min_events"`
	MaxEvents int `json:"max_events" yaml:"max_events"`
}

// DefaultConfig returns the default generator configuration.
func DefaultConfig() Config {
	return Config{
		Capability:      model.CapabilityGeneration,
		Temperature:     0.8,
		MaxOutputTokens: 4096,
		MinEvents:       12,
		MaxEvents:       18,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !c.Capability.IsValid() {
		return fmt.Errorf("invalid capability %q", c.Capability)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range 0..2", c.Temperature)
	}
	if c.MaxOutputTokens < 0 {
		return fmt.Errorf("max_output_tokens must be non-negative")
	}
	if c.MinEvents < 1 || c.MaxEvents < c.MinEvents {
		return fmt.Errorf("invalid event bounds %d..%d", c.MinEvents, c.MaxEvents)
	}
	return nil
}
