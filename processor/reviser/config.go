package reviser

import (
	"fmt"

	"github.com/c360studio/yearclue/model"
)

// Config holds configuration for the reviser stage.
type Config struct {
	Capability      model.Capability `json:"capability" yaml:"capability"`
	PreferredModel  string           `json:"preferred_model,omitempty" yaml:"preferred_model,omitempty"`
	Temperature     float64          `json:"temperature" yaml:"temperature"`
	MaxOutputTokens int              `json:"max_output_tokens" yaml:"max_output_tokens"`
}

// DefaultConfig returns the default reviser configuration.
func DefaultConfig() Config {
	return Config{
		Capability:      model.CapabilityRevision,
		Temperature:     0.5,
		MaxOutputTokens: 4096,
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
	return nil
}
