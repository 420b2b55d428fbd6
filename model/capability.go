// Package model resolves pipeline stages to concrete generation models.
// Stages ask for a capability (generation, critique, revision) and the
// registry returns an ordered priority list of configured endpoints.
package model

import "fmt"

// Capability names the kind of work a model call performs.
type Capability string

const (
	// CapabilityGeneration proposes candidate clues for a year.
	CapabilityGeneration Capability = "generation"

	// CapabilityCritique scores candidate clues.
	CapabilityCritique Capability = "critique"

	// CapabilityRevision rewrites failing clues.
	CapabilityRevision Capability = "revision"
)

// Capabilities lists every known capability.
var Capabilities = []Capability{
	CapabilityGeneration,
	CapabilityCritique,
	CapabilityRevision,
}

// StageCapabilities maps pipeline stage names to their capability.
var StageCapabilities = map[string]Capability{
	"generator": CapabilityGeneration,
	"critic":    CapabilityCritique,
	"reviser":   CapabilityRevision,
}

// CapabilityForStage returns the capability for a stage name.
// Unknown stages use CapabilityGeneration.
func CapabilityForStage(stage string) Capability {
	if c, ok := StageCapabilities[stage]; ok {
		return c
	}
	return CapabilityGeneration
}

// IsValid reports whether c is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityGeneration, CapabilityCritique, CapabilityRevision:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts s to a Capability.
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}
