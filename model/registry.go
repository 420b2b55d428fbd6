package model

import (
	"encoding/json"
	"sort"
	"sync"
)

// Registry maps capabilities to ordered model priority lists and model
// names to endpoint settings. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaults     *DefaultsConfig
}

// CapabilityConfig defines model preferences for a capability.
type CapabilityConfig struct {
	// Description explains what this capability is for.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Preferred lists models in order of preference.
	Preferred []string `json:"preferred" yaml:"preferred"`

	// Fallback lists models tried after every preferred model, for
	// example after repeated rate limiting.
	Fallback []string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Pricing is the per-1000-token price of a model in USD.
type Pricing struct {
	InputCostPer1K     float64 `json:"input_cost_per_1k" yaml:"input_cost_per_1k"`
	OutputCostPer1K    float64 `json:"output_cost_per_1k" yaml:"output_cost_per_1k"`
	ReasoningCostPer1K float64 `json:"reasoning_cost_per_1k,omitempty" yaml:"reasoning_cost_per_1k,omitempty"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the adapter name (openai, responses, anthropic).
	Provider string `json:"provider" yaml:"provider"`

	// URL overrides the provider's default base URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the identifier sent to the provider.
	Model string `json:"model" yaml:"model"`

	// MaxTokens caps output tokens when the request does not set a limit.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// Pricing enables cost accounting. Nil means cost is unknown.
	Pricing *Pricing `json:"pricing,omitempty" yaml:"pricing,omitempty"`
}

// DefaultsConfig holds default model settings.
type DefaultsConfig struct {
	// Model is used when a capability has no configuration.
	Model string `json:"model" yaml:"model"`
}

// NewRegistry creates a registry from explicit capability and endpoint maps.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaults:     &DefaultsConfig{Model: "default"},
	}
}

// NewDefaultRegistry creates a registry with the stock OpenAI setup.
func NewDefaultRegistry() *Registry {
	return &Registry{
		capabilities: map[Capability]*CapabilityConfig{
			CapabilityGeneration: {
				Description: "Propose candidate clues for a year",
				Preferred:   []string{"gpt-4o"},
				Fallback:    []string{"gpt-4o-mini"},
			},
			CapabilityCritique: {
				Description: "Score candidate clues",
				Preferred:   []string{"gpt-4o-mini"},
				Fallback:    []string{"gpt-4o"},
			},
			CapabilityRevision: {
				Description: "Rewrite failing clues",
				Preferred:   []string{"gpt-4o"},
				Fallback:    []string{"gpt-4o-mini"},
			},
		},
		endpoints: map[string]*EndpointConfig{
			"gpt-4o": {
				Provider:  "openai",
				Model:     "gpt-4o",
				MaxTokens: 4096,
				Pricing: &Pricing{
					InputCostPer1K:  0.0025,
					OutputCostPer1K: 0.01,
				},
			},
			"gpt-4o-mini": {
				Provider:  "openai",
				Model:     "gpt-4o-mini",
				MaxTokens: 4096,
				Pricing: &Pricing{
					InputCostPer1K:  0.00015,
					OutputCostPer1K: 0.0006,
				},
			},
			"claude-sonnet": {
				Provider:  "anthropic",
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 4096,
				Pricing: &Pricing{
					InputCostPer1K:  0.003,
					OutputCostPer1K: 0.015,
				},
			},
		},
		defaults: &DefaultsConfig{Model: "gpt-4o-mini"},
	}
}

// Resolve returns the first preferred model for a capability.
func (r *Registry) Resolve(c Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaults.Model
}

// GetFallbackChain returns all models for a capability in priority order:
// preferred models first, then fallbacks. Duplicates are dropped.
func (r *Registry) GetFallbackChain(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.capabilities[c]
	if !ok {
		return []string{r.defaults.Model}
	}

	seen := make(map[string]bool, len(cfg.Preferred)+len(cfg.Fallback))
	chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
	for _, name := range append(append([]string{}, cfg.Preferred...), cfg.Fallback...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		chain = append(chain, name)
	}
	if len(chain) == 0 {
		return []string{r.defaults.Model}
	}
	return chain
}

// GetEndpoint returns the endpoint configuration for a model name, or nil.
func (r *Registry) GetEndpoint(modelName string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[modelName]
}

// SetCapability updates or adds a capability configuration.
func (r *Registry) SetCapability(c Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capabilities == nil {
		r.capabilities = make(map[Capability]*CapabilityConfig)
	}
	r.capabilities[c] = cfg
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endpoints == nil {
		r.endpoints = make(map[string]*EndpointConfig)
	}
	r.endpoints[name] = cfg
}

// SetDefault sets the default model.
func (r *Registry) SetDefault(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.defaults == nil {
		r.defaults = &DefaultsConfig{}
	}
	r.defaults.Model = model
}

// ListCapabilities returns all configured capabilities, sorted.
func (r *Registry) ListCapabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]Capability, 0, len(r.capabilities))
	for c := range r.capabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// ListEndpoints returns all configured endpoint names, sorted.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON implements json.Marshaler.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToConfig())
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var cfg RegistryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	loaded := FromConfig(&cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities = loaded.capabilities
	r.endpoints = loaded.endpoints
	r.defaults = loaded.defaults
	return nil
}
