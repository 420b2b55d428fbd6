// Package config provides configuration loading and management for yearclue.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/yearclue/alert"
	"github.com/c360studio/yearclue/llm"
	"github.com/c360studio/yearclue/model"
	"github.com/c360studio/yearclue/pipeline"
	"github.com/c360studio/yearclue/processor/critic"
	"github.com/c360studio/yearclue/processor/generator"
	"github.com/c360studio/yearclue/processor/reviser"
	"gopkg.in/yaml.v3"
)

// Config represents the complete yearclue configuration
type Config struct {
	Models    *model.RegistryConfig `yaml:"models,omitempty"`
	LLM       LLMConfig             `yaml:"llm"`
	Pipeline  pipeline.Config       `yaml:"pipeline"`
	Generator generator.Config      `yaml:"generator"`
	Critic    critic.Config         `yaml:"critic"`
	Reviser   reviser.Config        `yaml:"reviser"`
	Storage   StorageConfig         `yaml:"storage"`
	NATS      NATSConfig            `yaml:"nats"`
	Metrics   MetricsConfig         `yaml:"metrics"`
	Worklist  WorklistConfig        `yaml:"worklist"`
	Alert     alert.Config          `yaml:"alert"`
	Log       LogConfig             `yaml:"log"`
}

// LLMConfig configures the generation client
type LLMConfig struct {
	// Timeout bounds a single HTTP attempt
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// RetryConfig mirrors llm.RetryConfig with YAML tags
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	Jitter      float64       `yaml:"jitter"`
}

// BreakerConfig mirrors llm.BreakerConfig with YAML tags
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// StorageConfig locates the file-backed stores
type StorageConfig struct {
	// PuzzlesPath is the puzzles.json that successful runs import into
	PuzzlesPath string `yaml:"puzzles_path"`
	// AttemptsPath is the JSONL attempt log used when NATS is not configured
	AttemptsPath string `yaml:"attempts_path"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = file-backed attempt log, no alerts published)
	URL string `yaml:"url"`
	// DisableCallStore skips writing generation calls to the call bucket
	DisableCallStore bool `yaml:"disable_call_store"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address (empty = disabled)
	Addr string `yaml:"addr"`
}

// WorklistConfig configures file-based work selection
type WorklistConfig struct {
	Root     string        `yaml:"root"`
	Patterns []string      `yaml:"patterns"`
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig configures the root logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	retry := llm.DefaultRetryConfig()
	breaker := llm.DefaultBreakerConfig()
	return &Config{
		LLM: LLMConfig{
			Timeout: 180 * time.Second,
			Retry: RetryConfig{
				MaxAttempts: retry.MaxAttempts,
				BackoffBase: retry.BackoffBase,
				MaxBackoff:  retry.MaxBackoff,
				Jitter:      retry.Jitter,
			},
			Breaker: BreakerConfig{
				FailureThreshold: breaker.FailureThreshold,
				Cooldown:         breaker.Cooldown,
			},
		},
		Pipeline:  pipeline.DefaultConfig(),
		Generator: generator.DefaultConfig(),
		Critic:    critic.DefaultConfig(),
		Reviser:   reviser.DefaultConfig(),
		Storage: StorageConfig{
			PuzzlesPath:  "puzzles.json",
			AttemptsPath: "data/attempts.jsonl",
		},
		Worklist: WorklistConfig{
			Root:     ".",
			Patterns: []string{"queue/**/*.yaml"},
			Debounce: 500 * time.Millisecond,
		},
		Alert: alert.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Registry().ToConfig().Validate(); err != nil {
		return fmt.Errorf("models: %w", err)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		return fmt.Errorf("llm.retry.max_attempts must be at least 1")
	}
	if c.LLM.Retry.BackoffBase <= 0 || c.LLM.Retry.MaxBackoff < c.LLM.Retry.BackoffBase {
		return fmt.Errorf("llm.retry: backoff_base must be positive and no greater than max_backoff")
	}
	if c.LLM.Retry.Jitter < 0 || c.LLM.Retry.Jitter > 1 {
		return fmt.Errorf("llm.retry.jitter must be between 0 and 1")
	}
	if c.LLM.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("llm.breaker.failure_threshold must be at least 1")
	}
	if c.LLM.Breaker.Cooldown <= 0 {
		return fmt.Errorf("llm.breaker.cooldown must be positive")
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if err := c.Critic.Validate(); err != nil {
		return fmt.Errorf("critic: %w", err)
	}
	if err := c.Reviser.Validate(); err != nil {
		return fmt.Errorf("reviser: %w", err)
	}
	if c.Storage.PuzzlesPath == "" {
		return fmt.Errorf("storage.puzzles_path is required")
	}
	if c.NATS.URL == "" && c.Storage.AttemptsPath == "" {
		return fmt.Errorf("storage.attempts_path is required when nats.url is empty")
	}
	if c.Worklist.Debounce < 0 {
		return fmt.Errorf("worklist.debounce must not be negative")
	}
	if err := c.Alert.Validate(); err != nil {
		return fmt.Errorf("alert: %w", err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not text or json", c.Log.Format)
	}
	return nil
}

// RetryConfig converts the retry section for the client.
func (c *Config) RetryConfig() llm.RetryConfig {
	return llm.RetryConfig{
		MaxAttempts: c.LLM.Retry.MaxAttempts,
		BackoffBase: c.LLM.Retry.BackoffBase,
		MaxBackoff:  c.LLM.Retry.MaxBackoff,
		Jitter:      c.LLM.Retry.Jitter,
	}
}

// BreakerConfig converts the breaker section for the client.
func (c *Config) BreakerConfig() llm.BreakerConfig {
	return llm.BreakerConfig{
		FailureThreshold: c.LLM.Breaker.FailureThreshold,
		Cooldown:         c.LLM.Breaker.Cooldown,
	}
}

// Registry builds the model registry: the stock registry overlaid with
// the models section.
func (c *Config) Registry() *model.Registry {
	r := model.NewDefaultRegistry()
	r.MergeFromConfig(c.Models)
	return r
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	overlay, err := readFile(path)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	config.Merge(overlay)
	return config, nil
}

// readFile parses a YAML file into an otherwise zero Config, so that
// layering only applies the keys the file sets.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// set overwrites *dst with v when v is not the zero value.
func set[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Models
	if other.Models != nil {
		if c.Models == nil {
			c.Models = &model.RegistryConfig{}
		}
		if c.Models.Capabilities == nil {
			c.Models.Capabilities = make(map[string]*model.CapabilityConfig)
		}
		if c.Models.Endpoints == nil {
			c.Models.Endpoints = make(map[string]*model.EndpointConfig)
		}
		for k, v := range other.Models.Capabilities {
			c.Models.Capabilities[k] = v
		}
		for k, v := range other.Models.Endpoints {
			c.Models.Endpoints[k] = v
		}
		if other.Models.Defaults != nil {
			c.Models.Defaults = other.Models.Defaults
		}
	}

	// LLM
	set(&c.LLM.Timeout, other.LLM.Timeout)
	set(&c.LLM.Retry.MaxAttempts, other.LLM.Retry.MaxAttempts)
	set(&c.LLM.Retry.BackoffBase, other.LLM.Retry.BackoffBase)
	set(&c.LLM.Retry.MaxBackoff, other.LLM.Retry.MaxBackoff)
	set(&c.LLM.Retry.Jitter, other.LLM.Retry.Jitter)
	set(&c.LLM.Breaker.FailureThreshold, other.LLM.Breaker.FailureThreshold)
	set(&c.LLM.Breaker.Cooldown, other.LLM.Breaker.Cooldown)

	// Pipeline
	set(&c.Pipeline.MaxTotalAttempts, other.Pipeline.MaxTotalAttempts)
	set(&c.Pipeline.MaxCriticCycles, other.Pipeline.MaxCriticCycles)
	set(&c.Pipeline.MinRequiredEvents, other.Pipeline.MinRequiredEvents)
	set(&c.Pipeline.MaxSelectedEvents, other.Pipeline.MaxSelectedEvents)
	set(&c.Pipeline.MaxDomainDuplicates, other.Pipeline.MaxDomainDuplicates)

	// Stages
	set(&c.Generator.Capability, other.Generator.Capability)
	set(&c.Generator.PreferredModel, other.Generator.PreferredModel)
	set(&c.Generator.Temperature, other.Generator.Temperature)
	set(&c.Generator.MaxOutputTokens, other.Generator.MaxOutputTokens)
	set(&c.Generator.MinEvents, other.Generator.MinEvents)
	set(&c.Generator.MaxEvents, other.Generator.MaxEvents)

	set(&c.Critic.Capability, other.Critic.Capability)
	set(&c.Critic.PreferredModel, other.Critic.PreferredModel)
	set(&c.Critic.Temperature, other.Critic.Temperature)
	set(&c.Critic.MaxOutputTokens, other.Critic.MaxOutputTokens)
	set(&c.Critic.MaxWords, other.Critic.MaxWords)
	set(&c.Critic.MaxDomainDuplicates, other.Critic.MaxDomainDuplicates)
	set(&c.Critic.Thresholds.MinFactual, other.Critic.Thresholds.MinFactual)
	set(&c.Critic.Thresholds.MaxLeakRisk, other.Critic.Thresholds.MaxLeakRisk)
	set(&c.Critic.Thresholds.MaxAmbiguity, other.Critic.Thresholds.MaxAmbiguity)
	set(&c.Critic.Thresholds.MinGuessability, other.Critic.Thresholds.MinGuessability)

	set(&c.Reviser.Capability, other.Reviser.Capability)
	set(&c.Reviser.PreferredModel, other.Reviser.PreferredModel)
	set(&c.Reviser.Temperature, other.Reviser.Temperature)
	set(&c.Reviser.MaxOutputTokens, other.Reviser.MaxOutputTokens)

	// Storage, NATS, metrics
	set(&c.Storage.PuzzlesPath, other.Storage.PuzzlesPath)
	set(&c.Storage.AttemptsPath, other.Storage.AttemptsPath)
	set(&c.NATS.URL, other.NATS.URL)
	if other.NATS.DisableCallStore {
		c.NATS.DisableCallStore = true
	}
	set(&c.Metrics.Addr, other.Metrics.Addr)

	// Worklist
	set(&c.Worklist.Root, other.Worklist.Root)
	if len(other.Worklist.Patterns) > 0 {
		c.Worklist.Patterns = other.Worklist.Patterns
	}
	set(&c.Worklist.Debounce, other.Worklist.Debounce)

	// Alert
	set(&c.Alert.Window, other.Alert.Window)
	set(&c.Alert.FailureRateThreshold, other.Alert.FailureRateThreshold)
	set(&c.Alert.MinSamples, other.Alert.MinSamples)
	set(&c.Alert.Subject, other.Alert.Subject)

	// Log
	set(&c.Log.Level, other.Log.Level)
	set(&c.Log.Format, other.Log.Format)
}
