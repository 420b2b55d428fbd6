package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/yearclue/model"
	"github.com/c360studio/yearclue/pipeline"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pipeline.MaxTotalAttempts != 4 {
		t.Errorf("expected 4 total attempts, got %d", cfg.Pipeline.MaxTotalAttempts)
	}
	if cfg.Pipeline.MinRequiredEvents != 6 || cfg.Pipeline.MaxSelectedEvents != 10 {
		t.Errorf("unexpected selection bounds %d..%d", cfg.Pipeline.MinRequiredEvents, cfg.Pipeline.MaxSelectedEvents)
	}
	if cfg.LLM.Timeout != 180*time.Second {
		t.Errorf("expected 180s timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.Storage.PuzzlesPath != "puzzles.json" {
		t.Errorf("expected puzzles.json, got %s", cfg.Storage.PuzzlesPath)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("expected no NATS URL by default, got %s", cfg.NATS.URL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.LLM.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "jitter too high",
			modify:  func(c *Config) { c.LLM.Retry.Jitter = 1.5 },
			wantErr: true,
		},
		{
			name:    "backoff base above max",
			modify:  func(c *Config) { c.LLM.Retry.BackoffBase = time.Hour },
			wantErr: true,
		},
		{
			name:    "breaker threshold zero",
			modify:  func(c *Config) { c.LLM.Breaker.FailureThreshold = 0 },
			wantErr: true,
		},
		{
			name:    "invalid pipeline bounds",
			modify:  func(c *Config) { c.Pipeline.MinRequiredEvents = 20 },
			wantErr: true,
		},
		{
			name:    "missing puzzles path",
			modify:  func(c *Config) { c.Storage.PuzzlesPath = "" },
			wantErr: true,
		},
		{
			name:    "attempts path optional with nats",
			modify:  func(c *Config) { c.Storage.AttemptsPath = ""; c.NATS.URL = "nats://localhost:4222" },
			wantErr: false,
		},
		{
			name:    "attempts path required without nats",
			modify:  func(c *Config) { c.Storage.AttemptsPath = "" },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: true,
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
		},
		{
			name: "model without endpoint",
			modify: func(c *Config) {
				c.Models = &model.RegistryConfig{
					Capabilities: map[string]*model.CapabilityConfig{
						"generation": {Preferred: []string{"ghost"}},
					},
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
llm:
  timeout: 90s
  retry:
    max_attempts: 5
pipeline:
  max_total_attempts: 3
critic:
  thresholds:
    min_factual: 0.8
storage:
  puzzles_path: "/data/puzzles.json"
nats:
  url: "nats://test:4222"
worklist:
  patterns:
    - "years/*.yaml"
models:
  endpoints:
    local:
      provider: openai
      model: llama3
      url: "http://localhost:11434/v1"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("expected timeout 90s, got %v", cfg.LLM.Timeout)
	}
	if cfg.LLM.Retry.MaxAttempts != 5 {
		t.Errorf("expected 5 retry attempts, got %d", cfg.LLM.Retry.MaxAttempts)
	}
	if cfg.LLM.Retry.BackoffBase != time.Second {
		t.Errorf("expected default backoff base to survive, got %v", cfg.LLM.Retry.BackoffBase)
	}
	if cfg.Pipeline.MaxTotalAttempts != 3 {
		t.Errorf("expected 3 total attempts, got %d", cfg.Pipeline.MaxTotalAttempts)
	}
	if cfg.Pipeline.MaxCriticCycles != 2 {
		t.Errorf("expected default critic cycles, got %d", cfg.Pipeline.MaxCriticCycles)
	}
	if cfg.Critic.Thresholds.MinFactual != 0.8 {
		t.Errorf("expected min_factual 0.8, got %f", cfg.Critic.Thresholds.MinFactual)
	}
	if cfg.Critic.Thresholds.MaxLeakRisk != 0.15 {
		t.Errorf("expected default max_leak_risk, got %f", cfg.Critic.Thresholds.MaxLeakRisk)
	}
	if cfg.Storage.PuzzlesPath != "/data/puzzles.json" {
		t.Errorf("expected puzzles path /data/puzzles.json, got %s", cfg.Storage.PuzzlesPath)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if len(cfg.Worklist.Patterns) != 1 || cfg.Worklist.Patterns[0] != "years/*.yaml" {
		t.Errorf("unexpected patterns %v", cfg.Worklist.Patterns)
	}
	if cfg.Models == nil || cfg.Models.Endpoints["local"] == nil {
		t.Fatalf("expected local endpoint in models section")
	}
	if ep := cfg.Registry().GetEndpoint("local"); ep == nil || ep.Model != "llama3" {
		t.Errorf("expected registry to carry local endpoint, got %+v", ep)
	}
	if cfg.Registry().GetEndpoint("gpt-4o") == nil {
		t.Error("expected stock endpoints to remain in registry")
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Pipeline: pipeline.Config{MaxTotalAttempts: 5},
		Storage: StorageConfig{
			PuzzlesPath: "/override/puzzles.json",
		},
		Log: LogConfig{Level: "debug"},
	}

	base.Merge(override)

	if base.Pipeline.MaxTotalAttempts != 5 {
		t.Errorf("expected 5 total attempts, got %d", base.Pipeline.MaxTotalAttempts)
	}
	if base.Pipeline.MaxSelectedEvents != 10 {
		t.Errorf("expected max selected to remain 10, got %d", base.Pipeline.MaxSelectedEvents)
	}
	if base.Storage.PuzzlesPath != "/override/puzzles.json" {
		t.Errorf("expected overridden puzzles path, got %s", base.Storage.PuzzlesPath)
	}
	if base.Storage.AttemptsPath != "data/attempts.jsonl" {
		t.Errorf("expected attempts path to remain, got %s", base.Storage.AttemptsPath)
	}
	if base.Log.Level != "debug" || base.Log.Format != "text" {
		t.Errorf("unexpected log config %+v", base.Log)
	}

	base.Merge(nil)
	if base.Pipeline.MaxTotalAttempts != 5 {
		t.Error("merging nil should be a no-op")
	}
}

func TestConfigSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.NATS.URL = "nats://saved:4222"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.NATS.URL != "nats://saved:4222" {
		t.Errorf("expected saved NATS URL, got %s", loaded.NATS.URL)
	}
	if loaded.Worklist.Debounce != 500*time.Millisecond {
		t.Errorf("expected debounce to round-trip, got %v", loaded.Worklist.Debounce)
	}
}

func TestLoader_Layering(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	nested := filepath.Join(project, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	user := filepath.Join(home, UserConfigDir, UserConfigFile)
	if err := os.MkdirAll(filepath.Dir(user), 0755); err != nil {
		t.Fatal(err)
	}
	userYAML := "log:\n  level: debug\nstorage:\n  puzzles_path: user.json\n"
	if err := os.WriteFile(user, []byte(userYAML), 0644); err != nil {
		t.Fatal(err)
	}
	projectYAML := "storage:\n  puzzles_path: project.json\n"
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte(projectYAML), 0644); err != nil {
		t.Fatal(err)
	}

	env := map[string]string{EnvNATSURL: "nats://env:4222"}
	l := NewLoader(nil)
	l.homeDir = func() (string, error) { return home, nil }
	l.getwd = func() (string, error) { return nested, nil }
	l.getenv = func(k string) string { return env[k] }

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected user log level, got %s", cfg.Log.Level)
	}
	if cfg.Storage.PuzzlesPath != "project.json" {
		t.Errorf("expected project config to win, got %s", cfg.Storage.PuzzlesPath)
	}
	if cfg.NATS.URL != "nats://env:4222" {
		t.Errorf("expected env NATS URL, got %s", cfg.NATS.URL)
	}

	env[EnvPuzzlesPath] = "env.json"
	cfg, err = l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.PuzzlesPath != "env.json" {
		t.Errorf("expected env to override files, got %s", cfg.Storage.PuzzlesPath)
	}
}

func TestLoader_NoFiles(t *testing.T) {
	l := NewLoader(nil)
	l.homeDir = func() (string, error) { return t.TempDir(), nil }
	l.getwd = func() (string, error) { return t.TempDir(), nil }
	l.getenv = func(string) string { return "" }

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline != DefaultConfig().Pipeline {
		t.Errorf("expected default pipeline config, got %+v", cfg.Pipeline)
	}
}

func TestLoader_LoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log:\n  format: xml\n"), 0644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(nil)
	l.getenv = func(string) string { return "" }
	if _, err := l.LoadFile(path); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoader_EnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	l := NewLoader(nil)
	l.homeDir = func() (string, error) { return home, nil }

	path, err := l.EnsureUserConfig()
	if err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	if path != filepath.Join(home, UserConfigDir, UserConfigFile) {
		t.Errorf("unexpected path %s", path)
	}
	if _, err := LoadFromFile(path); err != nil {
		t.Errorf("created config should load: %v", err)
	}
}
