package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/yearclue/alert"
	"github.com/c360studio/yearclue/batch"
	"github.com/c360studio/yearclue/config"
	"github.com/c360studio/yearclue/llm"
	"github.com/c360studio/yearclue/logging"
	"github.com/c360studio/yearclue/metrics"
	"github.com/c360studio/yearclue/model"
	"github.com/c360studio/yearclue/pipeline"
	"github.com/c360studio/yearclue/processor/critic"
	"github.com/c360studio/yearclue/processor/generator"
	"github.com/c360studio/yearclue/processor/reviser"
	"github.com/c360studio/yearclue/storage"
)

// attemptLog is what both the batch runner and the alert checker need.
type attemptLog interface {
	batch.AttemptLogger
	alert.RecentSource
}

// app holds the wired collaborators for one command invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	nats     *natsclient.Client
	metrics  *metrics.Metrics
	server   *metrics.Server
	attempts attemptLog
	puzzles  *storage.PuzzleFile
}

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	logLevel   string
}

// loadConfig resolves configuration from an explicit file or the layered
// user/project/environment lookup.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	loader := config.NewLoader(slog.Default())

	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = loader.LoadFile(opts.configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, nil
}

// newStoreApp wires only logging and the puzzles file. Used by commands
// that never call a model.
func newStoreApp(opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		puzzles: storage.NewPuzzleFile(cfg.Storage.PuzzlesPath),
	}, nil
}

// newAttemptsApp adds NATS (when configured) and the attempt log.
func newAttemptsApp(ctx context.Context, opts *globalOptions) (*app, error) {
	a, err := newStoreApp(opts)
	if err != nil {
		return nil, err
	}

	if a.cfg.NATS.URL != "" {
		nc, err := connectToNATS(ctx, a.cfg.NATS.URL, a.logger)
		if err != nil {
			return nil, err
		}
		a.nats = nc
	}

	if err := a.initAttempts(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

// newApp wires the full stack: everything newAttemptsApp does plus
// metrics and the generation client.
func newApp(ctx context.Context, opts *globalOptions) (*app, error) {
	a, err := newAttemptsApp(ctx, opts)
	if err != nil {
		return nil, err
	}
	cfg := a.cfg

	a.metrics = metrics.New()
	if cfg.Metrics.Addr != "" {
		a.server = metrics.NewServer(cfg.Metrics.Addr, a.metrics)
		go func() {
			if err := a.server.Serve(); err != nil {
				a.logger.Error("Metrics server stopped", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
		a.logger.Info("Metrics server listening", "addr", cfg.Metrics.Addr)
	}

	registry := cfg.Registry()
	model.InitGlobal(registry)

	clientOpts := []llm.ClientOption{
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithRetryConfig(cfg.RetryConfig()),
		llm.WithBreaker(llm.NewBreaker(cfg.BreakerConfig())),
		llm.WithLogger(a.logger),
		llm.WithObserver(a.metrics),
	}
	if a.nats != nil && !cfg.NATS.DisableCallStore {
		js, err := a.nats.JetStream()
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("get JetStream: %w", err)
		}
		store, err := llm.NewCallStore(ctx, js, llm.WithStoreLogger(a.logger))
		if err != nil {
			a.logger.Warn("Failed to initialize LLM call store", "error", err)
		} else {
			clientOpts = append(clientOpts, llm.WithCallRecorder(store))
		}
	}
	llm.InitDefault(llm.NewClient(registry, clientOpts...))

	return a, nil
}

// initAttempts picks the KV attempt store when NATS is available and the
// JSONL file otherwise.
func (a *app) initAttempts(ctx context.Context) error {
	if a.nats == nil {
		a.attempts = storage.NewAttemptFile(a.cfg.Storage.AttemptsPath)
		a.logger.Debug("Using file attempt log", "path", a.cfg.Storage.AttemptsPath)
		return nil
	}
	js, err := a.nats.JetStream()
	if err != nil {
		return fmt.Errorf("get JetStream: %w", err)
	}
	store, err := storage.NewAttemptStore(ctx, js)
	if err != nil {
		return fmt.Errorf("open attempt store: %w", err)
	}
	a.attempts = store
	a.logger.Debug("Using KV attempt log", "bucket", storage.BucketAttempts)
	return nil
}

// orchestrator builds the pipeline with the configured stages.
func (a *app) orchestrator() *pipeline.Orchestrator {
	client := llm.Default()
	return pipeline.New(
		generator.New(client, generator.WithConfig(a.cfg.Generator), generator.WithLogger(a.logger)),
		critic.New(client, critic.WithConfig(a.cfg.Critic), critic.WithLogger(a.logger)),
		reviser.New(client, reviser.WithConfig(a.cfg.Reviser), reviser.WithLogger(a.logger)),
		pipeline.WithConfig(a.cfg.Pipeline),
		pipeline.WithLogger(a.logger),
	)
}

// alerter returns the failure-rate checker, publishing over NATS when
// connected.
func (a *app) alerter() *alert.Checker {
	var pub alert.Publisher
	if a.nats != nil {
		pub = a.nats
	}
	return alert.NewChecker(a.attempts, pub, a.cfg.Alert, a.logger)
}

// batch wires the runner to its collaborators.
func (a *app) batch() *batch.Batch {
	return batch.New(a.orchestrator(), a.attempts, a.puzzles,
		batch.WithAlerter(a.alerter()),
		batch.WithObserver(a.metrics),
		batch.WithLogger(a.logger),
	)
}

func (a *app) close(ctx context.Context) {
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}
	if a.nats != nil {
		if err := a.nats.Close(ctx); err != nil {
			a.logger.Warn("NATS close failed", "error", err)
		}
	}
}

func connectToNATS(ctx context.Context, url string, logger *slog.Logger) (*natsclient.Client, error) {
	logger.Info("Connecting to NATS", "url", url)

	client, err := natsclient.NewClient(url,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	logger.Info("Connected to NATS", "url", url)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  nats-server -js

Or unset %s to use the file attempt log.`, err, url, config.EnvNATSURL)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}
