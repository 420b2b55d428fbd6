// Package main implements a mock generation endpoint for local pipeline runs.
// It serves OpenAI-compatible /v1/chat/completions responses from JSON
// fixture files, routed by the request's "model" field, so a yearclue
// config can point its generation, critique and revision models at it.
//
// Usage:
//
//	mock-llm --fixtures ./fixtures --port 11434
//
// "mock-generator.json" answers model "mock-generator". Numbered files
// ("mock-critic.1.json", "mock-critic.2.json") are served in order before
// the base file, which then repeats.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/yearclue/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		fixtureDir     string
		port           int
		rateLimitFirst int
		logLevel       string
	)

	cmd := &cobra.Command{
		Use:          "mock-llm",
		Short:        "Serve fixture responses on an OpenAI-compatible endpoint",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixtureDir == "" {
				fixtureDir = os.Getenv("MOCK_LLM_FIXTURES")
			}
			if fixtureDir == "" {
				fixtureDir = "/fixtures"
			}

			logger := logging.New(logLevel, "text")

			fixtures, err := loadFixtures(fixtureDir)
			if err != nil {
				return fmt.Errorf("load fixtures from %s: %w", fixtureDir, err)
			}
			for model, seq := range fixtures {
				logger.Info("Loaded fixtures", "model", model, "count", len(seq))
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           newServer(fixtures, rateLimitFirst, logger).routes(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			go func() {
				<-ctx.Done()
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Info("Mock LLM server listening", "addr", srv.Addr, "rate_limit_first", rateLimitFirst)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "Directory of fixture files (env MOCK_LLM_FIXTURES)")
	cmd.Flags().IntVar(&port, "port", 11434, "Port to listen on")
	cmd.Flags().IntVar(&rateLimitFirst, "rate-limit-first", 0, "Answer the first N calls per model with 429")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}
