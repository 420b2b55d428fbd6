package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/yearclue/batch"
	"github.com/c360studio/yearclue/config"
	"github.com/c360studio/yearclue/pipeline"
	"github.com/c360studio/yearclue/storage"
	"github.com/c360studio/yearclue/worklist"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// resultView flattens a RunResult for printing.
func resultView(r pipeline.RunResult) map[string]any {
	view := map[string]any{
		"status":   r.Status(),
		"metadata": r.Meta(),
		"usage":    r.Totals(),
	}
	switch res := r.(type) {
	case *pipeline.Success:
		view["year"] = res.Year
		view["selected_count"] = res.SelectedCount
		view["events"] = res.Events
	case *pipeline.Failure:
		view["year"] = res.Year
		view["reason"] = res.Reason
	}
	return view
}

func runCmd(opts *globalOptions) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for one year and print the result",
		Long: `Run the pipeline once for --year and print the result as JSON.
Nothing is recorded or imported; use batch for that.`,
		Example: "  yearclue run --year 1969\n  yearclue run --year=-44",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			result, err := a.orchestrator().Run(ctx, year)
			if err != nil {
				return fmt.Errorf("run year %d: %w", year, err)
			}
			return writeJSON(cmd.OutOrStdout(), resultView(result))
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Target year (zero or negative for BCE)")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

// sourceOptions select the years a batch runs.
type sourceOptions struct {
	years    []int
	from, to int
	patterns []string
	missing  bool
}

func (o *sourceOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&o.years, "years", nil, "Explicit years, in order (e.g. --years=1969,-44)")
	cmd.Flags().IntVar(&o.from, "from", 0, "First year of an inclusive range")
	cmd.Flags().IntVar(&o.to, "to", 0, "Last year of an inclusive range")
	cmd.Flags().StringSliceVar(&o.patterns, "pattern", nil, "Work-list glob patterns (default from config)")
	cmd.Flags().BoolVar(&o.missing, "missing", false, "Skip years already in the puzzles file")
}

// source builds the work source from flags, falling back to the configured
// work-list files.
func (o *sourceOptions) source(cmd *cobra.Command, cfg *config.Config, existing worklist.YearLister) (batch.WorkSource, error) {
	hasRange := cmd.Flags().Changed("from") || cmd.Flags().Changed("to")
	if hasRange && !(cmd.Flags().Changed("from") && cmd.Flags().Changed("to")) {
		return nil, errors.New("--from and --to must be used together")
	}
	if hasRange && len(o.years) > 0 {
		return nil, errors.New("--years cannot be combined with --from/--to")
	}

	var src worklist.Source
	switch {
	case len(o.years) > 0:
		src = worklist.Static(o.years)
	case hasRange:
		if o.to < o.from {
			return nil, fmt.Errorf("--to %d is before --from %d", o.to, o.from)
		}
		src = worklist.Range(o.from, o.to)
	default:
		patterns := o.patterns
		if len(patterns) == 0 {
			patterns = cfg.Worklist.Patterns
		}
		src = &worklist.FileSource{Root: cfg.Worklist.Root, Patterns: patterns}
	}

	if o.missing {
		return worklist.Missing{Source: src, Existing: existing}, nil
	}
	return src, nil
}

func batchCmd(opts *globalOptions) *cobra.Command {
	var so sourceOptions

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the pipeline for a list of years",
		Long: `Run the pipeline for each selected year in order. Every year gets one
attempt record; successful years are imported into the puzzles file.
The failure-rate alert is checked once at the end.`,
		Example: "  yearclue batch --from 1900 --to 1910 --missing\n  yearclue batch --pattern 'queue/**/*.yaml'",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			src, err := so.source(cmd, a.cfg, a.puzzles)
			if err != nil {
				return err
			}
			summary, err := a.batch().RunSource(ctx, src)
			if summary != nil {
				if werr := writeJSON(cmd.OutOrStdout(), summary); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	so.register(cmd)
	return cmd
}

func watchCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run batches whenever work-list files change",
		Long: `Watch the configured work-list files and run a batch over the years
not yet in the puzzles file, once at startup and again after every change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			src := &worklist.FileSource{Root: a.cfg.Worklist.Root, Patterns: a.cfg.Worklist.Patterns}
			w, err := worklist.NewWatcher(src, a.cfg.Worklist.Debounce, a.logger)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				_ = w.Stop()
				return fmt.Errorf("start watcher: %w", err)
			}
			defer func() { _ = w.Stop() }()

			b := a.batch()
			work := worklist.Missing{Source: src, Existing: a.puzzles}
			runOnce := func() error {
				summary, err := b.RunSource(ctx, work)
				if err != nil {
					return err
				}
				a.logger.Info("Batch complete",
					"batch_id", summary.BatchID,
					"years", len(summary.Years),
					"succeeded", summary.Succeeded,
					"failed", summary.Failed,
					"errored", summary.Errored,
					"cost_usd", summary.Usage.CostUSD)
				return nil
			}

			if err := runOnce(); err != nil && ctx.Err() == nil {
				a.logger.Error("Batch failed", "error", err)
			}
			for {
				select {
				case <-ctx.Done():
					a.logger.Info("Received shutdown signal")
					return nil
				case _, ok := <-w.Changes():
					if !ok {
						return nil
					}
					a.logger.Info("Work list changed")
					if err := runOnce(); err != nil && ctx.Err() == nil {
						a.logger.Error("Batch failed", "error", err)
					}
				}
			}
		},
	}
	return cmd
}

func puzzlesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "puzzles",
		Short: "Manage the puzzles file",
	}

	var (
		year  int
		hints []string
	)
	edit := func(use, short string, apply func(*storage.PuzzleFile, int, []string) error, verb string) *cobra.Command {
		c := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(hints) == 0 {
					return errors.New("at least one --hint is required")
				}
				a, err := newStoreApp(opts)
				if err != nil {
					return err
				}
				if err := apply(a.puzzles, year, hints); err != nil {
					return fmt.Errorf("%s year %d: %w", use, year, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s puzzle for year %d with %d hints\n", verb, year, len(hints))
				return nil
			},
		}
		c.Flags().IntVar(&year, "year", 0, "Puzzle year")
		c.Flags().StringArrayVar(&hints, "hint", nil, "Clue text (repeat for each hint)")
		_ = c.MarkFlagRequired("year")
		return c
	}

	cmd.AddCommand(
		edit("add", "Add a new puzzle", (*storage.PuzzleFile).Add, "Added"),
		edit("update", "Replace the hints of an existing puzzle", (*storage.PuzzleFile).Update, "Updated"),
		&cobra.Command{
			Use:   "list",
			Short: "List puzzle years and hints",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newStoreApp(opts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				doc, err := a.puzzles.Load()
				if errors.Is(err, os.ErrNotExist) {
					fmt.Fprintf(out, "No puzzles file at %s\n", a.puzzles.Path())
					return nil
				}
				if err != nil {
					return err
				}
				years, err := a.puzzles.Years()
				if err != nil {
					return err
				}
				for _, y := range years {
					fmt.Fprintf(out, "%d\n", y)
					for _, h := range doc.Puzzles[y] {
						fmt.Fprintf(out, "  - %s\n", h)
					}
				}
				fmt.Fprintf(out, "%d puzzles (%s)\n", doc.Meta.TotalPuzzles, doc.Meta.DateRange)
				return nil
			},
		},
	)
	return cmd
}

func attemptsCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Show recent attempt records and the failure-rate alert state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newAttemptsApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			records, err := a.attempts.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("read attempts: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tYEAR\tSTATUS\tATTEMPTS\tEVENTS\tTOKENS\tCOST\tERROR")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%d %s\t%s\t%d\t%d\t%d\t$%.4f\t%s\n",
					r.CreatedAt.Format(time.RFC3339), abs(r.Year), r.Era, r.Status,
					r.AttemptCount, r.EventsGenerated, r.TokenUsage.Total, r.CostUSD, r.ErrorMessage)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			alarm, err := a.alerter().Evaluate(ctx)
			if err != nil {
				return err
			}
			if alarm != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nALERT: failure rate %.0f%% over %d attempts (threshold %.0f%%)\n",
					alarm.FailureRate*100, alarm.Samples, alarm.Threshold*100)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of records to show")
	return cmd
}

func abs(y int) int {
	if y < 0 {
		return -y
	}
	return y
}

func configCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the user config file with defaults if missing",
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := config.NewLoader(nil).EnsureUserConfig()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return err
				}
				return enc.Close()
			},
		},
	)
	return cmd
}
