package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/querylens/querylens/internal/engine"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// watchDebounce coalesces editor write bursts into one re-run.
const watchDebounce = 200 * time.Millisecond

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Mode          string
	ExpectedSum   float64
	ExpectedCount float64
	ExpectedAvg   float64
	Table         string
	Keys          []string
	TupleKeys     []string
	Output        string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <query-file>",
		Short: "Re-run an analysis whenever the query file changes",
		Long: `Watch a file holding a SQL query and re-run the configured
analysis on every save. Useful while iterating on a query to see how
the explanation shifts.`,
		Example: `  querylens watch query.sql --mode agg --expected-sum 3000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "agg", "Analysis mode: agg, join, predicate or why-not")
	cmd.Flags().Float64Var(&opts.ExpectedSum, "expected-sum", 0, "Expected SUM value")
	cmd.Flags().Float64Var(&opts.ExpectedCount, "expected-count", 0, "Expected COUNT or row-count value")
	cmd.Flags().Float64Var(&opts.ExpectedAvg, "expected-avg", 0, "Expected AVG value")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Relation for tuple-level modes")
	cmd.Flags().StringSliceVar(&opts.Keys, "key", nil, "Identifying key column(s)")
	cmd.Flags().StringArrayVar(&opts.TupleKeys, "tuple", nil, "Why-not target tuple as column=value (repeatable)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "both", "Detail level: summary, detailed or both")

	return cmd
}

func runWatch(cmd *cobra.Command, queryFile string, opts *WatchOptions) error {
	detail, err := parseDetail(opts.Output)
	if err != nil {
		return err
	}
	switch opts.Mode {
	case "agg", "join", "predicate", "why-not":
	default:
		return &engine.InvalidParameterError{
			Param:  "--mode",
			Reason: fmt.Sprintf("unknown mode %q: want agg, join, predicate or why-not", opts.Mode),
		}
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors replace files on save, which drops
	// a watch on the file itself.
	dir := filepath.Dir(queryFile)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target, err := filepath.Abs(queryFile)
	if err != nil {
		return err
	}

	runOnce := func() {
		if err := runWatchedAnalysis(ctx, cmd, cmdCtx, queryFile, opts, detail); err != nil {
			cmdCtx.Renderer.Error("analysis failed: %v", err)
		}
	}

	cmdCtx.Renderer.Printf("Watching %s (mode %s), ^C to stop\n\n", queryFile, opts.Mode)
	runOnce()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var timer *time.Timer
		trigger := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				abs, err := filepath.Abs(event.Name)
				if err != nil || abs != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				// Debounce: restart the timer on every event in the burst
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				return fmt.Errorf("watch error: %w", err)
			case <-trigger:
				runOnce()
			}
		}
	})

	return g.Wait()
}

// runWatchedAnalysis reads the query file and runs one analysis pass.
func runWatchedAnalysis(ctx context.Context, cmd *cobra.Command, cmdCtx *CommandContext, queryFile string, opts *WatchOptions, detail engine.DetailLevel) error {
	content, err := os.ReadFile(queryFile)
	if err != nil {
		return err
	}
	query := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(string(content)), ";"))
	if query == "" {
		return fmt.Errorf("%s is empty", queryFile)
	}

	model, err := cmdCtx.Engine.BuildModel(query)
	if err != nil {
		return err
	}

	var result engine.Explainer
	switch opts.Mode {
	case "agg":
		params := engine.AggregateParams{Table: opts.Table, KeyColumns: opts.Keys}
		if cmd.Flags().Changed("expected-sum") {
			params.ExpectedSum = &opts.ExpectedSum
		}
		if cmd.Flags().Changed("expected-count") {
			params.ExpectedCount = &opts.ExpectedCount
		}
		if cmd.Flags().Changed("expected-avg") {
			params.ExpectedAvg = &opts.ExpectedAvg
		}
		result, err = cmdCtx.Engine.Aggregate(ctx, model, params)
	case "join":
		params := engine.JoinParams{}
		if cmd.Flags().Changed("expected-count") {
			params.ExpectedCount = &opts.ExpectedCount
		}
		result, err = cmdCtx.Engine.Join(ctx, model, params)
	case "predicate":
		result, err = cmdCtx.Engine.Predicate(ctx, model, engine.PredicateParams{
			Table:      opts.Table,
			KeyColumns: opts.Keys,
		})
	case "why-not":
		keys, kerr := parseTupleKeys(opts.TupleKeys)
		if kerr != nil {
			return kerr
		}
		result, err = cmdCtx.Engine.WhyNot(ctx, model, engine.WhyNotParams{
			Table: opts.Table,
			Keys:  keys,
		})
	}
	if err != nil {
		return err
	}

	report := engine.NewReport(opts.Mode, query, result)
	return renderReport(cmdCtx.Renderer, report, detail)
}
