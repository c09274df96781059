package commands

import (
	"fmt"
	"strings"

	"github.com/querylens/querylens/internal/engine"
	"github.com/spf13/cobra"
)

// WhyNotOptions holds options for the why-not command.
type WhyNotOptions struct {
	Query  string
	Table  string
	Keys   []string
	Output string
}

// NewWhyNotCommand creates the why-not command.
func NewWhyNotCommand() *cobra.Command {
	opts := &WhyNotOptions{}

	cmd := &cobra.Command{
		Use:     "why-not",
		Aliases: []string{"whynot"},
		Short:   "Explain why an expected row is missing from the result",
		Long: `Find the minimal set of constraints that exclude a tuple.

Identifies the target tuple by key column=value pairs, then relaxes
combinations of WHERE conjuncts and join edges, smallest sets first,
until the tuple appears. The removed constraints are the explanation.
If no combination reaches the tuple, the tuple does not exist in the
named table at all.`,
		Example: `  querylens why-not \
    --query "SELECT title FROM movies m JOIN ratings r ON m.id = r.movie_id WHERE r.score > 8" \
    --table movies --key "title=Heat"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWhyNot(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "SQL query to explain (required)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Relation the missing tuple belongs to")
	cmd.Flags().StringArrayVar(&opts.Keys, "key", nil, "Target tuple as column=value (repeatable, required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "both", "Detail level: summary, detailed or both")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

// parseTupleKeys splits column=value flag values into key pairs.
func parseTupleKeys(raw []string) ([]engine.KeyValue, error) {
	keys := make([]engine.KeyValue, 0, len(raw))
	for _, kv := range raw {
		col, val, ok := strings.Cut(kv, "=")
		if !ok || col == "" {
			return nil, &engine.InvalidParameterError{
				Param:  "--key",
				Reason: fmt.Sprintf("want column=value, got %q", kv),
			}
		}
		keys = append(keys, engine.KeyValue{Column: col, Value: val})
	}
	return keys, nil
}

func runWhyNot(cmd *cobra.Command, opts *WhyNotOptions) error {
	detail, err := parseDetail(opts.Output)
	if err != nil {
		return err
	}
	keys, err := parseTupleKeys(opts.Keys)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	model, err := cmdCtx.Engine.BuildModel(opts.Query)
	if err != nil {
		return err
	}

	result, err := cmdCtx.Engine.WhyNot(cmd.Context(), model, engine.WhyNotParams{
		Table: opts.Table,
		Keys:  keys,
	})
	if err != nil {
		return err
	}

	report := engine.NewReport("why-not", opts.Query, result)
	return renderReport(cmdCtx.Renderer, report, detail)
}
