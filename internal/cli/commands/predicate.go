package commands

import (
	"github.com/querylens/querylens/internal/engine"
	"github.com/spf13/cobra"
)

// PredicateOptions holds options for the predicate command.
type PredicateOptions struct {
	Query  string
	Table  string
	Keys   []string
	Output string
}

// NewPredicateCommand creates the predicate command.
func NewPredicateCommand() *cobra.Command {
	opts := &PredicateOptions{}

	cmd := &cobra.Command{
		Use:   "predicate",
		Short: "Attribute filtering to individual WHERE conjuncts",
		Long: `Show which WHERE conjuncts each tuple passes and fails.

Evaluates every conjunct independently over the tuples in scope and
reconstructs the overall verdict through the predicate's AND/OR tree,
so you can see exactly which condition dropped a row.`,
		Example: `  querylens predicate \
    --query "SELECT * FROM movies WHERE year > 2010 AND rating > 8" \
    --table movies --key title`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredicate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "SQL query to explain (required)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Relation whose key identifies tuples")
	cmd.Flags().StringSliceVar(&opts.Keys, "key", nil, "Identifying key column(s), overriding inference")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "both", "Detail level: summary, detailed or both")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runPredicate(cmd *cobra.Command, opts *PredicateOptions) error {
	detail, err := parseDetail(opts.Output)
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

	result, err := cmdCtx.Engine.Predicate(cmd.Context(), model, engine.PredicateParams{
		Table:      opts.Table,
		KeyColumns: opts.Keys,
	})
	if err != nil {
		return err
	}

	report := engine.NewReport("predicate", opts.Query, result)
	return renderReport(cmdCtx.Renderer, report, detail)
}
