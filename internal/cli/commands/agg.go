package commands

import (
	"github.com/querylens/querylens/internal/engine"
	"github.com/spf13/cobra"
)

// AggOptions holds options for the agg command.
type AggOptions struct {
	Query         string
	ExpectedSum   float64
	ExpectedCount float64
	ExpectedAvg   float64
	Table         string
	Keys          []string
	Output        string
}

// NewAggCommand creates the agg command.
func NewAggCommand() *cobra.Command {
	opts := &AggOptions{}

	cmd := &cobra.Command{
		Use:   "agg",
		Short: "Explain a surprising aggregate value",
		Long: `Explain why an aggregate query produced a surprising value.

Compares the actual SUM, COUNT or AVG against the expected value you
supply and ranks the groups (or rows) that contribute most to the gap.
For a query without an aggregate, compares actual vs expected row count
instead.`,
		Example: `  # Why is the total 5000 when I expected 3000?
  querylens agg --query "SELECT SUM(amount) FROM sales" --expected-sum 3000

  # Per-group contributions
  querylens agg --query "SELECT region, SUM(amount) FROM sales GROUP BY region" \
    --expected-sum 3000 --output detailed

  # Row identity for a scalar aggregate
  querylens agg --query "SELECT SUM(amount) FROM sales" --expected-sum 3000 \
    --table sales --key sale_id`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgg(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "SQL query to explain (required)")
	cmd.Flags().Float64Var(&opts.ExpectedSum, "expected-sum", 0, "Expected SUM value")
	cmd.Flags().Float64Var(&opts.ExpectedCount, "expected-count", 0, "Expected COUNT or row-count value")
	cmd.Flags().Float64Var(&opts.ExpectedAvg, "expected-avg", 0, "Expected AVG value")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Relation whose key identifies contributions")
	cmd.Flags().StringSliceVar(&opts.Keys, "key", nil, "Identifying key column(s), overriding inference")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "both", "Detail level: summary, detailed or both")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runAgg(cmd *cobra.Command, opts *AggOptions) error {
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

	params := engine.AggregateParams{
		Table:      opts.Table,
		KeyColumns: opts.Keys,
	}
	if cmd.Flags().Changed("expected-sum") {
		params.ExpectedSum = &opts.ExpectedSum
	}
	if cmd.Flags().Changed("expected-count") {
		params.ExpectedCount = &opts.ExpectedCount
	}
	if cmd.Flags().Changed("expected-avg") {
		params.ExpectedAvg = &opts.ExpectedAvg
	}

	result, err := cmdCtx.Engine.Aggregate(cmd.Context(), model, params)
	if err != nil {
		return err
	}

	report := engine.NewReport("agg", opts.Query, result)
	return renderReport(cmdCtx.Renderer, report, detail)
}
