package commands

import (
	"github.com/querylens/querylens/internal/engine"
	"github.com/spf13/cobra"
)

// JoinOptions holds options for the join command.
type JoinOptions struct {
	Query         string
	ExpectedCount float64
	Output        string
}

// NewJoinCommand creates the join command.
func NewJoinCommand() *cobra.Command {
	opts := &JoinOptions{}

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Explain a surprising join row count",
		Long: `Explain why a join produced more or fewer rows than expected.

For every equi-join edge, compares the key populations on both sides:
keys present on only one side explain missing rows, and keys whose
left x right product dwarfs the median explain row explosions.`,
		Example: `  # Why did this join return 40 rows instead of ~10?
  querylens join --query "SELECT * FROM orders o JOIN items i ON o.id = i.order_id" \
    --expected-count 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJoin(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "SQL query to explain (required)")
	cmd.Flags().Float64Var(&opts.ExpectedCount, "expected-count", 0, "Expected result row count")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "both", "Detail level: summary, detailed or both")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runJoin(cmd *cobra.Command, opts *JoinOptions) error {
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

	params := engine.JoinParams{}
	if cmd.Flags().Changed("expected-count") {
		params.ExpectedCount = &opts.ExpectedCount
	}

	result, err := cmdCtx.Engine.Join(cmd.Context(), model, params)
	if err != nil {
		return err
	}

	report := engine.NewReport("join", opts.Query, result)
	return renderReport(cmdCtx.Renderer, report, detail)
}
