package commands

import (
	"fmt"
	"strings"

	"github.com/querylens/querylens/internal/cli/output"
	"github.com/querylens/querylens/internal/engine"
	"github.com/querylens/querylens/pkg/sql"
	"github.com/spf13/cobra"
)

// ParseOptions holds options for the parse command.
type ParseOptions struct {
	Query string
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Print the analyzed structure of a query",
		Long: `Parse a query and print its analyzed structure without touching
the database: relations, equi-join edges, predicate conjuncts in tree
order, and the aggregate. Useful for checking what the analyzers will
see before running them.`,
		Example: `  querylens parse --query "SELECT SUM(amount) FROM sales s JOIN regions r ON s.region_id = r.id WHERE r.name = 'EU'"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runParse(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "SQL query to parse (required)")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

// modelView is the JSON shape of a parsed query model.
type modelView struct {
	Relations []engine.Relation `json:"relations"`
	JoinEdges []engine.JoinEdge `json:"join_edges"`
	Conjuncts []conjunctView    `json:"conjuncts"`
	Aggregate *aggregateView    `json:"aggregate,omitempty"`
	Distinct  bool              `json:"distinct,omitempty"`
}

type conjunctView struct {
	Index int    `json:"index"`
	SQL   string `json:"sql"`
}

type aggregateView struct {
	Func    string   `json:"func"`
	Expr    string   `json:"expr"`
	GroupBy []string `json:"group_by,omitempty"`
}

func runParse(cmd *cobra.Command, opts *ParseOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	stmt, err := sql.Parse(opts.Query)
	if err != nil {
		return err
	}
	model, err := engine.BuildModel(stmt)
	if err != nil {
		return err
	}

	view := modelView{
		Relations: model.Relations,
		JoinEdges: model.JoinEdges,
		Distinct:  model.Distinct,
	}
	for _, c := range model.Conjuncts {
		view.Conjuncts = append(view.Conjuncts, conjunctView{Index: c.Index, SQL: c.SQL()})
	}
	if model.Aggregate != nil {
		av := &aggregateView{
			Func: string(model.Aggregate.Func),
			Expr: model.Aggregate.ExprSQL(),
		}
		for _, g := range model.Aggregate.GroupBy {
			av.GroupBy = append(av.GroupBy, sql.RenderExpr(g))
		}
		view.Aggregate = av
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(view)
	}

	rows := make([][]string, 0, len(view.Relations))
	for _, rel := range view.Relations {
		rows = append(rows, []string{rel.Alias, rel.Table})
	}
	r.Title("Relations")
	r.Table([]string{"Alias", "Table"}, rows)

	if len(view.JoinEdges) > 0 {
		rows = rows[:0]
		for _, e := range view.JoinEdges {
			rows = append(rows, []string{string(e.Kind), e.String()})
		}
		r.Println()
		r.Title("Join edges")
		r.Table([]string{"Kind", "Condition"}, rows)
	}

	if len(view.Conjuncts) > 0 {
		rows = rows[:0]
		for _, c := range view.Conjuncts {
			rows = append(rows, []string{fmt.Sprintf("%d", c.Index), c.SQL})
		}
		r.Println()
		r.Title("Conjuncts")
		r.Table([]string{"Index", "Predicate"}, rows)
	}

	if view.Aggregate != nil {
		r.Println()
		r.Title("Aggregate")
		r.Printf("%s(%s)", view.Aggregate.Func, view.Aggregate.Expr)
		if len(view.Aggregate.GroupBy) > 0 {
			r.Printf(" GROUP BY %s", strings.Join(view.Aggregate.GroupBy, ", "))
		}
		r.Println()
	}
	return nil
}
