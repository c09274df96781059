package engine

import (
	"strconv"
	"strings"

	"github.com/querylens/querylens/pkg/sql"
)

// DiagnosticQuery is one executable sub-query produced by synthesis.
// Values are immutable once built; each is executed at most once per
// analysis.
type DiagnosticQuery struct {
	SQL     string `json:"sql"`
	Purpose string `json:"purpose"`
}

// Purpose tags for synthesized queries.
const (
	PurposeActualValue    = "actual_value"
	PurposeRowCount       = "row_count"
	PurposeRelationCount  = "relation_count"
	PurposeGroupBreakdown = "group_breakdown"
	PurposeRowBreakdown   = "row_breakdown"
	PurposeSideCount      = "join_side_count"
	PurposeScopeRows      = "scope_rows"
	PurposeConjunctProbe  = "conjunct_probe"
	PurposeBaselineRows   = "baseline_rows"
	PurposeTargetProbe    = "target_probe"
	PurposeRelaxedProbe   = "relaxed_probe"
	PurposeKeyProbe       = "key_probe"
)

// synthesizeActualValue builds the scalar aggregate over the query's
// FROM/WHERE, ignoring any grouping. For AVG the sum and count ride
// along so influence can be computed client-side.
func synthesizeActualValue(m *QueryModel) DiagnosticQuery {
	agg := m.Aggregate
	call := &sql.FuncCall{Name: string(agg.Func), Star: agg.Star}
	if agg.Expr != nil {
		call.Args = []sql.Expr{agg.Expr}
	}
	stmt := &sql.SelectStmt{
		Columns: []sql.SelectItem{{Expr: call, Alias: "actual_value"}},
		From:    m.stmt.From,
		Where:   m.stmt.Where,
	}
	if agg.Func == AggAvg {
		stmt.Columns = append(stmt.Columns,
			sql.SelectItem{Expr: &sql.FuncCall{Name: "SUM", Args: []sql.Expr{agg.Expr}}, Alias: "total_sum"},
			sql.SelectItem{Expr: &sql.FuncCall{Name: "COUNT", Args: []sql.Expr{agg.Expr}}, Alias: "total_count"},
		)
	}
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeActualValue}
}

// synthesizeGroupBreakdown builds the per-group contribution query for a
// grouped aggregate. Group columns are aliased key_0..key_n so rows scan
// deterministically across drivers.
func synthesizeGroupBreakdown(m *QueryModel, maxRows int) DiagnosticQuery {
	agg := m.Aggregate
	stmt := &sql.SelectStmt{
		From:    m.stmt.From,
		Where:   m.stmt.Where,
		GroupBy: agg.GroupBy,
		Limit:   limitExpr(maxRows),
	}
	for i, g := range agg.GroupBy {
		stmt.Columns = append(stmt.Columns, sql.SelectItem{Expr: g, Alias: keyAlias(i)})
	}

	if agg.Func == AggAvg {
		stmt.Columns = append(stmt.Columns,
			sql.SelectItem{Expr: &sql.FuncCall{Name: "COUNT", Args: []sql.Expr{agg.Expr}}, Alias: "group_count"},
			sql.SelectItem{Expr: &sql.FuncCall{Name: "SUM", Args: []sql.Expr{agg.Expr}}, Alias: "group_sum"},
			sql.SelectItem{Expr: &sql.FuncCall{Name: "AVG", Args: []sql.Expr{agg.Expr}}, Alias: "group_avg"},
		)
		stmt.OrderBy = []sql.OrderByItem{{Expr: &sql.ColumnRef{Column: "group_avg"}, Desc: true}}
		return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeGroupBreakdown}
	}

	call := &sql.FuncCall{Name: string(agg.Func), Star: agg.Star}
	if agg.Expr != nil {
		call.Args = []sql.Expr{agg.Expr}
	}
	stmt.Columns = append(stmt.Columns, sql.SelectItem{Expr: call, Alias: "contribution"})
	stmt.OrderBy = []sql.OrderByItem{{Expr: &sql.ColumnRef{Column: "contribution"}, Desc: true}}
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeGroupBreakdown}
}

// synthesizeRowBreakdown builds the per-row contribution query for a
// scalar aggregate, keyed by the target relation's identifying columns.
func synthesizeRowBreakdown(m *QueryModel, target Relation, keyCols []string, maxRows int) DiagnosticQuery {
	agg := m.Aggregate
	stmt := &sql.SelectStmt{
		From:  m.stmt.From,
		Where: m.stmt.Where,
		Limit: limitExpr(maxRows),
	}
	for i, col := range keyCols {
		stmt.Columns = append(stmt.Columns, sql.SelectItem{
			Expr:  keyColumnRef(m, target, col),
			Alias: keyAlias(i),
		})
	}

	var contrib sql.Expr
	switch {
	case agg.Func == AggCount && agg.Star:
		contrib = &sql.Literal{Type: sql.LiteralNumber, Value: "1"}
	case agg.Func == AggCount:
		contrib = &sql.CaseExpr{
			Whens: []sql.WhenClause{{
				Condition: &sql.IsNullExpr{Expr: agg.Expr, Not: true},
				Result:    &sql.Literal{Type: sql.LiteralNumber, Value: "1"},
			}},
			Else: &sql.Literal{Type: sql.LiteralNumber, Value: "0"},
		}
	default:
		contrib = agg.Expr
	}
	stmt.Columns = append(stmt.Columns, sql.SelectItem{Expr: contrib, Alias: "contribution"})
	stmt.OrderBy = []sql.OrderByItem{{Expr: &sql.ColumnRef{Column: "contribution"}, Desc: true}}
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeRowBreakdown}
}

// synthesizeRowCount wraps the original statement in a COUNT(*) so
// DISTINCT, grouping and LIMIT keep their effect on the count.
func synthesizeRowCount(m *QueryModel) DiagnosticQuery {
	inner := *m.stmt
	inner.OrderBy = nil
	stmt := &sql.SelectStmt{
		Columns: []sql.SelectItem{{Expr: &sql.FuncCall{Name: "COUNT", Star: true}, Alias: "row_count"}},
		From:    &sql.FromClause{Source: &sql.DerivedTable{Select: &inner, Alias: "q"}},
	}
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeRowCount}
}

// synthesizeRelationCount counts the base rows of one relation.
func synthesizeRelationCount(rel Relation) DiagnosticQuery {
	stmt := &sql.SelectStmt{
		Columns: []sql.SelectItem{{Expr: &sql.FuncCall{Name: "COUNT", Star: true}, Alias: "row_count"}},
		From:    &sql.FromClause{Source: tableRef(rel)},
	}
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeRelationCount}
}

// synthesizeSideCount builds the per-key population query for one side
// of a join edge, independent of the other relation.
func synthesizeSideCount(rel Relation, column string) DiagnosticQuery {
	key := &sql.ColumnRef{Table: rel.Alias, Column: column}
	stmt := &sql.SelectStmt{
		Columns: []sql.SelectItem{
			{Expr: key, Alias: "key_value"},
			{Expr: &sql.FuncCall{Name: "COUNT", Star: true}, Alias: "cnt"},
		},
		From:    &sql.FromClause{Source: tableRef(rel)},
		GroupBy: []sql.Expr{key},
		OrderBy: []sql.OrderByItem{{Expr: &sql.ColumnRef{Column: "cnt"}, Desc: true}},
	}
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeSideCount}
}

// synthesizeScopeRows enumerates the tuple identifiers reachable from
// the FROM/JOIN chain with no WHERE applied.
func synthesizeScopeRows(m *QueryModel, target Relation, keyCols []string, maxRows int) DiagnosticQuery {
	stmt := keyedSelect(m, target, keyCols)
	stmt.OrderBy = positionalOrder(len(keyCols))
	stmt.Limit = limitExpr(maxRows)
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeScopeRows}
}

// synthesizeBaselineRows enumerates the tuple identifiers passing the
// full predicate.
func synthesizeBaselineRows(m *QueryModel, target Relation, keyCols []string) DiagnosticQuery {
	stmt := keyedSelect(m, target, keyCols)
	stmt.Where = m.stmt.Where
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeBaselineRows}
}

// synthesizeConjunctProbe enumerates the tuple identifiers that pass one
// conjunct applied alone.
func synthesizeConjunctProbe(m *QueryModel, target Relation, keyCols []string, c *Conjunct) DiagnosticQuery {
	stmt := keyedSelect(m, target, keyCols)
	stmt.Where = c.Expr
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeConjunctProbe}
}

// keyedSelect builds SELECT DISTINCT <keys> over the full FROM/JOIN
// chain.
func keyedSelect(m *QueryModel, target Relation, keyCols []string) *sql.SelectStmt {
	stmt := &sql.SelectStmt{Distinct: true, From: m.stmt.From}
	for i, col := range keyCols {
		stmt.Columns = append(stmt.Columns, sql.SelectItem{
			Expr:  keyColumnRef(m, target, col),
			Alias: keyAlias(i),
		})
	}
	return stmt
}

// synthesizeTargetProbe fetches the target tuple's base row.
func synthesizeTargetProbe(rel Relation, keys []KeyValue) DiagnosticQuery {
	stmt := &sql.SelectStmt{
		Columns: []sql.SelectItem{{Star: true}},
		From:    &sql.FromClause{Source: tableRef(rel)},
		Where:   keyPredicate(rel, keys),
		Limit:   limitExpr(1),
	}
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeTargetProbe}
}

// synthesizeRelaxedCount counts rows matching the target tuple after
// removing a candidate constraint subset. Removed conjuncts are replaced
// by 1 = 1; joins whose every edge is removed degrade to ON 1 = 1.
func synthesizeRelaxedCount(m *QueryModel, target Relation, keys []KeyValue, removedConjuncts, removedEdges map[int]bool) DiagnosticQuery {
	stmt := &sql.SelectStmt{
		Columns: []sql.SelectItem{{Expr: &sql.FuncCall{Name: "COUNT", Star: true}, Alias: "cnt"}},
		From:    relaxedFrom(m, removedEdges),
		Where:   keyPredicate(target, keys),
	}
	if m.Predicate != nil {
		stmt.Where = &sql.BinaryExpr{
			Left:  relaxedPredicate(m.Predicate, removedConjuncts),
			Op:    "AND",
			Right: stmt.Where,
		}
	}
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeRelaxedProbe}
}

// synthesizeKeyLookupCount counts rows of rel whose column equals value,
// used by repair suggestions to see which join side lacks a key.
func synthesizeKeyLookupCount(rel Relation, column, value string) DiagnosticQuery {
	stmt := &sql.SelectStmt{
		Columns: []sql.SelectItem{{Expr: &sql.FuncCall{Name: "COUNT", Star: true}, Alias: "cnt"}},
		From:    &sql.FromClause{Source: tableRef(rel)},
		Where: &sql.BinaryExpr{
			Left:  &sql.ColumnRef{Table: rel.Alias, Column: column},
			Op:    "=",
			Right: literalFor(value),
		},
	}
	return DiagnosticQuery{SQL: sql.Render(stmt), Purpose: PurposeKeyProbe}
}

// relaxedFrom rebuilds the FROM chain keeping only the join edges not in
// removed. USING joins come back as explicit ON conditions.
func relaxedFrom(m *QueryModel, removed map[int]bool) *sql.FromClause {
	from := &sql.FromClause{Source: m.stmt.From.Source}
	for ji, join := range m.stmt.From.Joins {
		var cond sql.Expr
		for ei := range m.JoinEdges {
			edge := &m.JoinEdges[ei]
			if edge.joinIndex != ji || removed[ei] {
				continue
			}
			eq := &sql.BinaryExpr{
				Left:  &sql.ColumnRef{Table: edge.LeftRelation, Column: edge.LeftColumn},
				Op:    "=",
				Right: &sql.ColumnRef{Table: edge.RightRelation, Column: edge.RightColumn},
			}
			if cond == nil {
				cond = eq
			} else {
				cond = &sql.BinaryExpr{Left: cond, Op: "AND", Right: eq}
			}
		}
		if cond == nil {
			cond = trueExpr()
		}
		from.Joins = append(from.Joins, &sql.Join{Type: join.Type, Right: join.Right, Condition: cond})
	}
	return from
}

// relaxedPredicate rebuilds the predicate tree with removed leaves
// replaced by 1 = 1, which relaxes them under AND and OR alike.
func relaxedPredicate(node PredicateNode, removed map[int]bool) sql.Expr {
	switch n := node.(type) {
	case *Conjunct:
		if removed[n.Index] {
			return trueExpr()
		}
		return n.Expr
	case *Connective:
		var out sql.Expr
		for _, child := range n.Children {
			ce := relaxedPredicate(child, removed)
			if out == nil {
				out = ce
			} else {
				out = &sql.BinaryExpr{Left: out, Op: n.Op, Right: ce}
			}
		}
		return &sql.ParenExpr{Expr: out}
	}
	return trueExpr()
}

// keyPredicate builds alias.col = value conjoined over the key pairs.
func keyPredicate(rel Relation, keys []KeyValue) sql.Expr {
	var out sql.Expr
	for _, kv := range keys {
		eq := &sql.BinaryExpr{
			Left:  &sql.ColumnRef{Table: rel.Alias, Column: kv.Column},
			Op:    "=",
			Right: literalFor(kv.Value),
		}
		if out == nil {
			out = eq
		} else {
			out = &sql.BinaryExpr{Left: out, Op: "AND", Right: eq}
		}
	}
	return out
}

// keyColumnRef qualifies a key column with the target alias unless the
// query reads a single relation without aliasing.
func keyColumnRef(m *QueryModel, target Relation, col string) *sql.ColumnRef {
	if len(m.Relations) == 1 && target.Alias == target.Table {
		return &sql.ColumnRef{Column: col}
	}
	return &sql.ColumnRef{Table: target.Alias, Column: col}
}

func tableRef(rel Relation) *sql.TableName {
	name := &sql.TableName{Name: rel.Table}
	if i := strings.Index(rel.Table, "."); i >= 0 {
		name.Schema = rel.Table[:i]
		name.Name = rel.Table[i+1:]
	}
	if rel.Alias != rel.Table {
		name.Alias = rel.Alias
	}
	return name
}

func keyAlias(i int) string {
	return "key_" + strconv.Itoa(i)
}

func limitExpr(n int) sql.Expr {
	if n <= 0 {
		return nil
	}
	return &sql.Literal{Type: sql.LiteralNumber, Value: strconv.Itoa(n)}
}

func positionalOrder(n int) []sql.OrderByItem {
	items := make([]sql.OrderByItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, sql.OrderByItem{
			Expr: &sql.Literal{Type: sql.LiteralNumber, Value: strconv.Itoa(i)},
		})
	}
	return items
}

func trueExpr() sql.Expr {
	one := &sql.Literal{Type: sql.LiteralNumber, Value: "1"}
	return &sql.BinaryExpr{Left: one, Op: "=", Right: one}
}

func literalFor(value string) *sql.Literal {
	if _, err := strconv.ParseFloat(value, 64); err == nil && value != "" {
		return &sql.Literal{Type: sql.LiteralNumber, Value: value}
	}
	return &sql.Literal{Type: sql.LiteralString, Value: value}
}
