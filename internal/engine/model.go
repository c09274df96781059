package engine

import (
	"fmt"
	"strings"

	"github.com/querylens/querylens/pkg/sql"
)

// Relation is one table in the FROM/JOIN chain. Alias equals the table
// name when the query declares none.
type Relation struct {
	Alias string `json:"alias"`
	Table string `json:"table"`
}

// JoinKind classifies a join edge.
type JoinKind string

// Join edge kinds.
const (
	JoinKindInner JoinKind = "inner"
	JoinKindLeft  JoinKind = "left"
	JoinKindRight JoinKind = "right"
)

// JoinEdge is a single equi-join condition between two relations. Both
// sides are normalized to relation aliases.
type JoinEdge struct {
	LeftRelation  string   `json:"left_relation"`
	LeftColumn    string   `json:"left_column"`
	RightRelation string   `json:"right_relation"`
	RightColumn   string   `json:"right_column"`
	Kind          JoinKind `json:"kind"`

	joinIndex int // position of the owning join in the FROM chain
}

// String renders the edge as "a.x = b.y".
func (e JoinEdge) String() string {
	return fmt.Sprintf("%s.%s = %s.%s", e.LeftRelation, e.LeftColumn, e.RightRelation, e.RightColumn)
}

// PredicateNode is a node in the predicate tree: either a *Conjunct leaf
// or a *Connective combining children with AND/OR.
type PredicateNode interface {
	predicateNode()
}

// Conjunct is a leaf predicate. Index is the leaf's position in
// left-to-right tree order and identifies the conjunct in analyzer
// output. When the expression compares a plain column against a literal,
// Relation/Column/Operator/Literal carry the decomposition used for
// repair suggestions; they are empty for opaque expressions.
type Conjunct struct {
	Index    int      `json:"index"`
	Relation string   `json:"relation,omitempty"`
	Column   string   `json:"column,omitempty"`
	Operator string   `json:"operator,omitempty"`
	Literal  string   `json:"literal,omitempty"`
	Expr     sql.Expr `json:"-"`
}

func (*Conjunct) predicateNode() {}

// SQL renders the conjunct as executable predicate text.
func (c *Conjunct) SQL() string {
	return sql.RenderExpr(c.Expr)
}

// Connective combines child predicates with AND or OR.
type Connective struct {
	Op       string
	Children []PredicateNode
}

func (*Connective) predicateNode() {}

// AggFunc is a supported aggregate function.
type AggFunc string

// Supported aggregate functions.
const (
	AggSum   AggFunc = "SUM"
	AggCount AggFunc = "COUNT"
	AggAvg   AggFunc = "AVG"
)

// Aggregate describes the query's aggregate expression, when present.
type Aggregate struct {
	Func    AggFunc
	Expr    sql.Expr // aggregate argument; nil for COUNT(*)
	Star    bool     // COUNT(*)
	GroupBy []sql.Expr
}

// ExprSQL renders the aggregate argument ("*" for COUNT(*)).
func (a *Aggregate) ExprSQL() string {
	if a.Star {
		return "*"
	}
	return sql.RenderExpr(a.Expr)
}

// CallSQL renders the full aggregate call.
func (a *Aggregate) CallSQL() string {
	return fmt.Sprintf("%s(%s)", a.Func, a.ExprSQL())
}

// QueryModel is the structured form of a parsed query that the analyzers
// operate on: relations in FROM/JOIN order, equi-join edges, the
// predicate tree with conjunct leaves in left-to-right order, an
// optional aggregate, and the projection. HAVING, ORDER BY and LIMIT are
// accepted on input but diagnostics operate on the pre-HAVING row set.
type QueryModel struct {
	Relations  []Relation
	JoinEdges  []JoinEdge
	Predicate  PredicateNode // nil when the query has no WHERE clause
	Conjuncts  []*Conjunct   // predicate leaves in tree order
	Aggregate  *Aggregate    // nil when the query has no aggregate
	Projection []sql.SelectItem
	Distinct   bool

	stmt *sql.SelectStmt
}

// BuildModel converts a parsed statement into a QueryModel, rejecting
// constructs the analyzers cannot reason about.
func BuildModel(stmt *sql.SelectStmt) (*QueryModel, error) {
	if stmt == nil || stmt.From == nil {
		return nil, &UnsupportedQueryShapeError{Construct: "missing FROM clause"}
	}

	m := &QueryModel{
		Projection: stmt.Columns,
		Distinct:   stmt.Distinct,
		stmt:       stmt,
	}

	if err := m.buildRelations(stmt.From); err != nil {
		return nil, err
	}
	if stmt.Where != nil {
		if err := rejectSubqueries(stmt.Where); err != nil {
			return nil, err
		}
		pred, err := m.buildPredicateNode(stmt.Where)
		if err != nil {
			return nil, err
		}
		m.Predicate = pred
	}
	if err := m.buildAggregate(stmt); err != nil {
		return nil, err
	}
	return m, nil
}

// resolveRelation finds a relation by alias or table name
// (case-insensitive, alias wins).
func (m *QueryModel) resolveRelation(name string) (Relation, bool) {
	for _, r := range m.Relations {
		if strings.EqualFold(r.Alias, name) {
			return r, true
		}
	}
	for _, r := range m.Relations {
		if strings.EqualFold(r.Table, name) {
			return r, true
		}
	}
	return Relation{}, false
}

// targetRelation resolves the relation a tuple-level analysis targets.
// An empty name selects the first relation in FROM order.
func (m *QueryModel) targetRelation(name string) (Relation, error) {
	if name == "" {
		return m.Relations[0], nil
	}
	if rel, ok := m.resolveRelation(name); ok {
		return rel, nil
	}
	aliases := make([]string, 0, len(m.Relations))
	for _, r := range m.Relations {
		aliases = append(aliases, r.Alias)
	}
	return Relation{}, &InvalidParameterError{
		Param:  "--table",
		Reason: fmt.Sprintf("unknown relation %q\nHint: Relations in this query: %s", name, strings.Join(aliases, ", ")),
	}
}

func (m *QueryModel) buildRelations(from *sql.FromClause) error {
	if err := m.addRelation(from.Source); err != nil {
		return err
	}
	for ji, join := range from.Joins {
		kind, err := joinKind(join.Type)
		if err != nil {
			return err
		}
		prev := m.Relations[len(m.Relations)-1]
		if err := m.addRelation(join.Right); err != nil {
			return err
		}
		right := m.Relations[len(m.Relations)-1]

		switch {
		case len(join.Using) > 0:
			for _, col := range join.Using {
				m.JoinEdges = append(m.JoinEdges, JoinEdge{
					LeftRelation:  prev.Alias,
					LeftColumn:    col,
					RightRelation: right.Alias,
					RightColumn:   col,
					Kind:          kind,
					joinIndex:     ji,
				})
			}
		case join.Condition != nil:
			if err := m.addJoinEdges(join.Condition, kind, ji); err != nil {
				return err
			}
		default:
			return &UnsupportedQueryShapeError{
				Construct: "join without condition",
				Detail:    fmt.Sprintf("join to %s has no ON or USING clause", right.Alias),
			}
		}
	}
	return nil
}

func (m *QueryModel) addRelation(ref sql.TableRef) error {
	name, ok := ref.(*sql.TableName)
	if !ok {
		return &UnsupportedQueryShapeError{Construct: "subquery in FROM clause"}
	}
	alias := name.Alias
	if alias == "" {
		alias = name.Name
	}
	table := name.Name
	if name.Schema != "" {
		table = name.Schema + "." + name.Name
	}
	m.Relations = append(m.Relations, Relation{Alias: alias, Table: table})
	return nil
}

func joinKind(t sql.JoinType) (JoinKind, error) {
	switch t {
	case sql.JoinInner:
		return JoinKindInner, nil
	case sql.JoinLeft:
		return JoinKindLeft, nil
	case sql.JoinRight:
		return JoinKindRight, nil
	}
	name := strings.ToLower(string(t)) + " join"
	if t == sql.JoinComma {
		name = "comma join"
	}
	return "", &UnsupportedQueryShapeError{
		Construct: name,
		Detail:    "only INNER, LEFT and RIGHT equi-joins are supported",
	}
}

// addJoinEdges decomposes an ON condition into equi-join edges. The
// condition must be a conjunction of column = column comparisons with
// both sides qualified.
func (m *QueryModel) addJoinEdges(cond sql.Expr, kind JoinKind, joinIndex int) error {
	switch e := cond.(type) {
	case *sql.ParenExpr:
		return m.addJoinEdges(e.Expr, kind, joinIndex)
	case *sql.BinaryExpr:
		if strings.EqualFold(e.Op, "AND") {
			if err := m.addJoinEdges(e.Left, kind, joinIndex); err != nil {
				return err
			}
			return m.addJoinEdges(e.Right, kind, joinIndex)
		}
		if e.Op == "=" {
			left, lok := unwrapColumn(e.Left)
			right, rok := unwrapColumn(e.Right)
			if lok && rok && left.Table != "" && right.Table != "" {
				return m.addJoinEdge(left, right, kind, joinIndex)
			}
		}
	}
	return &UnsupportedQueryShapeError{
		Construct: "non-equi join condition",
		Detail:    sql.RenderExpr(cond),
	}
}

func (m *QueryModel) addJoinEdge(left, right *sql.ColumnRef, kind JoinKind, joinIndex int) error {
	lrel, ok := m.resolveRelation(left.Table)
	if !ok {
		return unknownJoinRelation(left.Table, left.Column)
	}
	rrel, ok := m.resolveRelation(right.Table)
	if !ok {
		return unknownJoinRelation(right.Table, right.Column)
	}
	m.JoinEdges = append(m.JoinEdges, JoinEdge{
		LeftRelation:  lrel.Alias,
		LeftColumn:    left.Column,
		RightRelation: rrel.Alias,
		RightColumn:   right.Column,
		Kind:          kind,
		joinIndex:     joinIndex,
	})
	return nil
}

func unknownJoinRelation(table, column string) error {
	return &UnsupportedQueryShapeError{
		Construct: "join condition references unknown relation",
		Detail:    fmt.Sprintf("%s.%s", table, column),
	}
}

// buildPredicateNode converts a WHERE expression into the predicate
// tree, flattening nested chains of the same connective.
func (m *QueryModel) buildPredicateNode(expr sql.Expr) (PredicateNode, error) {
	switch e := expr.(type) {
	case *sql.ParenExpr:
		return m.buildPredicateNode(e.Expr)
	case *sql.BinaryExpr:
		op := strings.ToUpper(e.Op)
		if op == "AND" || op == "OR" {
			conn := &Connective{Op: op}
			for _, child := range []sql.Expr{e.Left, e.Right} {
				node, err := m.buildPredicateNode(child)
				if err != nil {
					return nil, err
				}
				if sub, ok := node.(*Connective); ok && sub.Op == op {
					conn.Children = append(conn.Children, sub.Children...)
				} else {
					conn.Children = append(conn.Children, node)
				}
			}
			return conn, nil
		}
	}
	return m.addConjunct(expr), nil
}

func (m *QueryModel) addConjunct(expr sql.Expr) *Conjunct {
	c := &Conjunct{Index: len(m.Conjuncts), Expr: expr}
	c.Relation, c.Column, c.Operator, c.Literal = decomposeConjunct(expr)
	if c.Relation != "" {
		if rel, ok := m.resolveRelation(c.Relation); ok {
			c.Relation = rel.Alias
		}
	}
	m.Conjuncts = append(m.Conjuncts, c)
	return c
}

// decomposeConjunct extracts column/operator/literal parts from simple
// comparisons. Opaque expressions yield empty parts; they still work as
// whole predicates.
func decomposeConjunct(expr sql.Expr) (relation, column, operator, literal string) {
	switch e := expr.(type) {
	case *sql.ParenExpr:
		return decomposeConjunct(e.Expr)
	case *sql.BinaryExpr:
		if col, ok := unwrapColumn(e.Left); ok && isScalar(e.Right) {
			return col.Table, col.Column, e.Op, sql.RenderExpr(e.Right)
		}
		if col, ok := unwrapColumn(e.Right); ok && isScalar(e.Left) {
			return col.Table, col.Column, mirrorOperator(e.Op), sql.RenderExpr(e.Left)
		}
	case *sql.LikeExpr:
		op := "LIKE"
		if e.ILike {
			op = "ILIKE"
		}
		if e.Not {
			op = "NOT " + op
		}
		if col, ok := unwrapColumn(e.Expr); ok {
			return col.Table, col.Column, op, sql.RenderExpr(e.Pattern)
		}
	case *sql.InExpr:
		op := "IN"
		if e.Not {
			op = "NOT IN"
		}
		if col, ok := unwrapColumn(e.Expr); ok {
			vals := make([]string, 0, len(e.Values))
			for _, v := range e.Values {
				vals = append(vals, sql.RenderExpr(v))
			}
			return col.Table, col.Column, op, "(" + strings.Join(vals, ", ") + ")"
		}
	case *sql.BetweenExpr:
		op := "BETWEEN"
		if e.Not {
			op = "NOT BETWEEN"
		}
		if col, ok := unwrapColumn(e.Expr); ok {
			return col.Table, col.Column, op, sql.RenderExpr(e.Low) + " AND " + sql.RenderExpr(e.High)
		}
	case *sql.IsNullExpr:
		op := "IS NULL"
		if e.Not {
			op = "IS NOT NULL"
		}
		if col, ok := unwrapColumn(e.Expr); ok {
			return col.Table, col.Column, op, ""
		}
	}
	return "", "", "", ""
}

func unwrapColumn(e sql.Expr) (*sql.ColumnRef, bool) {
	for {
		if p, ok := e.(*sql.ParenExpr); ok {
			e = p.Expr
			continue
		}
		col, ok := e.(*sql.ColumnRef)
		return col, ok
	}
}

// isScalar reports whether e is a literal, optionally signed or
// parenthesized.
func isScalar(e sql.Expr) bool {
	switch v := e.(type) {
	case *sql.Literal:
		return true
	case *sql.UnaryExpr:
		if v.Op == "NOT" {
			return false
		}
		_, ok := v.Expr.(*sql.Literal)
		return ok
	case *sql.ParenExpr:
		return isScalar(v.Expr)
	}
	return false
}

// mirrorOperator flips a comparison so the column reads on the left.
func mirrorOperator(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	}
	return op
}

func rejectSubqueries(expr sql.Expr) error {
	found := false
	walkExpr(expr, func(e sql.Expr) {
		switch v := e.(type) {
		case *sql.SubqueryExpr, *sql.ExistsExpr:
			found = true
		case *sql.InExpr:
			if v.Query != nil {
				found = true
			}
		}
	})
	if found {
		return &UnsupportedQueryShapeError{Construct: "subquery in WHERE clause"}
	}
	return nil
}

// walkExpr visits e and every sub-expression in depth-first order.
func walkExpr(e sql.Expr, fn func(sql.Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch v := e.(type) {
	case *sql.BinaryExpr:
		walkExpr(v.Left, fn)
		walkExpr(v.Right, fn)
	case *sql.UnaryExpr:
		walkExpr(v.Expr, fn)
	case *sql.ParenExpr:
		walkExpr(v.Expr, fn)
	case *sql.FuncCall:
		for _, arg := range v.Args {
			walkExpr(arg, fn)
		}
	case *sql.CaseExpr:
		walkExpr(v.Operand, fn)
		for _, w := range v.Whens {
			walkExpr(w.Condition, fn)
			walkExpr(w.Result, fn)
		}
		walkExpr(v.Else, fn)
	case *sql.CastExpr:
		walkExpr(v.Expr, fn)
	case *sql.InExpr:
		walkExpr(v.Expr, fn)
		for _, val := range v.Values {
			walkExpr(val, fn)
		}
	case *sql.BetweenExpr:
		walkExpr(v.Expr, fn)
		walkExpr(v.Low, fn)
		walkExpr(v.High, fn)
	case *sql.IsNullExpr:
		walkExpr(v.Expr, fn)
	case *sql.LikeExpr:
		walkExpr(v.Expr, fn)
		walkExpr(v.Pattern, fn)
	}
}

// buildAggregate finds the first SUM/COUNT/AVG call in the projection.
// Queries with several aggregates are analyzed against the first one.
func (m *QueryModel) buildAggregate(stmt *sql.SelectStmt) error {
	var agg *Aggregate
	var aggErr error
	for _, item := range stmt.Columns {
		if item.Expr == nil || agg != nil || aggErr != nil {
			continue
		}
		walkExpr(item.Expr, func(e sql.Expr) {
			if agg != nil || aggErr != nil {
				return
			}
			call, ok := e.(*sql.FuncCall)
			if !ok {
				return
			}
			fn := AggFunc(strings.ToUpper(call.Name))
			switch fn {
			case AggSum, AggCount, AggAvg:
			default:
				return
			}
			if call.Distinct {
				aggErr = &UnsupportedQueryShapeError{
					Construct: "DISTINCT aggregate",
					Detail:    fmt.Sprintf("%s(DISTINCT ...) cannot be decomposed per group", fn),
				}
				return
			}
			agg = &Aggregate{Func: fn, Star: call.Star, GroupBy: stmt.GroupBy}
			if len(call.Args) > 0 {
				agg.Expr = call.Args[0]
			}
		})
	}
	if aggErr != nil {
		return aggErr
	}
	m.Aggregate = agg
	return nil
}
