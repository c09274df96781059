package sql

// SelectStmt is the root of a parsed SELECT. The zero value of each
// optional clause (nil or empty) means the clause was absent.
type SelectStmt struct {
	Distinct bool
	Columns  []SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

// SelectItem is one entry of the projection list. Exactly one of Star,
// TableStar, or Expr is set.
type SelectItem struct {
	Star      bool
	TableStar string // qualifier of a t.* item
	Expr      Expr
	Alias     string
}

// OrderByItem pairs a sort expression with its direction.
type OrderByItem struct {
	Expr Expr
	Desc bool
}

// FromClause holds the first table reference plus every join chained
// onto it, in written order.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// Join attaches one table reference to the FROM chain. Condition holds
// the ON expression; Using holds USING column names. At most one of the
// two is set.
type Join struct {
	Type      JoinType
	Right     TableRef
	Condition Expr
	Using     []string
}

// JoinType distinguishes the join keywords.
type JoinType string

// Join types. JoinComma is a bare comma in the FROM list, which reads
// as a cross join.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
	JoinComma JoinType = ","
)

// TableRef is anything that can stand in a FROM clause: a named table
// or a parenthesized subquery.
type TableRef interface {
	tableRefNode()
}

// TableName references a base table, optionally schema-qualified and
// aliased.
type TableName struct {
	Schema string
	Name   string
	Alias  string
}

func (*TableName) tableRefNode() {}

// DerivedTable is a subquery in FROM position. SQL requires an alias.
type DerivedTable struct {
	Select *SelectStmt
	Alias  string
}

func (*DerivedTable) tableRefNode() {}

// Expr is the common interface of all expression nodes.
type Expr interface {
	exprNode()
}

// ColumnRef names a column, with an optional table or alias qualifier.
type ColumnRef struct {
	Table  string
	Column string
}

func (*ColumnRef) exprNode() {}

// Literal is a scalar constant. Value keeps the source text: numbers
// stay unparsed, strings are stored without their quotes.
type Literal struct {
	Type  LiteralType
	Value string
}

func (*Literal) exprNode() {}

// LiteralType classifies a Literal.
type LiteralType int

// Literal kinds.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// BinaryExpr applies an infix operator. Op is the upper-cased operator
// text, e.g. "=", ">", "AND".
type BinaryExpr struct {
	Left  Expr
	Op    string
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr applies a prefix operator: -, +, or NOT.
type UnaryExpr struct {
	Op   string
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// FuncCall is a function invocation. Star marks COUNT(*), whose
// argument list is empty.
type FuncCall struct {
	Name     string
	Distinct bool
	Args     []Expr
	Star     bool
}

func (*FuncCall) exprNode() {}

// CaseExpr covers both the searched form (Operand nil) and the simple
// form (Operand set).
type CaseExpr struct {
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// WhenClause is one WHEN ... THEN ... arm of a CASE.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr is CAST(expr AS type). TypeName keeps the type's source
// text verbatim.
type CastExpr struct {
	Expr     Expr
	TypeName string
}

func (*CastExpr) exprNode() {}

// InExpr tests membership against either a literal list (Values) or a
// subquery (Query); the unused side is nil.
type InExpr struct {
	Expr   Expr
	Not    bool
	Values []Expr
	Query  *SelectStmt
}

func (*InExpr) exprNode() {}

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) exprNode() {}

// IsNullExpr is expr IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

func (*IsNullExpr) exprNode() {}

// LikeExpr is expr [NOT] LIKE pattern; ILike marks the
// case-insensitive variant.
type LikeExpr struct {
	Expr    Expr
	Not     bool
	Pattern Expr
	ILike   bool
}

func (*LikeExpr) exprNode() {}

// ParenExpr records explicit parentheses so the renderer can reproduce
// the grouping the author wrote.
type ParenExpr struct {
	Expr Expr
}

func (*ParenExpr) exprNode() {}

// StarExpr is a bare * (or t.*) used in expression position.
type StarExpr struct {
	Table string
}

func (*StarExpr) exprNode() {}

// SubqueryExpr is a scalar subquery in expression position.
type SubqueryExpr struct {
	Select *SelectStmt
}

func (*SubqueryExpr) exprNode() {}

// ExistsExpr is [NOT] EXISTS (SELECT ...).
type ExistsExpr struct {
	Not    bool
	Select *SelectStmt
}

func (*ExistsExpr) exprNode() {}
