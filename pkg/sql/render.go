package sql

import "strings"

// Render produces executable single-line SQL text for a statement. The
// output is semantically equivalent to the parsed input; formatting
// (whitespace, comments) is not preserved.
func Render(stmt *SelectStmt) string {
	var p printer
	p.printStmt(stmt)
	return p.sb.String()
}

// RenderExpr produces SQL text for a single expression.
func RenderExpr(e Expr) string {
	var p printer
	p.printExpr(e)
	return p.sb.String()
}

// printer accumulates SQL text.
type printer struct {
	sb strings.Builder
}

func (p *printer) write(s string) {
	p.sb.WriteString(s)
}

func (p *printer) printStmt(stmt *SelectStmt) {
	if stmt == nil {
		return
	}

	p.write("SELECT ")
	if stmt.Distinct {
		p.write("DISTINCT ")
	}

	for i, item := range stmt.Columns {
		if i > 0 {
			p.write(", ")
		}
		p.printSelectItem(item)
	}

	if stmt.From != nil {
		p.write(" FROM ")
		p.printTableRef(stmt.From.Source)
		for _, join := range stmt.From.Joins {
			p.printJoin(join)
		}
	}

	if stmt.Where != nil {
		p.write(" WHERE ")
		p.printExpr(stmt.Where)
	}

	if len(stmt.GroupBy) > 0 {
		p.write(" GROUP BY ")
		for i, e := range stmt.GroupBy {
			if i > 0 {
				p.write(", ")
			}
			p.printExpr(e)
		}
	}

	if stmt.Having != nil {
		p.write(" HAVING ")
		p.printExpr(stmt.Having)
	}

	if len(stmt.OrderBy) > 0 {
		p.write(" ORDER BY ")
		for i, item := range stmt.OrderBy {
			if i > 0 {
				p.write(", ")
			}
			p.printExpr(item.Expr)
			if item.Desc {
				p.write(" DESC")
			}
		}
	}

	if stmt.Limit != nil {
		p.write(" LIMIT ")
		p.printExpr(stmt.Limit)
	}

	if stmt.Offset != nil {
		p.write(" OFFSET ")
		p.printExpr(stmt.Offset)
	}
}

func (p *printer) printSelectItem(item SelectItem) {
	switch {
	case item.Star:
		p.write("*")
	case item.TableStar != "":
		p.write(item.TableStar)
		p.write(".*")
	default:
		p.printExpr(item.Expr)
		if item.Alias != "" {
			p.write(" AS ")
			p.write(item.Alias)
		}
	}
}

func (p *printer) printTableRef(ref TableRef) {
	switch t := ref.(type) {
	case *TableName:
		if t.Schema != "" {
			p.write(t.Schema)
			p.write(".")
		}
		p.write(t.Name)
		if t.Alias != "" {
			p.write(" AS ")
			p.write(t.Alias)
		}
	case *DerivedTable:
		p.write("(")
		p.printStmt(t.Select)
		p.write(")")
		if t.Alias != "" {
			p.write(" AS ")
			p.write(t.Alias)
		}
	}
}

func (p *printer) printJoin(join *Join) {
	switch join.Type {
	case JoinComma:
		p.write(", ")
		p.printTableRef(join.Right)
		return
	case JoinCross:
		p.write(" CROSS JOIN ")
	case JoinLeft:
		p.write(" LEFT JOIN ")
	case JoinRight:
		p.write(" RIGHT JOIN ")
	case JoinFull:
		p.write(" FULL JOIN ")
	default:
		p.write(" INNER JOIN ")
	}

	p.printTableRef(join.Right)

	if join.Condition != nil {
		p.write(" ON ")
		p.printExpr(join.Condition)
	} else if len(join.Using) > 0 {
		p.write(" USING (")
		p.write(strings.Join(join.Using, ", "))
		p.write(")")
	}
}

func (p *printer) printExpr(e Expr) {
	if e == nil {
		return
	}

	switch expr := e.(type) {
	case *ColumnRef:
		if expr.Table != "" {
			p.write(expr.Table)
			p.write(".")
		}
		p.write(expr.Column)

	case *Literal:
		p.printLiteral(expr)

	case *BinaryExpr:
		p.printExpr(expr.Left)
		p.write(" ")
		p.write(expr.Op)
		p.write(" ")
		p.printExpr(expr.Right)

	case *UnaryExpr:
		if expr.Op == "NOT" {
			p.write("NOT ")
		} else {
			p.write(expr.Op)
		}
		p.printExpr(expr.Expr)

	case *FuncCall:
		p.write(expr.Name)
		p.write("(")
		if expr.Distinct {
			p.write("DISTINCT ")
		}
		if expr.Star {
			p.write("*")
		}
		for i, arg := range expr.Args {
			if i > 0 {
				p.write(", ")
			}
			p.printExpr(arg)
		}
		p.write(")")

	case *CaseExpr:
		p.write("CASE")
		if expr.Operand != nil {
			p.write(" ")
			p.printExpr(expr.Operand)
		}
		for _, when := range expr.Whens {
			p.write(" WHEN ")
			p.printExpr(when.Condition)
			p.write(" THEN ")
			p.printExpr(when.Result)
		}
		if expr.Else != nil {
			p.write(" ELSE ")
			p.printExpr(expr.Else)
		}
		p.write(" END")

	case *CastExpr:
		p.write("CAST(")
		p.printExpr(expr.Expr)
		p.write(" AS ")
		p.write(expr.TypeName)
		p.write(")")

	case *InExpr:
		p.printExpr(expr.Expr)
		if expr.Not {
			p.write(" NOT")
		}
		p.write(" IN (")
		if expr.Query != nil {
			p.printStmt(expr.Query)
		} else {
			for i, v := range expr.Values {
				if i > 0 {
					p.write(", ")
				}
				p.printExpr(v)
			}
		}
		p.write(")")

	case *BetweenExpr:
		p.printExpr(expr.Expr)
		if expr.Not {
			p.write(" NOT")
		}
		p.write(" BETWEEN ")
		p.printExpr(expr.Low)
		p.write(" AND ")
		p.printExpr(expr.High)

	case *IsNullExpr:
		p.printExpr(expr.Expr)
		if expr.Not {
			p.write(" IS NOT NULL")
		} else {
			p.write(" IS NULL")
		}

	case *LikeExpr:
		p.printExpr(expr.Expr)
		if expr.Not {
			p.write(" NOT")
		}
		if expr.ILike {
			p.write(" ILIKE ")
		} else {
			p.write(" LIKE ")
		}
		p.printExpr(expr.Pattern)

	case *ParenExpr:
		p.write("(")
		p.printExpr(expr.Expr)
		p.write(")")

	case *StarExpr:
		if expr.Table != "" {
			p.write(expr.Table)
			p.write(".")
		}
		p.write("*")

	case *SubqueryExpr:
		p.write("(")
		p.printStmt(expr.Select)
		p.write(")")

	case *ExistsExpr:
		if expr.Not {
			p.write("NOT ")
		}
		p.write("EXISTS (")
		p.printStmt(expr.Select)
		p.write(")")
	}
}

func (p *printer) printLiteral(lit *Literal) {
	switch lit.Type {
	case LiteralString:
		p.write("'")
		p.write(strings.ReplaceAll(lit.Value, "'", "''"))
		p.write("'")
	default:
		p.write(lit.Value)
	}
}

// QuoteLiteral renders a raw value as a SQL literal: numbers pass
// through, everything else is single-quoted with escaping.
func QuoteLiteral(value string) string {
	if value == "" {
		return "''"
	}
	if isNumericLiteral(value) {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func isNumericLiteral(s string) bool {
	dot := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '-' && i == 0 {
			continue
		}
		if ch == '.' && !dot {
			dot = true
			continue
		}
		if !isDigit(ch) {
			return false
		}
	}
	return s != "-" && s != "."
}
