package sql

import (
	"fmt"
	"strings"
)

// Expression parsing with precedence climbing.
//
// Grammar (loosest binding first):
//
//	expr           → or_expr
//	or_expr        → and_expr (OR and_expr)*
//	and_expr       → not_expr (AND not_expr)*
//	not_expr       → NOT not_expr | comparison
//	comparison     → additive [comp_tail]
//	comp_tail      → ("="|"!="|"<>"|"<"|">"|"<="|">=") additive
//	               | IS [NOT] NULL
//	               | [NOT] IN "(" (expr_list | statement) ")"
//	               | [NOT] BETWEEN additive AND additive
//	               | [NOT] (LIKE|ILIKE) additive
//	additive       → multiplicative (("+"|"-"|"||") multiplicative)*
//	multiplicative → unary (("*"|"/"|"%") unary)*
//	unary          → ("-"|"+") unary | primary
//	primary        → NUMBER | STRING | TRUE | FALSE | NULL
//	               | CASE [expr] (WHEN expr THEN expr)+ [ELSE expr] END
//	               | CAST "(" expr AS identifier ")"
//	               | [NOT] EXISTS "(" statement ")"
//	               | identifier "(" [DISTINCT] (expr_list | "*") ")"
//	               | identifier ["." identifier]
//	               | "(" expr ")" | "(" statement ")"

// parseExpression parses a full expression.
func (p *Parser) parseExpression() Expr {
	return p.parseOr()
}

// parseOr parses OR expressions.
func (p *Parser) parseOr() Expr {
	left := p.parseAnd()

	for p.check(TOKEN_OR) {
		p.nextToken()
		right := p.parseAnd()
		left = &BinaryExpr{Left: left, Op: "OR", Right: right}
	}

	return left
}

// parseAnd parses AND expressions.
func (p *Parser) parseAnd() Expr {
	left := p.parseNot()

	for p.check(TOKEN_AND) {
		p.nextToken()
		right := p.parseNot()
		left = &BinaryExpr{Left: left, Op: "AND", Right: right}
	}

	return left
}

// parseNot parses NOT expressions.
func (p *Parser) parseNot() Expr {
	if p.check(TOKEN_NOT) {
		// NOT EXISTS is handled in parsePrimary to keep the Not flag on the node
		if !p.checkPeek(TOKEN_EXISTS) {
			p.nextToken()
			return &UnaryExpr{Op: "NOT", Expr: p.parseNot()}
		}
	}
	return p.parseComparison()
}

// parseComparison parses comparison expressions.
func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()

	switch p.token.Type {
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE:
		op := p.token.Literal
		p.nextToken()
		right := p.parseAdditive()
		return &BinaryExpr{Left: left, Op: op, Right: right}

	case TOKEN_IS:
		p.nextToken()
		not := p.match(TOKEN_NOT)
		p.expect(TOKEN_NULL)
		return &IsNullExpr{Expr: left, Not: not}

	case TOKEN_IN:
		return p.parseInTail(left, false)

	case TOKEN_BETWEEN:
		return p.parseBetweenTail(left, false)

	case TOKEN_LIKE:
		p.nextToken()
		return &LikeExpr{Expr: left, Pattern: p.parseAdditive()}

	case TOKEN_ILIKE:
		p.nextToken()
		return &LikeExpr{Expr: left, Pattern: p.parseAdditive(), ILike: true}

	case TOKEN_NOT:
		// NOT IN / NOT BETWEEN / NOT LIKE
		switch p.peek.Type {
		case TOKEN_IN:
			p.nextToken()
			return p.parseInTail(left, true)
		case TOKEN_BETWEEN:
			p.nextToken()
			return p.parseBetweenTail(left, true)
		case TOKEN_LIKE:
			p.nextToken()
			p.nextToken()
			return &LikeExpr{Expr: left, Not: true, Pattern: p.parseAdditive()}
		case TOKEN_ILIKE:
			p.nextToken()
			p.nextToken()
			return &LikeExpr{Expr: left, Not: true, Pattern: p.parseAdditive(), ILike: true}
		}
	}

	return left
}

// parseInTail parses the IN tail of a comparison. The IN token is current.
func (p *Parser) parseInTail(left Expr, not bool) Expr {
	p.expect(TOKEN_IN)
	in := &InExpr{Expr: left, Not: not}

	p.expect(TOKEN_LPAREN)
	if p.check(TOKEN_SELECT) {
		in.Query = p.parseStatement()
	} else {
		in.Values = p.parseExpressionList()
	}
	p.expect(TOKEN_RPAREN)

	return in
}

// parseBetweenTail parses the BETWEEN tail of a comparison. The BETWEEN
// token is current.
func (p *Parser) parseBetweenTail(left Expr, not bool) Expr {
	p.expect(TOKEN_BETWEEN)
	between := &BetweenExpr{Expr: left, Not: not}
	between.Low = p.parseAdditive()
	p.expect(TOKEN_AND)
	between.High = p.parseAdditive()
	return between
}

// parseAdditive parses +, -, and || expressions.
func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()

	for p.check(TOKEN_PLUS) || p.check(TOKEN_MINUS) || p.check(TOKEN_DPIPE) {
		op := p.token.Literal
		p.nextToken()
		right := p.parseMultiplicative()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

// parseMultiplicative parses *, /, and % expressions.
func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()

	for p.check(TOKEN_STAR) || p.check(TOKEN_SLASH) || p.check(TOKEN_PERCENT) {
		op := p.token.Literal
		p.nextToken()
		right := p.parseUnary()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

// parseUnary parses unary +/- expressions.
func (p *Parser) parseUnary() Expr {
	if p.check(TOKEN_MINUS) || p.check(TOKEN_PLUS) {
		op := p.token.Literal
		p.nextToken()
		return &UnaryExpr{Op: op, Expr: p.parseUnary()}
	}
	return p.parsePrimary()
}

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_STRING:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_TRUE, TOKEN_FALSE:
		lit := &Literal{Type: LiteralBool, Value: strings.ToUpper(p.token.Literal)}
		p.nextToken()
		return lit

	case TOKEN_NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "NULL"}

	case TOKEN_CASE:
		return p.parseCaseExpr()

	case TOKEN_CAST:
		return p.parseCastExpr()

	case TOKEN_EXISTS:
		p.nextToken()
		p.expect(TOKEN_LPAREN)
		exists := &ExistsExpr{Select: p.parseStatement()}
		p.expect(TOKEN_RPAREN)
		return exists

	case TOKEN_NOT:
		// NOT EXISTS (deferred from parseNot)
		p.nextToken()
		p.expect(TOKEN_EXISTS)
		p.expect(TOKEN_LPAREN)
		exists := &ExistsExpr{Not: true, Select: p.parseStatement()}
		p.expect(TOKEN_RPAREN)
		return exists

	case TOKEN_LPAREN:
		p.nextToken()
		if p.check(TOKEN_SELECT) {
			sub := &SubqueryExpr{Select: p.parseStatement()}
			p.expect(TOKEN_RPAREN)
			return sub
		}
		expr := &ParenExpr{Expr: p.parseExpression()}
		p.expect(TOKEN_RPAREN)
		return expr

	case TOKEN_STAR:
		p.nextToken()
		return &StarExpr{}

	case TOKEN_IDENT:
		return p.parseIdentExpr()
	}

	p.addError(fmt.Sprintf(ErrExpectedExpression, p.token.Type))
	p.nextToken()
	return &Literal{Type: LiteralNull, Value: "NULL"}
}

// parseCaseExpr parses a CASE expression. The CASE token is current.
func (p *Parser) parseCaseExpr() Expr {
	p.expect(TOKEN_CASE)
	caseExpr := &CaseExpr{}

	// CASE operand WHEN ... (searched form has an operand before WHEN)
	if !p.check(TOKEN_WHEN) {
		caseExpr.Operand = p.parseExpression()
	}

	for p.match(TOKEN_WHEN) {
		when := WhenClause{}
		when.Condition = p.parseExpression()
		p.expect(TOKEN_THEN)
		when.Result = p.parseExpression()
		caseExpr.Whens = append(caseExpr.Whens, when)
	}

	if p.match(TOKEN_ELSE) {
		caseExpr.Else = p.parseExpression()
	}

	p.expect(TOKEN_END)
	return caseExpr
}

// parseCastExpr parses a CAST expression. The CAST token is current.
func (p *Parser) parseCastExpr() Expr {
	p.expect(TOKEN_CAST)
	p.expect(TOKEN_LPAREN)
	cast := &CastExpr{Expr: p.parseExpression()}
	p.expect(TOKEN_AS)
	if p.check(TOKEN_IDENT) {
		cast.TypeName = p.token.Literal
		p.nextToken()
	} else {
		p.addError("expected type name in CAST")
	}
	p.expect(TOKEN_RPAREN)
	return cast
}

// parseIdentExpr parses an expression starting with an identifier: a
// function call, a qualified column, or a bare column.
func (p *Parser) parseIdentExpr() Expr {
	name := p.token.Literal

	// Function call
	if p.checkPeek(TOKEN_LPAREN) {
		p.nextToken() // consume name
		p.nextToken() // consume '('
		call := &FuncCall{Name: name}

		if p.match(TOKEN_DISTINCT) {
			call.Distinct = true
		}

		if p.check(TOKEN_STAR) {
			call.Star = true
			p.nextToken()
		} else if !p.check(TOKEN_RPAREN) {
			call.Args = p.parseExpressionList()
		}
		p.expect(TOKEN_RPAREN)

		if p.check(TOKEN_OVER) {
			p.addUnsupported("window function")
		}

		return call
	}

	// Qualified column: table.column
	if p.checkPeek(TOKEN_DOT) && p.checkPeek2(TOKEN_IDENT) {
		table := name
		p.nextToken() // consume table
		p.nextToken() // consume DOT
		col := &ColumnRef{Table: table, Column: p.token.Literal}
		p.nextToken()
		return col
	}

	col := &ColumnRef{Column: name}
	p.nextToken()
	return col
}
