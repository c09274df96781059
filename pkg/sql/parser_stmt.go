package sql

import "fmt"

// Statement parsing: SELECT core, select list, GROUP BY, ORDER BY, LIMIT.
//
// Grammar:
//
//	statement   → select_core EOF
//	select_core → SELECT [DISTINCT|ALL] select_list
//	              [FROM from_clause]
//	              [WHERE expr]
//	              [GROUP BY expr_list]
//	              [HAVING expr]
//	              [ORDER BY order_list]
//	              [LIMIT expr [OFFSET expr]]
//	select_list → select_item ("," select_item)*
//	select_item → "*" | table "." "*" | expr [AS identifier]
//	order_list  → order_item ("," order_item)*
//	order_item  → expr [ASC|DESC]

// parseStatement parses a complete SQL statement.
func (p *Parser) parseStatement() *SelectStmt {
	if p.check(TOKEN_WITH) {
		p.addUnsupported("WITH clause")
		return nil
	}

	stmt := p.parseSelectCore()

	// Set operations chain onto a second SELECT core
	if p.check(TOKEN_UNION) || p.check(TOKEN_INTERSECT) || p.check(TOKEN_EXCEPT) {
		p.addUnsupported("set operation " + p.token.Type.String())
		return stmt
	}

	if !p.check(TOKEN_EOF) && !p.check(TOKEN_RPAREN) && len(p.errors) == 0 {
		p.addError(fmt.Sprintf(ErrTrailingInput, p.token.Literal))
	}

	return stmt
}

// parseSelectCore parses a single SELECT clause.
func (p *Parser) parseSelectCore() *SelectStmt {
	p.expect(TOKEN_SELECT)
	stmt := &SelectStmt{}

	// DISTINCT / ALL
	if p.match(TOKEN_DISTINCT) {
		stmt.Distinct = true
	} else {
		p.match(TOKEN_ALL) // optional, consume if present
	}

	// SELECT list
	stmt.Columns = p.parseSelectList()

	// FROM clause
	if p.match(TOKEN_FROM) {
		stmt.From = p.parseFromClause()
	}

	// WHERE clause
	if p.match(TOKEN_WHERE) {
		stmt.Where = p.parseExpression()
	}

	// GROUP BY clause
	if p.match(TOKEN_GROUP) {
		p.expect(TOKEN_BY)
		stmt.GroupBy = p.parseExpressionList()
	}

	// HAVING clause
	if p.match(TOKEN_HAVING) {
		stmt.Having = p.parseExpression()
	}

	// ORDER BY clause
	if p.match(TOKEN_ORDER) {
		p.expect(TOKEN_BY)
		stmt.OrderBy = p.parseOrderByList()
	}

	// LIMIT clause
	if p.match(TOKEN_LIMIT) {
		stmt.Limit = p.parseExpression()

		// OFFSET clause
		if p.match(TOKEN_OFFSET) {
			stmt.Offset = p.parseExpression()
		}
	}

	return stmt
}

// parseSelectList parses the list of SELECT items.
func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem

	for {
		item := p.parseSelectItem()
		items = append(items, item)

		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return items
}

// parseSelectItem parses a single SELECT item.
func (p *Parser) parseSelectItem() SelectItem {
	item := SelectItem{}

	// Check for * or table.*
	if p.check(TOKEN_STAR) {
		item.Star = true
		p.nextToken()
		return item
	}

	// Check for table.* pattern using 3-token lookahead (no rollback needed)
	if p.check(TOKEN_IDENT) && p.checkPeek(TOKEN_DOT) && p.checkPeek2(TOKEN_STAR) {
		tableName := p.token.Literal
		p.nextToken() // consume identifier
		p.nextToken() // consume DOT
		p.nextToken() // consume STAR
		item.TableStar = tableName
		return item
	}

	// Regular expression
	item.Expr = p.parseExpression()

	// Optional alias
	if p.match(TOKEN_AS) {
		if p.check(TOKEN_IDENT) {
			item.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected alias after AS")
		}
	} else if p.check(TOKEN_IDENT) && !p.isKeyword(p.token) {
		// Alias without AS
		item.Alias = p.token.Literal
		p.nextToken()
	}

	return item
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr

	for {
		exprs = append(exprs, p.parseExpression())

		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return exprs
}

// parseOrderByList parses a list of ORDER BY items.
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem

	for {
		item := OrderByItem{Expr: p.parseExpression()}

		if p.match(TOKEN_DESC) {
			item.Desc = true
		} else {
			p.match(TOKEN_ASC) // optional
		}

		items = append(items, item)

		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return items
}
