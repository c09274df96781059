package sql

import "fmt"

// FROM clause parsing: table references and JOINs.
//
// Grammar:
//
//	from_clause → table_ref (join)*
//	join        → join_type table_ref [ON expr | USING "(" ident_list ")"]
//	            | "," table_ref
//	join_type   → [INNER] JOIN
//	            | LEFT [OUTER] JOIN
//	            | RIGHT [OUTER] JOIN
//	            | FULL [OUTER] JOIN
//	            | CROSS JOIN
//	table_ref   → [schema "."] table [AS? alias]
//	            | "(" statement ")" [AS? alias]

// parseFromClause parses the FROM clause.
func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{}
	from.Source = p.parseTableRef()

	// Parse joins
	for {
		if p.check(TOKEN_COMMA) {
			p.nextToken()
			join := &Join{
				Type:  JoinComma,
				Right: p.parseTableRef(),
			}
			from.Joins = append(from.Joins, join)
			continue
		}

		if !p.isJoinKeyword(p.token) {
			break
		}

		join := p.parseJoin()
		from.Joins = append(from.Joins, join)
	}

	return from
}

// parseJoin parses a single JOIN clause.
func (p *Parser) parseJoin() *Join {
	join := &Join{Type: JoinInner}

	switch p.token.Type {
	case TOKEN_INNER:
		p.nextToken()
		p.expect(TOKEN_JOIN)
	case TOKEN_LEFT:
		join.Type = JoinLeft
		p.nextToken()
		p.match(TOKEN_OUTER) // optional
		p.expect(TOKEN_JOIN)
	case TOKEN_RIGHT:
		join.Type = JoinRight
		p.nextToken()
		p.match(TOKEN_OUTER) // optional
		p.expect(TOKEN_JOIN)
	case TOKEN_FULL:
		join.Type = JoinFull
		p.nextToken()
		p.match(TOKEN_OUTER) // optional
		p.expect(TOKEN_JOIN)
	case TOKEN_CROSS:
		join.Type = JoinCross
		p.nextToken()
		p.expect(TOKEN_JOIN)
	case TOKEN_JOIN:
		p.nextToken()
	}

	join.Right = p.parseTableRef()

	// ON condition or USING column list
	if p.match(TOKEN_ON) {
		join.Condition = p.parseExpression()
	} else if p.match(TOKEN_USING) {
		p.expect(TOKEN_LPAREN)
		for {
			if !p.check(TOKEN_IDENT) {
				p.addError(fmt.Sprintf(ErrExpectedColumnName, p.token.Type))
				break
			}
			join.Using = append(join.Using, p.token.Literal)
			p.nextToken()

			if !p.match(TOKEN_COMMA) {
				break
			}
		}
		p.expect(TOKEN_RPAREN)
	}

	return join
}

// parseTableRef parses a table reference.
func (p *Parser) parseTableRef() TableRef {
	// Subquery in FROM
	if p.check(TOKEN_LPAREN) {
		p.nextToken()
		derived := &DerivedTable{Select: p.parseStatement()}
		p.expect(TOKEN_RPAREN)
		derived.Alias = p.parseOptionalAlias()
		return derived
	}

	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf(ErrExpectedTableName, p.token.Type))
		return &TableName{}
	}

	table := &TableName{Name: p.token.Literal}
	p.nextToken()

	// schema.table
	if p.check(TOKEN_DOT) && p.checkPeek(TOKEN_IDENT) {
		p.nextToken() // consume DOT
		table.Schema = table.Name
		table.Name = p.token.Literal
		p.nextToken()
	}

	table.Alias = p.parseOptionalAlias()
	return table
}

// parseOptionalAlias parses an optional [AS] alias after a table reference.
func (p *Parser) parseOptionalAlias() string {
	if p.match(TOKEN_AS) {
		if p.check(TOKEN_IDENT) {
			alias := p.token.Literal
			p.nextToken()
			return alias
		}
		p.addError("expected alias after AS")
		return ""
	}

	if p.check(TOKEN_IDENT) && !p.isKeyword(p.token) {
		alias := p.token.Literal
		p.nextToken()
		return alias
	}

	return ""
}
