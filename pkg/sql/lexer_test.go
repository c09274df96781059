package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexer_BasicTokens(t *testing.T) {
	input := "SELECT a, b FROM t WHERE x >= 10"

	expected := []struct {
		tokType TokenType
		literal string
	}{
		{TOKEN_SELECT, "SELECT"},
		{TOKEN_IDENT, "a"},
		{TOKEN_COMMA, ","},
		{TOKEN_IDENT, "b"},
		{TOKEN_FROM, "FROM"},
		{TOKEN_IDENT, "t"},
		{TOKEN_WHERE, "WHERE"},
		{TOKEN_IDENT, "x"},
		{TOKEN_GE, ">="},
		{TOKEN_NUMBER, "10"},
		{TOKEN_EOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		assert.Equal(t, exp.tokType, tok.Type, "token %d type", i)
		assert.Equal(t, exp.literal, tok.Literal, "token %d literal", i)
	}
}

func TestLexer_Operators(t *testing.T) {
	input := "= != <> < > <= >= + - * / % || ."

	expected := []TokenType{
		TOKEN_EQ, TOKEN_NE, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE,
		TOKEN_PLUS, TOKEN_MINUS, TOKEN_STAR, TOKEN_SLASH, TOKEN_PERCENT,
		TOKEN_DPIPE, TOKEN_DOT, TOKEN_EOF,
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		assert.Equal(t, exp, tok.Type, "token %d", i)
	}
}

func TestLexer_StringLiterals(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple string", input: "'hello'", expected: "hello"},
		{name: "empty string", input: "''", expected: ""},
		{name: "doubled quote escape", input: "'it''s'", expected: "it's"},
		{name: "string with spaces", input: "'a b c'", expected: "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLexer(tt.input)
			tok := l.NextToken()
			assert.Equal(t, TOKEN_STRING, tok.Type)
			assert.Equal(t, tt.expected, tok.Literal)
		})
	}
}

func TestLexer_QuotedIdentifiers(t *testing.T) {
	l := NewLexer(`"Order Details"`)
	tok := l.NextToken()
	assert.Equal(t, TOKEN_IDENT, tok.Type)
	assert.Equal(t, "Order Details", tok.Literal)
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "integer", input: "42", expected: "42"},
		{name: "decimal", input: "3.14", expected: "3.14"},
		{name: "scientific", input: "1e10", expected: "1e10"},
		{name: "scientific with sign", input: "2.5E-3", expected: "2.5E-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLexer(tt.input)
			tok := l.NextToken()
			assert.Equal(t, TOKEN_NUMBER, tok.Type)
			assert.Equal(t, tt.expected, tok.Literal)
		})
	}
}

func TestLexer_Comments(t *testing.T) {
	input := `SELECT a -- line comment
FROM /* block
comment */ t`

	expected := []TokenType{
		TOKEN_SELECT, TOKEN_IDENT, TOKEN_FROM, TOKEN_IDENT, TOKEN_EOF,
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		assert.Equal(t, exp, tok.Type, "token %d", i)
	}
}

func TestLexer_KeywordsCaseInsensitive(t *testing.T) {
	l := NewLexer("select From WHERE")
	assert.Equal(t, TOKEN_SELECT, l.NextToken().Type)
	assert.Equal(t, TOKEN_FROM, l.NextToken().Type)
	assert.Equal(t, TOKEN_WHERE, l.NextToken().Type)
}

func TestLexer_Positions(t *testing.T) {
	l := NewLexer("SELECT\n  a")

	tok := l.NextToken()
	assert.Equal(t, 1, tok.Pos.Line)
	assert.Equal(t, 1, tok.Pos.Column)

	tok = l.NextToken()
	assert.Equal(t, 2, tok.Pos.Line)
	assert.Equal(t, 3, tok.Pos.Column)
}
