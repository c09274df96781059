package sql

import (
	"strings"
	"unicode"
)

// Lexer turns SQL text into a token stream. It only handles the subset
// of SQL the parser understands; anything unrecognized comes back as
// TOKEN_ILLEGAL rather than an error, so the parser can report the
// position.
type Lexer struct {
	input string
	pos   int  // offset of ch
	next  int  // offset one past ch
	ch    byte // byte under examination, 0 at EOF
	line  int
	col   int
}

// NewLexer creates a Lexer over input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.advance()
	return l
}

func (l *Lexer) advance() {
	if l.next >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.next]
	}
	l.pos = l.next
	l.next++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peek() byte {
	if l.next >= len(l.input) {
		return 0
	}
	return l.input[l.next]
}

func (l *Lexer) here() Position {
	return Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// NextToken scans and returns the next token, skipping whitespace and
// comments.
func (l *Lexer) NextToken() Token {
	l.skipIgnored()

	pos := l.here()

	// Multi-byte tokens that manage their own advancement.
	switch {
	case l.ch == 0:
		return Token{Type: TOKEN_EOF, Pos: pos}
	case l.ch == '\'':
		return Token{Type: TOKEN_STRING, Literal: l.readQuoted('\''), Pos: pos}
	case l.ch == '"':
		return Token{Type: TOKEN_IDENT, Literal: l.readQuoted('"'), Pos: pos}
	case isDigit(l.ch):
		return Token{Type: TOKEN_NUMBER, Literal: l.readNumber(), Pos: pos}
	case isLetter(l.ch) || l.ch == '_':
		word := l.readWord()
		return Token{Type: LookupIdent(strings.ToLower(word)), Literal: word, Pos: pos}
	}

	tok := Token{Pos: pos}
	switch l.ch {
	case '+':
		tok.Type, tok.Literal = TOKEN_PLUS, "+"
	case '-':
		tok.Type, tok.Literal = TOKEN_MINUS, "-"
	case '*':
		tok.Type, tok.Literal = TOKEN_STAR, "*"
	case '/':
		tok.Type, tok.Literal = TOKEN_SLASH, "/"
	case '%':
		tok.Type, tok.Literal = TOKEN_PERCENT, "%"
	case '=':
		tok.Type, tok.Literal = TOKEN_EQ, "="
	case '.':
		tok.Type, tok.Literal = TOKEN_DOT, "."
	case ',':
		tok.Type, tok.Literal = TOKEN_COMMA, ","
	case '(':
		tok.Type, tok.Literal = TOKEN_LPAREN, "("
	case ')':
		tok.Type, tok.Literal = TOKEN_RPAREN, ")"
	case '<':
		switch l.peek() {
		case '=':
			l.advance()
			tok.Type, tok.Literal = TOKEN_LE, "<="
		case '>':
			l.advance()
			tok.Type, tok.Literal = TOKEN_NE, "<>"
		default:
			tok.Type, tok.Literal = TOKEN_LT, "<"
		}
	case '>':
		if l.peek() == '=' {
			l.advance()
			tok.Type, tok.Literal = TOKEN_GE, ">="
		} else {
			tok.Type, tok.Literal = TOKEN_GT, ">"
		}
	case '!':
		if l.peek() == '=' {
			l.advance()
			tok.Type, tok.Literal = TOKEN_NE, "!="
		} else {
			tok.Type, tok.Literal = TOKEN_ILLEGAL, string(l.ch)
		}
	case '|':
		if l.peek() == '|' {
			l.advance()
			tok.Type, tok.Literal = TOKEN_DPIPE, "||"
		} else {
			tok.Type, tok.Literal = TOKEN_ILLEGAL, string(l.ch)
		}
	default:
		tok.Type, tok.Literal = TOKEN_ILLEGAL, string(l.ch)
	}

	l.advance()
	return tok
}

// skipIgnored consumes whitespace, -- line comments, and /* */ block
// comments, in any interleaving.
func (l *Lexer) skipIgnored() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.advance()
		}

		switch {
		case l.ch == '-' && l.peek() == '-':
			for l.ch != '\n' && l.ch != 0 {
				l.advance()
			}
		case l.ch == '/' && l.peek() == '*':
			l.advance()
			l.advance()
			for l.ch != 0 && !(l.ch == '*' && l.peek() == '/') {
				l.advance()
			}
			if l.ch != 0 {
				l.advance()
				l.advance()
			}
		default:
			return
		}
	}
}

// readQuoted consumes a delimited literal and returns its unescaped
// body. A doubled delimiter inside the body is the SQL escape for a
// single one, as in "odd""name". An unterminated literal ends at EOF.
func (l *Lexer) readQuoted(delim byte) string {
	l.advance() // opening delimiter

	var b strings.Builder
	for l.ch != 0 {
		if l.ch == delim {
			if l.peek() != delim {
				l.advance()
				break
			}
			l.advance()
		}
		b.WriteByte(l.ch)
		l.advance()
	}
	return b.String()
}

func (l *Lexer) readWord() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.advance()
	}
	return l.input[start:l.pos]
}

// readNumber accepts integers, decimals, and scientific notation. A
// trailing dot without digits is left for the dot token (e.g. "1.e").
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.advance()
	}
	if l.ch == '.' && isDigit(l.peek()) {
		l.advance()
		for isDigit(l.ch) {
			l.advance()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.advance()
		if l.ch == '+' || l.ch == '-' {
			l.advance()
		}
		for isDigit(l.ch) {
			l.advance()
		}
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
