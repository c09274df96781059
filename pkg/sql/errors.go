package sql

import "fmt"

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// UnsupportedError is returned when the input uses a construct the
// parser recognizes but this grammar does not cover.
type UnsupportedError struct {
	Pos       Position
	Construct string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported construct at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Construct)
}

// Common error messages
const (
	ErrUnexpectedToken    = "unexpected token %s, expected %s"
	ErrExpectedExpression = "expected expression, got %s"
	ErrExpectedTableName  = "expected table name, got %s"
	ErrExpectedColumnName = "expected column name, got %s"
	ErrTrailingInput      = "unexpected input after statement: %s"
)
