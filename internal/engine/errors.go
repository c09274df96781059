package engine

import "fmt"

// UnsupportedQueryShapeError is returned when a query uses constructs
// outside the supported analysis grammar, such as subqueries, non-equi
// joins, or DISTINCT aggregates.
type UnsupportedQueryShapeError struct {
	Construct string
	Detail    string
}

func (e *UnsupportedQueryShapeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unsupported query shape: %s (%s)", e.Construct, e.Detail)
	}
	return fmt.Sprintf("unsupported query shape: %s", e.Construct)
}

// InvalidParameterError is returned when a mode's required parameter is
// missing or malformed. No diagnostic query has been executed when this
// error is reported.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

// QueryExecutionError is returned when the database rejects a diagnostic
// query. Diagnostic queries are deterministic, so failures are surfaced
// immediately and never retried.
type QueryExecutionError struct {
	SQL string
	Err error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v (sql: %s)", e.Err, e.SQL)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// TupleUnreachableError is returned when the why-not search exhausts all
// candidate relaxations without admitting the target tuple. It is a
// definitive negative answer, not a crash.
type TupleUnreachableError struct {
	Target string
	Tested int
}

func (e *TupleUnreachableError) Error() string {
	if e.Tested == 0 {
		return fmt.Sprintf("tuple %s is unreachable: no matching row exists in the source table", e.Target)
	}
	return fmt.Sprintf("tuple %s is unreachable: no relaxation admits it (%d candidate subsets tested)", e.Target, e.Tested)
}
