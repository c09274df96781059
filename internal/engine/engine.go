// Package engine implements the query explanation engine. It builds a
// structured model of a SQL query, synthesizes diagnostic sub-queries,
// executes them through an injected Runner, and post-processes the rows
// into ranked explanations of surprising results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/querylens/querylens/pkg/adapter"
	"github.com/querylens/querylens/pkg/sql"
)

// Default analysis options.
const (
	DefaultMaxRows          = 50
	DefaultMaxRelax         = 12
	DefaultFanoutMultiplier = 10.0
)

// Runner executes one diagnostic SQL statement and returns every row as
// a column-name to value map. Implementations must treat the statement
// as read-only.
type Runner interface {
	RunQuery(ctx context.Context, sqlText string) ([]map[string]any, error)
}

// MetadataProvider looks up table metadata for key inference. Adapters
// satisfy it.
type MetadataProvider interface {
	GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error)
}

// Options bound the engine's diagnostic queries.
type Options struct {
	// MaxRows limits breakdown and row-listing queries.
	MaxRows int
	// MaxRelax caps the why-not constraint count before the search runs.
	MaxRelax int
	// FanoutMultiplier scales the median key product when flagging join
	// fan-out.
	FanoutMultiplier float64
}

// Config configures a new Engine.
type Config struct {
	// Runner executes diagnostic queries (required).
	Runner Runner
	// Metadata provides table metadata for key inference (optional).
	Metadata MetadataProvider
	// Hints maps table names to identifying key columns (optional).
	Hints KeyHints
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Options bound analysis work; zero values take the defaults.
	Options Options
}

// Engine runs explanation analyses against one target database through
// its Runner. Analyses hold no state across calls; every invocation
// produces fresh records.
type Engine struct {
	runner   Runner
	metadata MetadataProvider
	hints    KeyHints
	logger   *slog.Logger
	opts     Options
}

// New creates an engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("engine requires a query runner")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := cfg.Options
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.MaxRelax <= 0 {
		opts.MaxRelax = DefaultMaxRelax
	}
	if opts.FanoutMultiplier <= 0 {
		opts.FanoutMultiplier = DefaultFanoutMultiplier
	}
	return &Engine{
		runner:   cfg.Runner,
		metadata: cfg.Metadata,
		hints:    cfg.Hints,
		logger:   logger,
		opts:     opts,
	}, nil
}

// BuildModel parses query text and converts it into a QueryModel.
// Constructs the parser recognizes but analysis cannot handle surface as
// UnsupportedQueryShapeError; syntax errors as InvalidParameterError.
func (e *Engine) BuildModel(query string) (*QueryModel, error) {
	stmt, err := sql.Parse(query)
	if err != nil {
		var unsupported *sql.UnsupportedError
		if errors.As(err, &unsupported) {
			return nil, &UnsupportedQueryShapeError{Construct: unsupported.Construct}
		}
		return nil, &InvalidParameterError{Param: "--query", Reason: err.Error()}
	}
	return BuildModel(stmt)
}

// run executes one diagnostic query through the Runner.
func (e *Engine) run(ctx context.Context, q DiagnosticQuery) ([]map[string]any, error) {
	e.logger.Debug("executing diagnostic query", "purpose", q.Purpose, "sql", q.SQL)
	rows, err := e.runner.RunQuery(ctx, q.SQL)
	if err != nil {
		return nil, &QueryExecutionError{SQL: q.SQL, Err: err}
	}
	return rows, nil
}

// runScalarFloat executes a query expected to return one row and reads
// the named column as a float. Missing rows and NULL read as zero.
func (e *Engine) runScalarFloat(ctx context.Context, q DiagnosticQuery, column string) (float64, error) {
	rows, err := e.run(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	v, _ := toFloat(rows[0][column])
	return v, nil
}

// AdapterRunner adapts an adapter.Adapter to the Runner interface,
// draining every result row into a column map.
type AdapterRunner struct {
	Adapter adapter.Adapter
}

// NewAdapterRunner wraps a connected adapter as a Runner.
func NewAdapterRunner(a adapter.Adapter) *AdapterRunner {
	return &AdapterRunner{Adapter: a}
}

// RunQuery implements Runner.
func (r *AdapterRunner) RunQuery(ctx context.Context, sqlText string) ([]map[string]any, error) {
	rows, err := r.Adapter.Query(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return ScanRows(rows)
}

// ScanRows drains rows into column-name to value maps, converting
// []byte values to strings.
func ScanRows(rows *adapter.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// toFloat converts a scanned database value to a float64. The second
// return is false for NULL and non-numeric values.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// toInt64 converts a scanned database value to an int64.
func toInt64(v any) (int64, bool) {
	f, ok := toFloat(v)
	return int64(f), ok
}

// valueString renders a scanned database value for display and key
// comparison. NULL renders as "NULL".
func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// lookupColumn finds a column in a scanned row case-insensitively.
func lookupColumn(row map[string]any, column string) (any, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}
