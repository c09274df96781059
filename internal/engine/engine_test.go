package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/querylens/querylens/internal/testutil"
	"github.com/querylens/querylens/pkg/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner scripts diagnostic query results keyed by exact SQL text.
// Tests compute the keys with the same synthesize functions the engine
// uses, so a synthesis change that alters the SQL fails loudly.
type fakeRunner struct {
	t     testing.TB
	rows  map[string][]map[string]any
	errs  map[string]error
	calls []string
}

func newFakeRunner(t testing.TB) *fakeRunner {
	return &fakeRunner{
		t:    t,
		rows: make(map[string][]map[string]any),
		errs: make(map[string]error),
	}
}

func (f *fakeRunner) stub(q DiagnosticQuery, rows ...map[string]any) {
	f.rows[q.SQL] = rows
}

func (f *fakeRunner) fail(q DiagnosticQuery, err error) {
	f.errs[q.SQL] = err
}

func (f *fakeRunner) RunQuery(_ context.Context, sqlText string) ([]map[string]any, error) {
	f.calls = append(f.calls, sqlText)
	if err, ok := f.errs[sqlText]; ok {
		return nil, err
	}
	rows, ok := f.rows[sqlText]
	if !ok {
		f.t.Fatalf("unexpected diagnostic query: %s", sqlText)
	}
	return rows, nil
}

func newTestEngine(t testing.TB, runner Runner, hints KeyHints) *Engine {
	t.Helper()
	eng, err := New(Config{
		Runner: runner,
		Hints:  hints,
		Logger: testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return eng
}

func mustModel(t testing.TB, query string) *QueryModel {
	t.Helper()
	stmt, err := sql.Parse(query)
	require.NoError(t, err)
	m, err := BuildModel(stmt)
	require.NoError(t, err)
	return m
}

func TestNewRequiresRunner(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewDefaultsOptions(t *testing.T) {
	eng := newTestEngine(t, newFakeRunner(t), nil)
	assert.Equal(t, DefaultMaxRows, eng.opts.MaxRows)
	assert.Equal(t, DefaultMaxRelax, eng.opts.MaxRelax)
	assert.Equal(t, float64(DefaultFanoutMultiplier), eng.opts.FanoutMultiplier)
}

func TestBuildModelErrors(t *testing.T) {
	eng := newTestEngine(t, newFakeRunner(t), nil)

	tests := []struct {
		name  string
		query string
		want  any
	}{
		{
			name:  "syntax error",
			query: "SELECT FROM WHERE",
			want:  &InvalidParameterError{},
		},
		{
			name:  "subquery in FROM",
			query: "SELECT * FROM (SELECT * FROM t) AS q",
			want:  &UnsupportedQueryShapeError{},
		},
		{
			name:  "subquery in WHERE",
			query: "SELECT * FROM t WHERE id IN (SELECT id FROM u)",
			want:  &UnsupportedQueryShapeError{},
		},
		{
			name:  "non-equi join condition",
			query: "SELECT * FROM a JOIN b ON a.id > b.id",
			want:  &UnsupportedQueryShapeError{},
		},
		{
			name:  "distinct aggregate",
			query: "SELECT COUNT(DISTINCT id) FROM t",
			want:  &UnsupportedQueryShapeError{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.BuildModel(tt.query)
			require.Error(t, err)
			switch tt.want.(type) {
			case *InvalidParameterError:
				var target *InvalidParameterError
				assert.True(t, errors.As(err, &target), "got %T: %v", err, err)
			case *UnsupportedQueryShapeError:
				var target *UnsupportedQueryShapeError
				assert.True(t, errors.As(err, &target), "got %T: %v", err, err)
			}
		})
	}
}

func TestRunWrapsExecutionErrors(t *testing.T) {
	runner := newFakeRunner(t)
	eng := newTestEngine(t, runner, nil)
	m := mustModel(t, "SELECT * FROM a JOIN b ON a.id = b.id")

	dbErr := errors.New("relation does not exist")
	runner.fail(synthesizeRowCount(m), dbErr)

	_, err := eng.Join(context.Background(), m, JoinParams{})
	var execErr *QueryExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, execErr.SQL, "COUNT(*)")
}

func TestScanValueConversions(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float64", 12.5, 12.5, true},
		{"int64", int64(7), 7, true},
		{"bytes", []byte("3.25"), 3.25, true},
		{"string", "41", 41, true},
		{"null", nil, 0, false},
		{"garbage", "abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toFloat(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}

	assert.Equal(t, "NULL", valueString(nil))
	assert.Equal(t, "1.5", valueString(1.5))
	assert.Equal(t, "x", valueString([]byte("x")))
}
