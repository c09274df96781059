package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicateAttribution(t *testing.T) {
	runner := newFakeRunner(t)
	hints := KeyHints{"movies": {"title"}}
	eng := newTestEngine(t, runner, hints)

	m := mustModel(t, "SELECT title FROM movies WHERE year > 2010 AND rating > 8")
	require.Len(t, m.Conjuncts, 2)
	target := Relation{Alias: "movies", Table: "movies"}
	keyCols := []string{"title"}

	runner.stub(synthesizeScopeRows(m, target, keyCols, DefaultMaxRows),
		map[string]any{"key_0": "Heat"},
		map[string]any{"key_0": "Drive"},
	)
	// Heat passes the year cut but not the rating cut.
	runner.stub(synthesizeConjunctProbe(m, target, keyCols, m.Conjuncts[0]),
		map[string]any{"key_0": "Heat"},
		map[string]any{"key_0": "Drive"},
	)
	runner.stub(synthesizeConjunctProbe(m, target, keyCols, m.Conjuncts[1]),
		map[string]any{"key_0": "Drive"},
	)
	runner.stub(synthesizeBaselineRows(m, target, keyCols),
		map[string]any{"key_0": "Drive"},
	)

	res, err := eng.Predicate(context.Background(), m, PredicateParams{})
	require.NoError(t, err)

	assert.Equal(t, "title", res.KeyLabel)
	assert.Equal(t, 2, res.ScopeRows)
	assert.Equal(t, 1, res.Included)
	assert.Equal(t, 1, res.Excluded)

	require.Len(t, res.Conjuncts, 2)
	assert.Equal(t, "year > 2010", res.Conjuncts[0].Text)
	assert.Equal(t, 2, res.Conjuncts[0].PassCount)
	assert.Equal(t, 0, res.Conjuncts[0].SoleBlockCount)
	assert.Equal(t, "rating > 8", res.Conjuncts[1].Text)
	assert.Equal(t, 1, res.Conjuncts[1].PassCount)
	assert.Equal(t, 1, res.Conjuncts[1].SoleBlockCount)

	require.Len(t, res.Verdicts, 2)
	heat := res.Verdicts[0]
	assert.Equal(t, "Heat", heat.TupleKey)
	require.Len(t, heat.Leaves, 2)
	assert.True(t, heat.Leaves[0].Passed)
	assert.False(t, heat.Leaves[1].Passed)
	assert.False(t, heat.Overall)
	assert.False(t, heat.InResult)

	drive := res.Verdicts[1]
	assert.True(t, drive.Overall)
	assert.True(t, drive.InResult)
}

func TestPredicateDisjunction(t *testing.T) {
	runner := newFakeRunner(t)
	eng := newTestEngine(t, runner, nil)

	m := mustModel(t, "SELECT id FROM users WHERE active = true OR role = 'admin'")
	require.Len(t, m.Conjuncts, 2)
	target := Relation{Alias: "users", Table: "users"}
	keyCols := []string{"id"}

	runner.stub(synthesizeScopeRows(m, target, keyCols, DefaultMaxRows),
		map[string]any{"key_0": "u1"},
		map[string]any{"key_0": "u2"},
	)
	runner.stub(synthesizeConjunctProbe(m, target, keyCols, m.Conjuncts[0]),
		map[string]any{"key_0": "u1"},
	)
	runner.stub(synthesizeConjunctProbe(m, target, keyCols, m.Conjuncts[1]))
	runner.stub(synthesizeBaselineRows(m, target, keyCols),
		map[string]any{"key_0": "u1"},
	)

	res, err := eng.Predicate(context.Background(), m, PredicateParams{KeyColumns: []string{"id"}})
	require.NoError(t, err)

	// u1 passes one OR branch and is in; u2 fails both, and either
	// conjunct alone would rescue it.
	assert.Equal(t, 1, res.Included)
	assert.Equal(t, 1, res.Excluded)
	assert.Equal(t, 1, res.Conjuncts[0].SoleBlockCount)
	assert.Equal(t, 1, res.Conjuncts[1].SoleBlockCount)
	assert.True(t, res.Verdicts[0].Overall)
	assert.False(t, res.Verdicts[1].Overall)
}

func TestPredicateRequiresWhere(t *testing.T) {
	eng := newTestEngine(t, newFakeRunner(t), nil)
	m := mustModel(t, "SELECT * FROM movies")

	_, err := eng.Predicate(context.Background(), m, PredicateParams{})
	var invalid *InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "--query", invalid.Param)
}

func TestPredicateUnknownTable(t *testing.T) {
	eng := newTestEngine(t, newFakeRunner(t), nil)
	m := mustModel(t, "SELECT * FROM movies WHERE year > 2000")

	_, err := eng.Predicate(context.Background(), m, PredicateParams{Table: "ratings"})
	var invalid *InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "--table", invalid.Param)
}

func TestEvalPredicateTree(t *testing.T) {
	m := mustModel(t, "SELECT * FROM t WHERE a = 1 OR (b = 2 AND c = 3)")
	require.Len(t, m.Conjuncts, 3)

	tests := []struct {
		name   string
		leaves map[int]bool
		want   bool
	}{
		{"left branch", map[int]bool{0: true}, true},
		{"right branch", map[int]bool{1: true, 2: true}, true},
		{"half of AND", map[int]bool{1: true}, false},
		{"none", map[int]bool{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalPredicate(m.Predicate, tt.leaves))
		})
	}
}
