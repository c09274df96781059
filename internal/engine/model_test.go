package engine

import (
	"testing"

	"github.com/querylens/querylens/pkg/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildModelRelations(t *testing.T) {
	m := mustModel(t, "SELECT * FROM main.movies AS m JOIN ratings r ON m.id = r.movie_id")

	require.Len(t, m.Relations, 2)
	assert.Equal(t, Relation{Alias: "m", Table: "main.movies"}, m.Relations[0])
	assert.Equal(t, Relation{Alias: "r", Table: "ratings"}, m.Relations[1])

	require.Len(t, m.JoinEdges, 1)
	edge := m.JoinEdges[0]
	assert.Equal(t, "m", edge.LeftRelation)
	assert.Equal(t, "id", edge.LeftColumn)
	assert.Equal(t, "r", edge.RightRelation)
	assert.Equal(t, "movie_id", edge.RightColumn)
	assert.Equal(t, JoinKindInner, edge.Kind)
	assert.Equal(t, "m.id = r.movie_id", edge.String())
}

func TestBuildModelEdgeNormalization(t *testing.T) {
	// Sides referenced by table name resolve to the declared aliases, and
	// a flipped condition keeps its written order.
	m := mustModel(t, "SELECT * FROM orders AS o LEFT JOIN items AS i ON items.order_id = orders.id")

	require.Len(t, m.JoinEdges, 1)
	edge := m.JoinEdges[0]
	assert.Equal(t, "i", edge.LeftRelation)
	assert.Equal(t, "order_id", edge.LeftColumn)
	assert.Equal(t, "o", edge.RightRelation)
	assert.Equal(t, "id", edge.RightColumn)
	assert.Equal(t, JoinKindLeft, edge.Kind)
}

func TestBuildModelUsingJoin(t *testing.T) {
	m := mustModel(t, "SELECT * FROM a JOIN b USING (id, region)")

	require.Len(t, m.JoinEdges, 2)
	assert.Equal(t, "a.id = b.id", m.JoinEdges[0].String())
	assert.Equal(t, "a.region = b.region", m.JoinEdges[1].String())
}

func TestBuildModelCompoundOnCondition(t *testing.T) {
	m := mustModel(t, "SELECT * FROM a JOIN b ON a.id = b.id AND a.region = b.region")

	require.Len(t, m.JoinEdges, 2)
	assert.Equal(t, "a.id = b.id", m.JoinEdges[0].String())
	assert.Equal(t, "a.region = b.region", m.JoinEdges[1].String())
}

func TestBuildModelUnknownJoinRelation(t *testing.T) {
	stmt, err := sql.Parse("SELECT * FROM a JOIN b ON a.id = c.id")
	require.NoError(t, err)

	_, err = BuildModel(stmt)
	var unsupported *UnsupportedQueryShapeError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, err.Error(), "c.id")
}

func TestBuildModelPredicateFlattening(t *testing.T) {
	m := mustModel(t, "SELECT * FROM t WHERE a = 1 AND b = 2 AND c = 3")

	conn, ok := m.Predicate.(*Connective)
	require.True(t, ok)
	assert.Equal(t, "AND", conn.Op)
	assert.Len(t, conn.Children, 3)

	require.Len(t, m.Conjuncts, 3)
	for i, c := range m.Conjuncts {
		assert.Equal(t, i, c.Index)
	}
}

func TestBuildModelMixedConnectives(t *testing.T) {
	m := mustModel(t, "SELECT * FROM t WHERE a = 1 OR (b = 2 AND c = 3)")

	or, ok := m.Predicate.(*Connective)
	require.True(t, ok)
	assert.Equal(t, "OR", or.Op)
	require.Len(t, or.Children, 2)

	_, ok = or.Children[0].(*Conjunct)
	assert.True(t, ok)
	and, ok := or.Children[1].(*Connective)
	require.True(t, ok)
	assert.Equal(t, "AND", and.Op)
	assert.Len(t, and.Children, 2)
}

func TestDecomposeConjunct(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		relation string
		column   string
		operator string
		literal  string
	}{
		{"comparison", "SELECT * FROM t WHERE year > 2010", "", "year", ">", "2010"},
		{"qualified column", "SELECT * FROM t WHERE t.year > 2010", "t", "year", ">", "2010"},
		{"mirrored comparison", "SELECT * FROM t WHERE 2010 < year", "", "year", ">", "2010"},
		{"like", "SELECT * FROM t WHERE title LIKE 'The %'", "", "title", "LIKE", "'The %'"},
		{"in list", "SELECT * FROM t WHERE region IN ('eu', 'us')", "", "region", "IN", "('eu', 'us')"},
		{"between", "SELECT * FROM t WHERE year BETWEEN 2000 AND 2010", "", "year", "BETWEEN", "2000 AND 2010"},
		{"is not null", "SELECT * FROM t WHERE rating IS NOT NULL", "", "rating", "IS NOT NULL", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustModel(t, tt.query)
			require.Len(t, m.Conjuncts, 1)
			c := m.Conjuncts[0]
			assert.Equal(t, tt.relation, c.Relation)
			assert.Equal(t, tt.column, c.Column)
			assert.Equal(t, tt.operator, c.Operator)
			assert.Equal(t, tt.literal, c.Literal)
		})
	}
}

func TestDecomposeConjunctOpaque(t *testing.T) {
	m := mustModel(t, "SELECT * FROM t WHERE LOWER(name) = 'heat'")

	require.Len(t, m.Conjuncts, 1)
	c := m.Conjuncts[0]
	assert.Empty(t, c.Column)
	assert.Equal(t, "LOWER(name) = 'heat'", c.SQL())
}

func TestBuildModelAggregate(t *testing.T) {
	t.Run("sum", func(t *testing.T) {
		m := mustModel(t, "SELECT region, SUM(amount) FROM sales GROUP BY region")
		require.NotNil(t, m.Aggregate)
		assert.Equal(t, AggSum, m.Aggregate.Func)
		assert.Equal(t, "SUM(amount)", m.Aggregate.CallSQL())
		require.Len(t, m.Aggregate.GroupBy, 1)
	})

	t.Run("count star", func(t *testing.T) {
		m := mustModel(t, "SELECT COUNT(*) FROM sales")
		require.NotNil(t, m.Aggregate)
		assert.Equal(t, AggCount, m.Aggregate.Func)
		assert.True(t, m.Aggregate.Star)
		assert.Equal(t, "COUNT(*)", m.Aggregate.CallSQL())
	})

	t.Run("first aggregate wins", func(t *testing.T) {
		m := mustModel(t, "SELECT SUM(amount), AVG(amount) FROM sales")
		require.NotNil(t, m.Aggregate)
		assert.Equal(t, AggSum, m.Aggregate.Func)
	})

	t.Run("no aggregate", func(t *testing.T) {
		m := mustModel(t, "SELECT title FROM movies")
		assert.Nil(t, m.Aggregate)
	})
}

func TestResolveRelation(t *testing.T) {
	m := mustModel(t, "SELECT * FROM movies AS m JOIN ratings AS r ON m.id = r.movie_id")

	rel, ok := m.resolveRelation("M")
	require.True(t, ok)
	assert.Equal(t, "m", rel.Alias)

	rel, ok = m.resolveRelation("ratings")
	require.True(t, ok)
	assert.Equal(t, "r", rel.Alias)

	_, ok = m.resolveRelation("users")
	assert.False(t, ok)
}

func TestTargetRelationDefault(t *testing.T) {
	m := mustModel(t, "SELECT * FROM movies AS m JOIN ratings AS r ON m.id = r.movie_id")

	rel, err := m.targetRelation("")
	require.NoError(t, err)
	assert.Equal(t, "m", rel.Alias)

	_, err = m.targetRelation("users")
	var invalid *InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "m, r")
}
