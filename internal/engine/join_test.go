package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinKeyProducts(t *testing.T) {
	runner := newFakeRunner(t)
	eng := newTestEngine(t, runner, nil)

	m := mustModel(t, "SELECT * FROM a JOIN b ON a.id = b.id")
	relA := Relation{Alias: "a", Table: "a"}
	relB := Relation{Alias: "b", Table: "b"}

	// A has keys {1,1,2}, B has keys {1,2,2}.
	runner.stub(synthesizeRowCount(m),
		map[string]any{"row_count": int64(4)})
	runner.stub(synthesizeSideCount(relA, "id"),
		map[string]any{"key_value": "1", "cnt": int64(2)},
		map[string]any{"key_value": "2", "cnt": int64(1)},
	)
	runner.stub(synthesizeSideCount(relB, "id"),
		map[string]any{"key_value": "1", "cnt": int64(1)},
		map[string]any{"key_value": "2", "cnt": int64(2)},
	)

	expected := 10.0
	res, err := eng.Join(context.Background(), m, JoinParams{ExpectedCount: &expected})
	require.NoError(t, err)

	assert.Equal(t, int64(4), res.ActualRows)
	require.NotNil(t, res.Delta)
	assert.Equal(t, -6.0, *res.Delta)

	require.Len(t, res.Edges, 1)
	edge := res.Edges[0]
	assert.Equal(t, "a.id = b.id", edge.Edge.String())
	assert.Equal(t, int64(4), edge.PredictedRows)

	// Equal products tie-break by key value.
	require.Len(t, edge.Keys, 2)
	assert.Equal(t, JoinKeyCount{KeyValue: "1", LeftCount: 2, RightCount: 1, Product: 2}, edge.Keys[0])
	assert.Equal(t, JoinKeyCount{KeyValue: "2", LeftCount: 1, RightCount: 2, Product: 2}, edge.Keys[1])
	assert.Empty(t, edge.Mismatches)
}

func TestJoinMissingAndFanOut(t *testing.T) {
	runner := newFakeRunner(t)
	eng := newTestEngine(t, runner, nil)

	m := mustModel(t, "SELECT * FROM orders AS o JOIN items AS i ON o.id = i.order_id")
	relO := Relation{Alias: "o", Table: "orders"}
	relI := Relation{Alias: "i", Table: "items"}

	runner.stub(synthesizeRowCount(m),
		map[string]any{"row_count": int64(103)})
	runner.stub(synthesizeSideCount(relO, "id"),
		map[string]any{"key_value": "k1", "cnt": int64(1)},
		map[string]any{"key_value": "k2", "cnt": int64(1)},
		map[string]any{"key_value": "k3", "cnt": int64(1)},
		map[string]any{"key_value": "k4", "cnt": int64(10)},
	)
	runner.stub(synthesizeSideCount(relI, "order_id"),
		map[string]any{"key_value": "k1", "cnt": int64(1)},
		map[string]any{"key_value": "k2", "cnt": int64(1)},
		map[string]any{"key_value": "k3", "cnt": int64(1)},
		map[string]any{"key_value": "k4", "cnt": int64(10)},
		map[string]any{"key_value": "k5", "cnt": int64(2)},
	)

	res, err := eng.Join(context.Background(), m, JoinParams{})
	require.NoError(t, err)
	require.Len(t, res.Edges, 1)
	edge := res.Edges[0]

	// Products are {1,1,1,100}: median 1, threshold 10, so k4 fans out.
	assert.Equal(t, 1.0, edge.MedianProduct)
	assert.Equal(t, 10.0, edge.FanoutThreshold)

	require.Len(t, edge.Mismatches, 2)
	assert.Equal(t, "k4", edge.Mismatches[0].KeyValue)
	assert.Equal(t, FanOut, edge.Mismatches[0].Status)
	assert.Equal(t, int64(100), edge.Mismatches[0].Product)
	assert.Equal(t, "k5", edge.Mismatches[1].KeyValue)
	assert.Equal(t, MissingOnLeft, edge.Mismatches[1].Status)
	assert.Equal(t, int64(2), edge.Mismatches[1].RightCount)
}

func TestJoinMissingOnRight(t *testing.T) {
	runner := newFakeRunner(t)
	eng := newTestEngine(t, runner, nil)

	m := mustModel(t, "SELECT * FROM a JOIN b ON a.id = b.id")
	relA := Relation{Alias: "a", Table: "a"}
	relB := Relation{Alias: "b", Table: "b"}

	runner.stub(synthesizeRowCount(m),
		map[string]any{"row_count": int64(0)})
	runner.stub(synthesizeSideCount(relA, "id"),
		map[string]any{"key_value": "7", "cnt": int64(3)},
	)
	runner.stub(synthesizeSideCount(relB, "id"))

	res, err := eng.Join(context.Background(), m, JoinParams{})
	require.NoError(t, err)
	edge := res.Edges[0]

	assert.Equal(t, int64(0), edge.PredictedRows)
	require.Len(t, edge.Mismatches, 1)
	assert.Equal(t, MissingOnRight, edge.Mismatches[0].Status)
	assert.Equal(t, int64(3), edge.Mismatches[0].LeftCount)
}

func TestJoinNullKeysNeverMatch(t *testing.T) {
	runner := newFakeRunner(t)
	eng := newTestEngine(t, runner, nil)

	m := mustModel(t, "SELECT * FROM a JOIN b ON a.id = b.id")
	relA := Relation{Alias: "a", Table: "a"}
	relB := Relation{Alias: "b", Table: "b"}

	// One real shared key plus NULL keys on both sides. NULL = NULL is
	// not true in SQL, so the NULL buckets must not pair up.
	runner.stub(synthesizeRowCount(m),
		map[string]any{"row_count": int64(1)})
	runner.stub(synthesizeSideCount(relA, "id"),
		map[string]any{"key_value": "7", "cnt": int64(1)},
		map[string]any{"key_value": nil, "cnt": int64(3)},
	)
	runner.stub(synthesizeSideCount(relB, "id"),
		map[string]any{"key_value": "7", "cnt": int64(1)},
		map[string]any{"key_value": nil, "cnt": int64(4)},
	)

	res, err := eng.Join(context.Background(), m, JoinParams{})
	require.NoError(t, err)
	edge := res.Edges[0]

	assert.Equal(t, int64(1), edge.PredictedRows)
	require.Len(t, edge.Keys, 1)
	assert.Equal(t, JoinKeyCount{KeyValue: "7", LeftCount: 1, RightCount: 1, Product: 1}, edge.Keys[0])

	// The NULL rows are reported per side, not as a missing or
	// fanning-out key.
	assert.Empty(t, edge.Mismatches)
	assert.Equal(t, int64(3), edge.NullLeftRows)
	assert.Equal(t, int64(4), edge.NullRightRows)
}

func TestJoinRequiresEquiJoin(t *testing.T) {
	eng := newTestEngine(t, newFakeRunner(t), nil)
	m := mustModel(t, "SELECT * FROM sales")

	_, err := eng.Join(context.Background(), m, JoinParams{})
	var invalid *InvalidParameterError
	require.ErrorAs(t, err, &invalid)
}

func TestMedianProduct(t *testing.T) {
	tests := []struct {
		name     string
		products []int64
		want     float64
	}{
		{"empty", nil, 0},
		{"single", []int64{4}, 4},
		{"odd", []int64{9, 1, 3}, 3},
		{"even", []int64{1, 100, 1, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := make([]JoinKeyCount, len(tt.products))
			for i, p := range tt.products {
				keys[i] = JoinKeyCount{Product: p}
			}
			assert.Equal(t, tt.want, medianProduct(keys))
		})
	}
}
