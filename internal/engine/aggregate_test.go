package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateSumRowContributions(t *testing.T) {
	runner := newFakeRunner(t)
	hints := KeyHints{"sales": {"sale_id"}}
	eng := newTestEngine(t, runner, hints)

	m := mustModel(t, "SELECT SUM(amount) FROM sales")
	target := Relation{Alias: "sales", Table: "sales"}

	runner.stub(synthesizeActualValue(m),
		map[string]any{"actual_value": 5000.0})
	runner.stub(synthesizeRowBreakdown(m, target, []string{"sale_id"}, DefaultMaxRows),
		map[string]any{"key_0": "s1", "contribution": 2500.0},
		map[string]any{"key_0": "s2", "contribution": 1500.0},
		map[string]any{"key_0": "s3", "contribution": 1000.0},
	)

	expected := 3000.0
	res, err := eng.Aggregate(context.Background(), m, AggregateParams{ExpectedSum: &expected})
	require.NoError(t, err)

	assert.Equal(t, "SUM", res.Function)
	assert.Equal(t, 5000.0, res.Actual)
	assert.Equal(t, 2000.0, res.Surprise)
	assert.Equal(t, "sale_id", res.KeyLabel)

	// Descending by contribution, and the greedy prefix stops at the
	// first cumulative sum covering the 2000 gap.
	require.Len(t, res.Records, 3)
	assert.Equal(t, "s1", res.Records[0].TupleKey)
	assert.Equal(t, 2500.0, res.Records[0].Contribution)
	assert.Equal(t, 1, res.ExplainingSize)
	assert.True(t, res.Records[0].Explaining)
	assert.False(t, res.Records[1].Explaining)
	assert.False(t, res.Records[2].Explaining)

	require.NotNil(t, res.Records[0].Percentage)
	assert.InDelta(t, 50.0, *res.Records[0].Percentage, 1e-9)
}

func TestAggregateGroupedSum(t *testing.T) {
	runner := newFakeRunner(t)
	eng := newTestEngine(t, runner, nil)

	m := mustModel(t, "SELECT region, SUM(amount) FROM sales GROUP BY region")

	runner.stub(synthesizeActualValue(m),
		map[string]any{"actual_value": 900.0})
	runner.stub(synthesizeGroupBreakdown(m, DefaultMaxRows),
		map[string]any{"key_0": "eu", "contribution": 600.0},
		map[string]any{"key_0": "us", "contribution": 300.0},
	)

	expected := 400.0
	res, err := eng.Aggregate(context.Background(), m, AggregateParams{ExpectedSum: &expected})
	require.NoError(t, err)

	assert.Equal(t, "region", res.KeyLabel)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "eu", res.Records[0].TupleKey)

	// Contributions must add up to the actual value.
	total := 0.0
	for _, rec := range res.Records {
		total += rec.Contribution
	}
	assert.InDelta(t, res.Actual, total, 1e-6)

	// Gap is 500; eu alone covers it.
	assert.Equal(t, 1, res.ExplainingSize)
}

func TestAggregateAvgInfluence(t *testing.T) {
	runner := newFakeRunner(t)
	eng := newTestEngine(t, runner, nil)

	m := mustModel(t, "SELECT genre, AVG(rating) FROM shows GROUP BY genre")

	runner.stub(synthesizeActualValue(m),
		map[string]any{"actual_value": 7.0, "total_sum": 70.0, "total_count": 10.0})
	runner.stub(synthesizeGroupBreakdown(m, DefaultMaxRows),
		map[string]any{"key_0": "drama", "group_count": int64(5), "group_sum": 45.0, "group_avg": 9.0},
		map[string]any{"key_0": "comedy", "group_count": int64(5), "group_sum": 25.0, "group_avg": 5.0},
	)

	expected := 5.0
	res, err := eng.Aggregate(context.Background(), m, AggregateParams{ExpectedAvg: &expected})
	require.NoError(t, err)

	// Influence is |group_avg - overall_avg| * count, so both groups
	// tie at 10 and the key tie-break ranks comedy first.
	require.Len(t, res.Records, 2)
	assert.Equal(t, "comedy", res.Records[0].TupleKey)
	assert.Equal(t, "drama", res.Records[1].TupleKey)
	assert.Equal(t, 10.0, res.Records[0].Contribution)
	assert.Equal(t, int64(5), res.Records[1].GroupCount)

	// Removing comedy would push the average from 7 to 9, away from
	// the expected 5, so it must not be flagged even though it ranks
	// first. Without drama the average is 25/5 = 5, which meets the
	// expectation, so drama alone explains the surprise.
	assert.Equal(t, 1, res.ExplainingSize)
	assert.False(t, res.Records[0].Explaining)
	assert.True(t, res.Records[1].Explaining)
}

func TestMarkExplainingAvgSkipsWrongDirection(t *testing.T) {
	// Overall avg 6 (sum 60 over 10 rows), expected 8: the average is
	// too low, so only removing below-average groups can help.
	records := []ContributionRecord{
		{TupleKey: "high", Contribution: 15, GroupSum: 45, GroupCount: 5}, // avg 9
		{TupleKey: "low", Contribution: 9, GroupSum: 9, GroupCount: 3},    // avg 3
		{TupleKey: "mid", Contribution: 6, GroupSum: 6, GroupCount: 2},    // avg 3
	}

	n := markExplainingAvg(records, 6, 8, 60, 10)

	// Removing "high" would drop the average from 6 to 3; it is
	// skipped despite ranking first. Removing "low" lifts it to
	// 51/7 ~= 7.29, then removing "mid" reaches 45/5 = 9, crossing
	// the expectation.
	assert.Equal(t, 2, n)
	assert.False(t, records[0].Explaining)
	assert.True(t, records[1].Explaining)
	assert.True(t, records[2].Explaining)
}

func TestAggregateMissingExpectation(t *testing.T) {
	eng := newTestEngine(t, newFakeRunner(t), nil)

	tests := []struct {
		name  string
		query string
		param string
	}{
		{"sum", "SELECT SUM(amount) FROM sales", "--expected-sum"},
		{"count", "SELECT COUNT(*) FROM sales", "--expected-count"},
		{"avg", "SELECT AVG(amount) FROM sales", "--expected-avg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustModel(t, tt.query)
			_, err := eng.Aggregate(context.Background(), m, AggregateParams{})
			var invalid *InvalidParameterError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.param, invalid.Param)
		})
	}
}

func TestAggregateRowCountPassthrough(t *testing.T) {
	runner := newFakeRunner(t)
	eng := newTestEngine(t, runner, nil)

	m := mustModel(t, "SELECT title FROM movies WHERE year > 2000")
	require.Nil(t, m.Aggregate)

	runner.stub(synthesizeRowCount(m),
		map[string]any{"row_count": int64(3)})
	runner.stub(synthesizeRelationCount(Relation{Alias: "movies", Table: "movies"}),
		map[string]any{"row_count": int64(10)})

	expected := 5.0
	res, err := eng.Aggregate(context.Background(), m, AggregateParams{ExpectedCount: &expected})
	require.NoError(t, err)

	assert.True(t, res.RowCountMode)
	assert.Equal(t, 3.0, res.Actual)
	assert.Equal(t, -2.0, res.Surprise)
	require.Len(t, res.RelationCounts, 1)
	assert.Equal(t, int64(10), res.RelationCounts[0].Rows)

	_, err = eng.Aggregate(context.Background(), m, AggregateParams{})
	var invalid *InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "--expected-count", invalid.Param)
}

func TestMarkExplainingNegativeGap(t *testing.T) {
	records := []ContributionRecord{
		{TupleKey: "a", Contribution: 40},
		{TupleKey: "b", Contribution: 10},
		{TupleKey: "c", Contribution: -20},
		{TupleKey: "d", Contribution: -30},
	}
	// Actual is 50 below expectation: the most negative contributions
	// explain the shortfall.
	n := markExplaining(records, -45)
	assert.Equal(t, 2, n)
	assert.False(t, records[0].Explaining)
	assert.False(t, records[1].Explaining)
	assert.True(t, records[2].Explaining)
	assert.True(t, records[3].Explaining)
}

func TestMarkExplainingZeroGap(t *testing.T) {
	records := []ContributionRecord{{TupleKey: "a", Contribution: 1}}
	assert.Equal(t, 0, markExplaining(records, 0))
	assert.False(t, records[0].Explaining)
}

func TestSortContributionsDeterministicTies(t *testing.T) {
	records := []ContributionRecord{
		{TupleKey: "b", Contribution: 5},
		{TupleKey: "a", Contribution: 5},
		{TupleKey: "c", Contribution: 9},
	}
	sortContributions(records)
	assert.Equal(t, "c", records[0].TupleKey)
	assert.Equal(t, "a", records[1].TupleKey)
	assert.Equal(t, "b", records[2].TupleKey)
}
