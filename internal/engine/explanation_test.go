package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetailLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    DetailLevel
		wantErr bool
	}{
		{"summary", DetailSummary, false},
		{"detailed", DetailDetailed, false},
		{"both", DetailBoth, false},
		{"", DetailBoth, false},
		{"everything", "", true},
	}
	for _, tt := range tests {
		t.Run("level "+tt.in, func(t *testing.T) {
			got, err := ParseDetailLevel(tt.in)
			if tt.wantErr {
				var invalid *InvalidParameterError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, "--output", invalid.Param)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewReport(t *testing.T) {
	res := &AggregateResult{Aggregate: "SUM(amount)", Function: "SUM", Actual: 5, Expected: 3, Surprise: 2}
	report := NewReport("agg", "SELECT SUM(amount) FROM sales", res)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "agg", report.Mode)
	assert.Equal(t, "SELECT SUM(amount) FROM sales", report.Query)
	assert.False(t, report.GeneratedAt.IsZero())
	assert.Equal(t, res.Explain(), report.Explanation)
	assert.Same(t, res, report.Result)

	other := NewReport("agg", "SELECT SUM(amount) FROM sales", res)
	assert.NotEqual(t, report.ID, other.ID)
}

func TestAggregateExplain(t *testing.T) {
	pct := 50.0
	res := &AggregateResult{
		Aggregate:      "SUM(amount)",
		Function:       "SUM",
		Actual:         5000,
		Expected:       3000,
		Surprise:       2000,
		KeyLabel:       "sale_id",
		ExplainingSize: 1,
		Records: []ContributionRecord{
			{TupleKey: "s1", Contribution: 2500, Percentage: &pct, Explaining: true},
			{TupleKey: "s2", Contribution: 1500},
		},
	}

	ex := res.Explain()
	assert.Equal(t, "SUM(amount) is 5000, expected 3000 (surprise +2000)", ex.Title)
	require.NotEmpty(t, ex.Bullets)
	assert.Contains(t, ex.Bullets[0], "removing the 1 flagged group")
	assert.Contains(t, ex.Bullets[1], "sale_id=s1 contributes 2500 (50.0% of the total)")

	require.Len(t, ex.Details, 1)
	detail := ex.Details[0]
	assert.Equal(t, "Contributions by sale_id", detail.Title)
	assert.Equal(t, []string{"sale_id", "Contribution", "% of total", "Explaining"}, detail.Header)
	require.Len(t, detail.Rows, 2)
	assert.Equal(t, []string{"s1", "2500", "50.0%", "*"}, detail.Rows[0])
	assert.Equal(t, []string{"s2", "1500", "-", ""}, detail.Rows[1])
}

func TestAggregateExplainRowCountMode(t *testing.T) {
	res := &AggregateResult{
		Aggregate:    "COUNT(*)",
		Actual:       3,
		Expected:     5,
		Surprise:     -2,
		RowCountMode: true,
		RelationCounts: []RelationCount{
			{Relation: "movies", Table: "movies", Rows: 10},
		},
	}

	ex := res.Explain()
	assert.Contains(t, ex.Title, "surprise -2")
	assert.Contains(t, ex.Bullets[1], "movies (movies) holds 10 base rows")
	require.Len(t, ex.Details, 1)
	assert.Equal(t, "Base row counts", ex.Details[0].Title)
}

func TestJoinExplain(t *testing.T) {
	expected, delta := 10.0, -6.0
	res := &JoinResult{
		ActualRows: 4,
		Expected:   &expected,
		Delta:      &delta,
		Edges: []JoinEdgeReport{{
			Edge:          JoinEdge{LeftRelation: "a", LeftColumn: "id", RightRelation: "b", RightColumn: "id"},
			PredictedRows: 4,
			Keys: []JoinKeyCount{
				{KeyValue: "1", LeftCount: 2, RightCount: 1, Product: 2},
			},
			Mismatches: []JoinMismatchRecord{
				{KeyValue: "9", LeftCount: 3, Status: MissingOnRight},
			},
		}},
	}

	ex := res.Explain()
	assert.Equal(t, "1 join edge(s) analyzed; the query returns 4 rows, expected 10 (delta -6)", ex.Title)
	require.Len(t, ex.Bullets, 1)
	assert.Contains(t, ex.Bullets[0], "a.id = b.id predicts 4 rows from 1 shared keys (1 missing on one side, 0 fanning out)")

	require.Len(t, ex.Details, 2)
	assert.Equal(t, "Key populations for a.id = b.id", ex.Details[0].Title)
	assert.Equal(t, []string{"9", "3", "0", "missing_on_right"}, ex.Details[1].Rows[0])
}

func TestPredicateExplain(t *testing.T) {
	res := &PredicateResult{
		KeyLabel:  "title",
		ScopeRows: 2,
		Included:  1,
		Excluded:  1,
		Conjuncts: []ConjunctImpact{
			{Index: 0, Text: "year > 2010", PassCount: 2},
			{Index: 1, Text: "rating > 8", PassCount: 1, SoleBlockCount: 1},
		},
		Verdicts: []TupleVerdict{
			{TupleKey: "Heat", Leaves: []LeafVerdict{{0, true}, {1, false}}, Overall: false},
			{TupleKey: "Drive", Leaves: []LeafVerdict{{0, true}, {1, true}}, Overall: true},
		},
	}

	ex := res.Explain()
	assert.Equal(t, "2 tuple(s) in scope: 1 included, 1 excluded", ex.Title)
	require.Len(t, ex.Bullets, 2)
	assert.Equal(t, "conjunct 0 (year > 2010) passes 2 tuple(s)", ex.Bullets[0])
	assert.Equal(t, "conjunct 1 (rating > 8) passes 1 tuple(s) and is the sole blocker for 1", ex.Bullets[1])

	require.Len(t, ex.Details, 1)
	verdicts := ex.Details[0]
	assert.Equal(t, []string{"title", "[0] year > 2010", "[1] rating > 8", "Overall"}, verdicts.Header)
	assert.Equal(t, []string{"Heat", "pass", "fail", "fail"}, verdicts.Rows[0])
	assert.Equal(t, []string{"Drive", "pass", "pass", "pass"}, verdicts.Rows[1])
}

func TestWhyNotExplain(t *testing.T) {
	res := &WhyNotResult{
		Target: "movies[title=Heat]",
		Tested: 1,
		Removed: []RemovedConstraint{
			{Kind: ConstraintConjunct, Index: 0, Text: "year > 2010", Responsibility: 1, Suggestion: "lower the threshold"},
		},
		Steps: []SearchStep{{Removed: []string{"year > 2010"}, Rows: 1}},
	}

	ex := res.Explain()
	assert.Equal(t, "movies[title=Heat] appears after relaxing 1 constraint (1 subset(s) tested)", ex.Title)
	require.Len(t, ex.Bullets, 1)
	assert.Equal(t, "conjunct year > 2010 blocks the tuple (responsibility 1.00): lower the threshold", ex.Bullets[0])

	require.Len(t, ex.Details, 1)
	assert.Equal(t, [][]string{{"year > 2010", "1"}}, ex.Details[0].Rows)
}
