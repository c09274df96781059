package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/querylens/querylens/pkg/sql"
)

// AggregateParams carries the agg mode inputs. Exactly one expected
// value must be set, matching the query's aggregate function; a query
// with no aggregate uses ExpectedCount for row-count analysis.
type AggregateParams struct {
	ExpectedSum   *float64
	ExpectedCount *float64
	ExpectedAvg   *float64
	// Table names the relation whose key identifies per-row
	// contributions for scalar aggregates; empty means the first
	// relation in FROM order.
	Table string
	// KeyColumns overrides key inference.
	KeyColumns []string
}

// ContributionRecord ranks one group's (or row's) share of the
// aggregate. For AVG the contribution is the group's influence on the
// overall average and GroupSum/GroupCount carry the underlying pair.
type ContributionRecord struct {
	TupleKey     string   `json:"tuple_key"`
	Contribution float64  `json:"contribution"`
	Percentage   *float64 `json:"percentage,omitempty"`
	GroupSum     float64  `json:"group_sum,omitempty"`
	GroupCount   int64    `json:"group_count,omitempty"`
	Explaining   bool     `json:"explaining"`
}

// RelationCount reports the base row count of one relation.
type RelationCount struct {
	Relation string `json:"relation"`
	Table    string `json:"table"`
	Rows     int64  `json:"rows"`
}

// AggregateResult is the agg mode output: the actual aggregate value,
// the surprise against the expectation, and contributions ranked
// descending with ties broken by tuple key.
type AggregateResult struct {
	Function       string               `json:"function"`
	Aggregate      string               `json:"aggregate"`
	KeyLabel       string               `json:"key_label"`
	Actual         float64              `json:"actual"`
	Expected       float64              `json:"expected"`
	Surprise       float64              `json:"surprise"`
	Records        []ContributionRecord `json:"records"`
	ExplainingSize int                  `json:"explaining_size"`
	RowCountMode   bool                 `json:"row_count_mode,omitempty"`
	RelationCounts []RelationCount      `json:"relation_counts,omitempty"`
}

// Aggregate explains a surprising SUM/COUNT/AVG by ranking per-group
// contributions and marking the greedy prefix that closes the gap to
// the expected value. Queries without an aggregate fall back to
// row-count analysis.
func (e *Engine) Aggregate(ctx context.Context, m *QueryModel, p AggregateParams) (*AggregateResult, error) {
	if m.Aggregate == nil {
		return e.rowCountAnalysis(ctx, m, p)
	}
	agg := m.Aggregate

	expected, err := expectedFor(agg.Func, p)
	if err != nil {
		return nil, err
	}

	actualRows, err := e.run(ctx, synthesizeActualValue(m))
	if err != nil {
		return nil, err
	}
	var actual, totalSum, totalCount float64
	if len(actualRows) > 0 {
		actual, _ = toFloat(actualRows[0]["actual_value"])
		totalSum, _ = toFloat(actualRows[0]["total_sum"])
		totalCount, _ = toFloat(actualRows[0]["total_count"])
	}

	res := &AggregateResult{
		Function:  string(agg.Func),
		Aggregate: agg.CallSQL(),
		Actual:    actual,
		Expected:  expected,
		Surprise:  actual - expected,
	}

	if len(agg.GroupBy) > 0 {
		res.KeyLabel = groupLabel(agg)
		res.Records, err = e.groupContributions(ctx, m, actual)
	} else {
		res.Records, res.KeyLabel, err = e.rowContributions(ctx, m, p, actual)
	}
	if err != nil {
		return nil, err
	}

	sortContributions(res.Records)

	if agg.Func == AggAvg {
		res.ExplainingSize = markExplainingAvg(res.Records, actual, expected, totalSum, totalCount)
	} else {
		res.ExplainingSize = markExplaining(res.Records, res.Surprise)
	}
	return res, nil
}

// expectedFor picks the expectation flag matching the aggregate
// function.
func expectedFor(fn AggFunc, p AggregateParams) (float64, error) {
	var v *float64
	switch fn {
	case AggSum:
		v = p.ExpectedSum
	case AggCount:
		v = p.ExpectedCount
	case AggAvg:
		v = p.ExpectedAvg
	}
	if v == nil {
		return 0, &InvalidParameterError{
			Param:  expectedFlag(fn),
			Reason: fmt.Sprintf("required for %s analysis", fn),
		}
	}
	return *v, nil
}

func expectedFlag(fn AggFunc) string {
	switch fn {
	case AggCount:
		return "--expected-count"
	case AggAvg:
		return "--expected-avg"
	default:
		return "--expected-sum"
	}
}

func (e *Engine) groupContributions(ctx context.Context, m *QueryModel, actual float64) ([]ContributionRecord, error) {
	agg := m.Aggregate
	rows, err := e.run(ctx, synthesizeGroupBreakdown(m, e.opts.MaxRows))
	if err != nil {
		return nil, err
	}
	records := make([]ContributionRecord, 0, len(rows))
	for _, row := range rows {
		rec := ContributionRecord{TupleKey: tupleKey(row, len(agg.GroupBy))}
		if agg.Func == AggAvg {
			cnt, _ := toInt64(row["group_count"])
			sum, _ := toFloat(row["group_sum"])
			avg, _ := toFloat(row["group_avg"])
			rec.GroupCount = cnt
			rec.GroupSum = sum
			rec.Contribution = math.Abs(avg-actual) * float64(cnt)
		} else {
			rec.Contribution, _ = toFloat(row["contribution"])
			rec.Percentage = percentageOf(rec.Contribution, actual)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (e *Engine) rowContributions(ctx context.Context, m *QueryModel, p AggregateParams, actual float64) ([]ContributionRecord, string, error) {
	agg := m.Aggregate
	target, err := m.targetRelation(p.Table)
	if err != nil {
		return nil, "", err
	}
	keyCols, err := e.resolveKeyColumns(ctx, target, p.KeyColumns)
	if err != nil {
		return nil, "", err
	}
	rows, err := e.run(ctx, synthesizeRowBreakdown(m, target, keyCols, e.opts.MaxRows))
	if err != nil {
		return nil, "", err
	}
	records := make([]ContributionRecord, 0, len(rows))
	for _, row := range rows {
		rec := ContributionRecord{TupleKey: tupleKey(row, len(keyCols))}
		value, _ := toFloat(row["contribution"])
		if agg.Func == AggAvg {
			rec.GroupCount = 1
			rec.GroupSum = value
			rec.Contribution = math.Abs(value - actual)
		} else {
			rec.Contribution = value
			rec.Percentage = percentageOf(value, actual)
		}
		records = append(records, rec)
	}
	return records, strings.Join(keyCols, "|"), nil
}

// rowCountAnalysis handles agg mode for queries without an aggregate:
// the actual row count against --expected-count, with per-relation base
// counts for context.
func (e *Engine) rowCountAnalysis(ctx context.Context, m *QueryModel, p AggregateParams) (*AggregateResult, error) {
	if p.ExpectedCount == nil {
		return nil, &InvalidParameterError{
			Param:  "--expected-count",
			Reason: "the query has no aggregate; row-count analysis needs an expected row count",
		}
	}
	actual, err := e.runScalarFloat(ctx, synthesizeRowCount(m), "row_count")
	if err != nil {
		return nil, err
	}
	res := &AggregateResult{
		Function:     string(AggCount),
		Aggregate:    "COUNT(*)",
		KeyLabel:     "relation",
		Actual:       actual,
		Expected:     *p.ExpectedCount,
		Surprise:     actual - *p.ExpectedCount,
		RowCountMode: true,
	}
	for _, rel := range m.Relations {
		n, err := e.runScalarFloat(ctx, synthesizeRelationCount(rel), "row_count")
		if err != nil {
			return nil, err
		}
		res.RelationCounts = append(res.RelationCounts, RelationCount{
			Relation: rel.Alias,
			Table:    rel.Table,
			Rows:     int64(n),
		})
	}
	return res, nil
}

// tupleKey joins the key_0..key_n columns of a scanned row with "|".
func tupleKey(row map[string]any, n int) string {
	if n == 0 {
		return ""
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, valueString(row[keyAlias(i)]))
	}
	return strings.Join(parts, "|")
}

func percentageOf(value, total float64) *float64 {
	if total == 0 {
		return nil
	}
	pct := value / total * 100
	return &pct
}

// sortContributions orders records descending by contribution, ties
// broken by tuple key ascending so output is deterministic.
func sortContributions(records []ContributionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Contribution != records[j].Contribution {
			return records[i].Contribution > records[j].Contribution
		}
		return records[i].TupleKey < records[j].TupleKey
	})
}

// markExplaining flags the greedy prefix whose removal moves the actual
// value across the expectation: largest contributions first when the
// actual is too high, most negative first when it is too low. Returns
// the prefix size.
func markExplaining(records []ContributionRecord, gap float64) int {
	if gap == 0 || len(records) == 0 {
		return 0
	}
	if gap > 0 {
		cum := 0.0
		for i := range records {
			cum += records[i].Contribution
			records[i].Explaining = true
			if cum >= gap {
				return i + 1
			}
		}
		return len(records)
	}
	cum := 0.0
	marked := 0
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Contribution >= 0 {
			break
		}
		cum += records[i].Contribution
		records[i].Explaining = true
		marked++
		if cum <= gap {
			return marked
		}
	}
	return marked
}

// markExplainingAvg flags influence-ranked groups whose removal moves
// the simulated average toward the expectation, stopping once it
// crosses the expected value. Groups that would push the average the
// wrong way are skipped: removing a group moves the average away from
// that group's own mean, so only groups on the far side of the current
// average help close the gap.
func markExplainingAvg(records []ContributionRecord, actual, expected, totalSum, totalCount float64) int {
	if actual == expected || len(records) == 0 || totalCount == 0 {
		return 0
	}
	high := actual > expected
	remSum, remCount := totalSum, totalCount
	marked := 0
	for i := range records {
		newCount := remCount - float64(records[i].GroupCount)
		if newCount <= 0 {
			continue
		}
		curAvg := remSum / remCount
		newAvg := (remSum - records[i].GroupSum) / newCount
		if (high && newAvg >= curAvg) || (!high && newAvg <= curAvg) {
			continue
		}
		records[i].Explaining = true
		marked++
		remSum -= records[i].GroupSum
		remCount = newCount
		if (high && newAvg <= expected) || (!high && newAvg >= expected) {
			return marked
		}
	}
	return marked
}

func groupLabel(agg *Aggregate) string {
	parts := make([]string, 0, len(agg.GroupBy))
	for _, g := range agg.GroupBy {
		parts = append(parts, sql.RenderExpr(g))
	}
	return strings.Join(parts, "|")
}
