package engine

import (
	"context"
	"sort"
)

// JoinParams carries the join mode inputs.
type JoinParams struct {
	// ExpectedCount, when set, is compared against the query's actual
	// row count.
	ExpectedCount *float64
}

// MismatchStatus classifies a join-key problem.
type MismatchStatus string

// Join mismatch statuses.
const (
	MissingOnLeft  MismatchStatus = "missing_on_left"
	MissingOnRight MismatchStatus = "missing_on_right"
	FanOut         MismatchStatus = "fan_out"
)

// JoinKeyCount is one shared key's per-side population on a join edge.
type JoinKeyCount struct {
	KeyValue   string `json:"key_value"`
	LeftCount  int64  `json:"left_count"`
	RightCount int64  `json:"right_count"`
	Product    int64  `json:"product"`
}

// JoinMismatchRecord flags one problematic key on a join edge.
type JoinMismatchRecord struct {
	KeyValue   string         `json:"key_value"`
	LeftCount  int64          `json:"left_count"`
	RightCount int64          `json:"right_count"`
	Status     MismatchStatus `json:"status"`
	Product    int64          `json:"product,omitempty"`
}

// JoinEdgeReport is the analysis of one join edge: shared keys ranked by
// their predicted contribution to output cardinality, and the keys
// flagged as missing on a side or fanning out. Rows with a NULL join
// key never match under an equi-join; they are kept out of the key
// pairing and counted per side instead.
type JoinEdgeReport struct {
	Edge            JoinEdge             `json:"edge"`
	Keys            []JoinKeyCount       `json:"keys"`
	Mismatches      []JoinMismatchRecord `json:"mismatches"`
	PredictedRows   int64                `json:"predicted_rows"`
	MedianProduct   float64              `json:"median_product"`
	FanoutThreshold float64              `json:"fanout_threshold"`
	NullLeftRows    int64                `json:"null_left_rows,omitempty"`
	NullRightRows   int64                `json:"null_right_rows,omitempty"`
}

// JoinResult is the join mode output.
type JoinResult struct {
	Edges      []JoinEdgeReport `json:"edges"`
	ActualRows int64            `json:"actual_rows"`
	Expected   *float64         `json:"expected,omitempty"`
	Delta      *float64         `json:"delta,omitempty"`
}

// Join explains unexpected cardinality by comparing per-key populations
// on each side of every join edge: keys absent from one side shrink the
// result, keys whose count product dwarfs the median multiply it.
func (e *Engine) Join(ctx context.Context, m *QueryModel, p JoinParams) (*JoinResult, error) {
	if len(m.JoinEdges) == 0 {
		return nil, &InvalidParameterError{
			Param:  "--query",
			Reason: "the query has no equi-join to analyze",
		}
	}

	actual, err := e.runScalarFloat(ctx, synthesizeRowCount(m), "row_count")
	if err != nil {
		return nil, err
	}
	res := &JoinResult{ActualRows: int64(actual)}
	if p.ExpectedCount != nil {
		expected := *p.ExpectedCount
		delta := actual - expected
		res.Expected = &expected
		res.Delta = &delta
	}

	for _, edge := range m.JoinEdges {
		report, err := e.analyzeEdge(ctx, m, edge)
		if err != nil {
			return nil, err
		}
		res.Edges = append(res.Edges, *report)
	}
	return res, nil
}

func (e *Engine) analyzeEdge(ctx context.Context, m *QueryModel, edge JoinEdge) (*JoinEdgeReport, error) {
	left, nullLeft, err := e.sideCounts(ctx, m, edge.LeftRelation, edge.LeftColumn)
	if err != nil {
		return nil, err
	}
	right, nullRight, err := e.sideCounts(ctx, m, edge.RightRelation, edge.RightColumn)
	if err != nil {
		return nil, err
	}

	report := &JoinEdgeReport{Edge: edge, NullLeftRows: nullLeft, NullRightRows: nullRight}

	for key, lc := range left {
		rc, shared := right[key]
		if !shared {
			report.Mismatches = append(report.Mismatches, JoinMismatchRecord{
				KeyValue:  key,
				LeftCount: lc,
				Status:    MissingOnRight,
			})
			continue
		}
		product := lc * rc
		report.Keys = append(report.Keys, JoinKeyCount{
			KeyValue:   key,
			LeftCount:  lc,
			RightCount: rc,
			Product:    product,
		})
		report.PredictedRows += product
	}
	for key, rc := range right {
		if _, shared := left[key]; !shared {
			report.Mismatches = append(report.Mismatches, JoinMismatchRecord{
				KeyValue:   key,
				RightCount: rc,
				Status:     MissingOnLeft,
			})
		}
	}

	sort.Slice(report.Keys, func(i, j int) bool {
		if report.Keys[i].Product != report.Keys[j].Product {
			return report.Keys[i].Product > report.Keys[j].Product
		}
		return report.Keys[i].KeyValue < report.Keys[j].KeyValue
	})

	report.MedianProduct = medianProduct(report.Keys)
	report.FanoutThreshold = report.MedianProduct * e.opts.FanoutMultiplier
	if report.MedianProduct > 0 {
		for _, k := range report.Keys {
			if float64(k.Product) > report.FanoutThreshold {
				report.Mismatches = append(report.Mismatches, JoinMismatchRecord{
					KeyValue:   k.KeyValue,
					LeftCount:  k.LeftCount,
					RightCount: k.RightCount,
					Status:     FanOut,
					Product:    k.Product,
				})
			}
		}
	}

	sortMismatches(report.Mismatches)
	if len(report.Keys) > e.opts.MaxRows {
		report.Keys = report.Keys[:e.opts.MaxRows]
	}
	if len(report.Mismatches) > e.opts.MaxRows {
		report.Mismatches = report.Mismatches[:e.opts.MaxRows]
	}
	return report, nil
}

// sideCounts tallies one side's rows per key value. NULL keys are
// returned as a separate count: NULL = NULL is not true in SQL, so
// those rows can never pair with the other side.
func (e *Engine) sideCounts(ctx context.Context, m *QueryModel, relName, column string) (map[string]int64, int64, error) {
	rel, ok := m.resolveRelation(relName)
	if !ok {
		rel = Relation{Alias: relName, Table: relName}
	}
	rows, err := e.run(ctx, synthesizeSideCount(rel, column))
	if err != nil {
		return nil, 0, err
	}
	counts := make(map[string]int64, len(rows))
	var nulls int64
	for _, row := range rows {
		cnt, _ := toInt64(row["cnt"])
		if row["key_value"] == nil {
			nulls += cnt
			continue
		}
		counts[valueString(row["key_value"])] = cnt
	}
	return counts, nulls, nil
}

// sortMismatches ranks by predicted contribution: fan-out products
// first, then missing keys by the present side's count, ties by key.
func sortMismatches(records []JoinMismatchRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Product != records[j].Product {
			return records[i].Product > records[j].Product
		}
		si := max(records[i].LeftCount, records[i].RightCount)
		sj := max(records[j].LeftCount, records[j].RightCount)
		if si != sj {
			return si > sj
		}
		return records[i].KeyValue < records[j].KeyValue
	})
}

func medianProduct(keys []JoinKeyCount) float64 {
	if len(keys) == 0 {
		return 0
	}
	products := make([]int64, len(keys))
	for i, k := range keys {
		products[i] = k.Product
	}
	sort.Slice(products, func(i, j int) bool { return products[i] < products[j] })
	mid := len(products) / 2
	if len(products)%2 == 1 {
		return float64(products[mid])
	}
	return float64(products[mid-1]+products[mid]) / 2
}
