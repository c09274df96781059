package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// KeyValue is one column = value pair of a target tuple descriptor.
type KeyValue struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// WhyNotParams carries the why-not mode inputs.
type WhyNotParams struct {
	// Table names the relation the missing tuple belongs to; empty means
	// the first relation in FROM order.
	Table string
	// Keys identifies the target tuple.
	Keys []KeyValue
}

// Constraint kinds in why-not output.
const (
	ConstraintConjunct = "conjunct"
	ConstraintJoinEdge = "join_edge"
)

// RemovedConstraint is one member of the minimal relaxation set.
type RemovedConstraint struct {
	Kind           string  `json:"kind"`
	Index          int     `json:"index"`
	Text           string  `json:"text"`
	Responsibility float64 `json:"responsibility"`
	Suggestion     string  `json:"suggestion,omitempty"`
}

// SearchStep records one tested relaxation and the rows it admitted.
type SearchStep struct {
	Removed []string `json:"removed"`
	Rows    int64    `json:"rows"`
}

// WhyNotResult is the why-not mode output: the smallest constraint
// subset whose removal admits the target tuple.
type WhyNotResult struct {
	Target           string              `json:"target"`
	Removed          []RemovedConstraint `json:"removed"`
	RemovedConjuncts []int               `json:"removed_conjuncts"`
	RemovedEdges     []int               `json:"removed_edges"`
	IsMinimal        bool                `json:"is_minimal"`
	Tested           int                 `json:"tested"`
	AdmittedRows     int64               `json:"admitted_rows"`
	Steps            []SearchStep        `json:"steps"`
}

// WhyNot searches for a minimal set of constraints (conjuncts and join
// edges) whose relaxation admits the target tuple. Subsets are tested in
// increasing size, lexicographically by constraint index within a size,
// so the first hit is minimal and deterministic. Exhaustion is reported
// as TupleUnreachableError.
func (e *Engine) WhyNot(ctx context.Context, m *QueryModel, p WhyNotParams) (*WhyNotResult, error) {
	if len(p.Keys) == 0 {
		return nil, &InvalidParameterError{
			Param:  "--key",
			Reason: "why-not needs a target tuple\nHint: Pass --key column=value (comma-separated for composite keys)",
		}
	}
	for _, kv := range p.Keys {
		if kv.Column == "" || kv.Value == "" {
			return nil, &InvalidParameterError{
				Param:  "--key",
				Reason: fmt.Sprintf("malformed key pair %q: want column=value", kv.Column+"="+kv.Value),
			}
		}
	}
	target, err := m.targetRelation(p.Table)
	if err != nil {
		return nil, err
	}
	targetDesc := targetString(target, p.Keys)

	conjuncts := len(m.Conjuncts)
	k := conjuncts + len(m.JoinEdges)
	if k == 0 {
		return nil, &InvalidParameterError{
			Param:  "--query",
			Reason: "the query has no predicates or joins to relax",
		}
	}
	if k > e.opts.MaxRelax {
		return nil, &UnsupportedQueryShapeError{
			Construct: "too many constraints",
			Detail:    fmt.Sprintf("%d candidate constraints exceed the relaxation search bound of %d", k, e.opts.MaxRelax),
		}
	}

	baseRows, err := e.run(ctx, synthesizeTargetProbe(target, p.Keys))
	if err != nil {
		return nil, err
	}
	if len(baseRows) == 0 {
		return nil, &TupleUnreachableError{Target: targetDesc}
	}
	baseRow := baseRows[0]

	full, err := e.relaxationRows(ctx, m, target, p.Keys, nil)
	if err != nil {
		return nil, err
	}
	if full > 0 {
		return nil, &InvalidParameterError{
			Param:  "--key",
			Reason: fmt.Sprintf("tuple %s already appears in the query result", targetDesc),
		}
	}

	res := &WhyNotResult{Target: targetDesc}
	tested := 0
	for size := 1; size <= k; size++ {
		found, err := e.searchSize(ctx, m, target, p.Keys, k, size, &tested, res)
		if err != nil {
			return nil, err
		}
		if found {
			res.Tested = tested
			if err := e.describeRemoved(ctx, m, target, baseRow, res); err != nil {
				return nil, err
			}
			return res, nil
		}
	}
	return nil, &TupleUnreachableError{Target: targetDesc, Tested: tested}
}

// searchSize tests every subset of the given size in lexicographic
// order. On the first admitting subset it fills res and returns true.
func (e *Engine) searchSize(ctx context.Context, m *QueryModel, target Relation, keys []KeyValue, k, size int, tested *int, res *WhyNotResult) (bool, error) {
	idxs := make([]int, size)
	var rec func(start, depth int) (bool, error)
	rec = func(start, depth int) (bool, error) {
		if depth == size {
			*tested++
			rows, err := e.relaxationRows(ctx, m, target, keys, idxs)
			if err != nil {
				return false, err
			}
			res.Steps = append(res.Steps, SearchStep{
				Removed: e.constraintNames(m, idxs),
				Rows:    rows,
			})
			if rows > 0 {
				e.fillRemoved(m, idxs, res)
				res.AdmittedRows = rows
				res.IsMinimal = true
				return true, nil
			}
			return false, nil
		}
		for i := start; i <= k-(size-depth); i++ {
			idxs[depth] = i
			found, err := rec(i+1, depth+1)
			if found || err != nil {
				return found, err
			}
		}
		return false, nil
	}
	return rec(0, 0)
}

// relaxationRows counts rows matching the target after removing the
// constraints named by idxs (conjuncts first, then join edges).
func (e *Engine) relaxationRows(ctx context.Context, m *QueryModel, target Relation, keys []KeyValue, idxs []int) (int64, error) {
	removedConjuncts := make(map[int]bool)
	removedEdges := make(map[int]bool)
	for _, idx := range idxs {
		if idx < len(m.Conjuncts) {
			removedConjuncts[idx] = true
		} else {
			removedEdges[idx-len(m.Conjuncts)] = true
		}
	}
	q := synthesizeRelaxedCount(m, target, keys, removedConjuncts, removedEdges)
	rows, err := e.run(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	cnt, _ := toInt64(rows[0]["cnt"])
	return cnt, nil
}

func (e *Engine) constraintNames(m *QueryModel, idxs []int) []string {
	names := make([]string, 0, len(idxs))
	for _, idx := range idxs {
		if idx < len(m.Conjuncts) {
			names = append(names, m.Conjuncts[idx].SQL())
		} else {
			names = append(names, m.JoinEdges[idx-len(m.Conjuncts)].String())
		}
	}
	return names
}

// fillRemoved splits the winning subset into conjunct and edge indexes
// and assigns each member responsibility 1/n.
func (e *Engine) fillRemoved(m *QueryModel, idxs []int, res *WhyNotResult) {
	responsibility := 1.0 / float64(len(idxs))
	for _, idx := range idxs {
		if idx < len(m.Conjuncts) {
			c := m.Conjuncts[idx]
			res.RemovedConjuncts = append(res.RemovedConjuncts, c.Index)
			res.Removed = append(res.Removed, RemovedConstraint{
				Kind:           ConstraintConjunct,
				Index:          c.Index,
				Text:           c.SQL(),
				Responsibility: responsibility,
			})
		} else {
			ei := idx - len(m.Conjuncts)
			res.RemovedEdges = append(res.RemovedEdges, ei)
			res.Removed = append(res.Removed, RemovedConstraint{
				Kind:           ConstraintJoinEdge,
				Index:          ei,
				Text:           m.JoinEdges[ei].String(),
				Responsibility: responsibility,
			})
		}
	}
	sort.Ints(res.RemovedConjuncts)
	sort.Ints(res.RemovedEdges)
}

// describeRemoved attaches a repair suggestion to every removed
// constraint, using the target's base row values.
func (e *Engine) describeRemoved(ctx context.Context, m *QueryModel, target Relation, baseRow map[string]any, res *WhyNotResult) error {
	for i := range res.Removed {
		rc := &res.Removed[i]
		if rc.Kind == ConstraintConjunct {
			rc.Suggestion = suggestConjunct(m.Conjuncts[rc.Index], target, baseRow)
			continue
		}
		suggestion, err := e.suggestEdge(ctx, m, m.JoinEdges[rc.Index], target, baseRow)
		if err != nil {
			return err
		}
		rc.Suggestion = suggestion
	}
	return nil
}

// suggestConjunct phrases how the predicate excludes the base row.
func suggestConjunct(c *Conjunct, target Relation, baseRow map[string]any) string {
	if c.Column == "" || (c.Relation != "" && !strings.EqualFold(c.Relation, target.Alias)) {
		return fmt.Sprintf("the row fails %s", c.SQL())
	}
	v, ok := lookupColumn(baseRow, c.Column)
	if !ok {
		return fmt.Sprintf("the row fails %s", c.SQL())
	}
	actual := valueString(v)
	switch c.Operator {
	case ">", ">=":
		return fmt.Sprintf("the row has %s = %s; lower the %s threshold below it to include the row", c.Column, actual, c.Literal)
	case "<", "<=":
		return fmt.Sprintf("the row has %s = %s; raise the %s threshold above it to include the row", c.Column, actual, c.Literal)
	case "=":
		return fmt.Sprintf("the row has %s = %s, not %s; change the required value to include it", c.Column, actual, c.Literal)
	case "!=", "<>":
		return fmt.Sprintf("the row's %s = %s is explicitly excluded", c.Column, actual)
	default:
		return fmt.Sprintf("the row has %s = %s, which fails %s", c.Column, actual, c.SQL())
	}
}

// suggestEdge reports which join side lacks the row's key.
func (e *Engine) suggestEdge(ctx context.Context, m *QueryModel, edge JoinEdge, target Relation, baseRow map[string]any) (string, error) {
	var ownCol string
	var otherRel Relation
	var otherCol string
	switch {
	case strings.EqualFold(edge.LeftRelation, target.Alias):
		ownCol = edge.LeftColumn
		otherRel, _ = m.resolveRelation(edge.RightRelation)
		otherCol = edge.RightColumn
	case strings.EqualFold(edge.RightRelation, target.Alias):
		ownCol = edge.RightColumn
		otherRel, _ = m.resolveRelation(edge.LeftRelation)
		otherCol = edge.LeftColumn
	default:
		return fmt.Sprintf("the join %s filters out the row", edge.String()), nil
	}

	v, ok := lookupColumn(baseRow, ownCol)
	if !ok {
		return fmt.Sprintf("the join %s filters out the row", edge.String()), nil
	}
	value := valueString(v)
	if v == nil {
		return fmt.Sprintf("the row's %s is NULL, so the join %s can never match it", ownCol, edge.String()), nil
	}
	matches, err := e.runScalarFloat(ctx, synthesizeKeyLookupCount(otherRel, otherCol, value), "cnt")
	if err != nil {
		return "", err
	}
	if matches == 0 {
		return fmt.Sprintf("no row in %s has %s = %s", otherRel.Table, otherCol, value), nil
	}
	return fmt.Sprintf("%d rows in %s match %s = %s; another constraint removes them", int64(matches), otherRel.Table, otherCol, value), nil
}

func targetString(rel Relation, keys []KeyValue) string {
	pairs := make([]string, 0, len(keys))
	for _, kv := range keys {
		pairs = append(pairs, kv.Column+"="+kv.Value)
	}
	return fmt.Sprintf("%s[%s]", rel.Table, strings.Join(pairs, ", "))
}
