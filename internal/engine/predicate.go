package engine

import (
	"context"
	"strings"
)

// PredicateParams carries the predicate mode inputs.
type PredicateParams struct {
	// Table names the relation whose key identifies tuples; empty means
	// the first relation in FROM order.
	Table string
	// KeyColumns overrides key inference.
	KeyColumns []string
}

// LeafVerdict is one conjunct's outcome for one tuple.
type LeafVerdict struct {
	ConjunctIndex int  `json:"conjunct_index"`
	Passed        bool `json:"passed"`
}

// TupleVerdict is one tuple's per-conjunct outcomes in leaf order plus
// the overall verdict from evaluating the predicate tree over them.
// InResult is the tuple's actual membership in the full-predicate
// result; it always agrees with Overall for supported queries.
type TupleVerdict struct {
	TupleKey string        `json:"tuple_key"`
	Leaves   []LeafVerdict `json:"leaves"`
	Overall  bool          `json:"overall"`
	InResult bool          `json:"in_result"`
}

// ConjunctImpact summarizes one conjunct across the examined tuples.
// SoleBlockCount counts tuples excluded overall that this conjunct alone
// would rescue if it passed.
type ConjunctImpact struct {
	Index          int    `json:"index"`
	Text           string `json:"text"`
	PassCount      int    `json:"pass_count"`
	SoleBlockCount int    `json:"sole_block_count"`
}

// PredicateResult is the predicate mode output.
type PredicateResult struct {
	KeyLabel  string           `json:"key_label"`
	Conjuncts []ConjunctImpact `json:"conjuncts"`
	Verdicts  []TupleVerdict   `json:"verdicts"`
	ScopeRows int              `json:"scope_rows"`
	Included  int              `json:"included"`
	Excluded  int              `json:"excluded"`
}

// Predicate attributes each tuple's inclusion or exclusion to individual
// conjuncts: every conjunct runs once over the full FROM/JOIN chain, and
// each tuple's overall verdict is rebuilt from its per-conjunct
// membership through the declared AND/OR structure with no further
// database access.
func (e *Engine) Predicate(ctx context.Context, m *QueryModel, p PredicateParams) (*PredicateResult, error) {
	if m.Predicate == nil {
		return nil, &InvalidParameterError{
			Param:  "--query",
			Reason: "the query has no WHERE clause to attribute",
		}
	}
	target, err := m.targetRelation(p.Table)
	if err != nil {
		return nil, err
	}
	keyCols, err := e.resolveKeyColumns(ctx, target, p.KeyColumns)
	if err != nil {
		return nil, err
	}

	scopeRows, err := e.run(ctx, synthesizeScopeRows(m, target, keyCols, e.opts.MaxRows))
	if err != nil {
		return nil, err
	}
	scope := make([]string, 0, len(scopeRows))
	for _, row := range scopeRows {
		scope = append(scope, tupleKey(row, len(keyCols)))
	}

	// Sub-queries issue in conjunct leaf order so runs are repeatable.
	passSets := make([]map[string]bool, len(m.Conjuncts))
	for i, c := range m.Conjuncts {
		set, err := e.keySet(ctx, synthesizeConjunctProbe(m, target, keyCols, c), len(keyCols))
		if err != nil {
			return nil, err
		}
		passSets[i] = set
	}
	baseline, err := e.keySet(ctx, synthesizeBaselineRows(m, target, keyCols), len(keyCols))
	if err != nil {
		return nil, err
	}

	res := &PredicateResult{
		KeyLabel:  strings.Join(keyCols, "|"),
		ScopeRows: len(scope),
	}
	for i, c := range m.Conjuncts {
		res.Conjuncts = append(res.Conjuncts, ConjunctImpact{
			Index:     c.Index,
			Text:      c.SQL(),
			PassCount: len(passSets[i]),
		})
	}

	for _, key := range scope {
		leaves := make(map[int]bool, len(m.Conjuncts))
		verdict := TupleVerdict{TupleKey: key, InResult: baseline[key]}
		for i, c := range m.Conjuncts {
			passed := passSets[i][key]
			leaves[c.Index] = passed
			verdict.Leaves = append(verdict.Leaves, LeafVerdict{ConjunctIndex: c.Index, Passed: passed})
		}
		verdict.Overall = evalPredicate(m.Predicate, leaves)
		if verdict.Overall {
			res.Included++
		} else {
			res.Excluded++
			for i, c := range m.Conjuncts {
				if leaves[c.Index] {
					continue
				}
				leaves[c.Index] = true
				rescued := evalPredicate(m.Predicate, leaves)
				leaves[c.Index] = false
				if rescued {
					res.Conjuncts[i].SoleBlockCount++
				}
			}
		}
		res.Verdicts = append(res.Verdicts, verdict)
	}
	return res, nil
}

// keySet collects a probe's tuple keys into a membership set.
func (e *Engine) keySet(ctx context.Context, q DiagnosticQuery, keyLen int) (map[string]bool, error) {
	rows, err := e.run(ctx, q)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(rows))
	for _, row := range rows {
		set[tupleKey(row, keyLen)] = true
	}
	return set, nil
}

// evalPredicate evaluates the tree bottom-up over per-leaf outcomes.
func evalPredicate(node PredicateNode, leaves map[int]bool) bool {
	switch n := node.(type) {
	case *Conjunct:
		return leaves[n.Index]
	case *Connective:
		if n.Op == "OR" {
			for _, child := range n.Children {
				if evalPredicate(child, leaves) {
					return true
				}
			}
			return false
		}
		for _, child := range n.Children {
			if !evalPredicate(child, leaves) {
				return false
			}
		}
		return true
	}
	return true
}
