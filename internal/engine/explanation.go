package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DetailLevel selects how much of an explanation is rendered.
type DetailLevel string

// Detail levels for explanation output.
const (
	DetailSummary  DetailLevel = "summary"
	DetailDetailed DetailLevel = "detailed"
	DetailBoth     DetailLevel = "both"
)

// ParseDetailLevel validates a --output flag value.
func ParseDetailLevel(s string) (DetailLevel, error) {
	switch DetailLevel(s) {
	case DetailSummary, DetailDetailed, DetailBoth:
		return DetailLevel(s), nil
	case "":
		return DetailBoth, nil
	}
	return "", &InvalidParameterError{
		Param:  "--output",
		Reason: fmt.Sprintf("unknown level %q: want summary, detailed or both", s),
	}
}

// DetailTable is one table of an explanation's detailed section.
type DetailTable struct {
	Title  string     `json:"title"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Explanation is the human-facing envelope every analyzer produces: a
// one-line title, summary bullets, and the detail tables behind them.
type Explanation struct {
	Title   string        `json:"title"`
	Bullets []string      `json:"bullets"`
	Details []DetailTable `json:"details"`
}

// Explainer is any analysis result that can render itself as an
// Explanation.
type Explainer interface {
	Explain() Explanation
}

// Report wraps one analysis run for rendering and the serve API.
type Report struct {
	ID          string      `json:"id"`
	Mode        string      `json:"mode"`
	Query       string      `json:"query"`
	GeneratedAt time.Time   `json:"generated_at"`
	Explanation Explanation `json:"explanation"`
	Result      any         `json:"result"`
}

// NewReport stamps an analysis result with a fresh run ID.
func NewReport(mode, query string, result Explainer) *Report {
	return &Report{
		ID:          uuid.NewString(),
		Mode:        mode,
		Query:       query,
		GeneratedAt: time.Now().UTC(),
		Explanation: result.Explain(),
		Result:      result,
	}
}

// Explain implements Explainer.
func (r *AggregateResult) Explain() Explanation {
	ex := Explanation{
		Title: fmt.Sprintf("%s is %s, expected %s (surprise %s)",
			r.Aggregate, formatFloat(r.Actual), formatFloat(r.Expected), formatSigned(r.Surprise)),
	}

	if r.RowCountMode {
		ex.Bullets = append(ex.Bullets,
			fmt.Sprintf("the query returns %s rows against an expected %s", formatFloat(r.Actual), formatFloat(r.Expected)))
		counts := DetailTable{Title: "Base row counts", Header: []string{"Relation", "Table", "Rows"}}
		for _, rc := range r.RelationCounts {
			ex.Bullets = append(ex.Bullets, fmt.Sprintf("%s (%s) holds %d base rows", rc.Relation, rc.Table, rc.Rows))
			counts.Rows = append(counts.Rows, []string{rc.Relation, rc.Table, strconv.FormatInt(rc.Rows, 10)})
		}
		ex.Details = append(ex.Details, counts)
		return ex
	}

	if r.ExplainingSize > 0 {
		noun := "group"
		if r.ExplainingSize != 1 {
			noun = "groups"
		}
		ex.Bullets = append(ex.Bullets,
			fmt.Sprintf("removing the %d flagged %s closes the gap to the expected value", r.ExplainingSize, noun))
	} else if r.Surprise == 0 {
		ex.Bullets = append(ex.Bullets, "the actual value matches the expectation")
	}
	for i, rec := range r.Records {
		if i >= 3 {
			break
		}
		ex.Bullets = append(ex.Bullets, contributionBullet(r, rec))
	}

	detail := DetailTable{Title: fmt.Sprintf("Contributions by %s", r.KeyLabel)}
	if r.Function == string(AggAvg) {
		detail.Header = []string{r.KeyLabel, "Influence", "Group sum", "Group count", "Explaining"}
		for _, rec := range r.Records {
			detail.Rows = append(detail.Rows, []string{
				rec.TupleKey,
				formatFloat(rec.Contribution),
				formatFloat(rec.GroupSum),
				strconv.FormatInt(rec.GroupCount, 10),
				formatFlag(rec.Explaining),
			})
		}
	} else {
		detail.Header = []string{r.KeyLabel, "Contribution", "% of total", "Explaining"}
		for _, rec := range r.Records {
			detail.Rows = append(detail.Rows, []string{
				rec.TupleKey,
				formatFloat(rec.Contribution),
				formatPercent(rec.Percentage),
				formatFlag(rec.Explaining),
			})
		}
	}
	ex.Details = append(ex.Details, detail)
	return ex
}

func contributionBullet(r *AggregateResult, rec ContributionRecord) string {
	if r.Function == string(AggAvg) {
		return fmt.Sprintf("%s=%s pulls the average with influence %s (sum %s over %d rows)",
			r.KeyLabel, rec.TupleKey, formatFloat(rec.Contribution), formatFloat(rec.GroupSum), rec.GroupCount)
	}
	if rec.Percentage != nil {
		return fmt.Sprintf("%s=%s contributes %s (%s of the total)",
			r.KeyLabel, rec.TupleKey, formatFloat(rec.Contribution), formatPercent(rec.Percentage))
	}
	return fmt.Sprintf("%s=%s contributes %s", r.KeyLabel, rec.TupleKey, formatFloat(rec.Contribution))
}

// Explain implements Explainer.
func (r *JoinResult) Explain() Explanation {
	ex := Explanation{
		Title: fmt.Sprintf("%d join edge(s) analyzed; the query returns %d rows", len(r.Edges), r.ActualRows),
	}
	if r.Expected != nil {
		ex.Title = fmt.Sprintf("%d join edge(s) analyzed; the query returns %d rows, expected %s (delta %s)",
			len(r.Edges), r.ActualRows, formatFloat(*r.Expected), formatSigned(*r.Delta))
	}

	for _, edge := range r.Edges {
		missing, fanned := 0, 0
		for _, mm := range edge.Mismatches {
			if mm.Status == FanOut {
				fanned++
			} else {
				missing++
			}
		}
		ex.Bullets = append(ex.Bullets,
			fmt.Sprintf("%s predicts %d rows from %d shared keys (%d missing on one side, %d fanning out)",
				edge.Edge.String(), edge.PredictedRows, len(edge.Keys), missing, fanned))
		if edge.NullLeftRows > 0 || edge.NullRightRows > 0 {
			ex.Bullets = append(ex.Bullets,
				fmt.Sprintf("%d left and %d right rows carry a NULL join key and can never match",
					edge.NullLeftRows, edge.NullRightRows))
		}

		keys := DetailTable{
			Title:  fmt.Sprintf("Key populations for %s", edge.Edge.String()),
			Header: []string{"Key", "Left count", "Right count", "Product"},
		}
		for _, k := range edge.Keys {
			keys.Rows = append(keys.Rows, []string{
				k.KeyValue,
				strconv.FormatInt(k.LeftCount, 10),
				strconv.FormatInt(k.RightCount, 10),
				strconv.FormatInt(k.Product, 10),
			})
		}
		ex.Details = append(ex.Details, keys)

		if len(edge.Mismatches) > 0 {
			mms := DetailTable{
				Title:  fmt.Sprintf("Mismatches for %s (fan-out threshold %s)", edge.Edge.String(), formatFloat(edge.FanoutThreshold)),
				Header: []string{"Key", "Left count", "Right count", "Status"},
			}
			for _, mm := range edge.Mismatches {
				mms.Rows = append(mms.Rows, []string{
					mm.KeyValue,
					strconv.FormatInt(mm.LeftCount, 10),
					strconv.FormatInt(mm.RightCount, 10),
					string(mm.Status),
				})
			}
			ex.Details = append(ex.Details, mms)
		}
	}
	return ex
}

// Explain implements Explainer.
func (r *PredicateResult) Explain() Explanation {
	ex := Explanation{
		Title: fmt.Sprintf("%d tuple(s) in scope: %d included, %d excluded", r.ScopeRows, r.Included, r.Excluded),
	}
	for _, c := range r.Conjuncts {
		bullet := fmt.Sprintf("conjunct %d (%s) passes %d tuple(s)", c.Index, c.Text, c.PassCount)
		if c.SoleBlockCount > 0 {
			bullet += fmt.Sprintf(" and is the sole blocker for %d", c.SoleBlockCount)
		}
		ex.Bullets = append(ex.Bullets, bullet)
	}

	verdicts := DetailTable{Title: "Per-tuple verdicts"}
	verdicts.Header = append(verdicts.Header, r.KeyLabel)
	for _, c := range r.Conjuncts {
		verdicts.Header = append(verdicts.Header, fmt.Sprintf("[%d] %s", c.Index, c.Text))
	}
	verdicts.Header = append(verdicts.Header, "Overall")
	for _, v := range r.Verdicts {
		row := []string{v.TupleKey}
		for _, leaf := range v.Leaves {
			row = append(row, formatVerdict(leaf.Passed))
		}
		row = append(row, formatVerdict(v.Overall))
		verdicts.Rows = append(verdicts.Rows, row)
	}
	ex.Details = append(ex.Details, verdicts)
	return ex
}

// Explain implements Explainer.
func (r *WhyNotResult) Explain() Explanation {
	noun := "constraint"
	if len(r.Removed) != 1 {
		noun = "constraints"
	}
	ex := Explanation{
		Title: fmt.Sprintf("%s appears after relaxing %d %s (%d subset(s) tested)",
			r.Target, len(r.Removed), noun, r.Tested),
	}
	for _, rc := range r.Removed {
		bullet := fmt.Sprintf("%s %s blocks the tuple (responsibility %.2f)", rc.Kind, rc.Text, rc.Responsibility)
		if rc.Suggestion != "" {
			bullet += ": " + rc.Suggestion
		}
		ex.Bullets = append(ex.Bullets, bullet)
	}

	steps := DetailTable{Title: "Relaxations tested", Header: []string{"Removed", "Matching rows"}}
	for _, s := range r.Steps {
		steps.Rows = append(steps.Rows, []string{strings.Join(s.Removed, " + "), strconv.FormatInt(s.Rows, 10)})
	}
	ex.Details = append(ex.Details, steps)
	return ex
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatSigned(v float64) string {
	if v >= 0 {
		return "+" + formatFloat(v)
	}
	return formatFloat(v)
}

func formatPercent(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', 1, 64) + "%"
}

func formatFlag(b bool) string {
	if b {
		return "*"
	}
	return ""
}

func formatVerdict(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}
