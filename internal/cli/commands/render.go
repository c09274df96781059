package commands

import (
	"github.com/querylens/querylens/internal/cli/output"
	"github.com/querylens/querylens/internal/engine"
)

// renderReport writes an analysis report in the renderer's effective
// mode, filtered to the requested detail level. JSON mode always emits
// the full report regardless of level.
func renderReport(r *output.Renderer, report *engine.Report, level engine.DetailLevel) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(report)
	}

	ex := report.Explanation
	r.Title(ex.Title)

	if level != engine.DetailDetailed {
		for _, bullet := range ex.Bullets {
			r.Printf("  - %s\n", bullet)
		}
	}

	if level != engine.DetailSummary {
		for _, t := range ex.Details {
			r.Println()
			r.Println(r.Styles().Info.Render(t.Title))
			r.Table(t.Header, t.Rows)
		}
	}
	return nil
}

// parseDetail validates the --output detail level flag.
func parseDetail(s string) (engine.DetailLevel, error) {
	return engine.ParseDetailLevel(s)
}
