// Package output owns terminal rendering for the CLI: output mode
// resolution (TTY-aware), styled status lines, and table formatting.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects the rendering format.
type Mode string

// Rendering modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// ParseMode validates an output format string. Empty and unknown values
// fall back to auto.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(s)) {
	case ModeText:
		return ModeText
	case ModeMarkdown, "md":
		return ModeMarkdown
	case ModeJSON:
		return ModeJSON
	default:
		return ModeAuto
	}
}

// Renderer writes command output in the configured mode.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	mode   Mode
	styles Styles
}

// NewRenderer creates a renderer over the given streams.
func NewRenderer(stdout, stderr io.Writer, mode Mode) *Renderer {
	r := &Renderer{
		stdout: stdout,
		stderr: stderr,
		mode:   mode,
	}
	r.styles = newStyles(r.colorEnabled())
	return r
}

// Stdout returns the output stream.
func (r *Renderer) Stdout() io.Writer { return r.stdout }

// Stderr returns the error stream.
func (r *Renderer) Stderr() io.Writer { return r.stderr }

// Styles returns the lipgloss styles for this renderer.
func (r *Renderer) Styles() Styles { return r.styles }

// EffectiveMode resolves auto to text on a TTY and markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto && r.mode != "" {
		return r.mode
	}
	if r.isTerminal() {
		return ModeText
	}
	return ModeMarkdown
}

// isTerminal reports whether stdout is attached to a terminal.
func (r *Renderer) isTerminal() bool {
	f, ok := r.stdout.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// colorEnabled reports whether styled output should carry color.
func (r *Renderer) colorEnabled() bool {
	if !r.isTerminal() {
		return false
	}
	return termenv.ColorProfile() != termenv.Ascii
}

// Println writes a line to stdout.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.stdout, a...)
}

// Printf writes formatted output to stdout.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.stdout, format, a...)
}

// Error writes a styled error line to stderr.
func (r *Renderer) Error(format string, a ...any) {
	_, _ = fmt.Fprintln(r.stderr, r.styles.Error.Render(fmt.Sprintf(format, a...)))
}

// Warning writes a styled warning line to stderr.
func (r *Renderer) Warning(format string, a ...any) {
	_, _ = fmt.Fprintln(r.stderr, r.styles.Warning.Render(fmt.Sprintf(format, a...)))
}

// Title writes a styled title line to stdout.
func (r *Renderer) Title(s string) {
	_, _ = fmt.Fprintln(r.stdout, r.styles.Title.Render(s))
}

// JSON writes v to stdout as one indented JSON document.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table renders a header and rows in the effective mode: a styled table
// on text, pipe-delimited on markdown.
func (r *Renderer) Table(header []string, rows [][]string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.markdownTable(header, rows)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.stdout)
	style := table.StyleLight
	// StyleLight upper-cases headers; keep the caller's casing.
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)

	headerRow := make(table.Row, len(header))
	for i, col := range header {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}
	t.Render()
	_, _ = fmt.Fprintf(r.stdout, "(%d rows)\n", len(rows))
}

func (r *Renderer) markdownTable(header []string, rows [][]string) {
	_, _ = fmt.Fprintf(r.stdout, "| %s |\n", strings.Join(header, " | "))
	seps := make([]string, len(header))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(r.stdout, "| %s |\n", strings.Join(seps, " | "))
	for _, row := range rows {
		cells := make([]string, len(header))
		for i := range header {
			if i < len(row) {
				cells[i] = row[i]
			}
		}
		_, _ = fmt.Fprintf(r.stdout, "| %s |\n", strings.Join(cells, " | "))
	}
}
