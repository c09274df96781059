package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/querylens/querylens/internal/engine"
	"github.com/querylens/querylens/pkg/adapter"
	"github.com/spf13/cobra"
)

// replModes are the analysis modes selectable by bare words.
var replModes = map[string]bool{"sql": true, "agg": true, "join": true, "predicate": true}

// replSession holds the interactive state: the configured target plus a
// lazily created in-memory sandbox that \seed switches the session to.
// The sandbox is the only surface that writes; the configured target is
// never seeded.
type replSession struct {
	cmdCtx        *CommandContext
	mode          string
	sandbox       adapter.Adapter
	sandboxEngine *engine.Engine
}

func (s *replSession) adapter() adapter.Adapter {
	if s.sandbox != nil {
		return s.sandbox
	}
	return s.cmdCtx.Adapter
}

func (s *replSession) engine() *engine.Engine {
	if s.sandboxEngine != nil {
		return s.sandboxEngine
	}
	return s.cmdCtx.Engine
}

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive analysis session",
		Long: `Start an interactive session against the configured target.

Statements ending in ; run in the current mode: plain execution by
default, or the analysis selected by typing a bare mode word (agg,
join, predicate, sql). \seed loads a CSV into an in-memory sandbox
database and switches the session to it, so reproductions never touch
the configured target.`,
		RunE: runRepl,
	}
}

func runRepl(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	session := &replSession{cmdCtx: cmdCtx, mode: "sql"}
	defer func() {
		if session.sandbox != nil {
			_ = session.sandbox.Close()
		}
	}()

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".querylens_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "querylens> ",
		HistoryFile:     historyFile,
		AutoComplete:    replCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "QueryLens REPL (target: %s)\n", cmdCtx.Cfg.Target.Type)
	_, _ = fmt.Fprintln(out, "Type \\help for commands, exit to leave")
	_, _ = fmt.Fprintln(out)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt("querylens> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 {
			word := strings.ToLower(line)
			if word == "exit" || word == "quit" {
				break
			}
			if replModes[word] {
				session.mode = word
				_, _ = fmt.Fprintf(out, "mode: %s\n", word)
				continue
			}
			if strings.HasPrefix(line, "\\") {
				handleReplCommand(cmd, session, line)
				continue
			}
		}

		// Accumulate multi-line SQL until semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt("      ...> ")
			continue
		}
		rl.SetPrompt("querylens> ")

		query := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()

		if err := session.run(cmd.Context(), cmd, query); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

// run executes one statement in the session's current mode.
func (s *replSession) run(ctx context.Context, cmd *cobra.Command, query string) error {
	if s.mode == "sql" {
		return s.execute(ctx, query)
	}

	model, err := s.engine().BuildModel(query)
	if err != nil {
		return err
	}

	var result engine.Explainer
	switch s.mode {
	case "agg":
		zero := 0.0
		params := engine.AggregateParams{}
		if model.Aggregate == nil {
			params.ExpectedCount = &zero
		} else {
			switch model.Aggregate.Func {
			case engine.AggCount:
				params.ExpectedCount = &zero
			case engine.AggAvg:
				params.ExpectedAvg = &zero
			default:
				params.ExpectedSum = &zero
			}
		}
		result, err = s.engine().Aggregate(ctx, model, params)
	case "join":
		result, err = s.engine().Join(ctx, model, engine.JoinParams{})
	case "predicate":
		result, err = s.engine().Predicate(ctx, model, engine.PredicateParams{})
	}
	if err != nil {
		return err
	}

	report := engine.NewReport(s.mode, query, result)
	return renderReport(s.cmdCtx.Renderer, report, engine.DetailBoth)
}

// execute runs plain SQL against the session database and renders the
// rows.
func (s *replSession) execute(ctx context.Context, query string) error {
	rows, err := s.adapter().Query(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	records, err := engine.ScanRows(rows)
	if err != nil {
		return err
	}

	table := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(cols))
		for i, col := range cols {
			row[i] = formatCell(rec[col])
		}
		table = append(table, row)
	}
	s.cmdCtx.Renderer.Table(cols, table)
	return nil
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func handleReplCommand(cmd *cobra.Command, session *replSession, line string) {
	parts := strings.Fields(line)
	out := cmd.OutOrStdout()

	switch strings.ToLower(parts[0]) {
	case "\\help":
		printReplHelp(out)

	case "\\mode":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(out, "mode: %s\n", session.mode)
			return
		}
		word := strings.ToLower(parts[1])
		if !replModes[word] {
			modes := make([]string, 0, len(replModes))
			for m := range replModes {
				modes = append(modes, m)
			}
			sort.Strings(modes)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown mode %s (want %s)\n", parts[1], strings.Join(modes, ", "))
			return
		}
		session.mode = word
		_, _ = fmt.Fprintf(out, "mode: %s\n", word)

	case "\\seed":
		if len(parts) < 3 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Usage: \\seed <table> <csv-file>")
			return
		}
		if err := session.seed(cmd.Context(), parts[1], parts[2]); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return
		}
		_, _ = fmt.Fprintf(out, "Seeded %s into the sandbox; session now runs against it\n", parts[1])

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type \\help for commands)\n", parts[0])
	}
}

// seed loads a CSV into the in-memory sandbox, creating it on first
// use and pointing the session's engine at it.
func (s *replSession) seed(ctx context.Context, tableName, csvPath string) error {
	if s.sandbox == nil {
		sandboxCfg := adapter.Config{Type: "duckdb"}
		sandbox, err := adapter.NewAdapter(sandboxCfg, s.cmdCtx.Logger)
		if err != nil {
			return err
		}
		if err := sandbox.Connect(ctx, sandboxCfg); err != nil {
			return fmt.Errorf("failed to open sandbox: %w", err)
		}

		eng, err := engine.New(engine.Config{
			Runner:   engine.NewAdapterRunner(sandbox),
			Metadata: sandbox,
			Logger:   s.cmdCtx.Logger,
			Options: engine.Options{
				MaxRows:          s.cmdCtx.Cfg.Analysis.MaxRows,
				MaxRelax:         s.cmdCtx.Cfg.Analysis.MaxRelax,
				FanoutMultiplier: s.cmdCtx.Cfg.Analysis.FanoutMultiplier,
			},
		})
		if err != nil {
			_ = sandbox.Close()
			return err
		}
		s.sandbox = sandbox
		s.sandboxEngine = eng
	}
	return s.sandbox.LoadCSV(ctx, tableName, csvPath)
}

func printReplHelp(w io.Writer) {
	help := `
Commands:
  \help                  Show this help message
  \mode [name]           Show or set the analysis mode
  \seed <table> <csv>    Load a CSV into the in-memory sandbox
  exit / quit            Leave the REPL

Modes (also switchable by typing the bare word):
  sql         Execute statements and show their rows (default)
  agg         Explain the aggregate value (expectation 0)
  join        Explain the join row count
  predicate   Attribute filtering to WHERE conjuncts

Tips:
  - Statements must end with a semicolon (;)
  - Analyses after \seed run against the sandbox, not the target
`
	_, _ = fmt.Fprintln(w, help)
}

func replCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("agg"),
		readline.PcItem("join"),
		readline.PcItem("predicate"),
		readline.PcItem("sql"),
		readline.PcItem("\\help"),
		readline.PcItem("\\mode"),
		readline.PcItem("\\seed"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}
