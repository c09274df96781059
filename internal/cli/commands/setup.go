// Package commands implements the QueryLens subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/querylens/querylens/internal/cli/config"
	"github.com/querylens/querylens/internal/cli/output"
	"github.com/querylens/querylens/internal/engine"
	"github.com/querylens/querylens/pkg/adapter"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Adapter  adapter.Adapter
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a connected adapter
// and an analysis engine over it.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	a, err := connectAdapter(cmd, cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}

	eng, err := newEngine(cmdCtx.Cfg, a, cmdCtx.Logger)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}

	cmdCtx.Adapter = a
	cmdCtx.Engine = eng

	cleanup := func() {
		_ = a.Close()
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without a
// database connection. Useful for commands that only parse or render.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.ParseMode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, falling back to
// environment variables when LoadConfig has not run (tests mostly).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		Target: config.TargetConfig{
			Type: getEnvOrDefault("QUERYLENS_TARGET__TYPE", config.DefaultTargetType),
			Path: os.Getenv("QUERYLENS_TARGET__PATH"),
		},
		Analysis: config.AnalysisConfig{
			MaxRows:          config.DefaultMaxRows,
			MaxRelax:         config.DefaultMaxRelax,
			FanoutMultiplier: config.DefaultFanoutMultiplier,
		},
		OutputFormat: getEnvOrDefault("QUERYLENS_OUTPUT", config.DefaultOutput),
		LogLevel:     config.DefaultLogLevel,
		Verbose:      os.Getenv("QUERYLENS_VERBOSE") == "true",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// connectAdapter opens a connection to the configured target database.
func connectAdapter(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (adapter.Adapter, error) {
	adapterCfg := adapter.Config{
		Type:     cfg.Target.Type,
		Path:     cfg.Target.Path,
		Host:     cfg.Target.Host,
		Port:     cfg.Target.Port,
		Database: cfg.Target.Database,
		Username: cfg.Target.Username,
		Password: cfg.Target.Password,
		Schema:   cfg.Target.Schema,
		Options:  cfg.Target.Options,
	}
	a, err := adapter.NewAdapter(adapterCfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(cmd.Context(), adapterCfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s target: %w", cfg.Target.Type, err)
	}
	return a, nil
}

// newEngine builds an analysis engine over a connected adapter, folding
// in key hints from the config.
func newEngine(cfg *config.Config, a adapter.Adapter, logger *slog.Logger) (*engine.Engine, error) {
	hints, err := loadHints(cfg)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		Runner:   engine.NewAdapterRunner(a),
		Metadata: a,
		Hints:    hints,
		Logger:   logger,
		Options: engine.Options{
			MaxRows:          cfg.Analysis.MaxRows,
			MaxRelax:         cfg.Analysis.MaxRelax,
			FanoutMultiplier: cfg.Analysis.FanoutMultiplier,
		},
	})
}

// loadHints merges inline keys: config with the keys-file; file entries
// win.
func loadHints(cfg *config.Config) (engine.KeyHints, error) {
	hints, err := engine.HintsFromMap(cfg.Keys)
	if err != nil {
		return nil, fmt.Errorf("invalid keys config: %w", err)
	}
	if cfg.KeysFile != "" {
		fileHints, err := engine.LoadKeyHints(cfg.KeysFile)
		if err != nil {
			return nil, err
		}
		hints = hints.Merge(fileHints)
	}
	return hints, nil
}
