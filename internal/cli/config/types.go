// Package config provides layered configuration loading for the
// QueryLens CLI: built-in defaults, querylens.yaml, QUERYLENS_*
// environment variables, and command-line flags, in ascending
// precedence.
package config

// Default configuration values.
const (
	DefaultTargetType       = "duckdb"
	DefaultOutput           = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel         = "info"
	DefaultMaxRows          = 50
	DefaultMaxRelax         = 12
	DefaultFanoutMultiplier = 10.0
)

// TargetConfig describes the database the analyses run against.
type TargetConfig struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	Username string            `koanf:"username"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
}

// AnalysisConfig bounds the engine's diagnostic work.
type AnalysisConfig struct {
	// FanoutMultiplier scales the median per-key product when flagging
	// join fan-out.
	FanoutMultiplier float64 `koanf:"fanout_multiplier"`
	// MaxRows limits breakdown and row-listing diagnostic queries.
	MaxRows int `koanf:"max_rows"`
	// MaxRelax caps the why-not constraint count before the search runs.
	MaxRelax int `koanf:"max_relax"`
}

// Config holds all CLI configuration options.
type Config struct {
	Target       TargetConfig   `koanf:"target"`
	Analysis     AnalysisConfig `koanf:"analysis"`
	OutputFormat string         `koanf:"output"`
	// Keys maps table names to identifying key columns, inline in
	// querylens.yaml.
	Keys map[string]any `koanf:"keys"`
	// KeysFile points at a standalone YAML hints file; entries there
	// override the inline keys.
	KeysFile string `koanf:"keys_file"`
	LogLevel string `koanf:"log_level"`
	Verbose  bool   `koanf:"verbose"`
}
