package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// analysisFlags builds a flag set carrying the subset of root flags these
// tests exercise.
func analysisFlags(t *testing.T) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db-type", "", "")
	flags.String("db-path", "", "")
	flags.String("format", "auto", "")
	flags.Int("max-rows", DefaultMaxRows, "")
	return flags
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultTargetType, cfg.Target.Type)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultMaxRows, cfg.Analysis.MaxRows)
	assert.Equal(t, DefaultMaxRelax, cfg.Analysis.MaxRelax)
	assert.Equal(t, DefaultFanoutMultiplier, cfg.Analysis.FanoutMultiplier)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, GetConfigFileUsed())

	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "querylens.yaml")
	content := `target:
  type: sqlite
  path: movies.db
output: json
keys:
  sales: [sale_id]
analysis:
  max_rows: 25
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Target.Type)
	assert.Equal(t, "movies.db", cfg.Target.Path)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, 25, cfg.Analysis.MaxRows)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultMaxRelax, cfg.Analysis.MaxRelax)
	assert.Contains(t, cfg.Keys, "sales")
	assert.Equal(t, cfgPath, GetConfigFileUsed())
}

func TestLoadConfigUpwardSearch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "querylens.yml"), []byte("output: text\n"), 0600))
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.OutputFormat)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "querylens.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("target:\n  type: sqlite\n"), 0600))

	t.Setenv("QUERYLENS_TARGET__TYPE", "duckdb")
	t.Setenv("QUERYLENS_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "querylens.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("target:\n  type: sqlite\n  path: from_file.db\n"), 0600))

	t.Setenv("QUERYLENS_TARGET__PATH", "from_env.db")

	flags := analysisFlags(t)
	require.NoError(t, flags.Set("db-path", "from_flag.db"))
	require.NoError(t, flags.Set("max-rows", "7"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	assert.Equal(t, "from_flag.db", cfg.Target.Path, "flag should win over env and file")
	assert.Equal(t, 7, cfg.Analysis.MaxRows)
	assert.Equal(t, "sqlite", cfg.Target.Type, "unset flag should not mask lower layers")
}

func TestLoadConfigUnchangedFlagIgnored(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "querylens.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output: markdown\n"), 0600))

	// The format flag exists at its default but was never set.
	cfg, err := LoadConfig(cfgPath, analysisFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "markdown", cfg.OutputFormat)
}

func TestLoadConfigExpandsTargetEnvVars(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "querylens.yaml")
	content := `target:
  type: postgres
  host: db.internal
  username: ${QL_TEST_USER}
  password: ${QL_TEST_PASSWORD}
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))
	t.Setenv("QL_TEST_USER", "reader")
	t.Setenv("QL_TEST_PASSWORD", "secret123")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "reader", cfg.Target.Username)
	assert.Equal(t, "secret123", cfg.Target.Password)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{
			name:      "postgres without host",
			content:   "target:\n  type: postgres\n",
			errSubstr: "target.host is required",
		},
		{
			name:      "unknown output format",
			content:   "output: fancy\n",
			errSubstr: "unknown output format",
		},
		{
			name:      "non-positive max_rows",
			content:   "analysis:\n  max_rows: 0\n",
			errSubstr: "max_rows must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfgPath := filepath.Join(dir, "querylens.yaml")
			require.NoError(t, os.WriteFile(cfgPath, []byte(tt.content), 0600))

			_, err := LoadConfig(cfgPath, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("QL_TEST_ONE", "value_one")
	t.Setenv("QL_TEST_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single variable", input: "${QL_TEST_ONE}", expected: "value_one"},
		{name: "multiple variables", input: "${QL_TEST_ONE}/${QL_TEST_TWO}", expected: "value_one/value_two"},
		{name: "variable in path", input: "/data/${QL_TEST_ONE}/file", expected: "/data/value_one/file"},
		{name: "unset variable stays as-is", input: "${QL_UNSET_VARIABLE}", expected: "${QL_UNSET_VARIABLE}"},
		{name: "no variables", input: "plain string", expected: "plain string"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Target:       TargetConfig{Type: "duckdb"},
			Analysis:     AnalysisConfig{MaxRows: 50, MaxRelax: 12, FanoutMultiplier: 10},
			OutputFormat: "auto",
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing type", func(t *testing.T) {
		cfg := valid()
		cfg.Target.Type = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := valid()
		cfg.Target.Port = 70000
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})

	t.Run("md is a valid format", func(t *testing.T) {
		cfg := valid()
		cfg.OutputFormat = "md"
		assert.NoError(t, cfg.Validate())
	})
}
