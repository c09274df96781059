package config

import "fmt"

// validOutputs lists the accepted output format values.
var validOutputs = map[string]bool{
	"auto": true, "text": true, "markdown": true, "md": true, "json": true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Target.Type == "" {
		return fmt.Errorf("target.type is required\nHint: Set target.type in querylens.yaml or pass --db-type")
	}
	if c.Target.Type == "postgres" && c.Target.Host == "" {
		return fmt.Errorf("target.host is required for postgres\nHint: Set target.host in querylens.yaml or pass --db-host")
	}
	if c.Target.Port < 0 || c.Target.Port > 65535 {
		return fmt.Errorf("target.port %d is out of range", c.Target.Port)
	}
	if !validOutputs[c.OutputFormat] {
		return fmt.Errorf("unknown output format %q\nHint: Valid formats: auto, text, markdown, json", c.OutputFormat)
	}
	if c.Analysis.MaxRows <= 0 {
		return fmt.Errorf("analysis.max_rows must be positive, got %d", c.Analysis.MaxRows)
	}
	if c.Analysis.MaxRelax <= 0 {
		return fmt.Errorf("analysis.max_relax must be positive, got %d", c.Analysis.MaxRelax)
	}
	if c.Analysis.FanoutMultiplier <= 0 {
		return fmt.Errorf("analysis.fanout_multiplier must be positive, got %g", c.Analysis.FanoutMultiplier)
	}
	return nil
}
