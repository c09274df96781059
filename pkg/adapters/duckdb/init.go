package duckdb

import (
	"log/slog"

	"github.com/querylens/querylens/pkg/adapter"
)

// init registers the DuckDB adapter with the adapter registry.
// This allows the adapter to be created via adapter.NewAdapter("duckdb").
func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
