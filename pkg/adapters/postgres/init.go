package postgres

import (
	"log/slog"

	"github.com/querylens/querylens/pkg/adapter"
)

// init registers the PostgreSQL adapter with the adapter registry.
// This allows the adapter to be created via adapter.NewAdapter("postgres").
func init() {
	adapter.Register("postgres", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
