package sqlite

import (
	"log/slog"

	"github.com/querylens/querylens/pkg/adapter"
)

// init registers the SQLite adapter with the adapter registry.
// This allows the adapter to be created via adapter.NewAdapter("sqlite").
func init() {
	adapter.Register("sqlite", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
