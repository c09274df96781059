// Package duckdb provides a DuckDB database adapter for QueryLens.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/querylens/querylens/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
// An empty path opens an in-memory database. File-backed databases are
// opened read-only unless the "access_mode" option overrides it.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildDSN(cfg)

	a.Logger.Debug("connecting to duckdb", slog.String("dsn", dsn))

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	return nil
}

// buildDSN constructs a DuckDB connection string.
func buildDSN(cfg adapter.Config) string {
	path := cfg.Path
	if path == "" || path == ":memory:" {
		return ""
	}

	accessMode := "read_only"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["access_mode"]; ok {
			accessMode = mode
		}
	}

	return fmt.Sprintf("%s?access_mode=%s", path, accessMode)
}

// GetTableMetadata retrieves metadata for a specified table, including
// primary key flags from PRAGMA table_info.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	meta, err := a.GetTableMetadataCommon(ctx, table, "main", func(int) string { return "?" })
	if err != nil {
		return nil, err
	}

	pks, err := a.primaryKeys(ctx, meta.Name)
	if err != nil {
		// Primary key info is advisory; metadata without it is still usable
		a.Logger.Debug("primary key lookup failed", slog.String("table", table), slog.Any("error", err))
		return meta, nil
	}
	for i := range meta.Columns {
		if pks[meta.Columns[i].Name] {
			meta.Columns[i].PrimaryKey = true
		}
	}

	return meta, nil
}

// primaryKeys returns the set of primary key column names for a table.
func (a *Adapter) primaryKeys(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := a.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info('%s')", table))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	pks := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk bool
		var dflt any
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if pk {
			pks[name] = true
		}
	}
	return pks, rows.Err()
}

// LoadCSV loads data from a CSV file into a table.
// DuckDB will automatically infer the schema from the CSV file.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	// read_csv_auto loads the CSV with automatic schema detection
	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true)",
		tableName,
		absPath,
	)

	if err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}

	return nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
