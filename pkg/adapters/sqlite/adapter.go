// Package sqlite provides a SQLite database adapter for QueryLens, backed
// by the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/querylens/querylens/pkg/adapter"

	_ "modernc.org/sqlite" // sqlite driver
)

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
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
	return "sqlite"
}

// Connect establishes a connection to SQLite.
// An empty path opens an in-memory database. File-backed databases are
// opened read-only unless the "mode" option overrides it.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildDSN(cfg)

	a.Logger.Debug("connecting to sqlite", slog.String("dsn", dsn))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	return nil
}

// buildDSN constructs a SQLite connection string.
func buildDSN(cfg adapter.Config) string {
	path := cfg.Path
	if path == "" || path == ":memory:" {
		return ":memory:"
	}

	mode := "ro"
	if cfg.Options != nil {
		if m, ok := cfg.Options["mode"]; ok {
			mode = m
		}
	}
	return fmt.Sprintf("%s?mode=%s", path, mode)
}

// GetTableMetadata retrieves metadata for a specified table from
// PRAGMA table_info, including primary key flags.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	_, name := adapter.ParseQualifiedName(table, "main")

	rows, err := a.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to query table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []adapter.Column
	for rows.Next() {
		var cid, notNull, pk int
		var colName, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		columns = append(columns, adapter.Column{
			Name:       colName,
			Type:       colType,
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
			Position:   cid + 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	meta := &adapter.Metadata{
		Schema:  "main",
		Name:    name,
		Columns: columns,
	}
	var rowCount int64
	if err := a.DB.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(name))).Scan(&rowCount); err == nil { //nolint:gosec // Table name comes from metadata
		meta.RowCount = rowCount
	}
	return meta, nil
}

// LoadCSV loads data from a CSV file into a table. Every column is
// created as TEXT; the file's first row names the columns.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	f, err := os.Open(filePath) //nolint:gosec // Path is operator-supplied
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make([]string, len(header))
	defs := make([]string, len(header))
	placeholders := make([]string, len(header))
	for i, name := range header {
		cols[i] = quoteIdent(strings.TrimSpace(name))
		defs[i] = cols[i] + " TEXT"
		placeholders[i] = "?"
	}

	if err := a.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(tableName))); err != nil {
		return err
	}
	if err := a.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(tableName), strings.Join(defs, ", "))); err != nil {
		return err
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", //nolint:gosec // Identifiers are quoted
		quoteIdent(tableName), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	stmt, err := a.DB.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare CSV insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV record: %w", err)
		}
		args := make([]any, len(cols))
		for i := range cols {
			if i < len(record) {
				args[i] = record[i]
			} else {
				args[i] = ""
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert CSV record: %w", err)
		}
	}
	return nil
}

// quoteIdent double-quotes an identifier for SQLite.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
