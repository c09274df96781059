// Package postgres provides a PostgreSQL database adapter for QueryLens.
package postgres

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/querylens/querylens/pkg/adapter"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// insertBatchSize bounds the number of rows per INSERT when loading CSVs.
const insertBatchSize = 500

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
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
	return "postgres"
}

// Connect establishes a connection to PostgreSQL. The session defaults to
// read-only transactions; the "read_only" option set to "false" opts out.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildDSN(cfg)

	a.Logger.Debug("connecting to postgres",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	return nil
}

// buildDSN constructs a key=value connection string for pgx.
func buildDSN(cfg adapter.Config) string {
	parts := []string{}
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", key, value))
		}
	}
	add("host", cfg.Host)
	if cfg.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", cfg.Port))
	}
	add("dbname", cfg.Database)
	add("user", cfg.Username)
	add("password", cfg.Password)
	if cfg.Schema != "" {
		add("search_path", cfg.Schema)
	}

	readOnly := true
	extra := make([]string, 0, len(cfg.Options))
	for key, value := range cfg.Options {
		if key == "read_only" {
			readOnly = value != "false"
			continue
		}
		extra = append(extra, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(extra)
	parts = append(parts, extra...)
	if readOnly {
		parts = append(parts, "default_transaction_read_only=on")
	}

	return strings.Join(parts, " ")
}

// GetTableMetadata retrieves metadata for a specified table, including
// primary key flags from the information schema.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	defaultSchema := a.Cfg.Schema
	if defaultSchema == "" {
		defaultSchema = "public"
	}
	meta, err := a.GetTableMetadataCommon(ctx, table, defaultSchema, func(n int) string {
		return fmt.Sprintf("$%d", n)
	})
	if err != nil {
		return nil, err
	}

	pks, err := a.primaryKeys(ctx, meta.Schema, meta.Name)
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
func (a *Adapter) primaryKeys(ctx context.Context, schema, table string) (map[string]bool, error) {
	query := `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`
	rows, err := a.DB.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	pks := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		pks[name] = true
	}
	return pks, rows.Err()
}

// LoadCSV loads data from a CSV file into a table using batched INSERTs.
// Every column is created as TEXT; the file's first row names the columns.
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
	for i, name := range header {
		cols[i] = quoteIdent(strings.TrimSpace(name))
		defs[i] = cols[i] + " TEXT"
	}

	if err := a.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(tableName))); err != nil {
		return err
	}
	if err := a.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(tableName), strings.Join(defs, ", "))); err != nil {
		return err
	}

	batch := make([][]string, 0, insertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := a.insertBatch(ctx, tableName, cols, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV record: %w", err)
		}
		batch = append(batch, record)
		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// insertBatch issues one multi-row parameterized INSERT.
func (a *Adapter) insertBatch(ctx context.Context, tableName string, cols []string, batch [][]string) error {
	var sb strings.Builder
	args := make([]any, 0, len(batch)*len(cols))
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", quoteIdent(tableName), strings.Join(cols, ", "))
	for ri, record := range batch {
		if ri > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for ci := range cols {
			if ci > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+1)
			if ci < len(record) {
				args = append(args, record[ci])
			} else {
				args = append(args, "")
			}
		}
		sb.WriteByte(')')
	}
	if _, err := a.DB.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert CSV batch: %w", err)
	}
	return nil
}

// quoteIdent double-quotes an identifier for PostgreSQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
