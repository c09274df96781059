package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyHints maps lowercased table names to their identifying key columns.
type KeyHints map[string][]string

// LoadKeyHints reads a YAML hints file mapping table names to key
// columns. Both scalar and list values are accepted, and the map may sit
// under a top-level keys: section:
//
//	movies: id
//	sales: [sale_id, line_no]
func LoadKeyHints(path string) (KeyHints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key hints: %w", err)
	}
	hints, err := ParseKeyHints(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key hints %s: %w", path, err)
	}
	return hints, nil
}

// ParseKeyHints parses YAML key-hint content.
func ParseKeyHints(data []byte) (KeyHints, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if nested, ok := raw["keys"].(map[string]any); ok && len(raw) == 1 {
		raw = nested
	}
	return HintsFromMap(raw)
}

// HintsFromMap converts a decoded table-to-columns mapping (such as the
// keys: section of querylens.yaml) into KeyHints.
func HintsFromMap(raw map[string]any) (KeyHints, error) {
	hints := make(KeyHints, len(raw))
	for table, v := range raw {
		cols, err := hintColumns(table, v)
		if err != nil {
			return nil, err
		}
		hints[strings.ToLower(table)] = cols
	}
	return hints, nil
}

func hintColumns(table string, v any) ([]string, error) {
	switch cols := v.(type) {
	case string:
		return []string{cols}, nil
	case []any:
		out := make([]string, 0, len(cols))
		for _, c := range cols {
			s, ok := c.(string)
			if !ok {
				return nil, fmt.Errorf("hint for %s: expected column names, got %v", table, c)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("hint for %s: expected a column name or list, got %T", table, v)
	}
}

// Lookup returns the hinted key columns for a table, matching either the
// bare or schema-qualified name case-insensitively.
func (h KeyHints) Lookup(table string) []string {
	if h == nil {
		return nil
	}
	t := strings.ToLower(table)
	if cols, ok := h[t]; ok {
		return cols
	}
	if i := strings.LastIndex(t, "."); i >= 0 {
		if cols, ok := h[t[i+1:]]; ok {
			return cols
		}
	}
	return nil
}

// Merge folds other into a copy of h; entries in other win.
func (h KeyHints) Merge(other KeyHints) KeyHints {
	if len(other) == 0 {
		return h
	}
	out := make(KeyHints, len(h)+len(other))
	for k, v := range h {
		out[k] = v
	}
	for k, v := range other {
		out[strings.ToLower(k)] = v
	}
	return out
}

// resolveKeyColumns picks the identifying key for a relation: an
// explicit --key wins, then the configured hints, then the table's
// primary key from metadata.
func (e *Engine) resolveKeyColumns(ctx context.Context, rel Relation, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	if cols := e.hints.Lookup(rel.Table); len(cols) > 0 {
		e.logger.Debug("resolved key from hints", "table", rel.Table, "columns", strings.Join(cols, ","))
		return cols, nil
	}
	if e.metadata != nil {
		meta, err := e.metadata.GetTableMetadata(ctx, rel.Table)
		if err != nil {
			e.logger.Debug("metadata lookup failed", "table", rel.Table, "error", err)
		} else if pk := meta.PrimaryKeyColumns(); len(pk) > 0 {
			e.logger.Debug("resolved key from primary key", "table", rel.Table, "columns", strings.Join(pk, ","))
			return pk, nil
		}
	}
	return nil, &InvalidParameterError{
		Param:  "--key",
		Reason: fmt.Sprintf("cannot infer an identifying key for %s\nHint: Pass --key <column> or add a keys: entry for %s in querylens.yaml", rel.Table, rel.Table),
	}
}
