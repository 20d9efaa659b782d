package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Placeholder renders the bind parameter for the 1-based column position i.
type Placeholder func(i int) string

// Dollar renders Postgres-style $n placeholders.
func Dollar(i int) string { return fmt.Sprintf("$%d", i) }

// Question renders SQLite-style ? placeholders.
func Question(int) string { return "?" }

// UpsertConfig defines the parameters for a single-row upsert statement.
type UpsertConfig struct {
	Table        string   // target table (e.g., "news_items")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = keep the existing row
	Returning    []string // columns to return; works on both Postgres and SQLite >= 3.35

	// ReturnExisting makes a conflicting row visible to RETURNING. Without it
	// DO NOTHING returns no row on conflict.
	ReturnExisting bool
}

// UpsertSQL builds INSERT ... ON CONFLICT (keys) for one row.
//
// With no UpdateCols the conflicting row is left untouched. ReturnExisting
// emits a no-op update instead of DO NOTHING.
func UpsertSQL(cfg UpsertConfig, ph Placeholder) (string, error) {
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: upsert: no conflict keys specified")
	}

	values := make([]string, len(cfg.Columns))
	for i := range cfg.Columns {
		values[i] = ph(i + 1)
	}

	var action string
	switch {
	case len(cfg.UpdateCols) > 0:
		setClauses := make([]string, len(cfg.UpdateCols))
		for i, col := range cfg.UpdateCols {
			q := pgx.Identifier{col}.Sanitize()
			setClauses[i] = fmt.Sprintf("%s = EXCLUDED.%s", q, q)
		}
		action = "DO UPDATE SET " + strings.Join(setClauses, ", ")
	case cfg.ReturnExisting:
		q := pgx.Identifier{cfg.ConflictKeys[0]}.Sanitize()
		action = fmt.Sprintf("DO UPDATE SET %s = EXCLUDED.%s", q, q)
	default:
		action = "DO NOTHING"
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table),
		quoteAndJoin(cfg.Columns),
		strings.Join(values, ", "),
		quoteAndJoin(cfg.ConflictKeys),
		action,
	)
	if len(cfg.Returning) > 0 {
		stmt += " RETURNING " + quoteAndJoin(cfg.Returning)
	}
	return stmt, nil
}

// sanitizeTable handles schema-qualified table names like "public.news_items".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
