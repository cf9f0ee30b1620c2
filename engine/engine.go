package engine

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:".
func Open(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

// Queries holds the query strings used by DB. It is passed by value so a
// DB never observes later changes made by the caller.
type Queries struct {
	// Tables lists user table names, one per row, in the first column.
	Tables string
	// Catalog lists name, type and sql of the table entries of the schema
	// catalog in name order. The dump reads its object list from it.
	Catalog string
}

// DefaultQueries returns the stock query set.
func DefaultQueries() Queries {
	return Queries{
		Tables:  `SELECT name FROM sqlite_schema WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`,
		Catalog: `SELECT name, type, sql FROM sqlite_schema WHERE sql IS NOT NULL AND type == 'table' ORDER BY name`,
	}
}

// Result is a fully materialized result set. The zero value means no rows.
type Result struct {
	Columns []string
	Values  [][]any
}

// Empty reports whether the result carries no rows.
func (r Result) Empty() bool { return len(r.Values) == 0 }

// Row is a single result row keyed by column name.
type Row map[string]any

// DB is the query surface over a *sql.DB.
type DB struct {
	db      *sql.DB
	queries Queries
}

// New wraps db. Empty fields of queries fall back to DefaultQueries.
func New(db *sql.DB, queries Queries) *DB {
	def := DefaultQueries()
	if queries.Tables == "" {
		queries.Tables = def.Tables
	}
	if queries.Catalog == "" {
		queries.Catalog = def.Catalog
	}
	return &DB{db: db, queries: queries}
}

// SQL returns the underlying handle.
func (d *DB) SQL() *sql.DB { return d.db }

// Queries returns the query set in use.
func (d *DB) Queries() Queries { return d.queries }

// Execute runs query and returns all of its rows. An empty query returns
// the empty Result without reaching the driver, which rejects it.
func (d *DB) Execute(ctx context.Context, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, nil
	}
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("engine: query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("engine: columns: %w", err)
	}
	res := Result{Columns: cols}
	for rows.Next() {
		vals, err := scanValues(rows, len(cols))
		if err != nil {
			return Result{}, err
		}
		res.Values = append(res.Values, vals)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("engine: rows: %w", err)
	}
	return res, nil
}

// Each returns a single-pass iterator over the rows of query. The query is
// issued when iteration starts; breaking out of the loop closes the cursor.
// A failure is yielded as the last element with a nil Row.
func (d *DB) Each(ctx context.Context, query string) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if strings.TrimSpace(query) == "" {
			return
		}
		rows, err := d.db.QueryContext(ctx, query)
		if err != nil {
			yield(nil, fmt.Errorf("engine: query failed: %w", err))
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			yield(nil, fmt.Errorf("engine: columns: %w", err))
			return
		}
		for rows.Next() {
			vals, err := scanValues(rows, len(cols))
			if err != nil {
				yield(nil, err)
				return
			}
			row := make(Row, len(cols))
			for i, c := range cols {
				row[c] = vals[i]
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("engine: rows: %w", err))
		}
	}
}

// Tables returns user table names in name order.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	res, err := d.Execute(ctx, d.queries.Tables)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(res.Values))
	for _, v := range res.Values {
		if len(v) == 0 {
			continue
		}
		names = append(names, asString(v[0]))
	}
	return names, nil
}

// ExecScript executes a multi-statement script such as a dump on a
// dedicated connection. When the script fails, a transaction it opened is
// rolled back before the connection returns to the pool.
func (d *DB) ExecScript(ctx context.Context, script string) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("engine: exec script: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, script); err != nil {
		// fails with "no transaction is active" when the script never began one
		if _, rerr := conn.ExecContext(context.Background(), "ROLLBACK"); rerr == nil {
			log.Printf("[DEBUG] rolled back failed script")
		}
		return fmt.Errorf("engine: exec script: %w", err)
	}
	log.Printf("[DEBUG] executed script, %d bytes", len(script))
	return nil
}

func scanValues(rows *sql.Rows, n int) ([]any, error) {
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("engine: scan: %w", err)
	}
	return vals, nil
}

func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
