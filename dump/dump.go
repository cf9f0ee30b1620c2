package dump

import (
	"context"
	"fmt"
	"iter"
	"log"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/viant/sqlite-workbench/engine"
)

// Source is the query surface the dump needs. *engine.DB satisfies it.
// The object list is read with Queries().Catalog, which must return name,
// type and sql columns in name order.
type Source interface {
	Execute(ctx context.Context, query string) (engine.Result, error)
	Each(ctx context.Context, query string) iter.Seq2[engine.Row, error]
	Queries() engine.Queries
}

var _ Source = (*engine.DB)(nil)

// ToSQL returns a script recreating the schema and data of src, or "" when
// the catalog has no table entries. Any query failure aborts the dump.
func ToSQL(ctx context.Context, src Source) (string, error) {
	entries, err := catalog(ctx, src)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	lines := []string{"BEGIN TRANSACTION;", "PRAGMA writable_schema=ON;"}
	for _, e := range entries {
		if stmt := SchemaStatement(e); stmt != "" {
			lines = append(lines, stmt)
		}
	}
	for _, e := range entries {
		if !e.hasData() {
			continue
		}
		inserts, err := tableData(ctx, src, e.Name)
		if err != nil {
			return "", err
		}
		lines = append(lines, inserts...)
	}
	lines = append(lines, "PRAGMA writable_schema=OFF;", "COMMIT;")
	return strings.Join(lines, "\n"), nil
}

// Schema returns only the schema statements ToSQL would emit, without the
// transaction bookends and without data.
func Schema(ctx context.Context, src Source) (string, error) {
	entries, err := catalog(ctx, src)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, e := range entries {
		if stmt := SchemaStatement(e); stmt != "" {
			lines = append(lines, stmt)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// Hashcode returns the xxhash64 of the dump of src. Databases with the same
// schema text and row data in the same storage order hash equally.
func Hashcode(ctx context.Context, src Source) (uint64, error) {
	text, err := ToSQL(ctx, src)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64String(text), nil
}

func catalog(ctx context.Context, src Source) ([]Entry, error) {
	query := src.Queries().Catalog
	if query == "" {
		query = engine.DefaultQueries().Catalog
	}
	res, err := src.Execute(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dump: read catalog: %w", err)
	}
	name, typ, sqlText := columnIndex(res.Columns, "name"), columnIndex(res.Columns, "type"), columnIndex(res.Columns, "sql")
	if !res.Empty() && (name < 0 || typ < 0 || sqlText < 0) {
		return nil, fmt.Errorf("dump: catalog columns %v, want name, type, sql", res.Columns)
	}
	entries := make([]Entry, 0, len(res.Values))
	for _, row := range res.Values {
		entries = append(entries, Entry{
			Name: asString(row[name]),
			Type: asString(row[typ]),
			SQL:  asString(row[sqlText]),
		})
	}
	return entries, nil
}

// tableData returns the INSERT statements for every row of table.
func tableData(ctx context.Context, src Source, table string) ([]string, error) {
	info, err := src.Execute(ctx, tableInfoQuery(table))
	if err != nil {
		return nil, fmt.Errorf("dump: table info %q: %w", table, err)
	}
	nameCol := columnIndex(info.Columns, "name")
	if nameCol < 0 {
		return nil, fmt.Errorf("dump: table info %q has no name column", table)
	}
	columns := make([]string, 0, len(info.Values))
	for _, row := range info.Values {
		columns = append(columns, asString(row[nameCol]))
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("dump: table %q has no columns", table)
	}

	var out []string
	for row, err := range src.Each(ctx, insertGenerator(table, columns)) {
		if err != nil {
			return nil, fmt.Errorf("dump: read %q: %w", table, err)
		}
		out = append(out, asString(row["stmt"])+";")
	}
	log.Printf("[DEBUG] dump %q, %d rows", table, len(out))
	return out, nil
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
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
