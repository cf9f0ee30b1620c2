package dump

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-workbench/engine"
)

var catalogQuery = engine.DefaultQueries().Catalog

// fakeSource serves canned results and records the queries it receives.
type fakeSource struct {
	catalog string
	results map[string]engine.Result
	rows    map[string][]engine.Row
	fail    map[string]error
	queries []string
}

func (f *fakeSource) Execute(_ context.Context, query string) (engine.Result, error) {
	f.queries = append(f.queries, query)
	if err := f.fail[query]; err != nil {
		return engine.Result{}, err
	}
	return f.results[query], nil
}

func (f *fakeSource) Queries() engine.Queries {
	return engine.Queries{Catalog: f.catalog}
}

func (f *fakeSource) Each(_ context.Context, query string) iter.Seq2[engine.Row, error] {
	return func(yield func(engine.Row, error) bool) {
		f.queries = append(f.queries, query)
		for _, r := range f.rows[query] {
			if !yield(r, nil) {
				return
			}
		}
		if err := f.fail[query]; err != nil {
			yield(nil, err)
		}
	}
}

func catalogResult(entries ...Entry) engine.Result {
	res := engine.Result{Columns: []string{"name", "type", "sql"}}
	for _, e := range entries {
		res.Values = append(res.Values, []any{e.Name, e.Type, e.SQL})
	}
	return res
}

func tableInfoResult(columns ...string) engine.Result {
	res := engine.Result{Columns: []string{"cid", "name", "type", "notnull", "dflt_value", "pk"}}
	for i, c := range columns {
		res.Values = append(res.Values, []any{int64(i), c, "", int64(0), nil, int64(0)})
	}
	return res
}

func stmtRows(stmts ...string) []engine.Row {
	out := make([]engine.Row, len(stmts))
	for i, s := range stmts {
		out[i] = engine.Row{"stmt": s}
	}
	return out
}

func TestToSQL_Scenario(t *testing.T) {
	gen := `SELECT 'INSERT INTO "x" VALUES('||quote("id")||','||quote("name")||')' as stmt FROM "x";`
	src := &fakeSource{
		results: map[string]engine.Result{
			catalogQuery:             catalogResult(Entry{Name: "x", Type: "table", SQL: `CREATE TABLE "x" (id INTEGER, name TEXT)`}),
			`PRAGMA table_info("x")`: tableInfoResult("id", "name"),
		},
		rows: map[string][]engine.Row{
			gen: stmtRows(`INSERT INTO "x" VALUES(1,'Alice')`, `INSERT INTO "x" VALUES(2,NULL)`),
		},
	}

	got, err := ToSQL(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"BEGIN TRANSACTION;",
		"PRAGMA writable_schema=ON;",
		`CREATE TABLE IF NOT EXISTS "x" (id INTEGER, name TEXT);`,
		`INSERT INTO "x" VALUES(1,'Alice');`,
		`INSERT INTO "x" VALUES(2,NULL);`,
		"PRAGMA writable_schema=OFF;",
		"COMMIT;",
	}, "\n"), got)
	assert.Equal(t, []string{catalogQuery, `PRAGMA table_info("x")`, gen}, src.queries)
}

func TestToSQL_EmptyCatalog(t *testing.T) {
	src := &fakeSource{results: map[string]engine.Result{}}
	got, err := ToSQL(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Equal(t, []string{catalogQuery}, src.queries, "no further queries for an empty catalog")
}

func TestToSQL_QuotedIdentifiers(t *testing.T) {
	src := &fakeSource{
		results: map[string]engine.Result{
			catalogQuery:                   catalogResult(Entry{Name: `we"ird`, Type: "table", SQL: `CREATE TABLE "we""ird"(a)`}),
			`PRAGMA table_info("we""ird")`: tableInfoResult("a"),
		},
	}
	_, err := ToSQL(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, src.queries, 3)
	assert.Equal(t, `PRAGMA table_info("we""ird")`, src.queries[1])
	assert.Contains(t, src.queries[2], `INSERT INTO "we""ird" VALUES(`)
	assert.True(t, strings.HasSuffix(src.queries[2], `FROM "we""ird";`))
}

func TestToSQL_SkipsDataOfSystemAndVirtualTables(t *testing.T) {
	src := &fakeSource{
		results: map[string]engine.Result{
			catalogQuery: catalogResult(
				Entry{Name: "nums", Type: "table", SQL: "CREATE VIRTUAL TABLE nums USING series(stop=3)"},
				Entry{Name: "sqlite_sequence", Type: "table", SQL: "CREATE TABLE sqlite_sequence(name,seq)"},
				Entry{Name: "sqlite_stat1", Type: "table", SQL: "CREATE TABLE sqlite_stat1(tbl,idx,stat)"},
				Entry{Name: "sqlite_stat4", Type: "table", SQL: "CREATE TABLE sqlite_stat4(tbl)"},
			),
		},
	}
	got, err := ToSQL(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{catalogQuery}, src.queries)
	assert.Equal(t, strings.Join([]string{
		"BEGIN TRANSACTION;",
		"PRAGMA writable_schema=ON;",
		"INSERT INTO sqlite_schema(type,name,tbl_name,rootpage,sql) VALUES('table','nums','nums',0,'CREATE VIRTUAL TABLE nums USING series(stop=3)');",
		`DELETE FROM "sqlite_sequence";`,
		`ANALYZE "sqlite_schema";`,
		"PRAGMA writable_schema=OFF;",
		"COMMIT;",
	}, "\n"), got)
}

func TestToSQL_ErrorsAbort(t *testing.T) {
	boom := errors.New("boom")

	t.Run("catalog", func(t *testing.T) {
		src := &fakeSource{fail: map[string]error{catalogQuery: boom}}
		got, err := ToSQL(context.Background(), src)
		require.ErrorIs(t, err, boom)
		assert.Empty(t, got)
	})

	t.Run("table info", func(t *testing.T) {
		src := &fakeSource{
			results: map[string]engine.Result{catalogQuery: catalogResult(Entry{Name: "t", Type: "table", SQL: "CREATE TABLE t(a)"})},
			fail:    map[string]error{`PRAGMA table_info("t")`: boom},
		}
		got, err := ToSQL(context.Background(), src)
		require.ErrorIs(t, err, boom)
		assert.Empty(t, got)
	})

	t.Run("mid stream", func(t *testing.T) {
		gen := insertGenerator("t", []string{"a"})
		src := &fakeSource{
			results: map[string]engine.Result{
				catalogQuery:             catalogResult(Entry{Name: "t", Type: "table", SQL: "CREATE TABLE t(a)"}),
				`PRAGMA table_info("t")`: tableInfoResult("a"),
			},
			rows: map[string][]engine.Row{gen: stmtRows(`INSERT INTO "t" VALUES(1)`)},
			fail: map[string]error{gen: boom},
		}
		got, err := ToSQL(context.Background(), src)
		require.ErrorIs(t, err, boom)
		assert.Empty(t, got, "no partial script")
	})
}

func TestSchema_Fake(t *testing.T) {
	src := &fakeSource{
		results: map[string]engine.Result{
			catalogQuery: catalogResult(
				Entry{Name: "a", Type: "table", SQL: "CREATE TABLE a(x)"},
				Entry{Name: "sqlite_stat4", Type: "table", SQL: "CREATE TABLE sqlite_stat4(tbl)"},
			),
		},
	}
	got, err := Schema(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS a(x);", got)
	assert.Equal(t, []string{catalogQuery}, src.queries, "schema never reads data")
}

func TestToSQL_UsesSourceCatalogQuery(t *testing.T) {
	custom := `SELECT name, type, sql FROM sqlite_schema WHERE type = 'table' AND name = 'a'`
	src := &fakeSource{
		catalog: custom,
		results: map[string]engine.Result{
			custom:                   catalogResult(Entry{Name: "a", Type: "table", SQL: "CREATE TABLE a(x)"}),
			`PRAGMA table_info("a")`: tableInfoResult("x"),
		},
	}
	got, err := ToSQL(context.Background(), src)
	require.NoError(t, err)
	assert.Contains(t, got, "CREATE TABLE IF NOT EXISTS a(x);")
	require.NotEmpty(t, src.queries)
	assert.Equal(t, custom, src.queries[0])
	assert.NotContains(t, src.queries, catalogQuery)
}
