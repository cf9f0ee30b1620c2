package dump

import (
	"strings"
)

const (
	systemPrefix       = "sqlite_"
	sequenceTable      = "sqlite_sequence"
	statTable          = "sqlite_stat1"
	createVirtualTable = "CREATE VIRTUAL TABLE"
	createTable        = "CREATE TABLE "
)

// Entry is one table row of the schema catalog.
type Entry struct {
	Name string
	Type string
	SQL  string
}

func (e Entry) isSystem() bool { return strings.HasPrefix(e.Name, systemPrefix) }

// isVirtual matches the stored text case-sensitively; SQLite keeps CREATE
// VIRTUAL TABLE as written.
func (e Entry) isVirtual() bool { return strings.HasPrefix(e.SQL, createVirtualTable) }

// isCreateTable matches case-insensitively.
func (e Entry) isCreateTable() bool {
	return len(e.SQL) >= len(createTable) && strings.EqualFold(e.SQL[:len(createTable)], createTable)
}

// hasData reports whether the entry's rows belong in the data section.
func (e Entry) hasData() bool { return !e.isSystem() && !e.isVirtual() }

// SchemaStatement renders the statement recreating e, or "" when e is an
// internal object that must not be recreated.
func SchemaStatement(e Entry) string {
	switch {
	case e.Name == sequenceTable:
		return `DELETE FROM "sqlite_sequence";`
	case e.Name == statTable:
		return `ANALYZE "sqlite_schema";`
	case e.isSystem():
		return ""
	case e.isVirtual():
		qname := QuoteLiteral(e.Name)
		return "INSERT INTO sqlite_schema(type,name,tbl_name,rootpage,sql) VALUES('table','" +
			qname + "','" + qname + "',0,'" + QuoteLiteral(e.SQL) + "');"
	case e.isCreateTable():
		return "CREATE TABLE IF NOT EXISTS " + e.SQL[len(createTable):] + ";"
	default:
		return e.SQL + ";"
	}
}

// QuoteIdent escapes name for use between double quotes.
func QuoteIdent(name string) string { return strings.ReplaceAll(name, `"`, `""`) }

// QuoteLiteral escapes s for use between single quotes.
func QuoteLiteral(s string) string { return strings.ReplaceAll(s, "'", "''") }

// tableInfoQuery returns the column introspection query for table.
func tableInfoQuery(table string) string {
	return `PRAGMA table_info("` + QuoteIdent(table) + `")`
}

// insertGenerator returns a query that yields, in column stmt, one INSERT
// statement per row of table. The table name sits inside a string literal
// there as well, so single quotes are doubled on top of the identifier
// escaping.
func insertGenerator(table string, columns []string) string {
	ident := QuoteIdent(table)
	frags := make([]string, len(columns))
	for i, c := range columns {
		frags[i] = `'||quote("` + QuoteIdent(c) + `")||'`
	}
	var sb strings.Builder
	sb.WriteString(`SELECT 'INSERT INTO "`)
	sb.WriteString(QuoteLiteral(ident))
	sb.WriteString(`" VALUES(`)
	sb.WriteString(strings.Join(frags, ","))
	sb.WriteString(`)' as stmt FROM "`)
	sb.WriteString(ident)
	sb.WriteString(`";`)
	return sb.String()
}
