// Package dump renders a live SQLite database as a SQL text script that
// recreates its schema and row data.
//
// The script is bracketed by BEGIN TRANSACTION / PRAGMA writable_schema=ON
// and PRAGMA writable_schema=OFF / COMMIT. Schema statements come first in
// catalog name order, followed by one INSERT per row of every ordinary table.
// Row values are literal-encoded by SQLite's own quote() function.
//
// Objects are emitted in name order with no dependency analysis, so a
// foreign key referencing a table that sorts later is only restorable while
// foreign key enforcement is off.
package dump
