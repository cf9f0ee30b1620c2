// Package series implements a read-only SQLite virtual table producing an
// arithmetic integer sequence.
//
//	CREATE VIRTUAL TABLE nums USING series(start=1, stop=10, step=2);
//	SELECT value FROM nums; -- 1, 3, 5, 7, 9
package series
