package series

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"modernc.org/sqlite/vtab"
)

// MaxRows caps the rows a single table can produce.
const MaxRows = 1 << 20

// Options are the bounds of a series table.
type Options struct {
	Start int64
	Stop  int64
	Step  int64
}

// Module implements vtab.Module for the series virtual table.
type Module struct{}

// Table is a single series virtual table instance.
type Table struct {
	name string
	opts Options
}

// Cursor iterates over the values of a Table.
type Cursor struct {
	table *Table
	value int64
	rowid int64
	eof   bool
}

// Register registers the series module with the driver. Connections opened
// after this call can create and read series tables.
func Register(db *sql.DB) error {
	if err := vtab.RegisterModule(db, "series", &Module{}); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

// Create declares a new series table.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

// Connect attaches to an existing series table; the bounds are re-read from
// the stored module arguments.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *Module) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("series: need at least 3 args, got %d", len(args))
	}
	opts, err := ParseOptions(args[3:])
	if err != nil {
		return nil, err
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(value INTEGER)", args[2])); err != nil {
		return nil, err
	}
	return &Table{name: args[2], opts: opts}, nil
}

// ParseOptions reads start=, stop= and step= arguments. Defaults are
// start=0, stop=0, step=1.
func ParseOptions(args []string) (Options, error) {
	opts := Options{Step: 1}
	for _, raw := range args {
		a := strings.TrimSpace(raw)
		if a == "" {
			continue
		}
		parts := strings.SplitN(a, "=", 2)
		if len(parts) != 2 {
			return opts, fmt.Errorf("series: argument %q is not key=value", a)
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		n, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(parts[1]), `'"`), 10, 64)
		if err != nil {
			return opts, fmt.Errorf("series: invalid %s: %w", key, err)
		}
		switch key {
		case "start":
			opts.Start = n
		case "stop":
			opts.Stop = n
		case "step":
			opts.Step = n
		default:
			return opts, fmt.Errorf("series: unknown argument %q", key)
		}
	}
	if opts.Step == 0 {
		return opts, fmt.Errorf("series: step must not be 0")
	}
	return opts, nil
}

// Len returns the number of values the options produce, capped at MaxRows.
// The span is computed in uint64 so the full int64 range does not overflow.
func (o Options) Len() int64 {
	var span, step uint64
	switch {
	case o.Step > 0 && o.Stop >= o.Start:
		span, step = uint64(o.Stop)-uint64(o.Start), uint64(o.Step)
	case o.Step < 0 && o.Stop <= o.Start:
		span, step = uint64(o.Start)-uint64(o.Stop), uint64(-(o.Step+1))+1
	default:
		return 0
	}
	if n := span / step; n < MaxRows {
		return int64(n) + 1
	}
	return MaxRows
}

// BestIndex accepts every plan as a full scan; filtering is left to SQLite.
func (t *Table) BestIndex(info *vtab.IndexInfo) error { return nil }

// Open allocates a new cursor.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect releases nothing; a table holds no resources.
func (t *Table) Disconnect() error { return nil }

// Destroy releases nothing; a table has no shadow storage.
func (t *Table) Destroy() error { return nil }

// Filter rewinds the cursor to the first value.
func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.value = c.table.opts.Start
	c.rowid = 1
	c.eof = c.table.opts.Len() <= 0
	return nil
}

// Next advances the cursor.
func (c *Cursor) Next() error {
	if c.eof {
		return nil
	}
	if c.rowid >= c.table.opts.Len() {
		c.eof = true
		return nil
	}
	c.value += c.table.opts.Step
	c.rowid++
	return nil
}

// Eof reports end-of-rows.
func (c *Cursor) Eof() bool { return c.eof }

// Column returns the current value for column 0.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.eof {
		return nil, fmt.Errorf("series: Column past end")
	}
	if col == 0 {
		return c.value, nil
	}
	return nil, fmt.Errorf("series: unsupported column %d", col)
}

// Rowid returns the 1-based position of the current value.
func (c *Cursor) Rowid() (int64, error) { return c.rowid, nil }

// Close releases resources.
func (c *Cursor) Close() error { c.eof = true; return nil }
