package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"

	"github.com/viant/sqlite-workbench/dump"
	"github.com/viant/sqlite-workbench/engine"
	"github.com/viant/sqlite-workbench/series"
)

type options struct {
	DB  string `short:"d" long:"db" env:"SQLWB_DB" required:"true" description:"sqlite database file, or :memory:"`
	Dbg bool   `long:"dbg" description:"debug mode"`

	DumpCmd struct {
		Out string `short:"o" long:"out" description:"write the dump to a file instead of stdout"`
	} `command:"dump" description:"dump schema and data as a SQL script"`

	SchemaCmd struct{} `command:"schema" description:"print schema statements only"`

	ExecCmd struct {
		PositionalArgs struct {
			Query string `positional-arg-name:"query" description:"SQL to execute, - reads it from stdin"`
		} `positional-args:"yes" required:"yes"`
	} `command:"exec" description:"execute a query and print the result"`

	TablesCmd struct{} `command:"tables" description:"list user tables"`

	HashCmd struct{} `command:"hash" description:"print the content hash of the database"`

	RestoreCmd struct {
		PositionalArgs struct {
			File string `positional-arg-name:"file" description:"SQL script to run against the database"`
		} `positional-args:"yes" required:"yes"`
	} `command:"restore" description:"run a dump script against the database"`
}

var revision = "latest"

var exitFunc = os.Exit

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		exitFunc(1) // can be redefined in tests
		return
	}
	setupLog(opts.Dbg)
	log.Printf("[DEBUG] sqlwb %s", revision)

	if err := run(context.Background(), p, opts, os.Stdin, os.Stdout); err != nil {
		log.Printf("[ERROR] %v", err)
		exitFunc(1)
	}
}

func run(ctx context.Context, p *flags.Parser, opts options, stdin io.Reader, stdout io.Writer) error {
	if p.Active == nil {
		return fmt.Errorf("no command given")
	}
	if err := engine.RegisterFunctions(); err != nil {
		return fmt.Errorf("can't register functions: %w", err)
	}
	sqlDB, err := engine.Open(opts.DB)
	if err != nil {
		return fmt.Errorf("can't open %s: %w", opts.DB, err)
	}
	defer sqlDB.Close()
	// a single connection keeps :memory: databases and module state consistent
	sqlDB.SetMaxOpenConns(1)
	if err := series.Register(sqlDB); err != nil {
		return fmt.Errorf("can't register series module: %w", err)
	}
	db := engine.New(sqlDB, engine.DefaultQueries())

	switch p.Active.Name {
	case "dump":
		return runDump(ctx, db, opts.DumpCmd.Out, stdout)
	case "schema":
		text, err := dump.Schema(ctx, db)
		if err != nil {
			return fmt.Errorf("schema failed: %w", err)
		}
		return printText(stdout, text)
	case "exec":
		return runExec(ctx, db, opts.ExecCmd.PositionalArgs.Query, stdin, stdout)
	case "tables":
		names, err := db.Tables(ctx)
		if err != nil {
			return fmt.Errorf("can't list tables: %w", err)
		}
		for _, n := range names {
			fmt.Fprintln(stdout, n)
		}
		return nil
	case "hash":
		h, err := dump.Hashcode(ctx, db)
		if err != nil {
			return fmt.Errorf("hash failed: %w", err)
		}
		fmt.Fprintf(stdout, "%016x\n", h)
		return nil
	case "restore":
		file := opts.RestoreCmd.PositionalArgs.File
		script, err := os.ReadFile(file) //nolint:gosec // user supplied script is the point
		if err != nil {
			return fmt.Errorf("can't read %s: %w", file, err)
		}
		if err := db.ExecScript(ctx, string(script)); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		log.Printf("[INFO] restored %s into %s", file, opts.DB)
		return nil
	default:
		return fmt.Errorf("unknown command %q", p.Active.Name)
	}
}

// runDump writes nothing unless the whole dump succeeded.
func runDump(ctx context.Context, db *engine.DB, out string, stdout io.Writer) error {
	text, err := dump.ToSQL(ctx, db)
	if err != nil {
		return fmt.Errorf("dump failed: %w", err)
	}
	if text == "" {
		log.Printf("[INFO] nothing to dump")
	}
	if out == "" {
		return printText(stdout, text)
	}
	if err := os.WriteFile(out, []byte(text), 0o600); err != nil {
		return fmt.Errorf("can't write dump to %s: %w", out, err)
	}
	log.Printf("[INFO] dump written to %s, %d bytes", out, len(text))
	return nil
}

func runExec(ctx context.Context, db *engine.DB, query string, stdin io.Reader, stdout io.Writer) error {
	if query == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		query = string(data)
	}
	res, err := db.Execute(ctx, query)
	if err != nil {
		return err
	}
	if len(res.Columns) == 0 {
		fmt.Fprintln(stdout, "ok")
		return nil
	}

	table := tablewriter.NewWriter(stdout)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(res.Columns)
	for _, row := range res.Values {
		data := make([]string, len(row))
		for i, v := range row {
			data[i] = formatValue(v)
		}
		table.Append(data)
	}
	table.Render()
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("X'%X'", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func printText(w io.Writer, text string) error {
	if text == "" {
		return nil
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError, lgr.Out(os.Stderr), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError,
			lgr.Out(os.Stderr), lgr.Err(os.Stderr)}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
