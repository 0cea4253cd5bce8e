// Command schemasync compares a declared database schema against a live
// database, reports the discrepancies it finds, and optionally repairs
// them -- a Go-native reimplementation of Moodle's XMLDB schema-alignment
// engine, structured the way the example pack's cmd/mysqldef and
// cmd/psqldef drivers are structured.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/k0kubun/pp/v3"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	mysqladapter "github.com/bwalkerl/moodle-schemasync/adapter/mysql"
	pgadapter "github.com/bwalkerl/moodle-schemasync/adapter/postgres"
	sqliteadapter "github.com/bwalkerl/moodle-schemasync/adapter/sqlite"
	"github.com/bwalkerl/moodle-schemasync/ddl"
	"github.com/bwalkerl/moodle-schemasync/diff"
	"github.com/bwalkerl/moodle-schemasync/fixer"
	"github.com/bwalkerl/moodle-schemasync/generator"
	mysqlgen "github.com/bwalkerl/moodle-schemasync/generator/mysql"
	pggen "github.com/bwalkerl/moodle-schemasync/generator/postgres"
	sqlitegen "github.com/bwalkerl/moodle-schemasync/generator/sqlite"
	"github.com/bwalkerl/moodle-schemasync/internal/cliutil"
	"github.com/bwalkerl/moodle-schemasync/internal/obslog"
	"github.com/bwalkerl/moodle-schemasync/internal/schemafile"
	"github.com/bwalkerl/moodle-schemasync/risk"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

func main() {
	obslog.Init()

	_, opts, exitCode, exit := parseArgs(os.Args[1:])
	if exit {
		os.Exit(exitCode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, adapter.ErrDatabaseNotInitialised) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func buildDatabase(opts *runOptions) (adapter.Database, generator.Generator, error) {
	cfg := adapter.Config{
		DBName: opts.dbName, User: opts.user, Password: opts.pass, Host: opts.host,
	}
	if opts.port != "" {
		if p, err := strconv.Atoi(opts.port); err == nil {
			cfg.Port = p
		}
	}

	switch opts.dbType {
	case "mysql":
		db, err := mysqladapter.NewDatabase(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mysql: %w", err)
		}
		return db, mysqlgen.New(""), nil
	case "postgres":
		db, err := pgadapter.NewDatabase(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return db, pggen.New(""), nil
	case "sqlite":
		db, err := sqliteadapter.NewDatabase(opts.dbName)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return db, sqlitegen.New(""), nil
	default:
		return nil, nil, fmt.Errorf("unsupported db type %q", opts.dbType)
	}
}

func run(ctx context.Context, opts *runOptions) error {
	if opts.schemaFile == "" {
		return fmt.Errorf("no schema file given; pass -f/--schema-file")
	}
	declared, err := schemafile.Load(opts.schemaFile)
	if err != nil {
		return err
	}

	db, gen, err := buildDatabase(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	live, err := db.GetTables(ctx)
	if err != nil {
		return fmt.Errorf("checking database initialisation: %w", err)
	}
	if len(live) == 0 {
		return adapter.ErrDatabaseNotInitialised
	}

	if len(opts.tables) > 0 || len(opts.exclude) > 0 {
		universe := tableUniverse(ctx, db, declared)
		limit := cliutil.ResolvePatterns(opts.tables, universe)
		exclude := cliutil.ResolvePatterns(opts.exclude, universe)
		declared = declared.FilteredView(limit, exclude)
	}

	if opts.debug {
		pp.Println(declared)
	}

	diffOpts := diff.DefaultOptions()
	result, err := diff.Run(ctx, db, gen, declared, diffOpts)
	if err != nil {
		return fmt.Errorf("running diff: %w", err)
	}

	if opts.checkRisky {
		if err := risk.Evaluate(ctx, db, declared, result); err != nil {
			return fmt.Errorf("evaluating risk: %w", err)
		}
	}

	printReport(result)

	if opts.debug {
		pp.Println(result.All())
	}

	if len(opts.fixLevels) == 0 {
		return nil
	}

	levels := parseFixLevels(opts.fixLevels)
	dispatcher := ddl.New(gen, db)
	fx := fixer.New(dispatcher, db, declared, slog.Default())
	applied, err := fx.Fix(ctx, result, levels)
	if err != nil {
		return fmt.Errorf("applying fixes: %w", err)
	}

	if applied == 0 {
		fmt.Println("No schema issues were resolved.")
	} else if applied == 1 {
		fmt.Println("1 schema issue was resolved.")
	} else {
		fmt.Printf("%d schema issues were resolved.\n", applied)
	}
	return nil
}

// tableUniverse merges declared table names with whatever the live
// database reports, so a pattern can resolve against either side (spec
// §4.H: "create this table" flows need the literal name even when it
// doesn't exist live yet).
func tableUniverse(ctx context.Context, db adapter.Database, declared *schema.Structure) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range declared.Tables() {
		if !seen[t.Name] {
			seen[t.Name] = true
			out = append(out, t.Name)
		}
	}
	if live, err := db.GetTables(ctx); err == nil {
		for name := range live {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func parseFixLevels(levels []string) map[diff.Safety]bool {
	out := map[diff.Safety]bool{}
	for _, lvl := range levels {
		switch strings.ToLower(strings.TrimSpace(lvl)) {
		case "safe":
			out[diff.Safe] = true
		case "dbindex":
			out[diff.DBIndex] = true
		case "risky":
			out[diff.Risky] = true
		case "unsafe":
			out[diff.Unsafe] = true
		}
	}
	return out
}

// printReport renders the discrepancy table in the format of spec §6: a
// header line per table followed by one " * fix=<safety>   <desc>" line
// per error, tables separated by a rule line.
func printReport(result *diff.Result) {
	tables := result.Tables()
	for i, table := range tables {
		errs := result.Errors(table)
		if len(errs) == 0 {
			continue
		}
		if i > 0 {
			fmt.Println(strings.Repeat("-", 60))
		}
		fmt.Printf("<%s>\n", table)
		for _, e := range errs {
			fmt.Printf(" * fix=%s   %s\n", e.Safety, e.Desc)
		}
	}
}
