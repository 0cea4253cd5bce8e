package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/bwalkerl/moodle-schemasync/internal/cliutil"
	"github.com/bwalkerl/moodle-schemasync/internal/runconfig"
)

// cliOptions mirrors the flag-struct-plus-go-flags.NewParser shape of the
// example pack's cmd/psqldef/psqldef.go, adapted to this engine's flag
// surface (spec §4.H / §6).
type cliOptions struct {
	Type       string `long:"type" description:"Target database engine" choice:"mysql" choice:"postgres" choice:"sqlite"`
	User       string `short:"u" long:"user" description:"Database user"`
	Password   string `short:"p" long:"password" description:"Database password"`
	Prompt     bool   `long:"password-prompt" description:"Force a password prompt"`
	Host       string `short:"H" long:"host" description:"Database host or socket directory"`
	Port       int    `short:"P" long:"port" description:"Database port"`
	SchemaFile string `short:"f" long:"schema-file" description:"Schema description file" value-name:"filename"`
	ConfigFile string `short:"C" long:"config" description:"Run-configuration YAML file"`

	Tables      string `short:"t" long:"tables" description:"Comma-separated list of table names/globs to limit to"`
	ExcludeFlag string `short:"e" long:"exclude" description:"Comma-separated list of table names/globs to exclude"`
	CheckRisky  bool   `short:"c" long:"check-risky" description:"Run the risk evaluator before printing"`
	FixLevels   string `long:"fix" description:"Comma-separated subset of {safe,dbindex,unsafe} to apply"`

	Debug   bool `long:"debug" description:"Pretty-print the parsed structure and raw error records"`
	Help    bool `short:"h" long:"help" description:"Show this help"`
	Version bool `long:"version" description:"Show version"`
}

var version = "dev"

// runOptions is the resolved, post-merge configuration main() acts on.
type runOptions struct {
	dbType     string
	dbName     string
	host, port string
	user, pass string

	schemaFile string
	tables     []string
	exclude    []string
	checkRisky bool
	fixLevels  []string
	debug      bool
}

// ErrRejectedRiskyFix describes the rejection of --fix=risky (in any letter
// case): parseArgs prints its message to stderr and exits with code 1;
// spec §4.H rejects that token outright.
type ErrRejectedRiskyFix struct{}

func (ErrRejectedRiskyFix) Error() string {
	return "the 'risky' level cannot be requested via --fix; use --check-risky to escalate it first"
}

func parseArgs(args []string) (dbName string, opts *runOptions, exitCode int, exit bool) {
	var cli cliOptions
	parser := flags.NewParser(&cli, flags.None)
	parser.Usage = "[option...] db_name"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return "", nil, 1, true
	}

	if cli.Help {
		parser.WriteHelp(os.Stdout)
		return "", nil, 0, true
	}
	if cli.Version {
		fmt.Println(version)
		return "", nil, 0, true
	}

	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "No database is specified!")
		parser.WriteHelp(os.Stdout)
		return "", nil, 1, true
	}
	if len(rest) > 1 {
		fmt.Fprintf(os.Stderr, "Multiple databases are given: %v\n", rest)
		return "", nil, 1, true
	}
	dbName = rest[0]

	fileCfg, err := runconfig.Load(cli.ConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return "", nil, 1, true
	}

	flagCfg := runconfig.Config{
		Tables:  cliutil.SplitCSV(cli.Tables),
		Exclude: cliutil.SplitCSV(cli.ExcludeFlag),
		Fix:     cliutil.SplitCSV(cli.FixLevels),
		DBType:  cli.Type, DBName: dbName, Host: cli.Host, Port: cli.Port,
		User: cli.User, Password: cli.Password,
	}
	merged := runconfig.Merge(fileCfg, flagCfg)
	if merged.DBType == "" {
		merged.DBType = "mysql"
	}
	if merged.User == "" {
		merged.User = "root"
	}
	if merged.Host == "" {
		merged.Host = "127.0.0.1"
	}

	for _, lvl := range merged.Fix {
		if strings.EqualFold(strings.TrimSpace(lvl), "risky") {
			fmt.Fprintln(os.Stderr, ErrRejectedRiskyFix{}.Error())
			return "", nil, 1, true
		}
	}

	password := merged.Password
	if cli.Prompt {
		fmt.Print("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return "", nil, 1, true
		}
		password = string(pass)
	}

	return dbName, &runOptions{
		dbType: merged.DBType, dbName: dbName, host: merged.Host,
		port: fmt.Sprint(merged.Port), user: merged.User, pass: password,
		schemaFile: cli.SchemaFile, tables: merged.Tables, exclude: merged.Exclude,
		checkRisky: cli.CheckRisky, fixLevels: merged.Fix, debug: cli.Debug,
	}, 0, false
}
