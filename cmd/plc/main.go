// Package main provides the plc command. It parses, checks, interprets and
// translates programs, and hosts the watcher, the HTTP/3 evaluation server
// and the interactive REPL.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/plc-lang/plc/internal/cli"
	"github.com/plc-lang/plc/internal/driver"
)

var commands = []cli.CommandInfo{
	{
		Name:        "run",
		Usage:       "plc run [OPTIONS] <file.plc>...",
		Description: "Check and interpret programs",
		Examples:    []string{"plc run fib.plc", "plc run -jobs 4 -timeout 5s examples/*.plc"},
	},
	{
		Name:        "check",
		Usage:       "plc check [OPTIONS] <file.plc>...",
		Description: "Parse and analyze programs without running them",
		Examples:    []string{"plc check fib.plc"},
	},
	{
		Name:        "gen",
		Usage:       "plc gen [OPTIONS] [-o Main.java] <file.plc>",
		Description: "Translate a program to Java",
		Examples:    []string{"plc gen -o Main.java fib.plc"},
	},
	{
		Name:        "watch",
		Usage:       "plc watch [OPTIONS] <file.plc>",
		Description: "Re-run a program whenever it changes",
		Examples:    []string{"plc watch fib.plc"},
	},
	{
		Name:        "serve",
		Usage:       "plc serve [OPTIONS] [-addr host:port] [-cert cert.pem -key key.pem]",
		Description: "Serve program evaluation over HTTP/3",
		Examples:    []string{"plc serve -addr :4433", "plc serve -export-cert ./dev"},
	},
	{
		Name:        "repl",
		Usage:       "plc repl [OPTIONS] [-history file]",
		Description: "Start interactive REPL",
		Examples:    []string{"plc repl"},
	},
	{
		Name:        "version",
		Usage:       "plc version [-json]",
		Description: "Print version information",
	},
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	os.Exit(execute(os.Args[1], os.Args[2:], os.Stdout, os.Stderr))
}

// execute runs one subcommand and returns the process exit status
func execute(sub string, args []string, stdout, stderr io.Writer) int {
	switch sub {
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	case "version", "-v", "--version":
		fs := flag.NewFlagSet("version", flag.ContinueOnError)
		fs.SetOutput(stderr)
		jsonOutput := fs.Bool("json", false, "output version in JSON format")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		must(stderr, cli.PrintVersion(stdout, "plc", *jsonOutput))
		return 0
	case "run":
		return cmdRun(args, stdout, stderr)
	case "check":
		return cmdCheck(args, stdout, stderr)
	case "gen":
		return cmdGen(args, stdout, stderr)
	case "watch":
		return cmdWatch(args, stdout, stderr)
	case "serve":
		return cmdServe(args, stderr)
	case "repl":
		return cmdRepl(args, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown subcommand: %s\n", sub)
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	cli.PrintUsage(w, "plc", commands)
}

func command(name string) cli.CommandInfo {
	for _, c := range commands {
		if c.Name == name {
			return c
		}
	}
	return cli.CommandInfo{Name: name}
}

// options are the flags shared by every subcommand that runs programs
type options struct {
	fs      *flag.FlagSet
	config  string
	verbose bool
	debug   bool
	color   string
	jobs    int
	timeout cli.Duration
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *options) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		cli.PrintCommandUsage(stderr, "plc", command(name))
		fmt.Fprintln(stderr, "OPTIONS:")
		fs.PrintDefaults()
	}

	opts := &options{fs: fs}
	fs.StringVar(&opts.config, "config", "plc.yaml", "configuration file (JSON or YAML)")
	fs.BoolVar(&opts.verbose, "verbose", false, "log each run")
	fs.BoolVar(&opts.debug, "debug", false, "log pipeline details")
	fs.StringVar(&opts.color, "color", "", "colorize diagnostics: auto, always or never")
	fs.IntVar(&opts.jobs, "jobs", 0, "programs run at once (0 = one per CPU)")
	fs.Var(&opts.timeout, "timeout", "bound each run, e.g. 5s (0 disables)")
	return fs, opts
}

// setup loads the configuration and applies flag overrides. Only flags
// given on the command line override the file.
func (o *options) setup(stderr io.Writer) (*driver.Driver, error) {
	cfg, err := cli.LoadConfig(o.config)
	if err != nil {
		return nil, err
	}
	o.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "verbose":
			cfg.Verbose = o.verbose
		case "debug":
			cfg.Debug = o.debug
		case "color":
			cfg.Color = cli.ColorMode(o.color)
		case "jobs":
			cfg.Jobs = o.jobs
		case "timeout":
			cfg.Timeout = o.timeout
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return driver.New(cfg, cli.NewLoggerTo(stderr, cfg.Verbose, cfg.Debug)), nil
}

func must(stderr io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
