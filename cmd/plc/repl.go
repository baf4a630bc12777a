package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/plc-lang/plc/internal/driver"
)

const replHelp = `Enter declarations (LET, DEF), statements or an expression to print.
Input continues on the next line until every DO has its END.

  :help        show this help
  :java        print the Java translation of the declarations
  :reset       forget every declaration
  :run <file>  run a program file
  :quit        exit
`

func cmdRepl(args []string, stdout, stderr io.Writer) int {
	fs, opts := newFlagSet("repl", stderr)
	historyFile := fs.String("history", defaultHistoryFile(), "history file path")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	d, err := opts.setup(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	color := colorFor(d.Config(), stderr)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(true)

	if f, err := os.Open(*historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(*historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(stdout, "plc REPL. Type :help for commands.")
	session := d.NewSession()

	var pending strings.Builder
	for {
		prompt := "plc> "
		if pending.Len() > 0 {
			prompt = "...> "
		}
		input, err := line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			pending.Reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(stdout)
			return 0
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}

		if pending.Len() == 0 && strings.HasPrefix(strings.TrimSpace(input), ":") {
			line.AppendHistory(input)
			if quit := replCommand(d, session, strings.TrimSpace(input), stdout, stderr, color); quit {
				return 0
			}
			continue
		}

		pending.WriteString(input)
		pending.WriteString("\n")
		entry := pending.String()
		if !driver.Complete(entry) {
			continue
		}
		pending.Reset()
		if strings.TrimSpace(entry) == "" {
			continue
		}
		line.AppendHistory(strings.TrimSpace(entry))

		// Ctrl-C while a program runs cancels it instead of exiting
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		program, err := session.Eval(ctx, entry, stdout)
		stop()
		if err != nil {
			report(stderr, "repl", program, err, color)
		}
	}
}

// replCommand handles a line starting with ':' and reports whether the
// session should end.
func replCommand(d *driver.Driver, session *driver.Session, input string, stdout, stderr io.Writer, color bool) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		fmt.Fprint(stdout, replHelp)
	case ":reset":
		session.Reset()
		fmt.Fprintln(stdout, "declarations cleared")
	case ":java":
		if err := session.Java(stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return false
		}
		fmt.Fprintln(stdout)
	case ":run":
		if arg == "" {
			fmt.Fprintln(stderr, "usage: :run <file>")
			return false
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return false
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		v, err := d.Run(ctx, arg, string(data), stdout)
		if err != nil {
			report(stderr, arg, string(data), err, color)
			return false
		}
		fmt.Fprintf(stdout, "main returned %s\n", v)
	default:
		fmt.Fprintf(stderr, "unknown command %s, try :help\n", name)
	}
	return false
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".plc_history"
	}
	return filepath.Join(home, ".plc_history")
}
