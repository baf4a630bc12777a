package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/plc-lang/plc/internal/cli"
	"github.com/plc-lang/plc/internal/diagnostics"
	"github.com/plc-lang/plc/internal/driver"
	"github.com/plc-lang/plc/internal/environment"
	"github.com/plc-lang/plc/internal/position"
	"github.com/plc-lang/plc/internal/server"
	"github.com/plc-lang/plc/internal/watch"
)

// colorFor reports whether diagnostics written to w get ANSI colors
func colorFor(cfg *cli.Config, w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return cfg.UseColor(f)
	}
	return cfg.Color == cli.ColorAlways
}

// report renders err against the program it came from. Errors without a
// category, such as unreadable files, print as a single line.
func report(w io.Writer, name, source string, err error, color bool) {
	fmt.Fprint(w, diagnostics.Render(position.NewSourceFile(name, source), driver.Cause(err), color))
}

// exitStatus maps main's result to a process status the way the generated
// Java does with System.exit.
func exitStatus(v environment.Value) int {
	p, ok := v.(environment.Primitive)
	if !ok {
		return 0
	}
	n, ok := p.Payload().(*big.Int)
	if !ok {
		return 0
	}
	return int(new(big.Int).And(n, big.NewInt(0xff)).Int64())
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func cmdRun(args []string, stdout, stderr io.Writer) int {
	fs, opts := newFlagSet("run", stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cli.ValidateArgs(fs.Args(), 1, command("run").Usage); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	d, err := opts.setup(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	color := colorFor(d.Config(), stderr)

	ctx, stop := signalContext()
	defer stop()

	paths := fs.Args()
	if len(paths) == 1 {
		data, err := os.ReadFile(paths[0])
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		v, err := d.Run(ctx, paths[0], string(data), stdout)
		if err != nil {
			report(stderr, paths[0], string(data), err, color)
			return 1
		}
		return exitStatus(v)
	}

	results, err := d.RunFiles(ctx, paths)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	status := 0
	for _, res := range results {
		fmt.Fprintf(stdout, "== %s\n", res.File)
		_, _ = io.WriteString(stdout, res.Output)
		if res.Err != nil {
			report(stderr, res.File, res.Source, res.Err, color)
			status = 1
			continue
		}
		fmt.Fprintln(stdout, driver.Describe(res))
	}
	return status
}

func cmdCheck(args []string, stdout, stderr io.Writer) int {
	fs, opts := newFlagSet("check", stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cli.ValidateArgs(fs.Args(), 1, command("check").Usage); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	d, err := opts.setup(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	color := colorFor(d.Config(), stderr)

	status := 0
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			status = 1
			continue
		}
		src, err := d.Check(path, string(data))
		if err != nil {
			report(stderr, path, string(data), err, color)
			status = 1
			continue
		}
		fmt.Fprintf(stdout, "%s: ok (%d fields, %d methods)\n", path, len(src.Fields), len(src.Methods))
	}
	return status
}

func cmdGen(args []string, stdout, stderr io.Writer) int {
	fs, opts := newFlagSet("gen", stderr)
	output := fs.String("o", "", "write Java to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cli.ValidateArgs(fs.Args(), 1, command("gen").Usage); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	d, err := opts.setup(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// generate into memory so a failed check leaves no partial file behind
	var java bytes.Buffer
	if err := d.Generate(path, string(data), &java); err != nil {
		report(stderr, path, string(data), err, colorFor(d.Config(), stderr))
		return 1
	}
	java.WriteString("\n")

	if *output == "" {
		_, err = stdout.Write(java.Bytes())
	} else {
		err = os.WriteFile(*output, java.Bytes(), 0o644)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func cmdWatch(args []string, stdout, stderr io.Writer) int {
	fs, opts := newFlagSet("watch", stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cli.ValidateArgs(fs.Args(), 1, command("watch").Usage); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	d, err := opts.setup(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg := d.Config()
	color := colorFor(cfg, stderr)
	log := cli.NewLoggerTo(stderr, true, cfg.Debug)

	w, err := watch.New(fs.Arg(0), time.Duration(cfg.Watch.Debounce), log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signalContext()
	defer stop()

	log.Info("watching %s", w.Path())
	err = w.Run(ctx, func(ctx context.Context, path string) {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("%v", err)
			return
		}
		name := filepath.Base(path)
		v, err := d.Run(ctx, name, string(data), stdout)
		if err != nil {
			report(stderr, name, string(data), err, color)
			return
		}
		log.Info("%s: main returned %s", name, v)
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func cmdServe(args []string, stderr io.Writer) int {
	fs, opts := newFlagSet("serve", stderr)
	addr := fs.String("addr", "", "UDP address to listen on (default from config)")
	certFile := fs.String("cert", "", "TLS certificate file")
	keyFile := fs.String("key", "", "TLS private key file")
	exportDir := fs.String("export-cert", "", "write the self-signed certificate and key to this directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	d, err := opts.setup(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg := d.Config()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *certFile != "" || *keyFile != "" {
		cfg.Server.CertFile, cfg.Server.KeyFile = *certFile, *keyFile
	}
	log := cli.NewLoggerTo(stderr, true, cfg.Debug)

	tlsCfg, err := server.TLSConfigFor(cfg.Server.Addr, cfg.Server.CertFile, cfg.Server.KeyFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *exportDir != "" {
		certPath := filepath.Join(*exportDir, "cert.pem")
		keyPath := filepath.Join(*exportDir, "key.pem")
		if err := server.WritePEM(&tlsCfg.Certificates[0], certPath, keyPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		log.Info("wrote %s and %s", certPath, keyPath)
	}

	ctx, stop := signalContext()
	defer stop()

	srv := server.New(cfg.Server.Addr, tlsCfg, server.NewHandler(d, log), log)
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
