// Package driver chains the lexer, parser, analyzer, interpreter and
// generator into the pipelines used by the command-line tool, the watcher
// and the evaluation server.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/plc-lang/plc/internal/analyzer"
	"github.com/plc-lang/plc/internal/ast"
	"github.com/plc-lang/plc/internal/cli"
	"github.com/plc-lang/plc/internal/environment"
	"github.com/plc-lang/plc/internal/generator"
	"github.com/plc-lang/plc/internal/interpreter"
	"github.com/plc-lang/plc/internal/lexer"
	"github.com/plc-lang/plc/internal/parser"
)

// Driver runs programs under one configuration. It is safe for concurrent
// use: every call builds its own pipeline.
type Driver struct {
	config   *cli.Config
	log      *cli.Logger
	maxDepth int
}

// New creates a driver. A nil config uses the defaults and a nil logger
// discards log output.
func New(config *cli.Config, log *cli.Logger) *Driver {
	if config == nil {
		config = cli.DefaultConfig()
	}
	if log == nil {
		log = cli.NewLoggerTo(io.Discard, false, false)
	}
	return &Driver{config: config, log: log}
}

// SetMaxDepth bounds nested calls in programs run by this driver
func (d *Driver) SetMaxDepth(n int) { d.maxDepth = n }

// Config returns the configuration the driver was created with
func (d *Driver) Config() *cli.Config { return d.config }

// CheckLanguage fails when the implemented language version does not satisfy
// the configured constraint.
func (d *Driver) CheckLanguage() error {
	constraint, err := d.config.LanguageConstraint()
	if err != nil {
		return err
	}
	version, err := semver.NewVersion(cli.LanguageVersion)
	if err != nil {
		return pkgerrors.Wrap(err, "language version")
	}
	if ok, reasons := constraint.Validate(version); !ok {
		return pkgerrors.Errorf("language %s does not satisfy %q: %v", version, d.config.Language, reasons)
	}
	return nil
}

// Parse lexes and parses one program
func (d *Driver) Parse(name, source string) (*ast.Source, error) {
	tokens, err := lexer.Lex(source)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "%s: lex", name)
	}
	d.log.Debug("%s: %d tokens", name, len(tokens))

	src, err := parser.ParseSource(tokens)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "%s: parse", name)
	}
	d.log.Debug("%s: %d fields, %d methods", name, len(src.Fields), len(src.Methods))
	return src, nil
}

// Check parses and analyzes one program against the built-in scope
func (d *Driver) Check(name, source string) (*ast.Source, error) {
	if err := d.CheckLanguage(); err != nil {
		return nil, err
	}
	src, err := d.Parse(name, source)
	if err != nil {
		return nil, err
	}
	if err := analyzer.New(environment.NewBuiltinScope(nil)).Analyze(src); err != nil {
		return nil, pkgerrors.Wrapf(err, "%s: analyze", name)
	}
	return src, nil
}

// Run checks one program and interprets it, sending print output to out.
// The configured timeout, if any, bounds the run.
func (d *Driver) Run(ctx context.Context, name, source string, out io.Writer) (environment.Value, error) {
	src, err := d.Check(name, source)
	if err != nil {
		return nil, err
	}

	if timeout := time.Duration(d.config.Timeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	in := interpreter.New(environment.NewBuiltinScope(out))
	in.SetMaxDepth(d.maxDepth)
	value, err := in.Run(ctx, src)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "%s: run", name)
	}
	d.log.Info("%s: main returned %s in %s", name, value, time.Since(start).Round(time.Microsecond))
	return value, nil
}

// Generate checks one program and writes its Java translation to w
func (d *Driver) Generate(name, source string, w io.Writer) error {
	src, err := d.Check(name, source)
	if err != nil {
		return err
	}
	if err := generator.New(w).Generate(src); err != nil {
		return pkgerrors.Wrapf(err, "%s: generate", name)
	}
	return nil
}

// Result is the outcome of running one file
type Result struct {
	File   string
	Source string
	Value  environment.Value
	Output string
	Err    error
}

// RunFiles runs every file concurrently, at most JobLimit at a time. A
// failing program is reported in its Result and does not stop the others;
// the returned error is only set when ctx ends or the language gate fails.
// Results are in the order of paths.
func (d *Driver) RunFiles(ctx context.Context, paths []string) ([]Result, error) {
	if err := d.CheckLanguage(); err != nil {
		return nil, err
	}

	results := make([]Result, len(paths))
	semaphore := make(chan struct{}, d.config.JobLimit())
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	failed := 0

	for i, path := range paths {
		i, path := i, path

		g.Go(func() error {
			select {
			case semaphore <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-semaphore }()

			res := d.runFile(gctx, path)
			if res.Err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.log.Info("ran %d files, %d failed", len(paths), failed)
	return results, nil
}

func (d *Driver) runFile(ctx context.Context, path string) Result {
	res := Result{File: path}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = pkgerrors.Wrap(err, "read")
		return res
	}
	res.Source = string(data)

	var out bytes.Buffer
	res.Value, res.Err = d.Run(ctx, path, res.Source, &out)
	res.Output = out.String()
	return res
}

// Cause returns the innermost error, which for pipeline failures is the
// *errors.Error produced by the failing pass.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

// Describe formats a Result the way `plc run` prints it
func Describe(res Result) string {
	if res.Err != nil {
		return fmt.Sprintf("%s: error: %v", res.File, res.Err)
	}
	return fmt.Sprintf("%s: %s", res.File, res.Value)
}
