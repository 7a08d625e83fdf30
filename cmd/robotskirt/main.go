package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/benmills/robotskirt/engine"
	"github.com/benmills/robotskirt/engine/html"
	"github.com/benmills/robotskirt/robotskirt"
	"github.com/benmills/robotskirt/wasmfn"
)

func main() {
	os.Exit(run())
}

func run() int {
	return runWithArgs(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

type config struct {
	ext        engine.Extensions
	htmlFlags  html.Flags
	maxNesting int
	script     string
	plugin     string
	jobs       int
	repl       bool
	logger     *slog.Logger
}

func runWithArgs(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("robotskirt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	extNames := fs.String("ext", "", "comma-separated markdown extensions, or \"all\"")
	htmlNames := fs.String("html", "", "comma-separated HTML renderer flags")
	maxNesting := fs.Int("max-nesting", robotskirt.DefaultMaxNesting, "maximum block nesting depth")
	script := fs.String("script", "", "JavaScript file customizing the global renderer")
	plugin := fs.String("plugin", "", "WebAssembly plugin providing native callbacks")
	jobs := fs.Int("j", 1, "files rendered in parallel")
	repl := fs.Bool("repl", false, "start an interactive JavaScript prompt")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() {
		_ = writef(stderr, "Usage: %s [flags] [file...]\n\n", fs.Name())
		_ = writeln(stderr, "Renders markdown files (or stdin) to HTML.")
		_ = writeln(stderr)
		_ = writeln(stderr, "Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	cfg := config{
		maxNesting: *maxNesting,
		script:     *script,
		plugin:     *plugin,
		jobs:       *jobs,
		repl:       *repl,
		logger:     slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}

	var err error
	if cfg.ext, err = engine.ParseExtensions(*extNames); err != nil {
		_ = writef(stderr, "error: %v\n", err)
		return 2
	}
	if cfg.htmlFlags, err = html.ParseFlags(*htmlNames); err != nil {
		_ = writef(stderr, "error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	b, cleanup, err := setup(ctx, cfg, stdout, stderr)
	if err != nil {
		_ = writef(stderr, "error: %v\n", err)
		return 1
	}
	defer cleanup()
	if b == nil {
		return 0
	}

	s, err := robotskirt.NewSession(b, cfg.ext, cfg.maxNesting, &robotskirt.Options{Logger: cfg.logger})
	if err != nil {
		_ = writef(stderr, "error: %v\n", err)
		return 2
	}
	defer s.Close()

	if err := render(ctx, s, fs.Args(), cfg.jobs, stdin, stdout); err != nil {
		_ = writef(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// setup builds the binding to render with. It returns a nil binding when
// the REPL ran instead.
func setup(ctx context.Context, cfg config, stdout, stderr io.Writer) (*robotskirt.Binding, func(), error) {
	if cfg.script != "" || cfg.repl {
		return setupScript(ctx, cfg, stdout, stderr)
	}

	cb, opts := html.NewRenderer(cfg.htmlFlags)
	b, err := robotskirt.NewBindingWithDefaults(cb, robotskirt.NewContext(opts, nil), &robotskirt.Options{Logger: cfg.logger})
	if err != nil {
		return nil, nil, err
	}
	if cfg.plugin != "" {
		if err := plugInto(ctx, b, cfg); err != nil {
			b.Close()
			return nil, nil, err
		}
	}
	return b, b.Close, nil
}

// plugInto binds every slot a plugin exports into b.
func plugInto(ctx context.Context, b *robotskirt.Binding, cfg config) error {
	p, err := loadPlugin(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()
	for _, slot := range p.Exports() {
		h, err := p.Handle(slot)
		if err != nil {
			return err
		}
		err = b.Set(slot, h)
		h.Release()
		if err != nil {
			return fmt.Errorf("plugin slot %s: %w", slot, err)
		}
	}
	return nil
}

func loadPlugin(ctx context.Context, cfg config) (*wasmfn.Plugin, error) {
	wasm, err := os.ReadFile(cfg.plugin)
	if err != nil {
		return nil, fmt.Errorf("read plugin: %w", err)
	}
	return wasmfn.Load(ctx, wasm, &wasmfn.Options{Name: cfg.plugin, Logger: cfg.logger})
}

// render writes the rendering of every file, in order, to stdout. With no
// files it renders stdin. Files are rendered concurrently when jobs > 1
// and the renderer has no script callbacks.
func render(ctx context.Context, s *robotskirt.Session, files []string, jobs int, stdin io.Reader, stdout io.Writer) error {
	if len(files) == 0 {
		input, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		out, err := s.Render(input)
		if err != nil {
			return err
		}
		_, err = stdout.Write(out)
		return err
	}

	outputs := make([][]byte, len(files))
	renderFile := func(i int) error {
		input, err := os.ReadFile(files[i])
		if err != nil {
			return err
		}
		out, err := s.Render(input)
		if err != nil {
			return fmt.Errorf("%s: %w", files[i], err)
		}
		outputs[i] = out
		return nil
	}

	if jobs <= 1 || s.ScriptBound() {
		for i := range files {
			if err := renderFile(i); err != nil {
				return err
			}
		}
	} else {
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(jobs)
		for i := range files {
			g.Go(func() error { return renderFile(i) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	for _, out := range outputs {
		if _, err := stdout.Write(out); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
