package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/peterh/liner"

	"github.com/benmills/robotskirt/js"
	"github.com/benmills/robotskirt/robotskirt"
)

const (
	historyFile = ".robotskirt_history"
	promptMain  = "rs> "
	promptCont  = "... "
	banner      = "robotskirt REPL. Globals: robotskirt, renderer, render(text). Ctrl+D to exit."
)

// printer sends console output to the command's writers.
type printer struct {
	stdout, stderr io.Writer
}

func (p printer) Log(s string)   { _ = writeln(p.stdout, s) }
func (p printer) Warn(s string)  { _ = writeln(p.stderr, s) }
func (p printer) Error(s string) { _ = writeln(p.stderr, s) }

// setupScript prepares a JavaScript runtime with the globals robotskirt,
// renderer, render and (with -plugin) plugin, then runs the script or the
// REPL. The binding behind the global renderer afterwards is returned.
func setupScript(ctx context.Context, cfg config, stdout, stderr io.Writer) (*robotskirt.Binding, func(), error) {
	vm := goja.New()
	m := js.Enable(vm, &js.Options{Logger: cfg.logger, Context: ctx})

	registry := require.NewRegistry()
	registry.RegisterNativeModule(js.ModuleName, func(_ *goja.Runtime, module *goja.Object) {
		module.Set("exports", m.Exports())
	})
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(printer{stdout, stderr}))
	registry.Enable(vm)
	console.Enable(vm)

	r, err := m.NewHTMLRenderer(cfg.htmlFlags)
	if err != nil {
		return nil, nil, fmt.Errorf("create renderer: %w", err)
	}
	vm.Set("renderer", r)
	vm.Set("render", func(call goja.FunctionCall) goja.Value {
		fn, _ := goja.AssertFunction(m.Exports().Get("markdownSync"))
		v, err := fn(goja.Undefined(), vm.Get("renderer"), call.Argument(0))
		if err != nil {
			panic(err)
		}
		return v
	})

	if cfg.plugin != "" {
		p, err := loadPlugin(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		vm.Set("plugin", m.PluginObject(p))
	}

	keep := func() { runtime.KeepAlive(vm) }

	if cfg.script != "" {
		src, err := os.ReadFile(cfg.script)
		if err != nil {
			return nil, nil, fmt.Errorf("read script: %w", err)
		}
		if _, err := m.Eval(string(src), &js.EvalOptions{Filename: cfg.script}); err != nil {
			return nil, nil, fmt.Errorf("script %s: %w", cfg.script, err)
		}
	}

	if cfg.repl {
		runREPL(m, stdout)
		return nil, keep, nil
	}

	b, ok := m.Binding(vm.Get("renderer"))
	if !ok {
		return nil, nil, errors.New("global renderer is not a robotskirt Renderer")
	}
	return b, keep, nil
}

func runREPL(m *js.Module, stdout io.Writer) {
	_ = writeln(stdout, banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		code, ok := readStatement(ln)
		if !ok {
			_ = writeln(stdout)
			break
		}
		if strings.TrimSpace(code) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		v, err := m.Eval(code, &js.EvalOptions{Filename: "repl"})
		if err != nil {
			_ = writeln(stdout, err)
			continue
		}
		if v != nil && !goja.IsUndefined(v) {
			_ = writeln(stdout, v.String())
		}
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
}

// readStatement reads lines until they compile or fail for a reason other
// than running out of input.
func readStatement(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending input.
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, err := goja.Compile("repl", src, false); err != nil && incomplete(err) {
			continue
		}
		return src, true
	}
}

func incomplete(err error) bool {
	return strings.Contains(err.Error(), "Unexpected end of input")
}
