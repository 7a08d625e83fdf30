// Package js exposes robotskirt to JavaScript running in goja.
//
// The module object carries the Renderer, HtmlRenderer and Markdown
// constructors, the EXT_* and HTML_* constants and the convenience helpers
// markdownSync, markdown, toHtmlSync, toHtml and loadPlugin:
//
//	var rs = require("robotskirt");
//	var r = new rs.HtmlRenderer();
//	r.hrule = function () { return "<HR/>"; };
//	new rs.Markdown(r).renderSync("---");
//
// Every slot of a renderer is a property. Reading it returns the script
// function that was assigned, or a native handle for built-in and
// forwarded functions. Native handles can be called directly and may be
// assigned to a slot of the same shape on any other renderer.
//
// State is per goja runtime: each [Module] owns the symbols it uses to
// recognize its own renderers and handles.
package js

import (
	"context"
	"log/slog"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"

	"github.com/benmills/robotskirt/engine"
	"github.com/benmills/robotskirt/engine/html"
	"github.com/benmills/robotskirt/robotskirt"
)

// ModuleName is the name the module is registered under by Register.
const ModuleName = "robotskirt"

// Options configures a Module.
type Options struct {
	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger

	// Loop runs completion callbacks of asynchronous renders. Without a
	// loop, Markdown.render and the async helpers throw.
	Loop *eventloop.EventLoop

	// Workers bounds the number of concurrent offloaded renders. Zero
	// means GOMAXPROCS.
	Workers int64

	// Context is used for loading WebAssembly plugins and for waiting on a
	// free worker. Nil means context.Background().
	Context context.Context
}

// Module is an instance of the robotskirt module bound to one runtime.
type Module struct {
	vm     *goja.Runtime
	logger *slog.Logger
	loop   *eventloop.EventLoop
	ctx    context.Context
	pool   *robotskirt.Pool
	ropts  *robotskirt.Options

	rendererSym *goja.Symbol
	handleSym   *goja.Symbol
	markdownSym *goja.Symbol

	rendererCtor *goja.Object
	htmlCtor     *goja.Object
	markdownCtor *goja.Object

	exports *goja.Object
}

// New builds the module for vm.
func New(vm *goja.Runtime, opts *Options) *Module {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ropts := &robotskirt.Options{Logger: logger}
	m := &Module{
		vm:          vm,
		logger:      logger,
		loop:        opts.Loop,
		ctx:         ctx,
		pool:        robotskirt.NewPool(opts.Workers, ropts),
		ropts:       ropts,
		rendererSym: goja.NewSymbol("robotskirt.renderer"),
		handleSym:   goja.NewSymbol("robotskirt.handle"),
		markdownSym: goja.NewSymbol("robotskirt.markdown"),
	}
	m.defineRenderer()
	m.defineHTMLRenderer()
	m.defineMarkdown()
	m.buildExports()
	return m
}

// Exports returns the module object.
func (m *Module) Exports() *goja.Object { return m.exports }

// Loader returns a require.ModuleLoader creating a fresh Module for every
// runtime that requires it.
func Loader(opts *Options) require.ModuleLoader {
	return func(vm *goja.Runtime, module *goja.Object) {
		m := New(vm, opts)
		if err := module.Set("exports", m.Exports()); err != nil {
			panic(vm.NewGoError(err))
		}
	}
}

// Register makes the module available to require("robotskirt") in every
// runtime using registry.
func Register(registry *require.Registry, opts *Options) {
	registry.RegisterNativeModule(ModuleName, Loader(opts))
}

// Enable creates the module for vm and exposes it as the global
// "robotskirt".
func Enable(vm *goja.Runtime, opts *Options) *Module {
	m := New(vm, opts)
	vm.Set(ModuleName, m.Exports())
	return m
}

var extConstants = []struct {
	name  string
	value engine.Extensions
}{
	{"EXT_AUTOLINK", engine.ExtAutolink},
	{"EXT_FENCED_CODE", engine.ExtFencedCode},
	{"EXT_LAX_SPACING", engine.ExtLaxSpacing},
	{"EXT_NO_INTRA_EMPHASIS", engine.ExtNoIntraEmphasis},
	{"EXT_SPACE_HEADERS", engine.ExtSpaceHeaders},
	{"EXT_STRIKETHROUGH", engine.ExtStrikethrough},
	{"EXT_SUPERSCRIPT", engine.ExtSuperscript},
	{"EXT_TABLES", engine.ExtTables},
}

var htmlConstants = []struct {
	name  string
	value html.Flags
}{
	{"HTML_SKIP_HTML", html.SkipHTML},
	{"HTML_SKIP_STYLE", html.SkipStyle},
	{"HTML_SKIP_IMAGES", html.SkipImages},
	{"HTML_SKIP_LINKS", html.SkipLinks},
	{"HTML_EXPAND_TABS", html.ExpandTabs},
	{"HTML_SAFELINK", html.Safelink},
	{"HTML_TOC", html.TOC},
	{"HTML_HARD_WRAP", html.HardWrap},
	{"HTML_USE_XHTML", html.UseXHTML},
	{"HTML_ESCAPE", html.Escape},
}

func (m *Module) buildExports() {
	vm := m.vm
	o := vm.NewObject()
	o.Set("Renderer", m.rendererCtor)
	o.Set("HtmlRenderer", m.htmlCtor)
	o.Set("Markdown", m.markdownCtor)

	for _, c := range extConstants {
		o.DefineDataProperty(c.name, vm.ToValue(int64(c.value)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	for _, c := range htmlConstants {
		o.DefineDataProperty(c.name, vm.ToValue(int64(c.value)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}

	o.Set("markdownSync", m.markdownSync)
	o.Set("markdown", m.markdownAsync)
	o.Set("toHtmlSync", m.toHTMLSync)
	o.Set("toHtml", m.toHTMLAsync)
	o.Set("loadPlugin", m.loadPlugin)
	m.exports = o
}

// markdownSync(renderer, text)
func (m *Module) markdownSync(call goja.FunctionCall) goja.Value {
	r := m.mustRenderer(call.Argument(0))
	s := m.session(r, 0, robotskirt.DefaultMaxNesting)
	defer s.Close()
	return m.renderSync(s, call.Argument(1))
}

// markdown(renderer, text, callback)
func (m *Module) markdownAsync(call goja.FunctionCall) goja.Value {
	r := m.mustRenderer(call.Argument(0))
	cb := m.mustCallback(call.Argument(2))
	s := m.session(r, 0, robotskirt.DefaultMaxNesting)
	m.renderAsync(s, call.Argument(1), cb, true)
	return goja.Undefined()
}

// toHtmlSync(text)
func (m *Module) toHTMLSync(call goja.FunctionCall) goja.Value {
	r := m.newHTMLRenderer(0)
	defer r.binding.Close()
	s := m.session(r, 0, robotskirt.DefaultMaxNesting)
	defer s.Close()
	return m.renderSync(s, call.Argument(0))
}

// toHtml(text, callback)
func (m *Module) toHTMLAsync(call goja.FunctionCall) goja.Value {
	cb := m.mustCallback(call.Argument(1))
	r := m.newHTMLRenderer(0)
	s := m.session(r, 0, robotskirt.DefaultMaxNesting)
	r.binding.Close()
	m.renderAsync(s, call.Argument(0), cb, true)
	return goja.Undefined()
}

func (m *Module) mustCallback(v goja.Value) goja.Callable {
	cb, ok := goja.AssertFunction(v)
	if !ok {
		panic(m.vm.NewTypeError("You must provide a callback!"))
	}
	return cb
}
