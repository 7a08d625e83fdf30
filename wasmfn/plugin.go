// Package wasmfn loads native renderer callbacks from WebAssembly modules.
//
// A plugin exports one function per slot it implements, named after the
// slot ("hrule", "emphasis", ...). Void slots export () -> (), int slots
// export () -> i32 and return zero to decline. Arguments are pulled and
// output is pushed through the host module "robotskirt" (see [HostModule]).
//
// Every exported slot is exposed as a [robotskirt.Handle], so plugin
// functions can be assigned to any renderer exactly like the built-in HTML
// callbacks.
package wasmfn

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/benmills/robotskirt/buffer"
	"github.com/benmills/robotskirt/engine"
	"github.com/benmills/robotskirt/robotskirt"
)

// Plugin is a loaded WebAssembly module and the slots it implements.
//
// Calls into the module are serialized. The wazero runtime stays open until
// the plugin is closed and every handle taken from it has been released.
type Plugin struct {
	name    string
	exports []engine.Slot
	logger  *slog.Logger

	ctx    context.Context
	wazero wazero.Runtime
	module api.Module
	rctx   *robotskirt.Context

	mu     sync.Mutex
	host   host
	closed bool
}

// Options configures plugin loading.
type Options struct {
	// Name identifies the plugin in logs and errors.
	Name string

	// Logger receives load and teardown messages. Nil means slog.Default().
	Logger *slog.Logger
}

// Load compiles and instantiates a plugin.
//
// The context is used for all WebAssembly calls and should remain valid for
// the lifetime of the plugin.
func Load(ctx context.Context, wasmBytes []byte, opts *Options) (*Plugin, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = "plugin"
	}

	wzr := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, wzr); err != nil {
		wzr.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	p := &Plugin{name: name, logger: logger, ctx: ctx, wazero: wzr}
	if _, err := p.host.instantiate(ctx, wzr); err != nil {
		wzr.Close(ctx)
		return nil, fmt.Errorf("bind host module: %w", err)
	}

	compiled, err := wzr.CompileModule(ctx, wasmBytes)
	if err != nil {
		wzr.Close(ctx)
		return nil, fmt.Errorf("compile module: %w", err)
	}

	for fname, def := range compiled.ExportedFunctions() {
		slot, ok := engine.SlotByName(fname)
		if !ok {
			continue
		}
		if err := checkExport(slot, def); err != nil {
			wzr.Close(ctx)
			return nil, err
		}
		p.exports = append(p.exports, slot)
	}
	sort.Slice(p.exports, func(i, j int) bool { return p.exports[i] < p.exports[j] })

	// Start functions run explicitly so a missing _initialize is not an error.
	module, err := wzr.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions())
	if err != nil {
		wzr.Close(ctx)
		return nil, fmt.Errorf("instantiate module: %w", err)
	}
	if init := module.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			wzr.Close(ctx)
			return nil, fmt.Errorf("initialize module: %w", err)
		}
	}
	p.module = module
	p.rctx = robotskirt.NewContext(p, func(any) { p.teardown() })

	logger.Info("loaded wasm plugin", "plugin", name, "slots", p.exports)
	return p, nil
}

func checkExport(slot engine.Slot, def api.FunctionDefinition) error {
	if len(def.ParamTypes()) != 0 {
		return fmt.Errorf("export %q: slot functions take no parameters", def.ExportNames())
	}
	results := def.ResultTypes()
	if slot.Signature().ReturnsInt() {
		if len(results) != 1 || results[0] != api.ValueTypeI32 {
			return fmt.Errorf("export %s: %v slot must return i32", slot, slot.Signature())
		}
		return nil
	}
	if len(results) != 0 {
		return fmt.Errorf("export %s: %v slot must not return a value", slot, slot.Signature())
	}
	return nil
}

// Name returns the plugin name.
func (p *Plugin) Name() string { return p.name }

// Exports returns the slots the plugin implements, in table order.
func (p *Plugin) Exports() []engine.Slot {
	return append([]engine.Slot(nil), p.exports...)
}

// Context returns the plugin's reference counted context.
func (p *Plugin) Context() *robotskirt.Context { return p.rctx }

// Handle returns a new handle for the plugin's implementation of slot.
// The caller owns the handle and must release it.
func (p *Plugin) Handle(slot engine.Slot) (*robotskirt.Handle, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("plugin %s: %w", p.name, robotskirt.ErrClosed)
	}
	if !p.hasExport(slot) {
		return nil, fmt.Errorf("plugin %s does not export %s", p.name, slot)
	}
	return robotskirt.Wrap(nativeFunc(slot), slot.Signature(), p.rctx)
}

// Handles returns a handle for every exported slot, keyed by slot name.
func (p *Plugin) Handles() (map[string]*robotskirt.Handle, error) {
	out := make(map[string]*robotskirt.Handle, len(p.exports))
	for _, slot := range p.exports {
		h, err := p.Handle(slot)
		if err != nil {
			for _, h := range out {
				h.Release()
			}
			return nil, err
		}
		out[slot.String()] = h
	}
	return out, nil
}

// Close drops the plugin's own reference. Handles already taken keep
// working until they are released.
func (p *Plugin) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.rctx.Release()
	return nil
}

func (p *Plugin) hasExport(slot engine.Slot) bool {
	for _, s := range p.exports {
		if s == slot {
			return true
		}
	}
	return false
}

func (p *Plugin) teardown() {
	if err := p.wazero.Close(p.ctx); err != nil {
		p.logger.Warn("closing wasm runtime", "plugin", p.name, "err", err)
		return
	}
	p.logger.Debug("wasm plugin released", "plugin", p.name)
}

// invoke calls the export for slot with the given arguments.
func (p *Plugin) invoke(slot engine.Slot, ob *buffer.Buffer, args engine.Args) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn := p.module.ExportedFunction(slot.String())
	if fn == nil {
		return 0, fmt.Errorf("plugin %s does not export %s", p.name, slot)
	}
	p.host.cur = &call{ob: ob, args: args}
	defer func() { p.host.cur = nil }()

	res, err := fn.Call(p.ctx)
	if err != nil {
		return 0, fmt.Errorf("plugin %s: %s: %w", p.name, slot, err)
	}
	if slot.Signature().ReturnsInt() {
		return int(api.DecodeI32(res[0])), nil
	}
	return 1, nil
}

// nativeFunc returns the engine function for slot. It expects the *Plugin
// as its opaque argument.
func nativeFunc(slot engine.Slot) any {
	return engine.Trampoline(slot.Signature(), func(ob *buffer.Buffer, args engine.Args, opaque any) (int, error) {
		p, ok := opaque.(*Plugin)
		if !ok {
			return 0, fmt.Errorf("wasmfn: %s called without its plugin context", slot)
		}
		return p.invoke(slot, ob, args)
	})
}
