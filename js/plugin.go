package js

import (
	"github.com/dop251/goja"

	"github.com/benmills/robotskirt/wasmfn"
)

// loadPlugin(bytes) loads a WebAssembly plugin and returns an object
// mapping each exported slot name to a native handle.
func (m *Module) loadPlugin(call goja.FunctionCall) goja.Value {
	if !isBinary(call.Argument(0)) {
		panic(m.vm.NewTypeError("You must provide a Buffer!"))
	}
	wasm, _ := m.bytesOf(call.Argument(0))
	opts := &wasmfn.Options{Logger: m.logger}
	if name := call.Argument(1); !goja.IsUndefined(name) {
		opts.Name = name.String()
	}
	p, err := wasmfn.Load(m.ctx, wasm, opts)
	if err != nil {
		panic(m.vm.NewGoError(err))
	}
	return m.PluginObject(p)
}

// PluginObject exposes the handles of p to script and drops the caller's
// reference to p. The plugin stays loaded while any of its handles is
// reachable.
func (m *Module) PluginObject(p *wasmfn.Plugin) *goja.Object {
	defer p.Close()
	handles, err := p.Handles()
	if err != nil {
		panic(m.vm.NewGoError(err))
	}
	obj := m.vm.NewObject()
	for name, h := range handles {
		obj.Set(name, m.wrapHandle(h))
	}
	return obj
}
