package js

import (
	"runtime"

	"github.com/dop251/goja"

	"github.com/benmills/robotskirt/engine"
	"github.com/benmills/robotskirt/engine/html"
	"github.com/benmills/robotskirt/robotskirt"
)

// renderer is the Go side of a Renderer object.
type renderer struct {
	binding *robotskirt.Binding
	flags   html.Flags
	html    bool

	// forwarded holds the handle objects assigned to Forwarded slots, so
	// reading a slot returns the object that was written.
	forwarded [engine.NumSlots]goja.Value

	// exposed caches the handle object of each NativeDefault slot.
	exposed [engine.NumSlots]exposedHandle
}

type exposedHandle struct {
	h   *robotskirt.Handle
	obj *goja.Object
}

func (m *Module) defineRenderer() {
	vm := m.vm
	ctor := vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		m.attachRenderer(call.This, &renderer{binding: robotskirt.NewBinding(nil, m.ropts)})
		return nil
	}).(*goja.Object)
	proto := ctor.Get("prototype").ToObject(vm)

	for _, slot := range engine.Slots() {
		proto.DefineAccessorProperty(slot.String(),
			vm.ToValue(func(call goja.FunctionCall) goja.Value {
				return m.getSlot(m.thisRenderer(call.This), slot)
			}),
			vm.ToValue(func(call goja.FunctionCall) goja.Value {
				m.setSlot(m.thisRenderer(call.This), slot, call.Argument(0))
				return goja.Undefined()
			}),
			goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	m.rendererCtor = ctor
}

func (m *Module) defineHTMLRenderer() {
	vm := m.vm
	ctor := vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		var flags int
		if len(call.Arguments) > 0 {
			var err error
			if flags, err = CheckFlags(call.Argument(0)); err != nil {
				m.throw(err)
			}
		}
		r := m.newHTMLRenderer(html.Flags(flags))
		m.attachRenderer(call.This, r)
		return nil
	}).(*goja.Object)
	proto := ctor.Get("prototype").ToObject(vm)
	proto.SetPrototype(m.rendererCtor.Get("prototype").ToObject(vm))
	ctor.SetPrototype(m.rendererCtor)

	proto.DefineAccessorProperty("flags",
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(int64(m.thisRenderer(call.This).flags))
		}),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	m.htmlCtor = ctor
}

// newHTMLRenderer returns a renderer whose slots are bound to the HTML
// defaults. The caller owns the binding until it is attached.
func (m *Module) newHTMLRenderer(flags html.Flags) *renderer {
	cb, opts := html.NewRenderer(flags)
	b, err := robotskirt.NewBindingWithDefaults(cb, robotskirt.NewContext(opts, nil), m.ropts)
	if err != nil {
		m.throw(err)
	}
	return &renderer{binding: b, flags: flags, html: true}
}

func (m *Module) attachRenderer(obj *goja.Object, r *renderer) {
	obj.DefineDataPropertySymbol(m.rendererSym, m.vm.ToValue(r), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	runtime.AddCleanup(obj, (*robotskirt.Binding).Close, r.binding)
	m.logger.Debug("renderer created", "html", r.html, "flags", r.flags)
}

// rendererOf returns the renderer state of v, or nil if v is not a
// renderer created by this module.
func (m *Module) rendererOf(v goja.Value) *renderer {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	sv := obj.GetSymbol(m.rendererSym)
	if sv == nil {
		return nil
	}
	r, _ := sv.Export().(*renderer)
	return r
}

func (m *Module) thisRenderer(v goja.Value) *renderer {
	r := m.rendererOf(v)
	if r == nil {
		panic(m.vm.NewTypeError("Illegal invocation"))
	}
	return r
}

func (m *Module) mustRenderer(v goja.Value) *renderer {
	r := m.rendererOf(v)
	if r == nil {
		panic(m.vm.NewTypeError("You must provide a Renderer!"))
	}
	return r
}

func (m *Module) getSlot(r *renderer, slot engine.Slot) goja.Value {
	switch r.binding.State(slot) {
	case robotskirt.ScriptBound:
		if v, ok := r.binding.Get(slot).(goja.Value); ok {
			return v
		}
	case robotskirt.Forwarded:
		if v := r.forwarded[slot]; v != nil {
			return v
		}
	case robotskirt.NativeDefault:
		h := r.binding.Handle(slot)
		if h == nil {
			break
		}
		if e := r.exposed[slot]; e.h == h {
			return e.obj
		}
		obj := m.wrapHandle(h.Dup())
		r.exposed[slot] = exposedHandle{h: h, obj: obj}
		return obj
	}
	return goja.Undefined()
}

func (m *Module) setSlot(r *renderer, slot engine.Slot, v goja.Value) {
	var err error
	switch {
	case !v.ToBoolean():
		err = r.binding.Set(slot, nil)
	default:
		if h := m.handleOf(v); h != nil {
			if err = r.binding.Set(slot, h); err == nil {
				r.forwarded[slot] = v
			}
			break
		}
		if fn, ok := goja.AssertFunction(v); ok {
			err = r.binding.Set(slot, &scriptFunc{m: m, fn: fn, value: v})
			break
		}
		err = r.binding.Set(slot, v.Export())
	}
	if err != nil {
		m.throw(err)
	}
	if r.binding.State(slot) != robotskirt.Forwarded {
		r.forwarded[slot] = nil
	}
}

// wrapHandle returns a callable object for h. The object owns h and
// releases it when collected.
func (m *Module) wrapHandle(h *robotskirt.Handle) *goja.Object {
	vm := m.vm
	obj := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return m.callHandle(h, call)
	}).(*goja.Object)
	obj.DefineDataPropertySymbol(m.handleSym, vm.ToValue(h), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	str := vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(h.String()) })
	obj.DefineDataProperty("toString", str, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	obj.DefineDataProperty("inspect", str, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	runtime.AddCleanup(obj, (*robotskirt.Handle).Release, h)
	return obj
}

// handleOf returns the native handle behind v, or nil.
func (m *Module) handleOf(v goja.Value) *robotskirt.Handle {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	hv := obj.GetSymbol(m.handleSym)
	if hv == nil {
		return nil
	}
	h, _ := hv.Export().(*robotskirt.Handle)
	return h
}

// callHandle runs a native function from script. Text arguments come first,
// followed by the integer argument for shapes that take one. It returns
// the produced text, or false when the function declined.
func (m *Module) callHandle(h *robotskirt.Handle, call goja.FunctionCall) goja.Value {
	sig := h.Signature()
	var args engine.Args
	texts := []*[]byte{&args.A, &args.B, &args.C}
	n := sig.Buffers()
	for i := 0; i < n; i++ {
		*texts[i], _ = m.bytesOf(call.Argument(i))
	}
	if sig.HasInt() {
		args.N = int(call.Argument(n).ToInteger())
	}
	out, ok, err := h.Call(args)
	if err != nil {
		m.throw(err)
	}
	if !ok {
		return m.vm.ToValue(false)
	}
	return m.vm.ToValue(string(out))
}

// NewHTMLRenderer constructs an HtmlRenderer object as `new
// HtmlRenderer(flags)` would.
func (m *Module) NewHTMLRenderer(flags html.Flags) (*goja.Object, error) {
	return m.vm.New(m.htmlCtor, m.vm.ToValue(int64(flags)))
}

// Binding returns the binding behind a Renderer object created by this
// module.
func (m *Module) Binding(v goja.Value) (*robotskirt.Binding, bool) {
	r := m.rendererOf(v)
	if r == nil {
		return nil, false
	}
	return r.binding, true
}
