package js

import (
	"errors"
	"runtime"
	"time"

	"github.com/dop251/goja"

	"github.com/benmills/robotskirt/engine"
	"github.com/benmills/robotskirt/robotskirt"
)

// markdown is the Go side of a Markdown object.
type markdown struct {
	session  *robotskirt.Session
	renderer *goja.Object
}

func (m *Module) defineMarkdown() {
	vm := m.vm
	ctor := vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		robj, _ := call.Argument(0).(*goja.Object)
		r := m.mustRenderer(call.Argument(0))

		var ext int
		maxNesting := robotskirt.DefaultMaxNesting
		if len(call.Arguments) >= 2 {
			var err error
			if ext, err = CheckFlags(call.Argument(1)); err != nil {
				m.throw(err)
			}
		}
		if len(call.Arguments) >= 3 {
			n, err := checkInt(call.Argument(2).Export())
			if err != nil {
				m.throw(err)
			}
			maxNesting = n
		}

		md := &markdown{session: m.session(r, engine.Extensions(ext), maxNesting), renderer: robj}
		call.This.DefineDataPropertySymbol(m.markdownSym, vm.ToValue(md), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
		runtime.AddCleanup(call.This, (*robotskirt.Session).Close, md.session)
		return nil
	}).(*goja.Object)
	proto := ctor.Get("prototype").ToObject(vm)

	getter := func(fn func(md *markdown) goja.Value) goja.Value {
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return fn(m.thisMarkdown(call.This))
		})
	}
	proto.DefineAccessorProperty("extensions", getter(func(md *markdown) goja.Value {
		return vm.ToValue(int64(md.session.Extensions()))
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	proto.DefineAccessorProperty("maxNesting", getter(func(md *markdown) goja.Value {
		return vm.ToValue(md.session.MaxNesting())
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	proto.DefineAccessorProperty("renderer", getter(func(md *markdown) goja.Value {
		return md.renderer
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	proto.Set("renderSync", func(call goja.FunctionCall) goja.Value {
		return m.renderSync(m.thisMarkdown(call.This).session, call.Argument(0))
	})
	proto.Set("render", func(call goja.FunctionCall) goja.Value {
		md := m.thisMarkdown(call.This)
		m.renderAsync(md.session, call.Argument(0), m.mustCallback(call.Argument(1)), false)
		return goja.Undefined()
	})
	m.markdownCtor = ctor
}

func (m *Module) thisMarkdown(v goja.Value) *markdown {
	if obj, ok := v.(*goja.Object); ok {
		if sv := obj.GetSymbol(m.markdownSym); sv != nil {
			if md, ok := sv.Export().(*markdown); ok {
				return md
			}
		}
	}
	panic(m.vm.NewTypeError("Illegal invocation"))
}

func (m *Module) session(r *renderer, ext engine.Extensions, maxNesting int) *robotskirt.Session {
	s, err := robotskirt.NewSession(r.binding, ext, maxNesting, m.ropts)
	if err != nil {
		m.throw(err)
	}
	return s
}

func (m *Module) renderSync(s *robotskirt.Session, input goja.Value) goja.Value {
	in, asString := m.inputOf(input)
	out, err := s.Render(in)
	if err != nil {
		m.throw(err)
	}
	return m.output(out, asString)
}

// renderAsync renders input and calls cb(err, output) from the event loop.
// Sessions without script callbacks render on the worker pool; the others
// render right away on the loop goroutine. When owned is set the session is
// closed once the render is done.
func (m *Module) renderAsync(s *robotskirt.Session, input goja.Value, cb goja.Callable, owned bool) {
	if owned {
		defer func() {
			if r := recover(); r != nil {
				s.Close()
				panic(r)
			}
		}()
	}
	in, asString := m.inputOf(input)
	loop := m.loop
	if loop == nil {
		panic(m.vm.NewTypeError("render needs an event loop"))
	}

	// Keeps the loop running until the completion callback is queued.
	keepalive := loop.SetInterval(func(*goja.Runtime) {}, time.Hour)
	done := func(out []byte, err error) {
		if owned {
			s.Close()
		}
		loop.RunOnLoop(func(vm *goja.Runtime) {
			loop.ClearInterval(keepalive)
			var cbErr error
			if err != nil {
				_, cbErr = cb(goja.Undefined(), m.errorValue(err))
			} else {
				_, cbErr = cb(goja.Undefined(), goja.Null(), m.output(out, asString))
			}
			if cbErr != nil {
				m.logger.Error("render callback failed", "err", cbErr)
			}
		})
	}

	if s.ScriptBound() {
		done(s.Render(in))
		return
	}
	if err := m.pool.Go(m.ctx, s, in, done); err != nil {
		if errors.Is(err, robotskirt.ErrScriptBound) {
			done(s.Render(in))
			return
		}
		done(nil, err)
	}
}
