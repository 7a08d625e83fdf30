package robotskirt

import (
	"fmt"
	"sync/atomic"

	"github.com/benmills/robotskirt/buffer"
	"github.com/benmills/robotskirt/engine"
)

// Handle is a native function together with its signature and context.
//
// Handles are how native functions cross into a script: the script sees an
// opaque callable object and may assign it to a slot of another renderer,
// which then calls the function directly with its original context.
// Every Handle owns one reference on its Context. Call Release when done.
type Handle struct {
	fn       any
	sig      engine.Signature
	ctx      *Context
	released atomic.Bool
}

// Wrap returns a Handle for fn, which must be a function of shape sig.
// The handle retains ctx; a nil ctx gets a fresh empty context.
func Wrap(fn any, sig engine.Signature, ctx *Context) (*Handle, error) {
	if !sig.Valid() {
		return nil, &ArgumentError{Op: "wrap", Msg: fmt.Sprintf("unknown signature %v", sig)}
	}
	f, ok := engine.Coerce(sig, fn)
	if !ok {
		return nil, &ArgumentError{Op: "wrap", Msg: fmt.Sprintf("%T is not a %v function", fn, sig)}
	}
	if ctx == nil {
		ctx = NewContext(nil, nil)
	} else {
		ctx.Retain()
	}
	return &Handle{fn: f, sig: sig, ctx: ctx}, nil
}

// Signature returns the function's shape.
func (h *Handle) Signature() engine.Signature { return h.sig }

// Context returns the function's context.
func (h *Handle) Context() *Context { return h.ctx }

// Released reports whether Release has been called.
func (h *Handle) Released() bool { return h.released.Load() }

// Native returns the function and its context if the handle has shape
// expected.
func (h *Handle) Native(expected engine.Signature) (fn any, ctx *Context, ok bool) {
	if h == nil || h.sig != expected || h.released.Load() {
		return nil, nil, false
	}
	return h.fn, h.ctx, true
}

// Call runs the function against a fresh output buffer and returns what it
// wrote. ok is false when an int-returning function declined.
func (h *Handle) Call(args engine.Args) (out []byte, ok bool, err error) {
	if h.released.Load() {
		return nil, false, ErrReleased
	}
	ob := buffer.New(buffer.DefaultUnit)
	ret, err := engine.Call(h.sig, h.fn, ob, args, h.ctx.Value())
	if err != nil {
		return nil, false, err
	}
	if h.sig.ReturnsInt() && ret == 0 {
		return nil, false, nil
	}
	return ob.Transfer(), true, nil
}

// Dup returns an independent handle for the same function, sharing and
// retaining the context.
func (h *Handle) Dup() *Handle {
	return &Handle{fn: h.fn, sig: h.sig, ctx: h.ctx.Retain()}
}

// Release drops the handle's context reference. It is safe to call more
// than once.
func (h *Handle) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.ctx.Release()
	}
}

func (h *Handle) String() string { return "<Native function>" }

func (h *Handle) invoke(ob *buffer.Buffer, args engine.Args) (int, error) {
	return engine.Call(h.sig, h.fn, ob, args, h.ctx.Value())
}
