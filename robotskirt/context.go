// Package robotskirt binds callback slots of the rendering engine to native
// functions and to functions of a host scripting environment.
//
// A [Binding] holds one [CallbackSlot] per engine slot. Each slot is either
// unbound, bound to its native default, forwarded to a native function taken
// from another binding (a [Handle]), or bound to a [Script] callable. A
// [Session] freezes a binding into an immutable [Snapshot] and renders
// documents with it.
//
// Native functions carry an opaque context, which is reference counted by
// [Context] so that a function re-plugged into another renderer keeps the
// state it was written against alive for as long as it is reachable.
package robotskirt

import (
	"fmt"
	"sync/atomic"
)

// Context is the reference counted opaque value handed to native functions.
//
// A new Context holds one reference. The release function runs exactly once,
// when the last reference is dropped.
type Context struct {
	value   any
	release func(any)
	refs    atomic.Int64
}

// Resetter is implemented by context values that carry per-render state.
// Reset is called before every render that references the context.
type Resetter interface {
	Reset()
}

// NewContext returns a Context holding value with a single reference.
// release may be nil.
func NewContext(value any, release func(any)) *Context {
	c := &Context{value: value, release: release}
	c.refs.Store(1)
	return c
}

// Value returns the wrapped value.
func (c *Context) Value() any {
	if c == nil {
		return nil
	}
	return c.value
}

// Refs returns the current reference count.
func (c *Context) Refs() int64 { return c.refs.Load() }

// Retain adds a reference and returns c.
func (c *Context) Retain() *Context {
	if n := c.refs.Add(1); n <= 1 {
		panic(fmt.Sprintf("robotskirt: retain of released context (refs %d)", n-1))
	}
	return c
}

// Release drops a reference. Releasing more references than were taken
// panics.
func (c *Context) Release() {
	switch n := c.refs.Add(-1); {
	case n == 0:
		if c.release != nil {
			c.release(c.value)
		}
	case n < 0:
		panic("robotskirt: context released too many times")
	}
}

func (c *Context) reset() {
	if r, ok := c.value.(Resetter); ok {
		r.Reset()
	}
}
