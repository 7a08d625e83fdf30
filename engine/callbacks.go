package engine

import (
	"fmt"

	"github.com/benmills/robotskirt/buffer"
)

// Function types, one per Signature. The opaque argument is whatever was
// passed to Render alongside the table.
type (
	VoidBuf1Func    func(ob *buffer.Buffer, opaque any) error
	VoidBuf2Func    func(ob *buffer.Buffer, text []byte, opaque any) error
	VoidBuf2IntFunc func(ob *buffer.Buffer, text []byte, n int, opaque any) error
	VoidBuf3Func    func(ob *buffer.Buffer, a, b []byte, opaque any) error
	IntBuf1Func     func(ob *buffer.Buffer, opaque any) (int, error)
	IntBuf2Func     func(ob *buffer.Buffer, text []byte, opaque any) (int, error)
	IntBuf2IntFunc  func(ob *buffer.Buffer, text []byte, n int, opaque any) (int, error)
	IntBuf4Func     func(ob *buffer.Buffer, a, b, c []byte, opaque any) (int, error)
)

// Args carries the non-output arguments of a callback in signature-neutral
// form. Unused fields are zero.
type Args struct {
	A, B, C []byte
	N       int
}

// Generic is a callback in signature-neutral form. It reports the int
// result for every shape; void shapes ignore it.
type Generic func(ob *buffer.Buffer, args Args, opaque any) (int, error)

// Callbacks is the callback table. A nil entry means the construct has no
// renderer: blocks are dropped and spans fall back to literal text.
type Callbacks struct {
	// block level
	BlockCode  VoidBuf3Func
	BlockQuote VoidBuf2Func
	BlockHTML  VoidBuf2Func
	Header     VoidBuf2IntFunc
	HRule      VoidBuf1Func
	List       VoidBuf2IntFunc
	ListItem   VoidBuf2IntFunc
	Paragraph  VoidBuf2Func
	Table      VoidBuf3Func
	TableRow   VoidBuf2Func
	TableCell  VoidBuf2IntFunc

	// span level
	Autolink       IntBuf2IntFunc
	CodeSpan       IntBuf2Func
	DoubleEmphasis IntBuf2Func
	Emphasis       IntBuf2Func
	Image          IntBuf4Func
	LineBreak      IntBuf1Func
	Link           IntBuf4Func
	RawHTMLTag     IntBuf2Func
	TripleEmphasis IntBuf2Func
	Strikethrough  IntBuf2Func
	Superscript    IntBuf2Func

	// low level
	Entity     VoidBuf2Func
	NormalText VoidBuf2Func

	// header and footer
	DocHeader VoidBuf1Func
	DocFooter VoidBuf1Func
}

func (c *Callbacks) field(s Slot) any {
	switch s {
	case BlockCode:
		return &c.BlockCode
	case BlockQuote:
		return &c.BlockQuote
	case BlockHTML:
		return &c.BlockHTML
	case Header:
		return &c.Header
	case HRule:
		return &c.HRule
	case List:
		return &c.List
	case ListItem:
		return &c.ListItem
	case Paragraph:
		return &c.Paragraph
	case Table:
		return &c.Table
	case TableRow:
		return &c.TableRow
	case TableCell:
		return &c.TableCell
	case Autolink:
		return &c.Autolink
	case CodeSpan:
		return &c.CodeSpan
	case DoubleEmphasis:
		return &c.DoubleEmphasis
	case Emphasis:
		return &c.Emphasis
	case Image:
		return &c.Image
	case LineBreak:
		return &c.LineBreak
	case Link:
		return &c.Link
	case RawHTMLTag:
		return &c.RawHTMLTag
	case TripleEmphasis:
		return &c.TripleEmphasis
	case Strikethrough:
		return &c.Strikethrough
	case Superscript:
		return &c.Superscript
	case Entity:
		return &c.Entity
	case NormalText:
		return &c.NormalText
	case DocHeader:
		return &c.DocHeader
	case DocFooter:
		return &c.DocFooter
	}
	return nil
}

// Func returns the function stored in slot s, or nil when the entry is
// empty. The result has the named func type of s.Signature().
func (c *Callbacks) Func(s Slot) any {
	switch p := c.field(s).(type) {
	case *VoidBuf1Func:
		if *p != nil {
			return *p
		}
	case *VoidBuf2Func:
		if *p != nil {
			return *p
		}
	case *VoidBuf2IntFunc:
		if *p != nil {
			return *p
		}
	case *VoidBuf3Func:
		if *p != nil {
			return *p
		}
	case *IntBuf1Func:
		if *p != nil {
			return *p
		}
	case *IntBuf2Func:
		if *p != nil {
			return *p
		}
	case *IntBuf2IntFunc:
		if *p != nil {
			return *p
		}
	case *IntBuf4Func:
		if *p != nil {
			return *p
		}
	}
	return nil
}

// SetFunc stores fn in slot s. A nil fn empties the entry. fn must be of
// the slot's signature, either as the named func type or its underlying
// literal type.
func (c *Callbacks) SetFunc(s Slot, fn any) error {
	if !s.Valid() {
		return fmt.Errorf("engine: invalid slot %v", s)
	}
	var f any
	if fn != nil {
		var ok bool
		if f, ok = Coerce(s.Signature(), fn); !ok {
			return fmt.Errorf("engine: %T is not a %v function for slot %v", fn, s.Signature(), s)
		}
	}
	switch p := c.field(s).(type) {
	case *VoidBuf1Func:
		*p, _ = f.(VoidBuf1Func)
	case *VoidBuf2Func:
		*p, _ = f.(VoidBuf2Func)
	case *VoidBuf2IntFunc:
		*p, _ = f.(VoidBuf2IntFunc)
	case *VoidBuf3Func:
		*p, _ = f.(VoidBuf3Func)
	case *IntBuf1Func:
		*p, _ = f.(IntBuf1Func)
	case *IntBuf2Func:
		*p, _ = f.(IntBuf2Func)
	case *IntBuf2IntFunc:
		*p, _ = f.(IntBuf2IntFunc)
	case *IntBuf4Func:
		*p, _ = f.(IntBuf4Func)
	}
	return nil
}

// Clone returns a shallow copy of the table.
func (c *Callbacks) Clone() *Callbacks {
	out := *c
	return &out
}

// Coerce converts fn to the named func type of sig. It reports false when
// fn is nil or has a different shape.
func Coerce(sig Signature, fn any) (any, bool) {
	switch sig {
	case VoidBuf1:
		switch f := fn.(type) {
		case VoidBuf1Func:
			return f, f != nil
		case func(*buffer.Buffer, any) error:
			return VoidBuf1Func(f), f != nil
		}
	case VoidBuf2:
		switch f := fn.(type) {
		case VoidBuf2Func:
			return f, f != nil
		case func(*buffer.Buffer, []byte, any) error:
			return VoidBuf2Func(f), f != nil
		}
	case VoidBuf2Int:
		switch f := fn.(type) {
		case VoidBuf2IntFunc:
			return f, f != nil
		case func(*buffer.Buffer, []byte, int, any) error:
			return VoidBuf2IntFunc(f), f != nil
		}
	case VoidBuf3:
		switch f := fn.(type) {
		case VoidBuf3Func:
			return f, f != nil
		case func(*buffer.Buffer, []byte, []byte, any) error:
			return VoidBuf3Func(f), f != nil
		}
	case IntBuf1:
		switch f := fn.(type) {
		case IntBuf1Func:
			return f, f != nil
		case func(*buffer.Buffer, any) (int, error):
			return IntBuf1Func(f), f != nil
		}
	case IntBuf2:
		switch f := fn.(type) {
		case IntBuf2Func:
			return f, f != nil
		case func(*buffer.Buffer, []byte, any) (int, error):
			return IntBuf2Func(f), f != nil
		}
	case IntBuf2Int:
		switch f := fn.(type) {
		case IntBuf2IntFunc:
			return f, f != nil
		case func(*buffer.Buffer, []byte, int, any) (int, error):
			return IntBuf2IntFunc(f), f != nil
		}
	case IntBuf4:
		switch f := fn.(type) {
		case IntBuf4Func:
			return f, f != nil
		case func(*buffer.Buffer, []byte, []byte, []byte, any) (int, error):
			return IntBuf4Func(f), f != nil
		}
	}
	return nil, false
}

// Call invokes fn, which must have shape sig, with the arguments in args.
// Void shapes report 1.
func Call(sig Signature, fn any, ob *buffer.Buffer, args Args, opaque any) (int, error) {
	f, ok := Coerce(sig, fn)
	if !ok {
		return 0, fmt.Errorf("engine: %T is not a %v function", fn, sig)
	}
	switch f := f.(type) {
	case VoidBuf1Func:
		return 1, f(ob, opaque)
	case VoidBuf2Func:
		return 1, f(ob, args.A, opaque)
	case VoidBuf2IntFunc:
		return 1, f(ob, args.A, args.N, opaque)
	case VoidBuf3Func:
		return 1, f(ob, args.A, args.B, opaque)
	case IntBuf1Func:
		return f(ob, opaque)
	case IntBuf2Func:
		return f(ob, args.A, opaque)
	case IntBuf2IntFunc:
		return f(ob, args.A, args.N, opaque)
	case IntBuf4Func:
		return f(ob, args.A, args.B, args.C, opaque)
	}
	return 0, fmt.Errorf("engine: unknown signature %v", sig)
}

// Trampoline adapts g to the named func type of sig so it can be stored in
// a Callbacks table.
func Trampoline(sig Signature, g Generic) any {
	switch sig {
	case VoidBuf1:
		return VoidBuf1Func(func(ob *buffer.Buffer, opaque any) error {
			_, err := g(ob, Args{}, opaque)
			return err
		})
	case VoidBuf2:
		return VoidBuf2Func(func(ob *buffer.Buffer, text []byte, opaque any) error {
			_, err := g(ob, Args{A: text}, opaque)
			return err
		})
	case VoidBuf2Int:
		return VoidBuf2IntFunc(func(ob *buffer.Buffer, text []byte, n int, opaque any) error {
			_, err := g(ob, Args{A: text, N: n}, opaque)
			return err
		})
	case VoidBuf3:
		return VoidBuf3Func(func(ob *buffer.Buffer, a, b []byte, opaque any) error {
			_, err := g(ob, Args{A: a, B: b}, opaque)
			return err
		})
	case IntBuf1:
		return IntBuf1Func(func(ob *buffer.Buffer, opaque any) (int, error) {
			return g(ob, Args{}, opaque)
		})
	case IntBuf2:
		return IntBuf2Func(func(ob *buffer.Buffer, text []byte, opaque any) (int, error) {
			return g(ob, Args{A: text}, opaque)
		})
	case IntBuf2Int:
		return IntBuf2IntFunc(func(ob *buffer.Buffer, text []byte, n int, opaque any) (int, error) {
			return g(ob, Args{A: text, N: n}, opaque)
		})
	case IntBuf4:
		return IntBuf4Func(func(ob *buffer.Buffer, a, b, c []byte, opaque any) (int, error) {
			return g(ob, Args{A: a, B: b, C: c}, opaque)
		})
	}
	return nil
}
