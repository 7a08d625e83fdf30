package js

import (
	"errors"
	"fmt"
	"math"

	"github.com/dop251/goja"

	"github.com/benmills/robotskirt/engine"
	"github.com/benmills/robotskirt/robotskirt"
)

// scriptFunc adapts a JavaScript function to robotskirt.Script.
type scriptFunc struct {
	m     *Module
	fn    goja.Callable
	value goja.Value
}

func (s *scriptFunc) Value() any { return s.value }

// Invoke calls the function with the slot's text arguments as strings,
// followed by the integer argument for shapes that take one.
func (s *scriptFunc) Invoke(slot engine.Slot, args engine.Args) ([]byte, bool, error) {
	vm := s.m.vm
	sig := slot.Signature()
	in := make([]goja.Value, 0, 4)
	for _, text := range [][]byte{args.A, args.B, args.C}[:sig.Buffers()] {
		in = append(in, vm.ToValue(string(text)))
	}
	if sig.HasInt() {
		in = append(in, vm.ToValue(args.N))
	}

	ret, err := s.fn(goja.Undefined(), in...)
	if err != nil {
		return nil, false, err
	}
	if ret == nil || !ret.ToBoolean() {
		return nil, false, nil
	}
	if out, ok := s.m.bytesOf(ret); ok || isBinary(ret) {
		return out, true, nil
	}
	return nil, false, &robotskirt.ContractError{Slot: slot, Signature: sig, Got: typeOf(ret)}
}

// bytesOf returns the bytes of a string, ArrayBuffer or typed array.
// Any other value is converted with its string form. isString reports
// whether v was a string.
func (m *Module) bytesOf(v goja.Value) (b []byte, isString bool) {
	switch x := v.Export().(type) {
	case string:
		return []byte(x), true
	case goja.ArrayBuffer:
		return x.Bytes(), false
	case []byte:
		return x, false
	}
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	return []byte(v.String()), false
}

// inputOf returns the bytes of a string or buffer argument and throws a
// TypeError for anything else.
func (m *Module) inputOf(v goja.Value) (b []byte, isString bool) {
	if _, ok := v.Export().(string); !ok && !isBinary(v) {
		panic(m.vm.NewTypeError("You must provide a String or Buffer!"))
	}
	return m.bytesOf(v)
}

func isBinary(v goja.Value) bool {
	switch v.Export().(type) {
	case goja.ArrayBuffer, []byte:
		return true
	}
	return false
}

func typeOf(v goja.Value) string {
	switch x := v.Export().(type) {
	case bool:
		return "true"
	case int64, float64:
		return "a number"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	default:
		if _, ok := goja.AssertFunction(v); ok {
			return "a function"
		}
		return fmt.Sprintf("%T", x)
	}
}

// output converts rendered bytes to a string when the input was a
// string, and to an ArrayBuffer otherwise.
func (m *Module) output(out []byte, asString bool) goja.Value {
	if asString {
		return m.vm.ToValue(string(out))
	}
	return m.vm.ToValue(m.vm.NewArrayBuffer(out))
}

// errorValue maps err to the value thrown into script. Script exceptions
// are returned as the original thrown value.
func (m *Module) errorValue(err error) goja.Value {
	var (
		ex  *goja.Exception
		arg *robotskirt.ArgumentError
		ce  *robotskirt.ContractError
	)
	switch {
	case errors.As(err, &ex):
		return ex.Value()
	case errors.Is(err, robotskirt.ErrNoAction):
		return m.vm.NewTypeError("No function was set for this action.")
	case errors.As(err, &arg):
		return m.vm.NewTypeError(arg.Msg)
	case errors.As(err, &ce):
		return m.vm.NewTypeError(ce.Error())
	}
	return m.vm.NewGoError(err)
}

// throw raises err in the running script. It does not return.
func (m *Module) throw(err error) {
	var (
		ie *goja.InterruptedError
		ex *goja.Exception
	)
	if errors.As(err, &ie) {
		panic(ie)
	}
	if errors.As(err, &ex) {
		panic(ex)
	}
	panic(m.errorValue(err))
}

// CheckFlags converts a flags argument to an int. It accepts an integer
// or an array of integers, which are OR-ed together. Undefined is zero.
func CheckFlags(v goja.Value) (int, error) {
	if v == nil || goja.IsUndefined(v) {
		return 0, nil
	}
	if obj, ok := v.(*goja.Object); ok && obj.ClassName() == "Array" {
		var flags int
		for _, item := range obj.Export().([]any) {
			n, err := checkInt(item)
			if err != nil {
				return 0, err
			}
			flags |= n
		}
		return flags, nil
	}
	return checkInt(v.Export())
}

func checkInt(x any) (int, error) {
	switch n := x.(type) {
	case int64:
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int(n), nil
		}
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int(n), nil
		}
	}
	return 0, &robotskirt.ArgumentError{Op: "flags", Msg: "You must provide an integer!"}
}
