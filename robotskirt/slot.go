package robotskirt

import (
	"fmt"

	"github.com/benmills/robotskirt/buffer"
	"github.com/benmills/robotskirt/engine"
)

// State is the binding state of a CallbackSlot.
type State int

const (
	Unbound State = iota
	NativeDefault
	Forwarded
	ScriptBound
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case NativeDefault:
		return "native-default"
	case Forwarded:
		return "forwarded"
	case ScriptBound:
		return "script-bound"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Script is a callable from the host scripting environment.
//
// Invoke calls it with the arguments of slot. It returns
// the bytes to append to the output, or ok=false when the script declined
// (returned false, null or undefined). A return value of any other
// unusable type is reported as a *ContractError. Exceptions raised by the
// script are returned unchanged.
type Script interface {
	Invoke(slot engine.Slot, args engine.Args) (out []byte, ok bool, err error)

	// Value returns the script-side function object.
	Value() any
}

// CallbackSlot is one entry of a Binding.
//
// The zero value is Unbound and unarmed: it leaves the engine's table entry
// empty. Any assignment arms the slot, after which an Unbound slot fails
// with ErrNoAction when the engine reaches it.
type CallbackSlot struct {
	slot   engine.Slot
	state  State
	armed  bool
	handle *Handle
	script Script
}

// Slot returns which table entry this is.
func (s *CallbackSlot) Slot() engine.Slot { return s.slot }

// State returns the current binding state.
func (s *CallbackSlot) State() State { return s.state }

// Armed reports whether the slot was ever assigned.
func (s *CallbackSlot) Armed() bool { return s.armed || s.state != Unbound }

// InstallDefault binds the slot to a native default function. fn must have
// the slot's signature. The slot retains ctx.
func (s *CallbackSlot) InstallDefault(fn any, ctx *Context) error {
	h, err := Wrap(fn, s.slot.Signature(), ctx)
	if err != nil {
		return err
	}
	s.clear()
	s.state = NativeDefault
	s.handle = h
	return nil
}

// Set assigns v to the slot:
//
//   - nil or false unbinds it,
//   - a *Handle of the slot's signature forwards to that native function,
//   - a Script binds it to the script.
//
// Anything else, including a handle of another signature, is rejected with
// an *ArgumentError and leaves the slot unchanged.
func (s *CallbackSlot) Set(v any) error {
	switch v := v.(type) {
	case nil:
		s.unbind()
		return nil
	case bool:
		if !v {
			s.unbind()
			return nil
		}
	case *Handle:
		if v == nil {
			s.unbind()
			return nil
		}
		if v.Released() {
			return &ArgumentError{Op: s.slot.String(), Msg: "native function was released"}
		}
		if v.Signature() != s.slot.Signature() {
			return &ArgumentError{
				Op:  s.slot.String(),
				Msg: fmt.Sprintf("native function has signature %v, slot expects %v", v.Signature(), s.slot.Signature()),
			}
		}
		h := v.Dup()
		s.clear()
		s.state = Forwarded
		s.handle = h
		s.armed = true
		return nil
	case Script:
		if v != nil {
			s.clear()
			s.state = ScriptBound
			s.script = v
			s.armed = true
			return nil
		}
	}
	return &ArgumentError{Op: s.slot.String(), Msg: "Value must be a function!"}
}

// Get returns the slot's current value: the script function for
// ScriptBound, the *Handle for NativeDefault and Forwarded, nil otherwise.
func (s *CallbackSlot) Get() any {
	switch s.state {
	case ScriptBound:
		return s.script.Value()
	case NativeDefault, Forwarded:
		return s.handle
	}
	return nil
}

// Handle returns the native handle of a NativeDefault or Forwarded slot.
func (s *CallbackSlot) Handle() *Handle {
	if s.state == NativeDefault || s.state == Forwarded {
		return s.handle
	}
	return nil
}

func (s *CallbackSlot) unbind() {
	s.clear()
	s.armed = true
}

// clear releases the current binding and leaves the slot Unbound.
func (s *CallbackSlot) clear() {
	if s.handle != nil {
		s.handle.Release()
		s.handle = nil
	}
	s.script = nil
	s.state = Unbound
}

// entry is the frozen form of a slot held by a Snapshot.
type entry struct {
	state  State
	armed  bool
	handle *Handle
	script Script
}

func (s *CallbackSlot) freeze() entry {
	e := entry{state: s.state, armed: s.Armed(), script: s.script}
	if s.handle != nil {
		e.handle = s.handle.Dup()
	}
	return e
}

func (e *entry) invoke(slot engine.Slot, ob *buffer.Buffer, args engine.Args) (int, error) {
	sig := slot.Signature()
	switch e.state {
	case NativeDefault, Forwarded:
		return e.handle.invoke(ob, args)
	case ScriptBound:
		out, ok, err := e.script.Invoke(slot, args)
		if err != nil {
			return 0, err
		}
		if !ok {
			if sig.ReturnsInt() {
				return 0, nil
			}
			return 0, &ContractError{Slot: slot, Signature: sig, Got: "a falsy value"}
		}
		ob.Put(out)
		return 1, nil
	}
	return 0, ErrNoAction
}
