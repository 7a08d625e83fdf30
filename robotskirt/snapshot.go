package robotskirt

import (
	"sync/atomic"

	"github.com/benmills/robotskirt/buffer"
	"github.com/benmills/robotskirt/engine"
)

// trampolines holds one engine callback per slot. Each expects the
// *Snapshot as its opaque argument and dispatches on the frozen entry.
var trampolines [engine.NumSlots]any

func init() {
	for _, slot := range engine.Slots() {
		trampolines[slot] = engine.Trampoline(slot.Signature(), func(ob *buffer.Buffer, args engine.Args, opaque any) (int, error) {
			snap := opaque.(*Snapshot)
			return snap.entries[slot].invoke(slot, ob, args)
		})
	}
}

// Snapshot is an immutable callback table materialized from a Binding.
type Snapshot struct {
	entries [engine.NumSlots]entry
	table   engine.Callbacks
	ctx     *Context
	scripts bool
	refs    atomic.Int64
}

func (s *Snapshot) build() {
	for i := range s.entries {
		e := &s.entries[i]
		if e.state == ScriptBound {
			s.scripts = true
		}
		if e.state == Unbound && !e.armed {
			continue
		}
		// trampolines always match their slot's signature.
		_ = s.table.SetFunc(engine.Slot(i), trampolines[i])
	}
}

// Callbacks returns a copy of the engine table. It must be rendered with
// the snapshot itself as the opaque argument.
func (s *Snapshot) Callbacks() *engine.Callbacks { return s.table.Clone() }

// State returns the frozen state of slot.
func (s *Snapshot) State(slot engine.Slot) State {
	if !slot.Valid() {
		return Unbound
	}
	return s.entries[slot].state
}

// ScriptBound reports whether any slot calls into a script.
func (s *Snapshot) ScriptBound() bool { return s.scripts }

// Render renders input into ob with this table.
func (s *Snapshot) Render(ob *buffer.Buffer, input []byte, ext engine.Extensions, maxNesting int) error {
	s.reset()
	return engine.Render(ob, input, ext, maxNesting, &s.table, s)
}

// reset clears the per-render state of every referenced context.
func (s *Snapshot) reset() {
	s.ctx.reset()
	for i := range s.entries {
		if h := s.entries[i].handle; h != nil && h.ctx != s.ctx {
			h.ctx.reset()
		}
	}
}

func (s *Snapshot) retain() *Snapshot {
	s.refs.Add(1)
	return s
}

// Release drops the snapshot's references once the last holder is done.
func (s *Snapshot) Release() {
	if s.refs.Add(-1) != 0 {
		return
	}
	for i := range s.entries {
		if h := s.entries[i].handle; h != nil {
			h.Release()
		}
	}
	s.ctx.Release()
}
