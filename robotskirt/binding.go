package robotskirt

import (
	"log/slog"
	"sync"

	"github.com/benmills/robotskirt/engine"
)

// Options configures a Binding, Session or Pool.
type Options struct {
	// Logger receives debug output about slot changes and renders.
	// Nil means slog.Default().
	Logger *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Binding is the set of callback slots of one renderer.
//
// Binding methods are safe for concurrent use. Snapshots taken with
// Materialize do not observe later changes.
type Binding struct {
	mu     sync.Mutex
	slots  [engine.NumSlots]CallbackSlot
	ctx    *Context
	logger *slog.Logger
	closed bool
}

// NewBinding returns a binding whose slots are all unbound. ctx is the
// renderer's own context; nil gets a fresh empty one. The binding takes
// over the caller's reference to ctx.
func NewBinding(ctx *Context, opts *Options) *Binding {
	if ctx == nil {
		ctx = NewContext(nil, nil)
	}
	b := &Binding{ctx: ctx, logger: opts.logger()}
	for i := range b.slots {
		b.slots[i].slot = engine.Slot(i)
	}
	return b
}

// NewBindingWithDefaults returns a binding whose slots are bound to the
// non-nil entries of defaults, called with ctx's value as opaque.
func NewBindingWithDefaults(defaults *engine.Callbacks, ctx *Context, opts *Options) (*Binding, error) {
	b := NewBinding(ctx, opts)
	if defaults == nil {
		return b, nil
	}
	for _, slot := range engine.Slots() {
		fn := defaults.Func(slot)
		if fn == nil {
			continue
		}
		if err := b.slots[slot].InstallDefault(fn, b.ctx); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

// Context returns the renderer's own context.
func (b *Binding) Context() *Context { return b.ctx }

// Set assigns v to slot. See CallbackSlot.Set for the accepted values.
func (b *Binding) Set(slot engine.Slot, v any) error {
	if !slot.Valid() {
		return &ArgumentError{Op: "set", Msg: "unknown slot " + slot.String()}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	s := &b.slots[slot]
	prev := s.state
	if err := s.Set(v); err != nil {
		return err
	}
	b.logger.Debug("slot set", "slot", slot, "from", prev, "to", s.state)
	return nil
}

// SetByName is Set with the slot given by its table name.
func (b *Binding) SetByName(name string, v any) error {
	slot, ok := engine.SlotByName(name)
	if !ok {
		return &ArgumentError{Op: "set", Msg: "unknown slot " + name}
	}
	return b.Set(slot, v)
}

// Get returns the value of slot. See CallbackSlot.Get.
func (b *Binding) Get(slot engine.Slot) any {
	if !slot.Valid() {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots[slot].Get()
}

// Handle returns the native handle bound to slot, if any.
func (b *Binding) Handle(slot engine.Slot) *Handle {
	if !slot.Valid() {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots[slot].Handle()
}

// State returns the binding state of slot.
func (b *Binding) State(slot engine.Slot) State {
	if !slot.Valid() {
		return Unbound
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots[slot].State()
}

// Materialize freezes the binding into a Snapshot. The snapshot retains
// every context it references; call its Release when done.
func (b *Binding) Materialize() (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	snap := &Snapshot{ctx: b.ctx.Retain()}
	snap.refs.Store(1)
	for i := range b.slots {
		snap.entries[i] = b.slots[i].freeze()
	}
	snap.build()
	return snap, nil
}

// Close unbinds every slot and drops the binding's context reference.
// Snapshots taken earlier stay valid.
func (b *Binding) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for i := range b.slots {
		b.slots[i].clear()
	}
	b.ctx.Release()
}
