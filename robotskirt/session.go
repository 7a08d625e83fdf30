package robotskirt

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benmills/robotskirt/buffer"
	"github.com/benmills/robotskirt/engine"
)

const (
	// DefaultMaxNesting is the nesting depth used by the script binding
	// when none is given.
	DefaultMaxNesting = engine.DefaultMaxNesting

	// MaxNestingLimit bounds the nesting depth a Session accepts.
	MaxNestingLimit = 256
)

// Session renders documents with a fixed snapshot of a binding, a set of
// extensions and a nesting limit.
//
// A Session is immutable: changes made to the binding after NewSession do
// not affect it. Render may be called any number of times and from several
// goroutines as long as no slot is script-bound.
type Session struct {
	binding    *Binding
	snap       *Snapshot
	ext        engine.Extensions
	maxNesting int
	logger     *slog.Logger
	closed     atomic.Bool
}

// NewSession snapshots b for rendering. maxNesting must be between 1 and
// MaxNestingLimit.
func NewSession(b *Binding, ext engine.Extensions, maxNesting int, opts *Options) (*Session, error) {
	if b == nil {
		return nil, &ArgumentError{Op: "session", Msg: "renderer is required"}
	}
	if maxNesting < 1 || maxNesting > MaxNestingLimit {
		return nil, &ArgumentError{
			Op:  "session",
			Msg: fmt.Sprintf("max nesting %d out of range [1, %d]", maxNesting, MaxNestingLimit),
		}
	}
	snap, err := b.Materialize()
	if err != nil {
		return nil, err
	}
	return &Session{
		binding:    b,
		snap:       snap,
		ext:        ext,
		maxNesting: maxNesting,
		logger:     opts.logger(),
	}, nil
}

// Binding returns the binding the session was created from.
func (s *Session) Binding() *Binding { return s.binding }

// Extensions returns the enabled markdown extensions.
func (s *Session) Extensions() engine.Extensions { return s.ext }

// MaxNesting returns the nesting limit.
func (s *Session) MaxNesting() int { return s.maxNesting }

// ScriptBound reports whether rendering calls into a script.
func (s *Session) ScriptBound() bool { return s.snap.ScriptBound() }

// Render renders input and returns the produced bytes. The result is owned
// by the caller.
//
// Errors from callbacks are returned unchanged: a script exception comes
// back as the script's own error value.
func (s *Session) Render(input []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	ob := buffer.New(buffer.DefaultUnit)
	if err := s.snap.Render(ob, input, s.ext, s.maxNesting); err != nil {
		ob.Release()
		return nil, err
	}
	out := ob.Transfer()
	s.logger.Debug("render", "in", len(input), "out", len(out), "ext", s.ext, "took", time.Since(start))
	return out, nil
}

// Close releases the session's snapshot. Renders already handed to a Pool
// finish normally.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.snap.Release()
	}
}
