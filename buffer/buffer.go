// Package buffer provides the growable byte buffer shared by the rendering
// engine and its callbacks.
//
// A Buffer accumulates output with geometric growth from an initial unit.
// Ownership of the accumulated bytes can be moved out exactly once with
// [Buffer.Transfer]; after that the buffer is consumed and only
// [Buffer.Release] (a no-op) is valid on it.
package buffer

import (
	"errors"
	"fmt"
)

// DefaultUnit is the initial allocation unit used for output buffers.
const DefaultUnit = 64

// MaxSize bounds the capacity a Buffer may grow to.
const MaxSize = 1 << 30

var (
	// ErrConsumed is the panic value raised when a consumed buffer is used.
	ErrConsumed = errors.New("buffer: use after transfer")

	// ErrTooLarge is the panic value raised when a buffer would exceed MaxSize.
	ErrTooLarge = errors.New("buffer: too large")
)

// Buffer is an append-only byte buffer.
//
// The zero value is usable and grows from DefaultUnit.
type Buffer struct {
	data     []byte
	unit     int
	consumed bool
}

// New creates a Buffer that grows from unit bytes.
// A unit of zero or less selects DefaultUnit.
func New(unit int) *Buffer {
	if unit <= 0 {
		unit = DefaultUnit
	}
	return &Buffer{unit: unit}
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the allocated capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Unit returns the growth unit.
func (b *Buffer) Unit() int {
	if b.unit <= 0 {
		return DefaultUnit
	}
	return b.unit
}

// Consumed reports whether Transfer has been called.
func (b *Buffer) Consumed() bool { return b.consumed }

// Bytes returns the written bytes. The slice aliases the buffer until the
// next write.
func (b *Buffer) Bytes() []byte {
	b.check()
	return b.data
}

// String returns the written bytes as a string.
func (b *Buffer) String() string {
	if b.consumed {
		return ""
	}
	return string(b.data)
}

// Grow ensures room for n more bytes, doubling the capacity from the unit.
func (b *Buffer) Grow(n int) {
	b.check()
	if n < 0 {
		panic(fmt.Errorf("buffer: negative grow %d", n))
	}
	need := len(b.data) + n
	if need <= cap(b.data) {
		return
	}
	if need > MaxSize {
		panic(ErrTooLarge)
	}
	size := cap(b.data)
	if size == 0 {
		size = b.Unit()
	}
	for size < need {
		size *= 2
	}
	if size > MaxSize {
		size = MaxSize
	}
	data := make([]byte, len(b.data), size)
	copy(data, b.data)
	b.data = data
}

// Put appends p.
func (b *Buffer) Put(p []byte) {
	b.Grow(len(p))
	b.data = append(b.data, p...)
}

// PutString appends s.
func (b *Buffer) PutString(s string) {
	b.Grow(len(s))
	b.data = append(b.data, s...)
}

// PutByte appends c.
func (b *Buffer) PutByte(c byte) {
	b.Grow(1)
	b.data = append(b.data, c)
}

// Write implements io.Writer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Put(p)
	return len(p), nil
}

// WriteString implements io.StringWriter.
func (b *Buffer) WriteString(s string) (int, error) {
	b.PutString(s)
	return len(s), nil
}

// WriteByte implements io.ByteWriter.
func (b *Buffer) WriteByte(c byte) error {
	b.PutByte(c)
	return nil
}

// LastByte returns the final byte written, or 0 when empty.
func (b *Buffer) LastByte() byte {
	if b.consumed || len(b.data) == 0 {
		return 0
	}
	return b.data[len(b.data)-1]
}

// Reset empties the buffer and keeps its capacity.
func (b *Buffer) Reset() {
	b.check()
	b.data = b.data[:0]
}

// Release drops the buffer storage. It is a no-op on a consumed buffer.
func (b *Buffer) Release() {
	if b.consumed {
		return
	}
	b.data = nil
}

// Transfer moves the written bytes out of the buffer. The buffer no longer
// owns them: later writes or a second Transfer panic with ErrConsumed.
func (b *Buffer) Transfer() []byte {
	b.check()
	out := b.data
	if out == nil {
		out = []byte{}
	}
	b.data = nil
	b.consumed = true
	return out
}

func (b *Buffer) check() {
	if b.consumed {
		panic(ErrConsumed)
	}
}
