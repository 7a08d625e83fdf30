package robotskirt

import (
	"errors"
	"fmt"

	"github.com/benmills/robotskirt/engine"
)

var (
	// ErrNoAction is returned when the engine reaches a slot that was
	// explicitly unset.
	ErrNoAction = errors.New("no function was set for this action")

	// ErrScriptBound is returned by Pool.Go for sessions whose renderer has
	// script callbacks. Those must render on the script's own goroutine.
	ErrScriptBound = errors.New("robotskirt: renderer has script callbacks")

	// ErrClosed is returned when a closed Binding or Session is used.
	ErrClosed = errors.New("robotskirt: closed")

	// ErrReleased is returned when a released Handle is called.
	ErrReleased = errors.New("robotskirt: handle released")
)

// ArgumentError reports an invalid value passed by a caller, such as a
// non-function assigned to a slot or an out of range nesting depth.
type ArgumentError struct {
	Op  string
	Msg string
}

func (e *ArgumentError) Error() string {
	if e.Op == "" {
		return "robotskirt: " + e.Msg
	}
	return "robotskirt: " + e.Op + ": " + e.Msg
}

// ContractError reports a script callback whose return value does not fit
// the slot's signature.
type ContractError struct {
	Slot      engine.Slot
	Signature engine.Signature
	Got       string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s callback must return %s, got %s", e.Slot, Expected(e.Signature), e.Got)
}

// Expected describes the values a script callback of shape sig may return.
func Expected(sig engine.Signature) string {
	if sig.ReturnsInt() {
		return "a string, a buffer or false"
	}
	return "a string or a buffer"
}
