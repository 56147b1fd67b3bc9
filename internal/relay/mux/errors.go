package mux

import (
	"errors"
	"fmt"
)

// ErrClosed - returns by Wait after the multiplexer is closed.
var ErrClosed = errors.New("mux.Multiplexer: closed")

// MultiplexError - failure of the multiplexing itself, unrelated to any single connection.
// There is no way to make safe forward progress after it.
type MultiplexError struct {
	Op  string
	Err error
}

func (e *MultiplexError) Error() string {
	return fmt.Sprintf("mux.Multiplexer: %s: %v", e.Op, e.Err)
}

func (e *MultiplexError) Unwrap() error {
	return e.Err
}
