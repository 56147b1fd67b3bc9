package outbox

import "errors"

var (
	// ErrFull - returns when the queue of outgoing messages is full and the message is dropped.
	ErrFull = errors.New("outbox.Outbox: queue is full")

	// ErrClosed - returns when outbox is closed or its connection has failed.
	ErrClosed = errors.New("outbox.Outbox: closed")
)
