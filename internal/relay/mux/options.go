package mux

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Option - configures Multiplexer.
type Option func(m *Multiplexer) error

// WithListener - attach listener, every accepted connection of which is reported as EventAdmit.
// Option may be used several times to serve different transports with the same multiplexer.
func WithListener(l net.Listener) Option {
	return func(m *Multiplexer) error {
		if l == nil {
			return errors.New("mux.WithListener: listener is nil")
		}
		m.listeners = append(m.listeners, l)
		return nil
	}
}

// WithBufferSize - overwrites default read buffer size (1024).
// Single read delivers at most size-1 bytes.
func WithBufferSize(size int) Option {
	return func(m *Multiplexer) error {
		if size <= 1 {
			return fmt.Errorf("mux.WithBufferSize: invalid size (%d)", size)
		}
		m.bufSize = size
		return nil
	}
}

// WithNicknameSize - overwrites default nickname size (32).
// The first chunk of new connection is bounded to size-1 bytes.
func WithNicknameSize(size int) Option {
	return func(m *Multiplexer) error {
		if size <= 1 {
			return fmt.Errorf("mux.WithNicknameSize: invalid size (%d)", size)
		}
		m.nickSize = size
		return nil
	}
}

// WithCapacity - limits number of connections which are handshaking, waiting for admission or watched.
// Connection accepted above the limit is closed at once, before its nickname is read.
// Every admission event must be either watched or rejected to keep the count right.
func WithCapacity(n int) Option {
	return func(m *Multiplexer) error {
		if n <= 0 {
			return fmt.Errorf("mux.WithCapacity: invalid value (%d)", n)
		}
		m.capacity = n
		return nil
	}
}

// WithHandshakeTimeout - overwrites default period (30s) given to new connection to send its nickname.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(m *Multiplexer) error {
		if timeout <= 0 {
			return fmt.Errorf("mux.WithHandshakeTimeout: invalid timeout (%v)", timeout)
		}
		m.handshakeTimeout = timeout
		return nil
	}
}

// WithLogger - attach logger for accept diagnostics.
func WithLogger(logger Logger) Option {
	return func(m *Multiplexer) error {
		m.logger = logger
		return nil
	}
}
