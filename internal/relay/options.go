package relay

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Option - configures Server.
type Option func(s *Server) error

// WithListener - attach additional listener, for example WebSocket gateway.
func WithListener(l net.Listener) Option {
	return func(s *Server) error {
		if l == nil {
			return errors.New("relay.WithListener: listener is nil")
		}
		s.listeners = append(s.listeners, l)
		return nil
	}
}

// WithMaxClients - overwrites default max number (100) of concurrently connected clients.
func WithMaxClients(max int) Option {
	return func(s *Server) error {
		if max <= 0 {
			return fmt.Errorf("relay.WithMaxClients: invalid value (%d)", max)
		}
		s.maxClients = max
		return nil
	}
}

// WithBufferSize - overwrites default per-read buffer size (1024).
// Single relayed chunk is bounded to size-1 bytes.
func WithBufferSize(size int) Option {
	return func(s *Server) error {
		if size <= 1 {
			return fmt.Errorf("relay.WithBufferSize: invalid size (%d)", size)
		}
		s.bufSize = size
		return nil
	}
}

// WithNicknameSize - overwrites default nickname size (32).
// Nickname is bounded to size-1 bytes.
func WithNicknameSize(size int) Option {
	return func(s *Server) error {
		if size <= 1 {
			return fmt.Errorf("relay.WithNicknameSize: invalid size (%d)", size)
		}
		s.nickSize = size
		return nil
	}
}

// WithHistory - enables replay of n latest relayed lines to newly admitted client.
// Zero value disables history.
func WithHistory(n int) Option {
	return func(s *Server) error {
		if n < 0 {
			return fmt.Errorf("relay.WithHistory: invalid value (%d)", n)
		}
		s.greets = n
		return nil
	}
}

// WithQueueSize - overwrites default size (32) of per-client queue of outgoing messages.
// When the queue of slow client is full, messages for that client are dropped.
func WithQueueSize(size int) Option {
	return func(s *Server) error {
		if size <= 0 {
			return fmt.Errorf("relay.WithQueueSize: invalid size (%d)", size)
		}
		s.queueSize = size
		return nil
	}
}

// WithWriteTimeout - overwrites default timeout (10s) of single write to client.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) error {
		if timeout <= 0 {
			return fmt.Errorf("relay.WithWriteTimeout: invalid timeout (%v)", timeout)
		}
		s.writeTimeout = timeout
		return nil
	}
}

// WithHandshakeTimeout - overwrites default period (30s) given to new connection to send its nickname.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(s *Server) error {
		if timeout <= 0 {
			return fmt.Errorf("relay.WithHandshakeTimeout: invalid timeout (%v)", timeout)
		}
		s.handshakeTimeout = timeout
		return nil
	}
}

// WithLogger - attach logger of relay events.
func WithLogger(logger Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}
