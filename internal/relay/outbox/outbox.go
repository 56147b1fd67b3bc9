// Package outbox implements best-effort delivery of text messages into a connection.
package outbox

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/wtask/relay/pkg/background"
)

// Outbox - bounded queue of outgoing messages drained by a single writer.
type Outbox struct {
	conn         net.Conn
	queue        chan string
	writeTimeout time.Duration

	once   sync.Once
	done   chan struct{}
	failed chan struct{}
	err    error
}

type outboxOption func(o *Outbox) error

// WithQueueSize - overwrites default size (32) of outgoing messages queue.
func WithQueueSize(size int) outboxOption {
	return func(o *Outbox) error {
		if size <= 0 {
			return fmt.Errorf("outbox.WithQueueSize: invalid size (%d)", size)
		}
		o.queue = make(chan string, size)
		return nil
	}
}

// WithWriteTimeout - overwrites default write timeout (10s) of single message.
func WithWriteTimeout(timeout time.Duration) outboxOption {
	return func(o *Outbox) error {
		if timeout <= 0 {
			return fmt.Errorf("outbox.WithWriteTimeout: invalid timeout (%v)", timeout)
		}
		o.writeTimeout = timeout
		return nil
	}
}

// Start - builds outbox for connection and launches its writer within the scope.
func Start(scope *background.Scope, conn net.Conn, options ...outboxOption) (*Outbox, error) {
	if scope == nil {
		return nil, fmt.Errorf("outbox.Start: scope is nil")
	}
	if conn == nil {
		return nil, fmt.Errorf("outbox.Start: connection is nil")
	}
	o := &Outbox{
		conn:         conn,
		queue:        make(chan string, 32),
		writeTimeout: 10 * time.Second,
		done:         make(chan struct{}),
		failed:       make(chan struct{}),
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(o); err != nil {
			return nil, err
		}
	}

	scope.Add(1)
	go func() {
		defer scope.Done()
		o.drain(scope)
	}()
	return o, nil
}

// Send - enqueues message without blocking.
func (o *Outbox) Send(message string) error {
	select {
	case <-o.done:
		return ErrClosed
	case <-o.failed:
		return ErrClosed
	default:
	}
	select {
	case o.queue <- message:
		return nil
	default:
		return ErrFull
	}
}

// Close - stops the writer. Messages which are still queued are dropped.
// Connection itself is not closed.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}

// Err - returns write error once the writer has failed, nil otherwise.
func (o *Outbox) Err() error {
	select {
	case <-o.failed:
		return o.err
	default:
		return nil
	}
}

func (o *Outbox) drain(scope *background.Scope) {
	for {
		var message string
		select {
		case message = <-o.queue:
		case <-o.done:
			return
		case <-scope.Context().Done():
			return
		}
		if message == "" {
			continue
		}
		o.conn.SetWriteDeadline(time.Now().Add(o.writeTimeout))
		if _, err := io.WriteString(o.conn, message); err != nil {
			o.err = err
			close(o.failed)
			// reader of the connection observes the failure and the session is over
			o.conn.Close()
			return
		}
	}
}
