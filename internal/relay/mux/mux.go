// Package mux implements readiness multiplexing over listeners and watched connections.
//
// Every watched connection has a reader which performs exactly one bounded read per cycle:
// after its event is returned by Wait the reader stays idle until the next Wait call re-arms it.
// The set of watched handles is owned by the goroutine which calls Wait, Watch and Unwatch.
package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"sync/atomic"
	"time"

	"github.com/wtask/relay/internal/relay/registry"
	"github.com/wtask/relay/pkg/background"
)

// Logger - interface for logging multiplexer diagnostics
type Logger interface {
	Println(v ...interface{})
}

// errNoData - connection was read successfully but nothing was received.
var errNoData = errors.New("mux: no data received")

type watch struct {
	conn net.Conn
	arm  chan struct{}
	stop chan struct{}
}

// Multiplexer - waits for readiness across listeners and watched connections.
type Multiplexer struct {
	listeners        []net.Listener
	bufSize          int
	nickSize         int
	handshakeTimeout time.Duration
	logger           Logger

	events     chan Event
	fatal      chan error
	lastHandle atomic.Uint64
	// connection slots: 0 means unlimited
	capacity int
	// accepted connections which are in handshake, waiting for admission or watched
	occupied atomic.Int64

	// readiness set
	watched map[registry.Handle]*watch
	// handles which were dispatched in previous cycle
	rearm []registry.Handle

	stop    context.CancelFunc
	scope   *background.Scope
	wait    func()
	started bool
	closed  bool
}

// New - builds Multiplexer with needed options, at least one listener is required.
func New(options ...Option) (*Multiplexer, error) {
	ctx, stop := context.WithCancel(context.Background())
	scope, wait := background.Within(ctx)
	m := &Multiplexer{
		bufSize:          1024,
		nickSize:         32,
		handshakeTimeout: 30 * time.Second,
		events:           make(chan Event),
		fatal:            make(chan error, 1),
		watched:          make(map[registry.Handle]*watch),
		stop:             stop,
		scope:            scope,
		wait:             wait,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(m); err != nil {
			stop()
			return nil, err
		}
	}
	if len(m.listeners) == 0 {
		stop()
		return nil, errors.New("mux.New: at least one listener is required")
	}
	return m, nil
}

// Start - launches acceptors of all listeners.
func (m *Multiplexer) Start() error {
	if m.closed {
		return ErrClosed
	}
	if m.started {
		return errors.New("mux.Multiplexer: already started")
	}
	m.started = true
	for _, l := range m.listeners {
		m.scope.Go(func(ctx context.Context) {
			m.acceptLoop(ctx, l)
		})
	}
	return nil
}

// Wait - blocks until at least one handle is ready and returns all events which are ready at the moment.
// Returns *MultiplexError if listening has failed, ctx.Err() if ctx is done.
func (m *Multiplexer) Wait(ctx context.Context) ([]Event, error) {
	if m.closed {
		return nil, ErrClosed
	}
	for _, h := range m.rearm {
		if w, ok := m.watched[h]; ok {
			select {
			case w.arm <- struct{}{}:
			default:
			}
		}
	}
	m.rearm = m.rearm[:0]

	batch := []Event{}
	for len(batch) == 0 {
		select {
		case event := <-m.events:
			batch = m.collect(batch, event)
		case err := <-m.fatal:
			return nil, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	drain:
		for {
			select {
			case event := <-m.events:
				batch = m.collect(batch, event)
			default:
				break drain
			}
		}
	}
	return batch, nil
}

// collect - appends event to the batch unless it is produced by handle which is not watched anymore.
func (m *Multiplexer) collect(batch []Event, event Event) []Event {
	if event.Kind == EventAdmit {
		return append(batch, event)
	}
	if _, ok := m.watched[event.Handle]; !ok {
		return batch
	}
	if event.Kind == EventData {
		m.rearm = append(m.rearm, event.Handle)
	}
	return append(batch, event)
}

// Watch - adds connection into readiness set and starts reading from it.
func (m *Multiplexer) Watch(h registry.Handle, conn net.Conn) error {
	switch {
	case m.closed:
		return ErrClosed
	case h == registry.ListenerHandle:
		return fmt.Errorf("mux.Watch: handle %d is reserved for listener", h)
	case conn == nil:
		return errors.New("mux.Watch: connection is nil")
	}
	if _, ok := m.watched[h]; ok {
		return fmt.Errorf("mux.Watch: handle %d is watched already", h)
	}
	w := &watch{
		conn: conn,
		arm:  make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	w.arm <- struct{}{}
	m.watched[h] = w
	m.scope.Go(func(ctx context.Context) {
		m.readLoop(ctx, h, w)
	})
	return nil
}

// Unwatch - removes handle from readiness set and closes its connection.
// Pending events of the handle are discarded and its slot is freed.
// It is safe to unwatch unknown handle.
func (m *Multiplexer) Unwatch(h registry.Handle) {
	w, ok := m.watched[h]
	if !ok {
		return
	}
	delete(m.watched, h)
	close(w.stop)
	w.conn.Close()
	m.release()
}

// Reject - closes connection of admission event which is not going to be watched
// and frees its slot for the next accepted connection.
func (m *Multiplexer) Reject(event Event) {
	if event.Kind != EventAdmit || event.Conn == nil {
		return
	}
	event.Conn.Close()
	m.release()
}

// Watched - returns watched connection handles in ascending order.
// Listener handle is implied and not included.
func (m *Multiplexer) Watched() []registry.Handle {
	handles := make([]registry.Handle, 0, len(m.watched))
	for h := range m.watched {
		handles = append(handles, h)
	}
	slices.Sort(handles)
	return handles
}

// Addrs - returns addresses of all listeners.
func (m *Multiplexer) Addrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(m.listeners))
	for _, l := range m.listeners {
		addrs = append(addrs, l.Addr())
	}
	return addrs
}

// Close - stops listening and reading, closes listeners and watched connections.
func (m *Multiplexer) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	// acceptors must see cancelled context before their listeners are closed
	m.stop()
	var err error
	for _, l := range m.listeners {
		if e := l.Close(); e != nil && !errors.Is(e, net.ErrClosed) && err == nil {
			err = e
		}
	}
	for h := range m.watched {
		m.Unwatch(h)
	}
	m.wait()
	return err
}

func (m *Multiplexer) acceptLoop(ctx context.Context, l net.Listener) {
	var delay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				select {
				case m.fatal <- &MultiplexError{Op: "accept " + l.Addr().String(), Err: err}:
				default:
				}
				return
			}
			// failure of single pending connection or lack of resources, so retry
			switch {
			case delay == 0:
				delay = 5 * time.Millisecond
			case delay < time.Second:
				delay *= 2
			}
			logError(m.logger, "Accept", l.Addr(), "failed:", err, "retry in", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}
		delay = 0
		if !m.reserve() {
			logInfo(m.logger, "Server full: rejecting new connection from", conn.RemoteAddr())
			conn.Close()
			continue
		}
		h := registry.Handle(m.lastHandle.Add(1))
		m.scope.Go(func(ctx context.Context) {
			m.handshake(ctx, h, conn)
		})
	}
}

// handshake - receives the first chunk of accepted connection and reports listener readiness.
func (m *Multiplexer) handshake(ctx context.Context, h registry.Handle, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	buf := make([]byte, m.nickSize-1)
	conn.SetReadDeadline(time.Now().Add(m.handshakeTimeout))
	n, err := conn.Read(buf)
	conn.SetReadDeadline(time.Time{})
	if !stop() {
		m.release()
		return
	}
	switch {
	case n > 0:
		err = nil
	case err == nil:
		err = errNoData
	}
	event := Event{
		Kind:       EventAdmit,
		Handle:     h,
		Conn:       conn,
		Chunk:      buf[:n],
		Err:        err,
		OriginTime: time.Now().UTC(),
	}
	select {
	case m.events <- event:
	case <-ctx.Done():
		conn.Close()
		m.release()
	}
}

// reserve - occupies connection slot, returns false if there is no free one.
func (m *Multiplexer) reserve() bool {
	n := m.occupied.Add(1)
	if m.capacity > 0 && n > int64(m.capacity) {
		m.occupied.Add(-1)
		return false
	}
	return true
}

func (m *Multiplexer) release() {
	m.occupied.Add(-1)
}

func (m *Multiplexer) readLoop(ctx context.Context, h registry.Handle, w *watch) {
	buf := make([]byte, m.bufSize-1)
	for {
		if !m.armed(ctx, w) {
			return
		}
		n, err := 0, error(nil)
		for n == 0 && err == nil {
			n, err = w.conn.Read(buf)
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !m.emit(ctx, w, Event{Kind: EventData, Handle: h, Chunk: chunk}) {
				return
			}
			if err == nil {
				continue
			}
			// report failure in the next cycle
			if !m.armed(ctx, w) {
				return
			}
		}
		if err == io.EOF {
			err = nil
		}
		m.emit(ctx, w, Event{Kind: EventClosed, Handle: h, Err: err})
		return
	}
}

func (m *Multiplexer) armed(ctx context.Context, w *watch) bool {
	select {
	case <-w.arm:
		return true
	case <-w.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (m *Multiplexer) emit(ctx context.Context, w *watch, event Event) bool {
	event.OriginTime = time.Now().UTC()
	select {
	case m.events <- event:
		return true
	case <-w.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func logInfo(l Logger, v ...interface{}) {
	if l == nil {
		return
	}
	l.Println(v...)
}

func logError(l Logger, v ...interface{}) {
	if l == nil {
		return
	}
	l.Println(append([]interface{}{"ERR"}, v...)...)
}
