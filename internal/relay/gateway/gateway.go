// Package gateway lets WebSocket peers join the relay as ordinary stream connections.
//
// Listener implements net.Listener: every upgraded WebSocket connection is adapted to net.Conn
// and returned by Accept, so the relay serves it the same way as TCP connection.
package gateway

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed - returns by Accept after the listener is closed.
var ErrClosed = fmt.Errorf("gateway.Listener: %w", net.ErrClosed)

// Logger - interface for logging gateway events
type Logger interface {
	Println(v ...interface{})
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

// Listener - accepts WebSocket connections upgraded by its HTTP handler.
type Listener struct {
	addr     net.Addr
	conns    chan net.Conn
	done     chan struct{}
	once     sync.Once
	upgrader websocket.Upgrader
	logger   Logger
}

type listenerOption func(l *Listener) error

// WithOrigins - sets allowed origins of browser peers, "*" allows any origin.
// By default only the same origin is allowed.
func WithOrigins(allowed ...string) listenerOption {
	return func(l *Listener) error {
		o := newOrigins(allowed, l.logger)
		l.upgrader.CheckOrigin = func(r *http.Request) bool {
			if o.allowed(r) {
				return true
			}
			logError(l.logger, "Blocked WebSocket connection from origin", r.Header.Get("Origin"))
			return false
		}
		return nil
	}
}

// WithLogger - attach logger. Put it before WithOrigins to log invalid origins.
func WithLogger(logger Logger) listenerOption {
	return func(l *Listener) error {
		l.logger = logger
		return nil
	}
}

// WithBufferSize - overwrites default buffer sizes (1024) of upgraded connections.
func WithBufferSize(size int) listenerOption {
	return func(l *Listener) error {
		if size <= 0 {
			return fmt.Errorf("gateway.WithBufferSize: invalid size (%d)", size)
		}
		l.upgrader.ReadBufferSize = size
		l.upgrader.WriteBufferSize = size
		return nil
	}
}

// NewListener - builds listener which reports addr as its network address.
func NewListener(addr net.Addr, options ...listenerOption) (*Listener, error) {
	if addr == nil {
		return nil, errors.New("gateway.NewListener: address is nil")
	}
	l := &Listener{
		addr:  addr,
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(l); err != nil {
			return nil, err
		}
	}
	if l.upgrader.CheckOrigin == nil {
		WithOrigins()(l)
	}
	return l, nil
}

// Accept - waits for the next upgraded connection.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, ErrClosed
	}
}

// Close - stops accepting. Upgrade requests are refused after that.
func (l *Listener) Close() error {
	err := ErrClosed
	l.once.Do(func() {
		close(l.done)
		err = nil
	})
	return err
}

// Addr - returns address of HTTP server which serves the listener.
func (l *Listener) Addr() net.Addr {
	return l.addr
}

// ServeHTTP - upgrades request and passes connection to Accept.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}
	select {
	case <-l.done:
		http.Error(w, "Relay is stopping", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logError(l.logger, "WebSocket upgrade failed:", err)
		return
	}
	conn := newConn(ws)
	select {
	case l.conns <- conn:
		logInfo(l.logger, "WebSocket peer connected from", r.RemoteAddr)
	case <-l.done:
		conn.Close()
	}
}

// HealthHandler - answers the relay is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "relay is running\n")
}

// Routes - builds HTTP routes of gateway: health check at "/" and WebSocket endpoint at "/ws".
func Routes(l *Listener) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.Handle("/ws", l)
	return mux
}

// NewServer - builds HTTP server of gateway with sensible timeouts.
// Upgraded connections are not affected by the timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
