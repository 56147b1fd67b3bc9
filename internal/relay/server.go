// Package relay implements chat relay: every chunk received from a client
// is delivered to all other connected clients.
//
// Server owns the registry of connections and the readiness set of multiplexer.
// Both are mutated by the single goroutine which runs Wait→Dispatch cycle,
// so no locking is needed.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/wtask/relay/internal/relay/history"
	"github.com/wtask/relay/internal/relay/mux"
	"github.com/wtask/relay/internal/relay/registry"
	"github.com/wtask/relay/pkg/background"
)

// Server - chat relay over any net.Listener implementation.
type Server struct {
	listeners        []net.Listener
	maxClients       int
	bufSize          int
	nickSize         int
	greets           int
	queueSize        int
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	logger           Logger

	mux     *mux.Multiplexer
	clients *registry.Registry
	history *history.Ring

	writers     *background.Scope
	stopWriters func()
	started     bool
	closed      bool
}

// NewServer - builds relay which serves given listener.
func NewServer(listener net.Listener, options ...Option) (*Server, error) {
	if listener == nil {
		return nil, errors.New("relay.NewServer: listener is nil")
	}
	s := &Server{
		listeners:        []net.Listener{listener},
		maxClients:       100,
		bufSize:          1024,
		nickSize:         32,
		queueSize:        32,
		writeTimeout:     10 * time.Second,
		handshakeTimeout: 30 * time.Second,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return nil, err
		}
	}

	var err error
	if s.clients, err = registry.New(s.maxClients, s.nickSize); err != nil {
		return nil, fmt.Errorf("relay.NewServer: %w", err)
	}
	if s.greets > 0 {
		if s.history, err = history.NewRing(s.greets); err != nil {
			return nil, fmt.Errorf("relay.NewServer: %w", err)
		}
	}
	muxOptions := []mux.Option{
		mux.WithCapacity(s.maxClients),
		mux.WithBufferSize(s.bufSize),
		mux.WithNicknameSize(s.nickSize),
		mux.WithHandshakeTimeout(s.handshakeTimeout),
		mux.WithLogger(s.logger),
	}
	for _, l := range s.listeners {
		muxOptions = append(muxOptions, mux.WithListener(l))
	}
	if s.mux, err = mux.New(muxOptions...); err != nil {
		return nil, fmt.Errorf("relay.NewServer: %w", err)
	}
	s.writers, s.stopWriters = background.NewScope()
	return s, nil
}

// Run - serves listeners until ctx is done or multiplexing fails.
// Returns nil when stopped by ctx, otherwise *mux.MultiplexError.
// All connections are closed on return.
func (s *Server) Run(ctx context.Context) error {
	if err := s.start(); err != nil {
		return err
	}
	defer s.Close()
	for {
		err := s.step(ctx)
		switch {
		case err == nil:
			continue
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			logInfo(s.logger, "Relay is stopping:", ctx.Err())
			return nil
		default:
			logError(s.logger, "Multiplexing failed:", err)
			return err
		}
	}
}

func (s *Server) start() error {
	if s.closed {
		return errors.New("relay.Server: closed")
	}
	if s.started {
		return errors.New("relay.Server: already running")
	}
	if err := s.mux.Start(); err != nil {
		return err
	}
	s.started = true
	for _, addr := range s.mux.Addrs() {
		logInfo(s.logger, "Server listening on", formatAddress(addr))
	}
	return nil
}

// step - single Wait→Dispatch cycle.
func (s *Server) step(ctx context.Context) error {
	events, err := s.mux.Wait(ctx)
	if err != nil {
		return err
	}
	s.dispatch(events)
	return nil
}

// dispatch - routes listener readiness to admission, any other to message handling.
func (s *Server) dispatch(events []mux.Event) {
	for _, event := range events {
		switch event.Kind {
		case mux.EventAdmit:
			s.onListenerReady(event)
		default:
			s.onConnectionReady(event)
		}
	}
}

// Close - closes listeners and all connections.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.mux.Close()
	for c := range s.clients.Others(registry.ListenerHandle) {
		s.clients.Remove(c.Handle)
		c.Sender.Close()
	}
	s.stopWriters()
	return err
}
