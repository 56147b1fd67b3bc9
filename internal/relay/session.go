package relay

import (
	"time"

	"github.com/google/uuid"

	"github.com/wtask/relay/internal/relay/message"
	"github.com/wtask/relay/internal/relay/mux"
	"github.com/wtask/relay/internal/relay/outbox"
	"github.com/wtask/relay/internal/relay/registry"
)

// onListenerReady - admits accepted connection or closes it silently.
func (s *Server) onListenerReady(event mux.Event) {
	remote := remoteAddress(event.Conn)
	if event.Err != nil {
		logError(s.logger, "Nickname is not received from", remote, "closing:", event.Err)
		s.mux.Reject(event)
		return
	}
	if s.clients.Len() >= s.clients.Cap() {
		logInfo(s.logger, "Server full: rejecting new connection from", remote)
		s.mux.Reject(event)
		return
	}

	session := uuid.NewString()
	name := message.Nickname(event.Chunk, s.nickSize-1)
	if name == "" {
		name = "guest-" + session[:8]
	}
	out, err := outbox.Start(
		s.writers,
		event.Conn,
		outbox.WithQueueSize(s.queueSize),
		outbox.WithWriteTimeout(s.writeTimeout),
	)
	if err != nil {
		logError(s.logger, "Unable to admit", remote, err)
		s.mux.Reject(event)
		return
	}
	if _, err := s.clients.Insert(registry.Connection{
		Handle:  event.Handle,
		Name:    name,
		Session: session,
		Sender:  out,
	}); err != nil {
		logError(s.logger, "Unable to register", remote, err)
		out.Close()
		s.mux.Reject(event)
		return
	}
	if err := s.mux.Watch(event.Handle, event.Conn); err != nil {
		logError(s.logger, "Unable to watch", remote, err)
		s.clients.Remove(event.Handle)
		out.Close()
		s.mux.Reject(event)
		return
	}

	logInfo(s.logger, name, "has joined the chat.", "handle:", event.Handle, "session:", session, "from:", remote)
	s.greet(out)
	s.broadcast(message.Joined(name), event.Handle)
}

// onConnectionReady - relays received chunk or handles disconnection.
func (s *Server) onConnectionReady(event mux.Event) {
	c, ok := s.clients.Get(event.Handle)
	if !ok {
		logError(s.logger, "Event", event.Kind, "of unknown handle", event.Handle)
		s.mux.Unwatch(event.Handle)
		return
	}
	switch event.Kind {
	case mux.EventData:
		n := s.broadcast(message.Relay(c.Name, event.Chunk), c.Handle)
		logInfo(
			s.logger,
			c.Name, "relayed", len(event.Chunk), "byte(s) to", n, "client(s)",
			"in", time.Since(event.OriginTime).Round(time.Microsecond),
		)
	case mux.EventClosed:
		s.disconnect(c, event.Err)
	}
}

// disconnect - reclaims resources of connection and announces its leaving.
// Connection record must be looked up before this call.
func (s *Server) disconnect(c registry.Connection, cause error) {
	s.mux.Unwatch(c.Handle)
	s.clients.Remove(c.Handle)
	c.Sender.Close()
	if out, ok := c.Sender.(*outbox.Outbox); ok && cause == nil {
		// write failure closes connection, so the reader only sees EOF
		cause = out.Err()
	}
	if cause != nil {
		logInfo(s.logger, c.Name, "disconnected, handle:", c.Handle, "session:", c.Session, "cause:", cause)
	} else {
		logInfo(s.logger, c.Name, "disconnected, handle:", c.Handle, "session:", c.Session)
	}
	s.broadcast(message.Left(c.Name), c.Handle)
}

// greet - replays latest lines to newly admitted client.
func (s *Server) greet(out *outbox.Outbox) {
	if s.history == nil {
		return
	}
	for _, line := range s.history.Tail(s.greets) {
		if err := out.Send(line); err != nil {
			return
		}
	}
}
