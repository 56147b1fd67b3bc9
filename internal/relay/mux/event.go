package mux

import (
	"net"
	"time"

	"github.com/wtask/relay/internal/relay/registry"
)

// EventKind - describes what the ready handle has to offer.
type EventKind int

const (
	_ EventKind = iota
	// EventAdmit - listener is ready: new connection was accepted and has sent its first chunk.
	EventAdmit
	// EventData - watched connection has delivered a chunk.
	EventData
	// EventClosed - watched connection was closed by peer or has failed.
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventAdmit:
		return "admit"
	case EventData:
		return "data"
	case EventClosed:
		return "closed"
	default:
		return "unknown event"
	}
}

// Event - readiness notification of single handle.
type Event struct {
	Kind EventKind
	// Handle - connection handle, for EventAdmit it is the handle allocated to accepted connection.
	Handle registry.Handle
	// Conn - accepted connection, set for EventAdmit only.
	Conn net.Conn
	// Chunk - received bytes. For EventAdmit it is the nickname chunk.
	Chunk []byte
	// Err - read error. For EventAdmit it means the first chunk was not received.
	Err        error
	OriginTime time.Time
}
