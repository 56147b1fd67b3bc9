// Package registry implements fixed-capacity table of live chat connections.
package registry

import (
	"fmt"
	"iter"

	"github.com/wtask/relay/internal/relay/message"
)

// Handle - opaque identifier of a transport endpoint.
// Zero value is reserved for the listening endpoint.
type Handle uint64

// ListenerHandle - handle of the listening endpoint, never registered.
const ListenerHandle Handle = 0

// Sender - delivery side of registered connection.
type Sender interface {
	// Send - delivers message without blocking the caller.
	Send(message string) error
	// Close - stops delivery.
	Close()
}

// Connection - live connection record.
type Connection struct {
	Handle  Handle
	Name    string
	Session string
	Sender  Sender
}

// Slot - reference to the slot occupied by connection.
type Slot int

// Registry - maps slots to live connections.
// Not safe for concurrent use, the owner is expected to serialize all calls.
type Registry struct {
	nameSize int
	slots    []*Connection
	free     []Slot
	index    map[Handle]Slot
}

// New - builds registry with given capacity.
// Display names are truncated to nameSize-1 bytes on insertion.
func New(capacity, nameSize int) (*Registry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("registry.New: invalid capacity (%d)", capacity)
	}
	if nameSize <= 1 {
		return nil, fmt.Errorf("registry.New: invalid name size (%d)", nameSize)
	}
	r := &Registry{
		nameSize: nameSize,
		slots:    make([]*Connection, capacity),
		free:     make([]Slot, capacity),
		index:    make(map[Handle]Slot, capacity),
	}
	// lowest slot is on the top of free-list
	for i := range r.free {
		r.free[i] = Slot(capacity - 1 - i)
	}
	return r, nil
}

// Len - returns number of live connections.
func (r *Registry) Len() int {
	return len(r.index)
}

// Cap - returns max number of live connections.
func (r *Registry) Cap() int {
	return len(r.slots)
}

// Insert - places connection into a free slot.
func (r *Registry) Insert(c Connection) (Slot, error) {
	if c.Handle == ListenerHandle {
		return -1, ErrInvalidHandle
	}
	if _, ok := r.index[c.Handle]; ok {
		return -1, ErrDuplicateHandle
	}
	if len(r.free) == 0 {
		return -1, ErrRegistryFull
	}
	slot := r.free[len(r.free)-1]
	r.free = r.free[:len(r.free)-1]
	c.Name = message.Truncate(c.Name, r.nameSize-1)
	r.slots[slot] = &c
	r.index[c.Handle] = slot
	return slot, nil
}

// Remove - releases the slot of connection with given handle.
// Returns removed record, or false if the handle is not registered.
func (r *Registry) Remove(h Handle) (Connection, bool) {
	slot, ok := r.index[h]
	if !ok {
		return Connection{}, false
	}
	c := r.slots[slot]
	r.slots[slot] = nil
	delete(r.index, h)
	r.free = append(r.free, slot)
	return *c, true
}

// Get - returns connection record by handle.
func (r *Registry) Get(h Handle) (Connection, bool) {
	slot, ok := r.index[h]
	if !ok {
		return Connection{}, false
	}
	return *r.slots[slot], true
}

// Name - returns display name of connection.
func (r *Registry) Name(h Handle) (string, bool) {
	c, ok := r.Get(h)
	return c.Name, ok
}

// Others - returns sequence of live connections in slot order except the excluded one.
// The sequence is evaluated lazily and may be iterated several times.
func (r *Registry) Others(excluded Handle) iter.Seq[Connection] {
	return func(yield func(Connection) bool) {
		for _, c := range r.slots {
			if c == nil || c.Handle == excluded {
				continue
			}
			if !yield(*c) {
				return
			}
		}
	}
}

// Handles - returns handles of live connections in slot order.
func (r *Registry) Handles() []Handle {
	handles := make([]Handle, 0, len(r.index))
	for c := range r.Others(ListenerHandle) {
		handles = append(handles, c.Handle)
	}
	return handles
}
