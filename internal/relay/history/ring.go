// Package history keeps a limited number of the latest relayed lines in memory.
package history

import "fmt"

// Ring - accumulates a limited number of strings in arrival order.
// When ring length is reached max value, every push overwrites the oldest item.
// Not safe for concurrent use.
type Ring struct {
	data []string
	head int
	size int
}

// NewRing - builds history ring.
func NewRing(max int) (*Ring, error) {
	if max <= 0 {
		return nil, fmt.Errorf("history.NewRing: max (%d) must be greater than 0", max)
	}
	return &Ring{data: make([]string, max)}, nil
}

// Len - returns number of currently kept items.
func (r *Ring) Len() int {
	return r.size
}

// Push - adds item to history.
func (r *Ring) Push(item string) {
	r.data[(r.head+r.size)%len(r.data)] = item
	if r.size < len(r.data) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.data)
}

// Tail - makes copy of last n-items into resulting slice.
// The first item in resulting slice is the oldest one. Non-positive n gives empty tail.
func (r *Ring) Tail(n int) []string {
	if n < 0 {
		n = 0
	}
	if n > r.size {
		n = r.size
	}
	tail := make([]string, n)
	for i := range tail {
		tail[i] = r.data[(r.head+r.size-n+i)%len(r.data)]
	}
	return tail
}
