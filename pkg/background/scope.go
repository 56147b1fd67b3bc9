// Package background groups goroutines which share cancellation and completion.
package background

import (
	"context"
	"sync"
)

// Scope - abstract concurrency scope
type Scope struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	scope     sync.WaitGroup
}

// NewScope - concurrency scope builder
func NewScope() (scope *Scope, cancel func()) {
	return Within(context.Background())
}

// Within - builds concurrency scope which is also cancelled with parent context.
// Returned cancel func waits all members of scope are done.
func Within(parent context.Context) (scope *Scope, cancel func()) {
	ctx, cancelFunc := context.WithCancel(parent)
	s := &Scope{
		ctx:       ctx,
		ctxCancel: cancelFunc,
	}
	return s,
		func() {
			s.ctxCancel()
			s.scope.Wait()
		}
}

// Context - return background context
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Add - notifies scope to register processes/workers/layers.
// Based on sync.WaitGroup.
func (s *Scope) Add(delta int) {
	s.scope.Add(delta)
}

// Done - notifies scope when process/worker/layer is done.
// Based on sync.WaitGroup.
func (s *Scope) Done() {
	s.scope.Done()
}

// Go - runs f as a member of scope.
func (s *Scope) Go(f func(ctx context.Context)) {
	s.scope.Add(1)
	go func() {
		defer s.scope.Done()
		f(s.ctx)
	}()
}
