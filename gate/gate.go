// Package gate serializes first-time position entry across runners. Only one
// runner may be in the act of opening its first position at any instant; the
// gate is released as soon as the position is open, never held through
// steady-state monitoring.
package gate

import (
	"context"
	"sync"
)

// Gate is a process-wide exclusive lock with owner tracking. Release by a
// non-holder (or a repeated release) is a no-op, which lets runner teardown
// release unconditionally.
type Gate struct {
	sem chan struct{}

	mu     sync.Mutex
	holder string
}

func New() *Gate {
	return &Gate{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the gate is free or ctx is canceled. There is no
// timeout; a runner waits indefinitely unless its stop signal fires.
func (g *Gate) Acquire(ctx context.Context, owner string) error {
	select {
	case g.sem <- struct{}{}:
		g.mu.Lock()
		g.holder = owner
		g.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the gate if owner currently holds it.
func (g *Gate) Release(owner string) {
	g.mu.Lock()
	if g.holder != owner {
		g.mu.Unlock()
		return
	}
	g.holder = ""
	g.mu.Unlock()
	<-g.sem
}

// Holder reports the current owner, empty when the gate is free.
func (g *Gate) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}
