package relay

import (
	"context"
	"sync"
)

// Gate is a one-shot readiness barrier over a fixed set of named signals.
// It opens once every name has been signalled and never closes again.
type Gate struct {
	mu      sync.Mutex
	pending map[string]bool
	names   []string
	open    chan struct{}
}

// NewGate returns a gate waiting for each of names. With no names it starts open.
func NewGate(names ...string) *Gate {
	g := &Gate{pending: make(map[string]bool, len(names)), names: names, open: make(chan struct{})}
	for _, n := range names {
		g.pending[n] = true
	}
	if len(g.pending) == 0 {
		close(g.open)
	}
	return g
}

// Signal marks name ready. Unknown names and repeated signals are ignored.
func (g *Gate) Signal(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.pending[name] {
		return
	}
	delete(g.pending, name)
	if len(g.pending) == 0 {
		close(g.open)
	}
}

// Wait blocks until the gate opens or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the gate is open.
func (g *Gate) Ready() bool {
	select {
	case <-g.open:
		return true
	default:
		return false
	}
}

// Status reports readiness per signal name.
func (g *Gate) Status() map[string]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]bool, len(g.names))
	for _, n := range g.names {
		out[n] = !g.pending[n]
	}
	return out
}
