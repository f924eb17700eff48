package server

// Readiness reports per-connection readiness; *relay.Gate satisfies it.
type Readiness interface {
	Ready() bool
	Status() map[string]bool
}

// QueueDepth reports pending relay messages; *relay.Queue satisfies it.
type QueueDepth interface {
	Len() int
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ready Readiness
	queue QueueDepth
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ready Readiness, queue QueueDepth) *Handlers {
	return &Handlers{ready: ready, queue: queue}
}
