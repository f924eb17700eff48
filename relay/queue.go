// Package relay buffers in-game messages and delivers them one at a time with
// a fixed cooldown between deliveries.
//
// Bancho throttles (and eventually silences) accounts that send faster than
// their tier allows, so every message for every channel shares one FIFO and
// one worker. Producers never block: Enqueue appends to an unbounded buffer
// and wakes the worker.
package relay

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/osu-relay/telemetry"
)

// Message is one in-game chat line waiting for delivery.
type Message struct {
	Target     string
	Text       string
	EnqueuedAt time.Time
}

// Queue is an unbounded multi-producer, single-consumer FIFO.
type Queue struct {
	mu    sync.Mutex
	items []Message
	// wake holds at most one pending signal; the consumer re-checks items after each.
	wake chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Enqueue appends msg and returns immediately. A zero EnqueuedAt is set to now.
func (q *Queue) Enqueue(msg Message) {
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now()
	}
	q.mu.Lock()
	q.items = append(q.items, msg)
	n := len(q.items)
	q.mu.Unlock()

	telemetry.Inc(telemetry.RelayEnqueued)
	telemetry.SetQueueDepth(n)

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the head message, waiting until one is
// available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (Message, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = Message{}
			q.items = q.items[1:]
			n := len(q.items)
			q.mu.Unlock()
			telemetry.SetQueueDepth(n)
			return msg, nil
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Len reports the number of buffered messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
