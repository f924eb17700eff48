package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/osu-relay/telemetry"
)

// Cooldowns per Bancho account tier. Verified bot accounts may send far more
// often than personal accounts.
const (
	CooldownVerified   = 2500 * time.Millisecond
	CooldownUnverified = 5 * time.Second
)

// Deliverer sends one message over the legacy chat connection.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, msg Message) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Worker drains a Queue into a Deliverer, one message per Cooldown.
type Worker struct {
	Queue     *Queue
	Deliverer Deliverer
	Cooldown  time.Duration
	// Gate, when set, must open before the first message is taken.
	Gate *Gate
}

// Run consumes the queue until ctx is cancelled. Failed deliveries are logged
// and dropped; the cooldown applies after every attempt, successful or not.
func (w *Worker) Run(ctx context.Context) {
	if w.Gate != nil {
		slog.Info("relay worker waiting for connections", slog.Any("status", w.Gate.Status()), slog.String("component", "relay"))
		if err := w.Gate.Wait(ctx); err != nil {
			return
		}
	}
	slog.Info("relay worker started", slog.Duration("cooldown", w.Cooldown), slog.String("component", "relay"))

	for {
		msg, err := w.Queue.Dequeue(ctx)
		if err != nil {
			slog.Info("relay worker stopped", slog.Int("pending", w.Queue.Len()), slog.String("component", "relay"))
			return
		}

		if err := w.Deliverer.Deliver(ctx, msg); err != nil {
			telemetry.Inc(telemetry.RelayFailed)
			slog.Error("in-game delivery failed; dropping message",
				slog.String("target", msg.Target),
				slog.Any("err", err),
				slog.String("component", "relay"))
		} else {
			telemetry.Inc(telemetry.RelayDelivered)
			telemetry.ObserveQueueWait(time.Since(msg.EnqueuedAt))
			slog.Info("in-game message delivered", slog.String("target", msg.Target), slog.String("component", "relay"))
		}

		select {
		case <-ctx.Done():
			slog.Info("relay worker stopped", slog.Int("pending", w.Queue.Len()), slog.String("component", "relay"))
			return
		case <-time.After(w.Cooldown):
		}
	}
}
