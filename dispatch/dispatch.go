// Package dispatch handles each inbound Twitch chat message: it filters the
// sender, looks for beatmap and profile links, enriches them and fans the
// result out to the source chat (immediately) and the in-game relay queue.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/onnwee/osu-relay/enrich"
	"github.com/onnwee/osu-relay/osuapi"
	"github.com/onnwee/osu-relay/refparse"
	"github.com/onnwee/osu-relay/relay"
	"github.com/onnwee/osu-relay/telemetry"
)

// Inbound is one chat message with just the fields the dispatcher needs.
type Inbound struct {
	ID         string
	Channel    string
	Sender     string
	Text       string
	ReceivedAt time.Time
}

// SourceSender replies in the source chat.
type SourceSender interface {
	Say(channel, text string) error
}

// Enqueuer accepts relay messages without blocking.
type Enqueuer interface {
	Enqueue(msg relay.Message)
}

// Options configures request filtering and channel routing.
type Options struct {
	// Channels maps a lower-cased Twitch channel to its osu! username.
	Channels map[string]string
	// Ignore holds lower-cased Twitch logins whose messages are skipped.
	Ignore map[string]bool
	// SkipOwner drops messages sent by the channel owner.
	SkipOwner bool
	// MaxInFlight bounds concurrently running Submit handlers; <= 0 means unbounded.
	MaxInFlight int
}

// Dispatcher wires parsing, enrichment and output together.
type Dispatcher struct {
	enricher *enrich.Service
	source   SourceSender
	relay    Enqueuer
	opts     Options

	slots    *semaphore.Weighted // nil when unbounded
	inflight sync.WaitGroup
}

// New returns a Dispatcher.
func New(enricher *enrich.Service, source SourceSender, relayQueue Enqueuer, opts Options) *Dispatcher {
	d := &Dispatcher{enricher: enricher, source: source, relay: relayQueue, opts: opts}
	if opts.MaxInFlight > 0 {
		d.slots = semaphore.NewWeighted(int64(opts.MaxInFlight))
	}
	return d
}

// Submit handles msg on a background goroutine and returns immediately.
// Messages beyond MaxInFlight wait for a free slot off the caller's
// goroutine, so the chat read loop is never held up by slow lookups.
func (d *Dispatcher) Submit(ctx context.Context, msg Inbound) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		if ctx.Err() != nil {
			telemetry.IncVec(telemetry.MessagesSkipped, "shutdown")
			return
		}
		if d.slots != nil {
			if err := d.slots.Acquire(ctx, 1); err != nil {
				telemetry.IncVec(telemetry.MessagesSkipped, "shutdown")
				return
			}
			defer d.slots.Release(1)
		}
		d.Handle(ctx, msg)
	}()
}

// Wait blocks until every submitted handler has returned.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Handle processes one message synchronously. Nothing is ever reported back
// to chat on failure; lookups that fail are logged and dropped.
func (d *Dispatcher) Handle(ctx context.Context, msg Inbound) {
	if msg.ID != "" {
		ctx = telemetry.WithCorrelation(ctx, msg.ID)
	}
	ctx, span := telemetry.StartSpan(ctx, "dispatch", "handle message", telemetry.ChannelAttr(msg.Channel))
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("channel", msg.Channel), slog.String("sender", msg.Sender), slog.String("component", "dispatch"))

	telemetry.Inc(telemetry.MessagesSeen)
	if reason := d.skipReason(msg); reason != "" {
		telemetry.IncVec(telemetry.MessagesSkipped, reason)
		log.Debug("skipping message", slog.String("reason", reason))
		return
	}

	if ref, ok := refparse.ParseContentReference(msg.Text); ok {
		d.handleBeatmap(ctx, log, msg, ref)
	}
	if ref, ok := refparse.ParseProfileReference(msg.Text); ok {
		d.handleProfile(ctx, log, msg, ref)
	}
	telemetry.SetSpanSuccess(span)
}

func (d *Dispatcher) skipReason(msg Inbound) string {
	sender := strings.ToLower(msg.Sender)
	switch {
	case sender == "":
		return "empty_sender"
	case d.opts.SkipOwner && sender == strings.ToLower(msg.Channel):
		return "owner"
	case d.opts.Ignore[sender]:
		return "ignored"
	}
	return ""
}

func (d *Dispatcher) handleBeatmap(ctx context.Context, log *slog.Logger, msg Inbound, ref refparse.ContentReference) {
	log = log.With(slog.String("ref", ref.Label), slog.String("id", ref.ID))
	mods := refparse.ParseModifiers(msg.Text)

	bm, set, err := d.enricher.ResolveBeatmap(ctx, ref)
	if err == nil {
		var view enrich.BeatmapView
		view, err = d.enricher.BeatmapView(ctx, bm, set, mods)
		if err == nil {
			telemetry.IncVec(telemetry.Lookups, "beatmap", "ok")
			d.sendSource(log, msg.Channel, FormatSourceRequest(view, mods))
			d.enqueueRelay(log, msg, FormatRelayRequest(msg.Sender, view, mods))
			return
		}
	}
	logLookupFailure(log, "beatmap", err)
}

func (d *Dispatcher) handleProfile(ctx context.Context, log *slog.Logger, msg Inbound, ref refparse.ContentReference) {
	log = log.With(slog.String("ref", ref.Label), slog.String("id", ref.ID))
	user, err := d.enricher.ResolveUser(ctx, ref)
	if err != nil {
		logLookupFailure(log, "profile", err)
		return
	}
	telemetry.IncVec(telemetry.Lookups, "profile", "ok")
	d.sendSource(log, msg.Channel, FormatProfile(enrich.UserViewOf(user)))
}

func (d *Dispatcher) sendSource(log *slog.Logger, channel, text string) {
	if err := d.source.Say(channel, text); err != nil {
		log.Error("source chat send failed", slog.Any("err", err))
		return
	}
	telemetry.Inc(telemetry.SourceSends)
}

func (d *Dispatcher) enqueueRelay(log *slog.Logger, msg Inbound, text string) {
	target, ok := d.opts.Channels[strings.ToLower(msg.Channel)]
	if !ok {
		log.Warn("no osu! user mapped for channel; in-game relay skipped")
		return
	}
	d.relay.Enqueue(relay.Message{Target: target, Text: text, EnqueuedAt: time.Now()})
	log.Debug("in-game request queued", slog.String("target", target))
}

func logLookupFailure(log *slog.Logger, kind string, err error) {
	switch {
	case errors.Is(err, osuapi.ErrNotFound):
		telemetry.IncVec(telemetry.Lookups, kind, "not_found")
		log.Debug("lookup found nothing", slog.Any("err", err))
	case errors.Is(err, osuapi.ErrServiceUnavailable):
		telemetry.IncVec(telemetry.Lookups, kind, "unavailable")
		log.Error("osu! api unavailable", slog.Any("err", err))
	default:
		telemetry.IncVec(telemetry.Lookups, kind, "error")
		log.Error("lookup failed", slog.Any("err", fmt.Errorf("%s lookup: %w", kind, err)))
	}
}
