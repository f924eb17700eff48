package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"

	"github.com/onnwee/osu-relay/dispatch"
)

// ReadyName is the readiness signal raised once the Twitch connection is up.
const ReadyName = "twitch"

// ErrNotConnected is returned by Say before the connection is established.
var ErrNotConnected = errors.New("twitch chat not connected")

// ircClient is the subset of *twitch.Client the Client uses.
type ircClient interface {
	OnConnect(func())
	OnPrivateMessage(func(twitch.PrivateMessage))
	Join(channels ...string)
	Connect() error
	Disconnect() error
	Say(channel, text string)
}

// Submitter receives converted chat messages.
type Submitter interface {
	Submit(ctx context.Context, msg dispatch.Inbound)
}

// Signaler is notified when the connection is ready.
type Signaler interface {
	Signal(name string)
}

// Client is a Twitch chat connection shared by intake and replies.
type Client struct {
	irc       ircClient
	channels  []string
	ready     Signaler
	connected atomic.Bool
}

// NewClient returns a Client for the bot account that will join channels.
func NewClient(username, oauthToken string, channels []string, ready Signaler) *Client {
	if !strings.HasPrefix(oauthToken, "oauth:") {
		oauthToken = "oauth:" + oauthToken
	}
	return newClient(twitch.NewClient(username, oauthToken), channels, ready)
}

func newClient(irc ircClient, channels []string, ready Signaler) *Client {
	return &Client{irc: irc, channels: channels, ready: ready}
}

// Say sends text to channel. Sends are fire-and-forget once connected.
func (c *Client) Say(channel, text string) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	c.irc.Say(strings.TrimPrefix(strings.ToLower(channel), "#"), text)
	return nil
}

// Run connects, joins the channels and feeds every message to sub until ctx
// is cancelled. It returns nil on a clean shutdown.
func (c *Client) Run(ctx context.Context, sub Submitter) error {
	c.irc.OnConnect(func() {
		c.connected.Store(true)
		slog.Info("twitch chat connected", slog.Int("channels", len(c.channels)), slog.String("component", "chat"))
		if c.ready != nil {
			c.ready.Signal(ReadyName)
		}
	})
	c.irc.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		sub.Submit(ctx, ToInbound(msg))
	})

	// Handle context cancellation by closing the client
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.connected.Store(false)
			_ = c.irc.Disconnect()
		case <-done:
		}
	}()

	c.irc.Join(c.channels...)
	err := c.irc.Connect()
	c.connected.Store(false)
	if errors.Is(err, twitch.ErrClientDisconnected) || ctx.Err() != nil {
		slog.Info("twitch chat disconnected", slog.String("component", "chat"))
		return nil
	}
	return err
}

// ToInbound converts a Twitch message. Messages without an id get a fresh one
// so log lines stay correlated.
func ToInbound(msg twitch.PrivateMessage) dispatch.Inbound {
	id := msg.ID
	if id == "" {
		id = uuid.New().String()
	}
	received := msg.Time
	if received.IsZero() {
		received = time.Now()
	}
	return dispatch.Inbound{
		ID:         id,
		Channel:    strings.ToLower(msg.Channel),
		Sender:     msg.User.Name,
		Text:       msg.Message,
		ReceivedAt: received,
	}
}
