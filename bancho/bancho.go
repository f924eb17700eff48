// Package bancho delivers relay messages to osu! players over Bancho IRC.
package bancho

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"

	"github.com/onnwee/osu-relay/relay"
)

// ReadyName is the readiness signal raised once login completes.
const ReadyName = "bancho"

// ErrNotConnected is returned by Deliver while the IRC session is not logged in.
var ErrNotConnected = errors.New("bancho not connected")

// Config holds the IRC login.
type Config struct {
	Addr     string // host:port
	Username string
	Password string
}

// sender is the part of *ircevent.Connection used for delivery.
type sender interface {
	Privmsg(target, message string) error
}

// Signaler is notified when the session is ready.
type Signaler interface {
	Signal(name string)
}

// Initial connect retry delays; the delay doubles up to the max.
const (
	connectRetryMin = 5 * time.Second
	connectRetryMax = 30 * time.Second
)

// Client is a single Bancho IRC session.
type Client struct {
	conn  *ircevent.Connection
	send  sender
	dial  func() error
	ready Signaler

	// registered is true between login completing and the next disconnect.
	registered atomic.Bool

	retryMin, retryMax time.Duration
}

// NewClient builds an unconnected client. Once the first connection is
// established the underlying connection reconnects on its own until Run's
// context is cancelled.
func NewClient(cfg Config, ready Signaler) *Client {
	conn := &ircevent.Connection{
		Server:        cfg.Addr,
		Nick:          NormalizeTarget(cfg.Username),
		User:          NormalizeTarget(cfg.Username),
		RealName:      cfg.Username,
		Password:      cfg.Password,
		QuitMessage:   "bye",
		ReconnectFreq: 15 * time.Second,
		Log:           slog.NewLogLogger(slog.Default().Handler().WithAttrs([]slog.Attr{slog.String("component", "bancho")}), slog.LevelDebug),
	}
	c := &Client{
		conn:     conn,
		send:     conn,
		dial:     conn.Connect,
		ready:    ready,
		retryMin: connectRetryMin,
		retryMax: connectRetryMax,
	}
	conn.AddCallback("001", c.onWelcome)
	conn.AddConnectCallback(c.onRegistered)
	conn.AddDisconnectCallback(c.onDisconnect)
	return c
}

// onWelcome logs the RPL_WELCOME text.
func (c *Client) onWelcome(e ircmsg.Message) {
	welcome := ""
	if n := len(e.Params); n > 0 {
		welcome = e.Params[n-1]
	}
	slog.Info("bancho welcome", slog.String("welcome", welcome), slog.String("component", "bancho"))
}

// onRegistered runs once login has finished (end of MOTD).
func (c *Client) onRegistered(ircmsg.Message) {
	c.registered.Store(true)
	slog.Info("bancho connected", slog.String("component", "bancho"))
	if c.ready != nil {
		c.ready.Signal(ReadyName)
	}
}

func (c *Client) onDisconnect(ircmsg.Message) {
	c.registered.Store(false)
	slog.Warn("bancho disconnected", slog.String("component", "bancho"))
}

// Deliver sends msg as a private message. It implements relay.Deliverer.
func (c *Client) Deliver(_ context.Context, msg relay.Message) error {
	if !c.registered.Load() {
		return ErrNotConnected
	}
	target := NormalizeTarget(msg.Target)
	if err := c.send.Privmsg(target, msg.Text); err != nil {
		return fmt.Errorf("privmsg %s: %w", target, err)
	}
	return nil
}

// Run connects and services the session until ctx is cancelled. Failed
// connection attempts are retried; Run returns nil on cancellation.
func (c *Client) Run(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		slog.Info("bancho connect abandoned", slog.Any("err", err), slog.String("component", "bancho"))
		return nil
	}
	go func() {
		<-ctx.Done()
		c.conn.Quit()
	}()
	c.conn.Loop()
	c.registered.Store(false)
	slog.Info("bancho session closed", slog.String("component", "bancho"))
	return nil
}

// connect dials until it succeeds or ctx is done.
func (c *Client) connect(ctx context.Context) error {
	delay := c.retryMin
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.dial()
		if err == nil {
			return nil
		}
		slog.Warn("bancho connect failed, retrying",
			slog.String("addr", c.conn.Server),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("err", err),
			slog.String("component", "bancho"))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, c.retryMax)
	}
}

// NormalizeTarget maps an osu! username to its IRC nick.
func NormalizeTarget(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}
