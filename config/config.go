// Package config loads environment variables and provides a typed Config used across the service.
// It applies defaults for everything optional; Validate reports missing credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/osu-relay/relay"
)

// ErrMissing is wrapped by Validate when required settings are absent.
var ErrMissing = errors.New("missing required configuration")

// Account tiers accepted by OSU_ACCOUNT_TIER.
const (
	TierVerified   = "verified"
	TierUnverified = "unverified"
)

type Config struct {
	// Twitch
	TwitchBotUsername string
	TwitchOAuthToken  string
	// TwitchChannels maps lower-cased Twitch channel names to osu! usernames.
	TwitchChannels    map[string]string
	TwitchIgnoreList  map[string]bool
	SkipOwnerRequests bool

	// osu! IRC (Bancho)
	OsuIRCUsername string
	OsuIRCPassword string
	OsuIRCServer   string
	OsuIRCPort     int

	// osu! API
	OsuClientID     string
	OsuClientSecret string
	OsuAPIBaseURL   string
	OsuTokenURL     string
	OsuAPIRate      float64
	OsuAPITimeout   time.Duration

	// Relay
	AccountTier   string
	RelayCooldown time.Duration

	MirrorURLTemplate  string
	MaxInFlightLookups int
	HTTPAddr           string
}

// Load reads environment variables and applies defaults. Malformed values are
// errors; missing credentials are not (see Validate).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	channels, err := ParseChannelMapping(os.Getenv("TWITCH_CHANNELS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TWITCH_CHANNELS: %w", err)
	}
	cfg.TwitchChannels = channels
	cfg.TwitchIgnoreList = ParseIgnoreList(os.Getenv("TWITCH_IGNORE_LIST"))
	if v := os.Getenv("SKIP_CHANNEL_OWNER_REQUESTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SKIP_CHANNEL_OWNER_REQUESTS: %w", err)
		}
		cfg.SkipOwnerRequests = b
	}

	cfg.OsuIRCUsername = os.Getenv("OSU_IRC_USERNAME")
	cfg.OsuIRCPassword = os.Getenv("OSU_IRC_PASSWORD")
	cfg.OsuIRCServer = os.Getenv("OSU_IRC_SERVER")
	if cfg.OsuIRCServer == "" {
		cfg.OsuIRCServer = "irc.ppy.sh"
	}
	cfg.OsuIRCPort = 6667
	if v := os.Getenv("OSU_IRC_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("invalid OSU_IRC_PORT %q", v)
		}
		cfg.OsuIRCPort = p
	}

	cfg.OsuClientID = os.Getenv("OSU_CLIENT_ID")
	cfg.OsuClientSecret = os.Getenv("OSU_CLIENT_SECRET")
	cfg.OsuAPIBaseURL = os.Getenv("OSU_API_BASE_URL")
	cfg.OsuTokenURL = os.Getenv("OSU_TOKEN_URL")
	cfg.OsuAPIRate = 1
	if v := os.Getenv("OSU_API_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OSU_API_RATE: %w", err)
		}
		cfg.OsuAPIRate = r
	}
	cfg.OsuAPITimeout = 10 * time.Second
	if v := os.Getenv("OSU_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid OSU_API_TIMEOUT %q", v)
		}
		cfg.OsuAPITimeout = d
	}

	cfg.AccountTier = strings.ToLower(os.Getenv("OSU_ACCOUNT_TIER"))
	switch cfg.AccountTier {
	case "":
		cfg.AccountTier = TierUnverified
		cfg.RelayCooldown = relay.CooldownUnverified
	case TierUnverified:
		cfg.RelayCooldown = relay.CooldownUnverified
	case TierVerified:
		cfg.RelayCooldown = relay.CooldownVerified
	default:
		return nil, fmt.Errorf("invalid OSU_ACCOUNT_TIER %q (want %s or %s)", cfg.AccountTier, TierVerified, TierUnverified)
	}
	if v := os.Getenv("RELAY_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid RELAY_COOLDOWN %q", v)
		}
		cfg.RelayCooldown = d
	}

	cfg.MirrorURLTemplate = os.Getenv("MIRROR_URL_TEMPLATE")
	if cfg.MirrorURLTemplate == "" {
		cfg.MirrorURLTemplate = "https://catboy.best/d/{id}"
	}

	cfg.MaxInFlightLookups = 8
	if v := os.Getenv("MAX_INFLIGHT_LOOKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxInFlightLookups = n
		}
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// Validate checks every credential and the channel mapping are present.
func (c *Config) Validate() error {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"TWITCH_BOT_USERNAME", c.TwitchBotUsername},
		{"TWITCH_OAUTH_TOKEN", c.TwitchOAuthToken},
		{"OSU_IRC_USERNAME", c.OsuIRCUsername},
		{"OSU_IRC_PASSWORD", c.OsuIRCPassword},
		{"OSU_CLIENT_ID", c.OsuClientID},
		{"OSU_CLIENT_SECRET", c.OsuClientSecret},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(c.TwitchChannels) == 0 {
		missing = append(missing, "TWITCH_CHANNELS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// ChannelNames returns the configured Twitch channels.
func (c *Config) ChannelNames() []string {
	out := make([]string, 0, len(c.TwitchChannels))
	for ch := range c.TwitchChannels {
		out = append(out, ch)
	}
	return out
}

// IRCAddr is the host:port of the Bancho server.
func (c *Config) IRCAddr() string {
	return c.OsuIRCServer + ":" + strconv.Itoa(c.OsuIRCPort)
}

// ParseChannelMapping parses "twitch:osu,other:osu name" into a map keyed by
// lower-cased Twitch channel. Duplicate channels are rejected.
func ParseChannelMapping(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		ch, user, ok := strings.Cut(pair, ":")
		ch = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ch), "#")))
		user = strings.TrimSpace(user)
		if !ok || ch == "" || user == "" {
			return nil, fmt.Errorf("entry %q is not channel:osu_user", pair)
		}
		if _, dup := out[ch]; dup {
			return nil, fmt.Errorf("channel %q listed twice", ch)
		}
		out[ch] = user
	}
	return out, nil
}

// ParseIgnoreList parses a comma separated list of Twitch logins.
func ParseIgnoreList(s string) map[string]bool {
	out := map[string]bool{}
	for _, name := range strings.Split(s, ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			out[name] = true
		}
	}
	return out
}
