// Package osuapi is a minimal osu! API v2 client covering beatmap, beatmapset,
// user and difficulty-attribute lookups. Requests are authorized with an
// application (client-credentials) token and paced by a token-bucket limiter.
package osuapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/onnwee/osu-relay/telemetry"
)

const (
	DefaultBaseURL  = "https://osu.ppy.sh/api/v2"
	DefaultTokenURL = "https://osu.ppy.sh/oauth/token"
)

var (
	// ErrNotFound is returned when the API reports the entity does not exist.
	ErrNotFound = errors.New("osu api: not found")
	// ErrServiceUnavailable covers transport failures, timeouts and unexpected statuses.
	ErrServiceUnavailable = errors.New("osu api: service unavailable")
)

// Config holds the settings needed by New.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	// RequestsPerSecond paces outgoing requests; <= 0 disables pacing.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client talks to the osu! API. It is safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	limiter *rate.Limiter
}

// New builds a client whose HTTP transport fetches and refreshes an app token.
func New(ctx context.Context, cfg Config) *Client {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"public"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// The token endpoint shares the same timeout.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	hc := cc.Client(ctx)
	hc.Timeout = timeout
	return NewWithHTTPClient(cfg.BaseURL, hc, cfg.RequestsPerSecond)
}

// NewWithHTTPClient builds a client around an already-authorized HTTP client.
func NewWithHTTPClient(baseURL string, hc *http.Client, rps float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{BaseURL: baseURL, HTTPClient: hc}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// GetBeatmap fetches a beatmap by id. The response embeds its beatmapset.
func (c *Client) GetBeatmap(ctx context.Context, id string) (Beatmap, error) {
	var bm Beatmap
	err := c.do(ctx, http.MethodGet, "/beatmaps/"+url.PathEscape(id), nil, &bm)
	return bm, err
}

// GetBeatmapset fetches a beatmapset and its difficulties.
func (c *Client) GetBeatmapset(ctx context.Context, id string) (Beatmapset, error) {
	var set Beatmapset
	err := c.do(ctx, http.MethodGet, "/beatmapsets/"+url.PathEscape(id), nil, &set)
	return set, err
}

// GetBeatmapsetFromBeatmap returns the set embedded in bm, fetching it when absent.
func (c *Client) GetBeatmapsetFromBeatmap(ctx context.Context, bm Beatmap) (Beatmapset, error) {
	if bm.Beatmapset != nil {
		return *bm.Beatmapset, nil
	}
	if bm.BeatmapsetID == 0 {
		return Beatmapset{}, fmt.Errorf("beatmap %d has no beatmapset id: %w", bm.ID, ErrNotFound)
	}
	return c.GetBeatmapset(ctx, strconv.Itoa(bm.BeatmapsetID))
}

// GetUser fetches a user by numeric id or username.
func (c *Client) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &u)
	return u, err
}

// GetRecomputedAttributes asks the API for difficulty attributes with mods applied.
func (c *Client) GetRecomputedAttributes(ctx context.Context, beatmapID int, mods []string, ruleset string) (DifficultyAttributes, error) {
	payload := struct {
		Mods    []string `json:"mods"`
		Ruleset string   `json:"ruleset,omitempty"`
	}{Mods: mods, Ruleset: ruleset}
	var body struct {
		Attributes DifficultyAttributes `json:"attributes"`
	}
	err := c.do(ctx, http.MethodPost, "/beatmaps/"+strconv.Itoa(beatmapID)+"/attributes", payload, &body)
	return body.Attributes, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, span := telemetry.StartSpan(ctx, "osuapi", method+" "+path)
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("%w: rate wait: %v", ErrServiceUnavailable, err)
		}
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http().Do(req)
	telemetry.ObserveAPIRequest(method, time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("%w: %s %s: %v", ErrServiceUnavailable, method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		err = fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err = fmt.Errorf("%w: %s %s: %s: %s", ErrServiceUnavailable, method, path, resp.Status, string(b))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("%w: decode %s: %v", ErrServiceUnavailable, path, err)
	}
	telemetry.SetSpanSuccess(span)
	return nil
}
