// Command osu-relay watches Twitch chat for osu! beatmap and profile links.
// It:
//   - Loads configuration and initializes structured logging.
//   - Replies in Twitch chat with beatmap and profile summaries looked up
//     through the osu! API.
//   - Relays each beatmap request to the streamer in-game over Bancho IRC,
//     paced by the account tier's send cooldown.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/osu-relay/bancho"
	"github.com/onnwee/osu-relay/chat"
	"github.com/onnwee/osu-relay/config"
	"github.com/onnwee/osu-relay/dispatch"
	"github.com/onnwee/osu-relay/enrich"
	"github.com/onnwee/osu-relay/osuapi"
	"github.com/onnwee/osu-relay/relay"
	"github.com/onnwee/osu-relay/server"
	"github.com/onnwee/osu-relay/telemetry"
)

var version = "dev"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("osu-relay", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := osuapi.New(ctx, osuapi.Config{
		ClientID:          cfg.OsuClientID,
		ClientSecret:      cfg.OsuClientSecret,
		BaseURL:           cfg.OsuAPIBaseURL,
		TokenURL:          cfg.OsuTokenURL,
		RequestsPerSecond: cfg.OsuAPIRate,
		Timeout:           cfg.OsuAPITimeout,
	})

	gate := relay.NewGate(chat.ReadyName, bancho.ReadyName)
	queue := relay.NewQueue()
	twitchClient := chat.NewClient(cfg.TwitchBotUsername, cfg.TwitchOAuthToken, cfg.ChannelNames(), gate)
	banchoClient := bancho.NewClient(bancho.Config{
		Addr:     cfg.IRCAddr(),
		Username: cfg.OsuIRCUsername,
		Password: cfg.OsuIRCPassword,
	}, gate)
	dispatcher := dispatch.New(enrich.New(api, cfg.MirrorURLTemplate), twitchClient, queue, dispatch.Options{
		Channels:    cfg.TwitchChannels,
		Ignore:      cfg.TwitchIgnoreList,
		SkipOwner:   cfg.SkipOwnerRequests,
		MaxInFlight: cfg.MaxInFlightLookups,
	})
	worker := &relay.Worker{Queue: queue, Deliverer: banchoClient, Cooldown: cfg.RelayCooldown, Gate: gate}

	slog.Info("starting",
		slog.Any("channels", cfg.TwitchChannels),
		slog.String("tier", cfg.AccountTier),
		slog.Duration("cooldown", cfg.RelayCooldown),
		slog.String("version", version))

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return twitchClient.Run(gctx, dispatcher) })
	g.Go(func() error { return banchoClient.Run(gctx) })
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error { return server.Start(gctx, cfg.HTTPAddr, server.NewMux(gate, queue)) })

	if err := g.Wait(); err != nil {
		slog.Error("shutting down after error", slog.Any("err", err))
	}
	dispatcher.Wait()
	slog.Info("shutting down", slog.Int("relay_dropped", queue.Len()))
}
