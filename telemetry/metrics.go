// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesSeen    prometheus.Counter
	MessagesSkipped *prometheus.CounterVec // reason=owner|ignored|empty_sender
	Lookups         *prometheus.CounterVec // kind=beatmap|profile, result=ok|not_found|unavailable
	RelayEnqueued   prometheus.Counter
	RelayDelivered  prometheus.Counter
	RelayFailed     prometheus.Counter
	SourceSends     prometheus.Counter

	// Histograms (seconds)
	APIRequestDuration *prometheus.HistogramVec
	RelayQueueWait     prometheus.Observer

	// Gauges
	RelayQueueDepth prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesSeen = promauto.NewCounter(prometheus.CounterOpts{Name: "osurelay_messages_seen_total", Help: "Number of inbound chat messages handled"})
		MessagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{Name: "osurelay_messages_skipped_total", Help: "Inbound messages dropped before parsing"}, []string{"reason"})
		Lookups = promauto.NewCounterVec(prometheus.CounterOpts{Name: "osurelay_lookups_total", Help: "Content lookups by kind and result"}, []string{"kind", "result"})
		RelayEnqueued = promauto.NewCounter(prometheus.CounterOpts{Name: "osurelay_relay_enqueued_total", Help: "Messages enqueued for in-game delivery"})
		RelayDelivered = promauto.NewCounter(prometheus.CounterOpts{Name: "osurelay_relay_delivered_total", Help: "Messages delivered in-game"})
		RelayFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "osurelay_relay_failed_total", Help: "In-game deliveries that failed and were dropped"})
		SourceSends = promauto.NewCounter(prometheus.CounterOpts{Name: "osurelay_source_sends_total", Help: "Replies sent to the source chat"})
		APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "osurelay_api_request_duration_seconds", Help: "osu! API request latency", Buckets: prometheus.DefBuckets}, []string{"method"})
		RelayQueueWait = promauto.NewHistogram(prometheus.HistogramOpts{Name: "osurelay_relay_queue_wait_seconds", Help: "Time between enqueue and in-game delivery", Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}})
		RelayQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{Name: "osurelay_relay_queue_depth", Help: "Messages waiting for in-game delivery"})
	})
}

// SetQueueDepth records the current relay backlog.
func SetQueueDepth(n int) {
	if RelayQueueDepth != nil {
		RelayQueueDepth.Set(float64(n))
	}
}

// Inc increments c if it has been registered.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// IncVec increments the labelled child of v if it has been registered.
func IncVec(v *prometheus.CounterVec, labels ...string) {
	if v != nil {
		v.WithLabelValues(labels...).Inc()
	}
}

// ObserveAPIRequest records one osu! API round trip.
func ObserveAPIRequest(method string, d time.Duration) {
	if APIRequestDuration != nil {
		APIRequestDuration.WithLabelValues(method).Observe(d.Seconds())
	}
}

// ObserveQueueWait records how long a relay message waited.
func ObserveQueueWait(d time.Duration) {
	if RelayQueueWait != nil {
		RelayQueueWait.Observe(d.Seconds())
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
