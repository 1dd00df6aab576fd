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
	PollTicks         prometheus.Counter
	StreamChecks      *prometheus.CounterVec // label: outcome
	AlertsSent        prometheus.Counter
	AlertSendFailures prometheus.Counter
	AlertsDeleted     prometheus.Counter
	TokenRefreshes    *prometheus.CounterVec // label: result

	// Histograms (seconds)
	TickDuration  prometheus.Observer
	CheckDuration prometheus.Observer

	// Gauges
	SubscriptionsGauge prometheus.Gauge
	LastTickGauge      prometheus.Gauge // unix seconds of the last finished tick
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollTicks = promauto.NewCounter(prometheus.CounterOpts{Name: "theta_poll_ticks_total", Help: "Number of polling ticks run"})
		StreamChecks = promauto.NewCounterVec(prometheus.CounterOpts{Name: "theta_stream_checks_total", Help: "Liveness checks by outcome"}, []string{"outcome"})
		AlertsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "theta_alerts_sent_total", Help: "Live alert messages posted"})
		AlertSendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "theta_alert_send_failures_total", Help: "Live alert messages that failed to post"})
		AlertsDeleted = promauto.NewCounter(prometheus.CounterOpts{Name: "theta_alerts_deleted_total", Help: "Alert messages removed after the stream went offline"})
		TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "theta_token_refreshes_total", Help: "Bearer token acquisitions by result"}, []string{"result"})
		TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "theta_poll_tick_duration_seconds", Help: "Polling tick duration seconds", Buckets: prometheus.DefBuckets})
		CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "theta_stream_check_duration_seconds", Help: "Single liveness check duration seconds", Buckets: prometheus.DefBuckets})
		SubscriptionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "theta_subscriptions", Help: "Tracked streams"})
		LastTickGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "theta_last_tick_timestamp_seconds", Help: "Unix time of the last finished polling tick"})
	})
}

// CountCheck increments the check counter for outcome.
func CountCheck(outcome string) {
	if StreamChecks != nil {
		StreamChecks.WithLabelValues(outcome).Inc()
	}
}

// CountTokenRefresh records a token acquisition attempt.
func CountTokenRefresh(err error) {
	if TokenRefreshes == nil {
		return
	}
	if err != nil {
		TokenRefreshes.WithLabelValues("error").Inc()
		return
	}
	TokenRefreshes.WithLabelValues("ok").Inc()
}

// Inc increments c if it has been registered.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetSubscriptions records the number of tracked streams.
func SetSubscriptions(n int) {
	if SubscriptionsGauge != nil {
		SubscriptionsGauge.Set(float64(n))
	}
}

// MarkTick records the completion time of a polling tick.
func MarkTick(t time.Time) {
	if LastTickGauge != nil {
		LastTickGauge.Set(float64(t.Unix()))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
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
