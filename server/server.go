// Package server exposes the HTTP API: health, status and metrics for operators, and
// the admin command surface that manages alerts and guild preferences. Requests get a
// correlation id and a tracing span; admin routes are authenticated and rate limited.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/onnwee/thetaalert/alert"
	"github.com/onnwee/thetaalert/settings"
	"github.com/onnwee/thetaalert/telemetry"
	"github.com/onnwee/thetaalert/thetaapi"
)

// Deps are the components the handlers operate on.
type Deps struct {
	Service  *alert.Service
	Poller   *alert.Poller
	Settings settings.Store
	Tokens   *thetaapi.TokenSource
}

// Options configures the middleware.
type Options struct {
	AdminUsername  string
	AdminPassword  string
	AdminToken     string
	RateLimitRPS   float64
	RateLimitBurst int
	// CORSOrigins restricts cross-origin requests; empty allows any origin.
	CORSOrigins []string
}

// NewMux returns the HTTP handler with all routes.
// ctx bounds the rate limiter's cleanup goroutine.
func NewMux(ctx context.Context, d Deps, opts Options) http.Handler {
	h := &Handlers{Deps: d}
	limiter := newIPRateLimiter(ctx, opts.RateLimitRPS, opts.RateLimitBurst)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", h.HandleHealthz)
	mux.HandleFunc("GET /readyz", h.HandleReadyz)
	mux.HandleFunc("GET /status", h.HandleStatus)

	admin := http.NewServeMux()
	admin.HandleFunc("GET /admin/check", h.HandleCheck)
	admin.HandleFunc("POST /admin/check", h.HandleCheck)
	admin.HandleFunc("GET /admin/alerts", h.HandleListAlerts)
	admin.HandleFunc("POST /admin/alerts/toggle", h.HandleToggleAlert)
	admin.HandleFunc("POST /admin/alerts/quit", h.HandleQuit)
	admin.HandleFunc("PUT /admin/settings/interval", h.HandleSetInterval)
	admin.HandleFunc("POST /admin/guilds/{guild}/mention/{kind}", h.HandleToggleMention)
	admin.HandleFunc("POST /admin/guilds/{guild}/roles/{role}/mention", h.HandleToggleRoleMention)
	admin.HandleFunc("PUT /admin/guilds/{guild}/autodelete", h.HandleSetAutodelete)
	admin.HandleFunc("POST /admin/guilds/{guild}/ignore-reruns", h.HandleToggleIgnoreReruns)
	admin.HandleFunc("PUT /admin/guilds/{guild}/messages", h.HandleSetTemplate)
	admin.HandleFunc("DELETE /admin/guilds/{guild}/messages", h.HandleClearTemplates)
	admin.HandleFunc("PUT /admin/credentials", h.HandleSetCredentials)
	mux.Handle("/admin/", adminAuth(rateLimitMiddleware(admin, limiter), authFromOptions(opts)))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.NewString()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.URL.Path),
		)
		defer span.End()
		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		mux.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.statusCode))
		if rec.statusCode >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rec.statusCode))
		}
	})
	return withCORS(handler, newCORSConfig(opts.CORSOrigins))
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, addr string, d Deps, opts Options) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(ctx, d, opts),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// WithoutCancel keeps context values but lets shutdown complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}

// SplitOrigins parses a comma separated origin list.
func SplitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
