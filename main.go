// Command thetaalert posts "went live" alerts for Theta streams into chat channels.
// It:
//   - Loads configuration and initializes structured logging, metrics and tracing.
//   - Opens the settings backend: Postgres (with migrations) when DB_DSN is set, else
//     in-memory, with the subscription blob optionally kept in GCS or a local file.
//   - Connects to the chat platform (Discord or Twitch chat).
//   - Loads subscriptions, starts the polling loop, and serves the HTTP API.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/jonboulle/clockwork"

	"github.com/onnwee/thetaalert/alert"
	"github.com/onnwee/thetaalert/chat"
	"github.com/onnwee/thetaalert/config"
	"github.com/onnwee/thetaalert/crypto"
	"github.com/onnwee/thetaalert/db"
	"github.com/onnwee/thetaalert/server"
	"github.com/onnwee/thetaalert/settings"
	"github.com/onnwee/thetaalert/storage"
	"github.com/onnwee/thetaalert/stream"
	"github.com/onnwee/thetaalert/subscription"
	"github.com/onnwee/thetaalert/telemetry"
	"github.com/onnwee/thetaalert/thetaapi"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.ValidateChat(); err != nil {
		slog.Error("chat configuration invalid", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, "thetaalert", version, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	if err := run(ctx, cfg); err != nil {
		slog.Error("fatal", slog.Any("err", err))
		stop()
		shutdownTracing()
		os.Exit(1)
	}
	slog.Info("shut down cleanly")
}

func setupLogger(level, format string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		slog.Warn("unknown LOG_LEVEL, using info", slog.String("value", level))
	}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

func run(ctx context.Context, cfg *config.Config) error {
	blob, closeBlob, err := openBlob(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBlob()

	store, closeStore, err := openSettings(ctx, cfg, blob)
	if err != nil {
		return err
	}
	defer closeStore()

	platform, closePlatform, err := openPlatform(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePlatform()

	tokens := thetaapi.NewTokenSource(cfg.ThetaAPIBaseURL, "", "", "")
	deps := stream.Deps{
		API:    &thetaapi.Client{BaseURL: cfg.ThetaAPIBaseURL, Tokens: tokens},
		WebURL: cfg.ThetaWebURL,
	}
	subs := subscription.NewStore(store, platform, deps)
	svc := &alert.Service{Store: subs, Settings: store, Platform: platform, Tokens: tokens, Deps: deps}
	fallback := settings.Credentials{ClientID: cfg.ThetaClientID, ClientSecret: cfg.ThetaClientSecret, AccessToken: cfg.ThetaAccessToken}
	if err := svc.Init(ctx, fallback); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	poller := &alert.Poller{
		Store:           subs,
		Settings:        store,
		Platform:        platform,
		Tokens:          tokens,
		DefaultInterval: cfg.RefreshInterval,
		StopGrace:       cfg.StopGrace,
		Clock:           clockwork.NewRealClock(),
	}
	poller.Start(ctx)
	defer poller.Stop()

	startPprof()

	opts := server.Options{
		AdminUsername:  cfg.AdminUsername,
		AdminPassword:  cfg.AdminPassword,
		AdminToken:     cfg.AdminToken,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		CORSOrigins:    server.SplitOrigins(cfg.CORSOrigins),
	}
	return server.Start(ctx, cfg.HTTPAddr, server.Deps{Service: svc, Poller: poller, Settings: store, Tokens: tokens}, opts)
}

// openBlob returns where the subscription list lives when it is kept outside the
// settings backend, or nil.
func openBlob(ctx context.Context, cfg *config.Config) (settings.Blob, func(), error) {
	switch {
	case cfg.SubscriptionsBucket != "":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client: %w", err)
		}
		slog.Info("subscriptions stored in gcs", slog.String("bucket", cfg.SubscriptionsBucket), slog.String("object", cfg.SubscriptionsObject))
		closeFn := func() {
			if err := client.Close(); err != nil {
				slog.Warn("closing gcs client failed", slog.Any("err", err))
			}
		}
		return storage.NewGCS(client, cfg.SubscriptionsBucket, cfg.SubscriptionsObject, slog.Default()), closeFn, nil
	case cfg.SubscriptionsPath != "":
		slog.Info("subscriptions stored in file", slog.String("path", cfg.SubscriptionsPath))
		return storage.NewFile(cfg.SubscriptionsPath, slog.Default()), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func openSettings(ctx context.Context, cfg *config.Config, blob settings.Blob) (settings.Store, func(), error) {
	if cfg.DBDsn == "" {
		slog.Warn("DB_DSN not set, settings are kept in memory and lost on restart")
		return settings.NewMemory(blob), func() {}, nil
	}
	box, err := crypto.NewBox(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("encryption key: %w", err)
	}
	if !box.Encrypted() {
		slog.Warn("ENCRYPTION_KEY not set, API credentials are stored in plaintext")
	}
	database, err := db.Connect(ctx, cfg.DBDsn)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logMigrationVersion(database)
	return db.NewSettingsStore(database, box, blob), closeFn, nil
}

func logMigrationVersion(database *sql.DB) {
	v, dirty, err := db.MigrationVersion(database)
	if err != nil {
		slog.Warn("reading migration version failed", slog.Any("err", err))
		return
	}
	slog.Info("database schema ready", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty), slog.String("component", "db_migrate"))
}

func openPlatform(ctx context.Context, cfg *config.Config) (chat.Platform, func(), error) {
	switch cfg.ChatPlatform {
	case config.PlatformTwitch:
		irc := chat.NewTwitchIRC(cfg.TwitchBotUsername, cfg.TwitchOAuthToken)
		ircCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := irc.Run(ircCtx); err != nil {
				slog.Error("twitch chat connection ended", slog.Any("err", err))
			}
		}()
		return irc, func() { cancel(); <-done }, nil
	default:
		dg, err := chat.NewDiscord(cfg.DiscordToken)
		if err != nil {
			return nil, nil, err
		}
		if err := dg.Open(); err != nil {
			return nil, nil, fmt.Errorf("discord open: %w", err)
		}
		return dg, func() {
			if err := dg.Close(); err != nil {
				slog.Warn("closing discord session failed", slog.Any("err", err))
			}
		}, nil
	}
}

// startPprof serves /debug/pprof when ENABLE_PPROF=1.
func startPprof() {
	if os.Getenv("ENABLE_PPROF") != "1" {
		return
	}
	addr := os.Getenv("PPROF_ADDR")
	if addr == "" {
		addr = "localhost:6060"
	}
	go func() {
		slog.Info("pprof profiling enabled", slog.String("addr", addr))
		srv := &http.Server{
			Addr:              addr,
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
