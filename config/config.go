// Package config loads environment variables and provides a typed Config used across the service.
// Defaults let the binary run locally with only chat and Theta credentials set.
// Platform-specific requirements are checked by ValidateChat.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// MinRefreshInterval is the shortest poll interval accepted anywhere in the service.
const MinRefreshInterval = 60 * time.Second

// Chat platforms.
const (
	PlatformDiscord = "discord"
	PlatformTwitch  = "twitch"
)

type Config struct {
	// Theta
	ThetaClientID     string `env:"THETA_CLIENT_ID"`
	ThetaClientSecret string `env:"THETA_CLIENT_SECRET"`
	ThetaAccessToken  string `env:"THETA_ACCESS_TOKEN"`
	ThetaAPIBaseURL   string `env:"THETA_API_BASE_URL" default:"https://api.theta.tv/v1"`
	ThetaWebURL       string `env:"THETA_WEB_URL" default:"https://www.theta.tv"`

	// Polling
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" default:"200s"`
	StopGrace       time.Duration `env:"POLLER_STOP_GRACE" default:"10s"`

	// Storage
	DBDsn               string `env:"DB_DSN"`
	SubscriptionsBucket string `env:"SUBSCRIPTIONS_BUCKET"`
	SubscriptionsObject string `env:"SUBSCRIPTIONS_OBJECT" default:"streams.json"`
	SubscriptionsPath   string `env:"SUBSCRIPTIONS_PATH"`
	EncryptionKey       string `env:"ENCRYPTION_KEY"`

	// Chat
	ChatPlatform      string `env:"CHAT_PLATFORM" default:"discord"`
	DiscordToken      string `env:"DISCORD_TOKEN"`
	TwitchBotUsername string `env:"TWITCH_BOT_USERNAME"`
	TwitchOAuthToken  string `env:"TWITCH_OAUTH_TOKEN"`

	// HTTP
	HTTPAddr       string  `env:"HTTP_ADDR" default:":8080"`
	AdminToken     string  `env:"ADMIN_TOKEN"`
	AdminUsername  string  `env:"ADMIN_USERNAME"`
	AdminPassword  string  `env:"ADMIN_PASSWORD"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" default:"1"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" default:"10"`
	CORSOrigins    string  `env:"CORS_ALLOWED_ORIGINS"`

	// Observability
	LogLevel     string `env:"LOG_LEVEL" default:"info"`
	LogFormat    string `env:"LOG_FORMAT" default:"text"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads environment variables (and a .env file when present) and applies defaults.
// It doesn't fail when chat credentials are missing; use ValidateChat for that.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}
	if cfg.RefreshInterval < MinRefreshInterval {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL %s: must be at least %s", cfg.RefreshInterval, MinRefreshInterval)
	}
	if cfg.SubscriptionsBucket != "" && cfg.SubscriptionsPath != "" {
		return nil, errors.New("SUBSCRIPTIONS_BUCKET and SUBSCRIPTIONS_PATH are mutually exclusive")
	}
	return &cfg, nil
}

// ValidateChat checks the credentials required by the selected chat platform.
func (c *Config) ValidateChat() error {
	switch c.ChatPlatform {
	case PlatformDiscord:
		if c.DiscordToken == "" {
			return errors.New("missing discord env: require DISCORD_TOKEN")
		}
	case PlatformTwitch:
		if c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
			return errors.New("missing twitch env: require TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
		}
	default:
		return fmt.Errorf("unknown CHAT_PLATFORM %q", c.ChatPlatform)
	}
	return nil
}
