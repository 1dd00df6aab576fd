// Package settings is the configuration store: global, per-guild and per-role scopes,
// the serialized subscription list, and the Theta API credentials.
package settings

import (
	"context"
	"time"
)

// GuildConfig holds the alert preferences of one guild.
type GuildConfig struct {
	Autodelete      bool `json:"autodelete"`
	MentionEveryone bool `json:"mention_everyone"`
	MentionHere     bool `json:"mention_here"`
	IgnoreReruns    bool `json:"ignore_reruns"`
	// Templates; empty means the built-in text.
	LiveMessageMention   string `json:"live_message_mention"`
	LiveMessageNoMention string `json:"live_message_nomention"`
}

// DefaultGuild is the configuration of a guild that never changed anything.
func DefaultGuild() GuildConfig {
	return GuildConfig{MentionEveryone: true}
}

// Credentials are the Theta API credentials.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AccessToken  string `json:"access_token"`
}

// Empty reports whether no client id is set.
func (c Credentials) Empty() bool { return c.ClientID == "" }

// LegacyStreamTokenKey is the key under which old installs stored the client id in the tokens map.
const LegacyStreamTokenKey = "ThetaStream"

// Store is the configuration store consumed by the alert loop and the command surface.
type Store interface {
	// RefreshInterval returns the stored poll interval; ok is false when none is stored.
	RefreshInterval(ctx context.Context) (d time.Duration, ok bool, err error)
	SetRefreshInterval(ctx context.Context, d time.Duration) error

	Guild(ctx context.Context, guildID string) (GuildConfig, error)
	SaveGuild(ctx context.Context, guildID string, cfg GuildConfig) error

	RoleMention(ctx context.Context, guildID, roleID string) (bool, error)
	SetRoleMention(ctx context.Context, guildID, roleID string, mention bool) error

	// Streams returns the serialized subscription list (nil when never written).
	Streams(ctx context.Context) ([]byte, error)
	SaveStreams(ctx context.Context, blob []byte) error

	Credentials(ctx context.Context) (Credentials, error)
	SaveCredentials(ctx context.Context, c Credentials) error

	// LegacyTokens returns the pre-credentials tokens map of old installs.
	LegacyTokens(ctx context.Context) (map[string]string, error)
	ClearLegacyTokens(ctx context.Context) error

	Ping(ctx context.Context) error
}

// Blob stores the serialized subscription list outside the settings backend.
type Blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// UpdateGuild loads, mutates and saves a guild configuration.
func UpdateGuild(ctx context.Context, s Store, guildID string, fn func(*GuildConfig)) (GuildConfig, error) {
	cfg, err := s.Guild(ctx, guildID)
	if err != nil {
		return GuildConfig{}, err
	}
	fn(&cfg)
	if err := s.SaveGuild(ctx, guildID, cfg); err != nil {
		return GuildConfig{}, err
	}
	return cfg, nil
}
