package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/onnwee/thetaalert/crypto"
	"github.com/onnwee/thetaalert/settings"
)

const (
	keyRefreshInterval = "refresh_interval_seconds"
	keyStreams         = "streams"
	keyLegacyTokens    = "tokens"

	providerTheta = "theta"
)

// SettingsStore is a settings.Store on Postgres. Credentials are sealed with box;
// the subscription list goes to blob when one is set.
type SettingsStore struct {
	db   *sql.DB
	box  *crypto.Box
	blob settings.Blob
}

// NewSettingsStore returns a store over db. box and blob may be nil.
func NewSettingsStore(db *sql.DB, box *crypto.Box, blob settings.Blob) *SettingsStore {
	if box == nil {
		box = &crypto.Box{}
	}
	if !box.Encrypted() {
		slog.Warn("ENCRYPTION_KEY not set, API credentials will be stored in plaintext (not recommended for production)", slog.String("component", "db_encryption"))
	}
	return &SettingsStore{db: db, box: box, blob: blob}
}

func (s *SettingsStore) global(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM global_settings WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SettingsStore) setGlobal(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO global_settings(key, value, updated_at) VALUES($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *SettingsStore) RefreshInterval(ctx context.Context) (time.Duration, bool, error) {
	v, ok, err := s.global(ctx, keyRefreshInterval)
	if err != nil || !ok {
		return 0, false, err
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("parse refresh interval %q: %w", v, err)
	}
	return time.Duration(secs) * time.Second, true, nil
}

func (s *SettingsStore) SetRefreshInterval(ctx context.Context, d time.Duration) error {
	return s.setGlobal(ctx, keyRefreshInterval, strconv.Itoa(int(d/time.Second)))
}

func (s *SettingsStore) Guild(ctx context.Context, guildID string) (settings.GuildConfig, error) {
	var c settings.GuildConfig
	err := s.db.QueryRowContext(ctx, `SELECT autodelete, mention_everyone, mention_here, ignore_reruns,
		live_message_mention, live_message_nomention FROM guild_settings WHERE guild_id=$1`, guildID).
		Scan(&c.Autodelete, &c.MentionEveryone, &c.MentionHere, &c.IgnoreReruns, &c.LiveMessageMention, &c.LiveMessageNoMention)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.DefaultGuild(), nil
	}
	if err != nil {
		return settings.GuildConfig{}, fmt.Errorf("read guild %s: %w", guildID, err)
	}
	return c, nil
}

func (s *SettingsStore) SaveGuild(ctx context.Context, guildID string, c settings.GuildConfig) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO guild_settings(guild_id, autodelete, mention_everyone, mention_here,
			ignore_reruns, live_message_mention, live_message_nomention, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,NOW())
		ON CONFLICT (guild_id) DO UPDATE SET autodelete=EXCLUDED.autodelete,
			mention_everyone=EXCLUDED.mention_everyone, mention_here=EXCLUDED.mention_here,
			ignore_reruns=EXCLUDED.ignore_reruns, live_message_mention=EXCLUDED.live_message_mention,
			live_message_nomention=EXCLUDED.live_message_nomention, updated_at=NOW()`,
		guildID, c.Autodelete, c.MentionEveryone, c.MentionHere, c.IgnoreReruns, c.LiveMessageMention, c.LiveMessageNoMention)
	if err != nil {
		return fmt.Errorf("write guild %s: %w", guildID, err)
	}
	return nil
}

func (s *SettingsStore) RoleMention(ctx context.Context, guildID, roleID string) (bool, error) {
	var on bool
	err := s.db.QueryRowContext(ctx, `SELECT mention FROM role_settings WHERE guild_id=$1 AND role_id=$2`, guildID, roleID).Scan(&on)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read role %s: %w", roleID, err)
	}
	return on, nil
}

func (s *SettingsStore) SetRoleMention(ctx context.Context, guildID, roleID string, mention bool) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO role_settings(guild_id, role_id, mention) VALUES($1,$2,$3)
		ON CONFLICT (guild_id, role_id) DO UPDATE SET mention=EXCLUDED.mention`, guildID, roleID, mention)
	if err != nil {
		return fmt.Errorf("write role %s: %w", roleID, err)
	}
	return nil
}

func (s *SettingsStore) Streams(ctx context.Context) ([]byte, error) {
	if s.blob != nil {
		return s.blob.Read(ctx)
	}
	v, ok, err := s.global(ctx, keyStreams)
	if err != nil || !ok {
		return nil, err
	}
	return []byte(v), nil
}

func (s *SettingsStore) SaveStreams(ctx context.Context, blob []byte) error {
	if s.blob != nil {
		return s.blob.Write(ctx, blob)
	}
	return s.setGlobal(ctx, keyStreams, string(blob))
}

// Credentials decrypts the stored Theta credentials (encryption_version 1) or returns
// them as stored (version 0).
func (s *SettingsStore) Credentials(ctx context.Context) (settings.Credentials, error) {
	var id, secret, access string
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT client_id, client_secret, access_token, encryption_version
		FROM api_credentials WHERE provider=$1`, providerTheta).Scan(&id, &secret, &access, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Credentials{}, nil
	}
	if err != nil {
		return settings.Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	var c settings.Credentials
	for _, f := range []struct {
		dst    *string
		stored string
	}{{&c.ClientID, id}, {&c.ClientSecret, secret}, {&c.AccessToken, access}} {
		v, err := s.box.Open(f.stored, version)
		if err != nil {
			return settings.Credentials{}, fmt.Errorf("decrypt credentials: %w", err)
		}
		*f.dst = v
	}
	return c, nil
}

func (s *SettingsStore) SaveCredentials(ctx context.Context, c settings.Credentials) error {
	version := crypto.VersionPlaintext
	if s.box.Encrypted() {
		version = crypto.VersionAESGCM
	}
	sealed := make([]string, 0, 3)
	for _, v := range []string{c.ClientID, c.ClientSecret, c.AccessToken} {
		out, _, err := s.box.Seal(v)
		if err != nil {
			return fmt.Errorf("encrypt credentials: %w", err)
		}
		sealed = append(sealed, out)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO api_credentials(provider, client_id, client_secret, access_token, encryption_version, updated_at)
		VALUES($1,$2,$3,$4,$5,NOW())
		ON CONFLICT (provider) DO UPDATE SET client_id=EXCLUDED.client_id, client_secret=EXCLUDED.client_secret,
			access_token=EXCLUDED.access_token, encryption_version=EXCLUDED.encryption_version, updated_at=NOW()`,
		providerTheta, sealed[0], sealed[1], sealed[2], version)
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (s *SettingsStore) LegacyTokens(ctx context.Context) (map[string]string, error) {
	v, ok, err := s.global(ctx, keyLegacyTokens)
	if err != nil || !ok {
		return nil, err
	}
	tokens := map[string]string{}
	if err := json.Unmarshal([]byte(v), &tokens); err != nil {
		return nil, fmt.Errorf("parse legacy tokens: %w", err)
	}
	return tokens, nil
}

func (s *SettingsStore) ClearLegacyTokens(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM global_settings WHERE key=$1`, keyLegacyTokens); err != nil {
		return fmt.Errorf("clear legacy tokens: %w", err)
	}
	return nil
}

func (s *SettingsStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

var _ settings.Store = (*SettingsStore)(nil)

// SetLegacyTokens stores a tokens map as an old install would have left it.
func (s *SettingsStore) SetLegacyTokens(ctx context.Context, tokens map[string]string) error {
	b, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return s.setGlobal(ctx, keyLegacyTokens, string(b))
}

// CredentialsEncrypted reports whether the stored credentials row is encrypted.
func (s *SettingsStore) CredentialsEncrypted(ctx context.Context) (bool, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT encryption_version FROM api_credentials WHERE provider=$1`, providerTheta).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return version == crypto.VersionAESGCM, nil
}
