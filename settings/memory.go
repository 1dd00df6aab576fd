package settings

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Memory is a process-local Store. It loses everything on restart unless a Blob
// backs the subscription list.
type Memory struct {
	blob Blob

	mu       sync.RWMutex
	interval time.Duration
	guilds   map[string]GuildConfig
	roles    map[string]bool // guild/role
	streams  []byte
	creds    Credentials
	legacy   map[string]string
}

// NewMemory returns an empty store. blob may be nil.
func NewMemory(blob Blob) *Memory {
	return &Memory{
		blob:   blob,
		guilds: map[string]GuildConfig{},
		roles:  map[string]bool{},
		legacy: map[string]string{},
	}
}

func roleKey(guildID, roleID string) string { return guildID + "/" + roleID }

func (m *Memory) RefreshInterval(_ context.Context) (time.Duration, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.interval, m.interval > 0, nil
}

func (m *Memory) SetRefreshInterval(_ context.Context, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
	return nil
}

func (m *Memory) Guild(_ context.Context, guildID string) (GuildConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cfg, ok := m.guilds[guildID]; ok {
		return cfg, nil
	}
	return DefaultGuild(), nil
}

func (m *Memory) SaveGuild(_ context.Context, guildID string, cfg GuildConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guilds[guildID] = cfg
	return nil
}

func (m *Memory) RoleMention(_ context.Context, guildID, roleID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roles[roleKey(guildID, roleID)], nil
}

func (m *Memory) SetRoleMention(_ context.Context, guildID, roleID string, mention bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[roleKey(guildID, roleID)] = mention
	return nil
}

func (m *Memory) Streams(ctx context.Context) ([]byte, error) {
	if m.blob != nil {
		return m.blob.Read(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.streams...), nil
}

func (m *Memory) SaveStreams(ctx context.Context, blob []byte) error {
	if m.blob != nil {
		return m.blob.Write(ctx, blob)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = append([]byte(nil), blob...)
	return nil
}

func (m *Memory) Credentials(_ context.Context) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds, nil
}

func (m *Memory) SaveCredentials(_ context.Context, c Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = c
	return nil
}

// SetLegacyTokens seeds the legacy tokens map, as an old install would have it.
func (m *Memory) SetLegacyTokens(tokens map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legacy = maps.Clone(tokens)
}

func (m *Memory) LegacyTokens(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.legacy), nil
}

func (m *Memory) ClearLegacyTokens(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legacy = map[string]string{}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

var _ Store = (*Memory)(nil)
