package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"
)

// TwitchIRC posts alerts as plain text into Twitch chat rooms.
// A room is both the channel and the guild.
type TwitchIRC struct {
	client *twitch.Client

	mu     sync.Mutex
	joined map[string]bool
}

// NewTwitchIRC returns an adapter for the bot account username (oauth is "oauth:...").
func NewTwitchIRC(username, oauth string) *TwitchIRC {
	return &TwitchIRC{client: twitch.NewClient(username, oauth), joined: map[string]bool{}}
}

// Run connects and blocks until ctx is cancelled or the connection fails.
func (t *TwitchIRC) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			t.client.Disconnect()
		case <-done:
		}
	}()
	t.client.OnConnect(func() {
		slog.Info("twitch chat connected", slog.String("component", "chat_twitch"))
	})
	err := t.client.Connect()
	if errors.Is(err, twitch.ErrClientDisconnected) {
		return nil
	}
	return err
}

func room(channelID string) string {
	return strings.ToLower(strings.TrimPrefix(channelID, "#"))
}

func (t *TwitchIRC) ChannelGuild(_ context.Context, channelID string) (string, error) {
	r := room(channelID)
	if r == "" {
		return "", ErrUnknownChannel
	}
	return r, nil
}

// ircText flattens an alert into one chat line.
func ircText(content string, e *Embed) string {
	parts := []string{content}
	if e != nil {
		if e.Title != "" {
			parts = append(parts, e.Title)
		}
		if e.Footer != "" {
			parts = append(parts, "("+e.Footer+")")
		}
		if e.URL != "" {
			parts = append(parts, e.URL)
		}
	}
	return strings.Join(nonEmpty(parts), " ")
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (t *TwitchIRC) Send(_ context.Context, channelID, content string, embed *Embed) (MessageRef, error) {
	r := room(channelID)
	if r == "" {
		return MessageRef{}, ErrUnknownChannel
	}
	t.mu.Lock()
	if !t.joined[r] {
		t.client.Join(r)
		t.joined[r] = true
	}
	t.mu.Unlock()
	t.client.Say(r, ircText(content, embed))
	return MessageRef{ChannelID: channelID, MessageID: uuid.NewString()}, nil
}

// Delete is not possible for messages the bot cannot moderate.
// EscapeText returns s unchanged: Twitch chat has no markdown and no mass mentions.
func (t *TwitchIRC) EscapeText(s string) string { return s }

func (t *TwitchIRC) Delete(context.Context, MessageRef) error { return ErrUnsupported }

// Fetch cannot verify IRC messages; every reference is taken as still present.
func (t *TwitchIRC) Fetch(_ context.Context, channelID, messageID string) (MessageRef, error) {
	return MessageRef{ChannelID: channelID, MessageID: messageID}, nil
}

func (t *TwitchIRC) Roles(context.Context, string) ([]Role, error) { return nil, nil }

func (t *TwitchIRC) CanManageRoles(context.Context, string) (bool, error) { return false, nil }

func (t *TwitchIRC) SetRoleMentionable(context.Context, string, string, bool) error {
	return ErrUnsupported
}

func (t *TwitchIRC) GuildChannels(_ context.Context, guildID string) ([]string, error) {
	return []string{room(guildID)}, nil
}

var _ Platform = (*TwitchIRC)(nil)
