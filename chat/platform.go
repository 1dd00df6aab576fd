package chat

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported is returned by adapters for capabilities their host lacks.
	ErrUnsupported = errors.New("chat: operation not supported by platform")
	// ErrUnknownChannel is returned when a channel id cannot be resolved.
	ErrUnknownChannel = errors.New("chat: unknown channel")
)

// Embed is the rich notification payload attached to an alert message.
type Embed struct {
	Title     string
	URL       string
	Color     int
	Author    string
	Thumbnail string
	Image     string
	Fields    []Field
	Footer    string
}

// Field is a named value rendered inside an Embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// MessageRef identifies a message posted by the bot.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// Role is the subset of guild role state the mention logic needs.
type Role struct {
	ID          string
	Name        string
	Mentionable bool
}

// Mention returns the role mention markup.
func (r Role) Mention() string { return "<@&" + r.ID + ">" }

// Platform is the chat host capability set consumed by the alert loop and services.
type Platform interface {
	// ChannelGuild resolves the guild that owns a channel. ErrUnknownChannel if the bot can't see it.
	ChannelGuild(ctx context.Context, channelID string) (string, error)
	Send(ctx context.Context, channelID, content string, embed *Embed) (MessageRef, error)
	Delete(ctx context.Context, ref MessageRef) error
	Fetch(ctx context.Context, channelID, messageID string) (MessageRef, error)
	Roles(ctx context.Context, guildID string) ([]Role, error)
	CanManageRoles(ctx context.Context, guildID string) (bool, error)
	SetRoleMentionable(ctx context.Context, guildID, roleID string, mentionable bool) error
	GuildChannels(ctx context.Context, guildID string) ([]string, error)
}
