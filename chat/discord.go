package chat

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord is a Platform backed by a discordgo bot session.
type Discord struct {
	s *discordgo.Session
}

// NewDiscord creates a session for a bot token. Call Open before use.
func NewDiscord(token string) (*Discord, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return &Discord{s: s}, nil
}

// Open connects the gateway so the state cache fills.
func (d *Discord) Open() error { return d.s.Open() }

// Close disconnects the gateway.
func (d *Discord) Close() error { return d.s.Close() }

func (d *Discord) ChannelGuild(ctx context.Context, channelID string) (string, error) {
	if ch, err := d.s.State.Channel(channelID); err == nil {
		return ch.GuildID, nil
	}
	ch, err := d.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnknownChannel, channelID, err)
	}
	return ch.GuildID, nil
}

func toDiscordEmbed(e *Embed) *discordgo.MessageEmbed {
	me := &discordgo.MessageEmbed{Title: e.Title, URL: e.URL, Color: e.Color}
	if e.Author != "" {
		me.Author = &discordgo.MessageEmbedAuthor{Name: e.Author}
	}
	if e.Thumbnail != "" {
		me.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
	}
	if e.Image != "" {
		me.Image = &discordgo.MessageEmbedImage{URL: e.Image}
	}
	for _, f := range e.Fields {
		me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != "" {
		me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return me
}

func (d *Discord) Send(ctx context.Context, channelID, content string, embed *Embed) (MessageRef, error) {
	msg := &discordgo.MessageSend{
		Content: content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeEveryone, discordgo.AllowedMentionTypeRoles},
		},
	}
	if embed != nil {
		msg.Embeds = []*discordgo.MessageEmbed{toDiscordEmbed(embed)}
	}
	m, err := d.s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return MessageRef{}, fmt.Errorf("send to %s: %w", channelID, err)
	}
	return MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (d *Discord) Delete(ctx context.Context, ref MessageRef) error {
	return d.s.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
}

func (d *Discord) Fetch(ctx context.Context, channelID, messageID string) (MessageRef, error) {
	m, err := d.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return MessageRef{}, err
	}
	return MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (d *Discord) Roles(ctx context.Context, guildID string) ([]Role, error) {
	roles, err := d.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, Role{ID: r.ID, Name: r.Name, Mentionable: r.Mentionable})
	}
	return out, nil
}

// CanManageRoles reports whether the bot holds Manage Roles (or Administrator) in guildID.
func (d *Discord) CanManageRoles(ctx context.Context, guildID string) (bool, error) {
	if d.s.State.User == nil {
		return false, fmt.Errorf("discord session not open")
	}
	me := d.s.State.User.ID
	g, err := d.s.State.Guild(guildID)
	if err != nil {
		if g, err = d.s.Guild(guildID, discordgo.WithContext(ctx)); err != nil {
			return false, err
		}
	}
	member, err := d.s.GuildMember(guildID, me, discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}
	roles, err := d.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}
	return canManageRoles(g.OwnerID == me, guildID, member.Roles, roles), nil
}

// canManageRoles folds the permissions of @everyone (id == guild id) and the member's roles.
func canManageRoles(owner bool, guildID string, memberRoles []string, roles []*discordgo.Role) bool {
	if owner {
		return true
	}
	held := map[string]bool{guildID: true}
	for _, id := range memberRoles {
		held[id] = true
	}
	var perms int64
	for _, r := range roles {
		if held[r.ID] {
			perms |= r.Permissions
		}
	}
	return perms&discordgo.PermissionAdministrator != 0 || perms&discordgo.PermissionManageRoles != 0
}

func (d *Discord) SetRoleMentionable(ctx context.Context, guildID, roleID string, mentionable bool) error {
	_, err := d.s.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{Mentionable: &mentionable}, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) GuildChannels(ctx context.Context, guildID string) ([]string, error) {
	chs, err := d.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(chs))
	for _, c := range chs {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

var _ Platform = (*Discord)(nil)
