package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestToDiscordEmbed(t *testing.T) {
	e := &Embed{
		Title: "Playing", URL: "https://www.theta.tv/alice", Color: 0x6441A4, Author: "alice",
		Thumbnail: "https://img/a.png", Image: "https://img/p.jpg",
		Fields: []Field{{Name: "Followers", Value: "0", Inline: true}}, Footer: "Playing: Chess",
	}
	me := toDiscordEmbed(e)
	if me.Title != "Playing" || me.URL != e.URL || me.Color != 0x6441A4 {
		t.Errorf("header = %+v", me)
	}
	if me.Author == nil || me.Author.Name != "alice" {
		t.Errorf("Author = %+v", me.Author)
	}
	if me.Thumbnail.URL != e.Thumbnail || me.Image.URL != e.Image {
		t.Error("images not mapped")
	}
	if len(me.Fields) != 1 || me.Fields[0].Value != "0" || !me.Fields[0].Inline {
		t.Errorf("Fields = %+v", me.Fields)
	}
	if me.Footer == nil || me.Footer.Text != "Playing: Chess" {
		t.Errorf("Footer = %+v", me.Footer)
	}

	bare := toDiscordEmbed(&Embed{Title: "x"})
	if bare.Author != nil || bare.Footer != nil || bare.Image != nil || bare.Thumbnail != nil {
		t.Error("empty parts should stay nil")
	}
}

func TestCanManageRoles(t *testing.T) {
	roles := []*discordgo.Role{
		{ID: "g1", Permissions: 0},
		{ID: "mod", Permissions: discordgo.PermissionManageRoles},
		{ID: "admin", Permissions: discordgo.PermissionAdministrator},
		{ID: "plain", Permissions: discordgo.PermissionSendMessages},
	}
	tests := []struct {
		name   string
		owner  bool
		member []string
		want   bool
	}{
		{"owner", true, nil, true},
		{"no roles", false, nil, false},
		{"plain role", false, []string{"plain"}, false},
		{"manage roles", false, []string{"plain", "mod"}, true},
		{"administrator", false, []string{"admin"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canManageRoles(tt.owner, "g1", tt.member, roles); got != tt.want {
				t.Errorf("canManageRoles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTwitchIRCCapabilities(t *testing.T) {
	ctx := context.Background()
	irc := NewTwitchIRC("bot", "oauth:x")

	g, err := irc.ChannelGuild(ctx, "#SomeRoom")
	if err != nil || g != "someroom" {
		t.Errorf("ChannelGuild() = %q, %v", g, err)
	}
	if _, err := irc.ChannelGuild(ctx, "#"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("ChannelGuild(#) error = %v", err)
	}
	if err := irc.Delete(ctx, MessageRef{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Delete() error = %v", err)
	}
	if err := irc.SetRoleMentionable(ctx, "g", "r", true); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SetRoleMentionable() error = %v", err)
	}
	ref, err := irc.Fetch(ctx, "room", "abc")
	if err != nil || ref.MessageID != "abc" {
		t.Errorf("Fetch() = %+v, %v", ref, err)
	}
	chs, _ := irc.GuildChannels(ctx, "Room")
	if len(chs) != 1 || chs[0] != "room" {
		t.Errorf("GuildChannels() = %v", chs)
	}
}

func TestIRCText(t *testing.T) {
	got := ircText("@everyone, alice is now live!", &Embed{Title: "Playing", Footer: "Playing: Chess", URL: "https://www.theta.tv/alice"})
	want := "@everyone, alice is now live! Playing (Playing: Chess) https://www.theta.tv/alice"
	if got != want {
		t.Errorf("ircText() = %q, want %q", got, want)
	}
	if got := ircText("alice is now live!", nil); got != "alice is now live!" {
		t.Errorf("ircText(nil) = %q", got)
	}
}
