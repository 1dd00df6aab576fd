package chat

import "testing"

func TestEscape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"alice", "alice"},
		{"al_ice*", `al\_ice\*`},
		{"@everyone look", "@\u200beveryone look"},
		{"@here", "@\u200bhere"},
		{"`code`", "\\`code\\`"},
	}
	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.want {
			t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoleMention(t *testing.T) {
	if got := (Role{ID: "42"}).Mention(); got != "<@&42>" {
		t.Errorf("Mention() = %q", got)
	}
}

func TestEscapeFor(t *testing.T) {
	var discord Platform = &Discord{}
	if got := EscapeFor(discord, "al_ice @here"); got != "al\\_ice @\u200bhere" {
		t.Errorf("EscapeFor(discord) = %q", got)
	}
	var irc Platform = &TwitchIRC{}
	if got := EscapeFor(irc, "al_ice @here"); got != "al_ice @here" {
		t.Errorf("EscapeFor(twitch) = %q", got)
	}
}
