// Package chat abstracts the chat host that stream alerts are posted to.
//
// The alert loop only needs a handful of capabilities from the host: send a message
// with a rich payload, delete or re-fetch a message by reference, resolve which guild
// a channel belongs to, and inspect/edit role mentionability. Platform captures those;
// two adapters implement it:
//   - Discord: a discordgo session; embeds, roles and deletes are fully supported.
//   - TwitchIRC: a go-twitch-irc client that posts plain-text alerts into Twitch chat
//     rooms. A room is its own guild, references are generated locally, and deletes
//     and role edits return ErrUnsupported.
package chat
