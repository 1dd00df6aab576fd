package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/onnwee/thetaalert/chat"
)

// SentMessage is one message recorded by FakePlatform.
type SentMessage struct {
	Ref     chat.MessageRef
	Content string
	Embed   *chat.Embed
}

// RoleEdit is one mentionability change recorded by FakePlatform.
type RoleEdit struct {
	GuildID     string
	RoleID      string
	Mentionable bool
}

// FakePlatform is an in-memory chat.Platform that records what it was asked to do.
type FakePlatform struct {
	mu sync.Mutex

	guildOf     map[string]string // channel -> guild
	roles       map[string][]chat.Role
	manageRoles map[string]bool
	messages    map[chat.MessageRef]bool
	failEdit    map[string]bool
	nextID      int

	sent    []SentMessage
	deleted []chat.MessageRef
	edits   []RoleEdit

	// SendErr and DeleteErr, when set, are returned by Send and Delete.
	SendErr   error
	DeleteErr error
}

// NewFakePlatform returns an empty fake.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		guildOf:     map[string]string{},
		roles:       map[string][]chat.Role{},
		manageRoles: map[string]bool{},
		messages:    map[chat.MessageRef]bool{},
		failEdit:    map[string]bool{},
	}
}

// AddChannel makes channelID visible as part of guildID.
func (f *FakePlatform) AddChannel(guildID, channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guildOf[channelID] = guildID
}

// AddRole adds a role to guildID.
func (f *FakePlatform) AddRole(guildID string, role chat.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[guildID] = append(f.roles[guildID], role)
}

// SetManageRoles sets whether the bot holds the manage-roles permission in guildID.
func (f *FakePlatform) SetManageRoles(guildID string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manageRoles[guildID] = ok
}

// FailRoleEdit makes SetRoleMentionable fail for roleID.
func (f *FakePlatform) FailRoleEdit(roleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failEdit[roleID] = true
}

// Seed registers an existing message so Fetch finds it.
func (f *FakePlatform) Seed(ref chat.MessageRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[ref] = true
}

// Sent returns a copy of the sent messages.
func (f *FakePlatform) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.sent...)
}

// Deleted returns a copy of the deleted message refs.
func (f *FakePlatform) Deleted() []chat.MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.MessageRef(nil), f.deleted...)
}

// RoleEdits returns a copy of the recorded mentionability changes.
func (f *FakePlatform) RoleEdits() []RoleEdit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RoleEdit(nil), f.edits...)
}

func (f *FakePlatform) ChannelGuild(_ context.Context, channelID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guildOf[channelID]
	if !ok {
		return "", chat.ErrUnknownChannel
	}
	return g, nil
}

func (f *FakePlatform) Send(_ context.Context, channelID, content string, embed *chat.Embed) (chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return chat.MessageRef{}, f.SendErr
	}
	if _, ok := f.guildOf[channelID]; !ok {
		return chat.MessageRef{}, chat.ErrUnknownChannel
	}
	f.nextID++
	ref := chat.MessageRef{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", f.nextID)}
	f.messages[ref] = true
	f.sent = append(f.sent, SentMessage{Ref: ref, Content: content, Embed: embed})
	return ref, nil
}

func (f *FakePlatform) Delete(_ context.Context, ref chat.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.messages, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *FakePlatform) Fetch(_ context.Context, channelID, messageID string) (chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := chat.MessageRef{ChannelID: channelID, MessageID: messageID}
	if !f.messages[ref] {
		return chat.MessageRef{}, errors.New("fake: unknown message")
	}
	return ref, nil
}

func (f *FakePlatform) Roles(_ context.Context, guildID string) ([]chat.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Role(nil), f.roles[guildID]...), nil
}

func (f *FakePlatform) CanManageRoles(_ context.Context, guildID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.manageRoles[guildID], nil
}

func (f *FakePlatform) SetRoleMentionable(_ context.Context, guildID, roleID string, mentionable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdit[roleID] {
		return errors.New("fake: missing permissions")
	}
	for i, r := range f.roles[guildID] {
		if r.ID == roleID {
			f.roles[guildID][i].Mentionable = mentionable
		}
	}
	f.edits = append(f.edits, RoleEdit{GuildID: guildID, RoleID: roleID, Mentionable: mentionable})
	return nil
}

func (f *FakePlatform) GuildChannels(_ context.Context, guildID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for ch, g := range f.guildOf {
		if g == guildID {
			out = append(out, ch)
		}
	}
	return out, nil
}

var _ chat.Platform = (*FakePlatform)(nil)
