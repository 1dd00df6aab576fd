// Package subscription owns the set of tracked streams and the chat channels subscribed
// to each of them.
//
// Lock order is Store.mu, then Subscription.mu. Holders of a Subscription lock never
// make network calls.
package subscription

import (
	"slices"
	"strings"
	"sync"

	"github.com/onnwee/thetaalert/chat"
	"github.com/onnwee/thetaalert/stream"
)

// Subscription ties one stream to the channels alerting on it and the alerts currently posted.
type Subscription struct {
	Stream stream.Stream

	mu       sync.Mutex
	channels []string
	messages []chat.MessageRef
}

// Channels returns a copy of the subscribed channel ids.
func (s *Subscription) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.channels)
}

// Messages returns a copy of the posted alert references.
func (s *Subscription) Messages() []chat.MessageRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Live reports whether alerts are currently posted, i.e. the stream is believed live.
func (s *Subscription) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages) > 0
}

// AddMessage records a posted alert.
func (s *Subscription) AddMessage(ref chat.MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, ref)
}

// TakeMessages clears and returns the posted alerts.
func (s *Subscription) TakeMessages() []chat.MessageRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.messages
	s.messages = nil
	return out
}

// toggle flips channelID and reports whether it was added. Caller holds Store.mu.
func (s *Subscription) toggle(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.channels, channelID); i >= 0 {
		s.channels = slices.Delete(s.channels, i, i+1)
		return false
	}
	s.channels = append(s.channels, channelID)
	return true
}

// removeChannels drops every channel in set and returns how many were removed.
func (s *Subscription) removeChannels(set map[string]bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.channels)
	s.channels = slices.DeleteFunc(s.channels, func(c string) bool { return set[c] })
	return before - len(s.channels)
}

func (s *Subscription) empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels) == 0
}

func (s *Subscription) record() stream.Record {
	rec := s.Stream.Record()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Channels = make([]stream.FlexID, 0, len(s.channels))
	for _, c := range s.channels {
		rec.Channels = append(rec.Channels, stream.FlexID(c))
	}
	rec.Messages = make([]stream.MessageRec, 0, len(s.messages))
	for _, m := range s.messages {
		rec.Messages = append(rec.Messages, stream.MessageRec{Channel: stream.FlexID(m.ChannelID), Message: stream.FlexID(m.MessageID)})
	}
	return rec
}

// merge adds channels and alert references s does not have yet.
func (s *Subscription) merge(channels []string, messages []chat.MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range channels {
		if !slices.Contains(s.channels, c) {
			s.channels = append(s.channels, c)
		}
	}
	for _, m := range messages {
		if !slices.Contains(s.messages, m) {
			s.messages = append(s.messages, m)
		}
	}
}

// sameIdentity reports whether a and b track the same remote entity. Ids decide when
// both sides know one; otherwise the names must agree.
func sameIdentity(a, b stream.Stream) bool {
	if a == b {
		return true
	}
	if a.Type() != b.Type() {
		return false
	}
	ra, rb := a.Record(), b.Record()
	if ra.ID != "" && rb.ID != "" {
		return ra.ID == rb.ID
	}
	return ra.Name != "" && strings.EqualFold(ra.Name, rb.Name)
}
