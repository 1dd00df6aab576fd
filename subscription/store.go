package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/onnwee/thetaalert/chat"
	"github.com/onnwee/thetaalert/stream"
	"github.com/onnwee/thetaalert/telemetry"
)

// Persister reads and writes the serialized subscription list.
type Persister interface {
	Streams(ctx context.Context) ([]byte, error)
	SaveStreams(ctx context.Context, blob []byte) error
}

// Store is the in-memory subscription set. It is loaded once at startup and written
// back in full by Flush after every mutation; the last writer wins.
type Store struct {
	persist  Persister
	platform chat.Platform
	deps     stream.Deps

	mu   sync.Mutex
	subs []*Subscription

	flushMu sync.Mutex
}

// NewStore returns an empty store.
func NewStore(persist Persister, platform chat.Platform, deps stream.Deps) *Store {
	return &Store{persist: persist, platform: platform, deps: deps}
}

// Load replaces the in-memory set with the persisted one. Records of unknown types and
// records without channels are dropped; records naming a stream already loaded are
// merged into it; message references the chat platform no longer knows are discarded.
func (s *Store) Load(ctx context.Context) error {
	blob, err := s.persist.Streams(ctx)
	if err != nil {
		return fmt.Errorf("read subscriptions: %w", err)
	}
	recs, err := stream.Parse(blob)
	if err != nil {
		return err
	}
	subs := make([]*Subscription, 0, len(recs))
	for _, d := range stream.DecodeAll(recs, s.deps) {
		rec := d.Record
		var channels []string
		for _, c := range rec.Channels {
			if c != "" {
				channels = append(channels, c.String())
			}
		}
		if len(channels) == 0 {
			slog.Debug("dropping stored stream without channels", slog.String("name", rec.Name))
			continue
		}
		var messages []chat.MessageRef
		for _, m := range rec.Messages {
			ref, err := s.platform.Fetch(ctx, m.Channel.String(), m.Message.String())
			if err != nil {
				slog.Debug("dropping stale alert reference", slog.String("channel", m.Channel.String()), slog.String("message", m.Message.String()), slog.Any("err", err))
				continue
			}
			messages = append(messages, ref)
		}

		i := slices.IndexFunc(subs, func(sub *Subscription) bool { return sameIdentity(sub.Stream, d.Stream) })
		if i >= 0 {
			slog.Debug("merging duplicate stored stream", slog.String("name", rec.Name), slog.String("id", rec.ID.String()))
		} else {
			subs = append(subs, &Subscription{Stream: d.Stream})
			i = len(subs) - 1
		}
		subs[i].merge(channels, messages)
	}

	s.mu.Lock()
	s.subs = subs
	s.mu.Unlock()
	telemetry.SetSubscriptions(len(subs))
	slog.Info("subscriptions loaded", slog.Int("count", len(subs)), slog.String("component", "subscriptions"))
	return nil
}

// Flush serializes every subscription and writes the blob.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	recs := make([]stream.Record, 0, len(s.subs))
	for _, sub := range s.subs {
		recs = append(recs, sub.record())
	}
	s.mu.Unlock()

	blob, err := stream.Encode(recs)
	if err != nil {
		return fmt.Errorf("encode subscriptions: %w", err)
	}
	if err := s.persist.SaveStreams(ctx, blob); err != nil {
		return fmt.Errorf("save subscriptions: %w", err)
	}
	return nil
}

// Snapshot returns the current subscriptions. The slice is a copy; the elements are live.
func (s *Store) Snapshot() []*Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.subs)
}

// Len returns the number of tracked streams.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Find returns the subscription of type typeTag identified by nameOrID, or nil.
func (s *Store) Find(typeTag, nameOrID string) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.Stream.Type() == typeTag && sub.Stream.Matches(nameOrID) {
			return sub
		}
	}
	return nil
}

// Toggle subscribes channelID to st, or unsubscribes it when already subscribed.
// A stream already tracked under the same identity is reused. It reports whether the
// channel was added.
func (s *Store) Toggle(st stream.Stream, channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { telemetry.SetSubscriptions(len(s.subs)) }()

	for _, sub := range s.subs {
		if !sameIdentity(sub.Stream, st) {
			continue
		}
		added := sub.toggle(channelID)
		s.pruneLocked()
		return added
	}
	sub := &Subscription{Stream: st, channels: []string{channelID}}
	s.subs = append(s.subs, sub)
	return true
}

// RemoveChannels unsubscribes every channel in set from every stream and returns the
// number of (stream, channel) pairs removed.
func (s *Store) RemoveChannels(set map[string]bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, sub := range s.subs {
		removed += sub.removeChannels(set)
	}
	s.pruneLocked()
	telemetry.SetSubscriptions(len(s.subs))
	return removed
}

// ByChannel maps each channel in set to the sorted, lower-cased names of the streams it follows.
func (s *Store) ByChannel(set map[string]bool) map[string][]string {
	out := map[string][]string{}
	for _, sub := range s.Snapshot() {
		name := strings.ToLower(sub.Stream.Name())
		for _, c := range sub.Channels() {
			if set[c] {
				out[c] = append(out[c], name)
			}
		}
	}
	for _, names := range out {
		sort.Strings(names)
	}
	return out
}

// pruneLocked removes subscriptions left without channels. Caller holds s.mu.
func (s *Store) pruneLocked() {
	s.subs = slices.DeleteFunc(s.subs, func(sub *Subscription) bool { return sub.empty() })
}
