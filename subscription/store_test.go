package subscription

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/thetaalert/chat"
	"github.com/onnwee/thetaalert/settings"
	"github.com/onnwee/thetaalert/stream"
	"github.com/onnwee/thetaalert/testutil"
)

func newStore(t *testing.T) (*Store, *settings.Memory, *testutil.FakePlatform) {
	t.Helper()
	mem := settings.NewMemory(nil)
	fp := testutil.NewFakePlatform()
	return NewStore(mem, fp, stream.Deps{}), mem, fp
}

func theta(nameOrID string) stream.Stream { return stream.NewTheta(nameOrID, stream.Deps{}) }

func assertNoEmpty(t *testing.T, s *Store) {
	t.Helper()
	for _, sub := range s.Snapshot() {
		assert.NotEmpty(t, sub.Channels(), "subscription %s has no channels", sub.Stream.Name())
	}
}

func TestToggleIsIdempotentPair(t *testing.T) {
	s, _, _ := newStore(t)

	assert.True(t, s.Toggle(theta("alice"), "c1"))
	assert.Equal(t, 1, s.Len())

	// a fresh value with the same identity reuses the tracked stream
	assert.False(t, s.Toggle(theta("Alice"), "c1"))
	assert.Equal(t, 0, s.Len(), "last channel removed, subscription gone")
	assertNoEmpty(t, s)
}

func TestToggleMultipleChannels(t *testing.T) {
	s, _, _ := newStore(t)
	st := theta("alice")
	s.Toggle(st, "c1")
	s.Toggle(st, "c2")
	s.Toggle(theta("bob"), "c1")

	require.Equal(t, 2, s.Len())
	sub := s.Find(stream.ThetaType, "ALICE")
	require.NotNil(t, sub)
	assert.ElementsMatch(t, []string{"c1", "c2"}, sub.Channels())

	assert.False(t, s.Toggle(st, "c1"))
	assert.Equal(t, []string{"c2"}, sub.Channels())
	assertNoEmpty(t, s)
}

func TestFindByID(t *testing.T) {
	s, _, _ := newStore(t)
	s.Toggle(theta("12345"), "c1")
	assert.NotNil(t, s.Find(stream.ThetaType, "12345"))
	assert.Nil(t, s.Find(stream.ThetaType, "1234"))
	assert.Nil(t, s.Find("OtherStream", "12345"))
}

func TestRemoveChannels(t *testing.T) {
	s, _, _ := newStore(t)
	s.Toggle(theta("alice"), "c1")
	s.Toggle(theta("alice"), "c2")
	s.Toggle(theta("bob"), "c2")
	s.Toggle(theta("carol"), "c3")

	assert.Equal(t, 1, s.RemoveChannels(map[string]bool{"c1": true}))
	assert.Equal(t, 3, s.Len())

	assert.Equal(t, 2, s.RemoveChannels(map[string]bool{"c2": true, "c9": true}))
	assert.Equal(t, 1, s.Len())
	assert.NotNil(t, s.Find(stream.ThetaType, "carol"))
	assertNoEmpty(t, s)
}

func TestByChannel(t *testing.T) {
	s, _, _ := newStore(t)
	s.Toggle(theta("Zed"), "c1")
	s.Toggle(theta("alice"), "c1")
	s.Toggle(theta("bob"), "c2")
	s.Toggle(theta("carol"), "c3")

	got := s.ByChannel(map[string]bool{"c1": true, "c2": true})
	assert.Equal(t, map[string][]string{
		"c1": {"alice", "zed"},
		"c2": {"bob"},
	}, got)
}

func TestFlushLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mem, fp := newStore(t)
	fp.AddChannel("g1", "c1")
	fp.AddChannel("g1", "c2")

	s.Toggle(theta("alice"), "c1")
	s.Toggle(theta("alice"), "c2")
	s.Toggle(theta("42"), "c2")
	live := s.Find(stream.ThetaType, "alice")
	kept := chat.MessageRef{ChannelID: "c1", MessageID: "m100"}
	fp.Seed(kept)
	live.AddMessage(kept)
	live.AddMessage(chat.MessageRef{ChannelID: "c2", MessageID: "gone"})
	require.NoError(t, s.Flush(ctx))

	loaded := NewStore(mem, fp, stream.Deps{})
	require.NoError(t, loaded.Load(ctx))
	require.Equal(t, 2, loaded.Len())

	sub := loaded.Find(stream.ThetaType, "alice")
	require.NotNil(t, sub)
	assert.Equal(t, []string{"c1", "c2"}, sub.Channels())
	assert.Equal(t, []chat.MessageRef{kept}, sub.Messages(), "unknown message refs are dropped at load")

	byID := loaded.Find(stream.ThetaType, "42")
	require.NotNil(t, byID)
	assert.Equal(t, "42", byID.Stream.ID())
}

func TestLoadDropsEmptyAndUnknown(t *testing.T) {
	ctx := context.Background()
	s, mem, _ := newStore(t)
	require.NoError(t, mem.SaveStreams(ctx, []byte(`[
		{"type":"ThetaStream","name":"alice","channels":[],"messages":[]},
		{"type":"TwitchStream","name":"bob","channels":["1"],"messages":[]},
		{"type":"ThetaStream","name":"carol","id":"9","channels":[111,111,222],"messages":[]}
	]`)))
	require.NoError(t, s.Load(ctx))
	require.Equal(t, 1, s.Len())
	sub := s.Find(stream.ThetaType, "carol")
	require.NotNil(t, sub)
	assert.Equal(t, []string{"111", "222"}, sub.Channels())
}

func TestLoadEmptyBlob(t *testing.T) {
	s, _, _ := newStore(t)
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 0, s.Len())
}

func TestTakeMessages(t *testing.T) {
	s, _, _ := newStore(t)
	s.Toggle(theta("alice"), "c1")
	sub := s.Snapshot()[0]
	assert.False(t, sub.Live())
	sub.AddMessage(chat.MessageRef{ChannelID: "c1", MessageID: "1"})
	assert.True(t, sub.Live())
	assert.Len(t, sub.TakeMessages(), 1)
	assert.False(t, sub.Live())
	assert.Empty(t, sub.Messages())
}

func TestConcurrentToggleAndFlush(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	st := theta("alice")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); s.Toggle(st, "c1") }()
		go func() { defer wg.Done(); _ = s.Flush(ctx) }()
	}
	wg.Wait()
	// 20 toggles of the same pair end where they started
	assert.Equal(t, 0, s.Len())
}

func resolved(name, id string) stream.Stream {
	st, err := stream.Decode(stream.Record{Type: stream.ThetaType, Name: name, ID: stream.FlexID(id)}, stream.Deps{})
	if err != nil {
		panic(err)
	}
	return st
}

func TestToggleMatchesAcrossIdentity(t *testing.T) {
	tests := []struct {
		name    string
		tracked stream.Stream
		toggled stream.Stream
		same    bool
	}{
		{"name only vs resolved", theta("alice"), resolved("Alice", "42"), true},
		{"id only vs resolved", theta("42"), resolved("alice", "42"), true},
		{"resolved vs name only", resolved("alice", "42"), theta("ALICE"), true},
		{"different ids same name", resolved("alice", "42"), resolved("alice", "43"), false},
		{"name only vs other name", theta("alice"), resolved("bob", "42"), false},
		{"id only vs name only", theta("42"), theta("alice"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newStore(t)
			s.Toggle(tt.tracked, "c1")
			added := s.Toggle(tt.toggled, "c2")
			assert.True(t, added)
			if tt.same {
				require.Equal(t, 1, s.Len())
				assert.Equal(t, []string{"c1", "c2"}, s.Snapshot()[0].Channels())
			} else {
				assert.Equal(t, 2, s.Len())
			}
		})
	}
}

func TestLoadMergesSameIdentity(t *testing.T) {
	ctx := context.Background()
	s, mem, fp := newStore(t)
	fp.AddChannel("g1", "1")
	kept := chat.MessageRef{ChannelID: "1", MessageID: "m1"}
	fp.Seed(kept)
	require.NoError(t, mem.SaveStreams(ctx, []byte(`[
		{"type":"ThetaStream","name":"alice","id":"42","channels":["1"],"messages":[{"channel":"1","message":"m1"}]},
		{"type":"ThetaStream","name":"ALICE","channels":["2"],"messages":[{"channel":"1","message":"m1"}]},
		{"type":"ThetaStream","id":"42","channels":["1","3"],"messages":[]},
		{"type":"ThetaStream","name":"bob","channels":["1"],"messages":[]}
	]`)))
	require.NoError(t, s.Load(ctx))
	require.Equal(t, 2, s.Len())

	sub := s.Find(stream.ThetaType, "42")
	require.NotNil(t, sub)
	assert.Equal(t, "alice", sub.Stream.Name())
	assert.Equal(t, []string{"1", "2", "3"}, sub.Channels())
	assert.Equal(t, []chat.MessageRef{kept}, sub.Messages())
	assert.NotNil(t, s.Find(stream.ThetaType, "bob"))
}
