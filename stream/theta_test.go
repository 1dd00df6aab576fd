package stream_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/onnwee/thetaalert/stream"
	"github.com/onnwee/thetaalert/testutil"
)

func deps(m *testutil.MockThetaServer) stream.Deps {
	return stream.Deps{API: m.Client(), WebURL: "https://www.theta.tv"}
}

func TestThetaCheckOnlinePlayingZeroFollowers(t *testing.T) {
	m := testutil.NewMockThetaServer(t)
	m.MockUser("42", "alice", "", 0)
	m.MockLive(testutil.LiveEntry("42", "Alice", "Playing", "live", "7"))
	m.MockCategory("7", "Chess")
	m.MockFollowers(0)

	s := stream.NewTheta("alice", deps(m))
	res := s.Check(context.Background())

	if res.Outcome != stream.Online {
		t.Fatalf("Outcome = %v (err %v), want online", res.Outcome, res.Err)
	}
	if res.Rerun {
		t.Error("Rerun = true, want false")
	}
	e := res.Embed
	if e.Title != "Playing" {
		t.Errorf("Title = %q, want Playing", e.Title)
	}
	if e.URL != "https://www.theta.tv/Alice" {
		t.Errorf("URL = %q", e.URL)
	}
	if e.Color != stream.BrandColor {
		t.Errorf("Color = %x", e.Color)
	}
	if e.Thumbnail != stream.PlaceholderAvatar {
		t.Errorf("Thumbnail = %q, want placeholder", e.Thumbnail)
	}
	if e.Footer != "Playing: Chess" {
		t.Errorf("Footer = %q", e.Footer)
	}
	if len(e.Fields) != 2 || e.Fields[0].Name != "Followers" || e.Fields[0].Value != "0" {
		t.Errorf("Fields = %+v, want Followers=0 first", e.Fields)
	}
	if !strings.HasPrefix(e.Image, "https://previews.theta.tv/Alice-320x180.jpg?rnd=") {
		t.Errorf("Image = %q", e.Image)
	}
	if s.ID() != "42" || s.Name() != "Alice" {
		t.Errorf("identity after check = %s/%s", s.Name(), s.ID())
	}
}

func TestThetaCheckRenderDetails(t *testing.T) {
	m := testutil.NewMockThetaServer(t)
	m.MockUser("42", "alice", "https://img/alice.png", 1234567)
	m.MockLive(testutil.LiveEntry("42", "alice", "", "rerun", ""))
	m.MockFollowers(9876)

	res := stream.NewTheta("42", deps(m)).Check(context.Background())
	if res.Outcome != stream.Online {
		t.Fatalf("Outcome = %v", res.Outcome)
	}
	if !res.Rerun {
		t.Error("Rerun = false, want true")
	}
	e := res.Embed
	if e.Title != "Untitled broadcast - Rerun" {
		t.Errorf("Title = %q", e.Title)
	}
	if e.Thumbnail != "https://img/alice.png" {
		t.Errorf("Thumbnail = %q", e.Thumbnail)
	}
	if e.Footer != "" {
		t.Errorf("Footer = %q, want empty without category", e.Footer)
	}
	want := map[string]string{"Followers": "9,876", "Total views": "1,234,567"}
	for _, f := range e.Fields {
		if want[f.Name] != f.Value {
			t.Errorf("field %s = %q, want %q", f.Name, f.Value, want[f.Name])
		}
	}
	if m.Hits("/category") != 0 {
		t.Error("category looked up without a game id")
	}
}

func TestThetaCheckEnrichmentFailuresDegrade(t *testing.T) {
	m := testutil.NewMockThetaServer(t)
	m.MockLive(testutil.LiveEntry("42", "alice", "Hi", "live", "7"))
	m.MockStatus("/category", http.StatusInternalServerError)
	m.MockStatus("/channel/followers", http.StatusInternalServerError)
	m.MockStatus("/user", http.StatusInternalServerError)

	res := stream.NewTheta("42", deps(m)).Check(context.Background())
	if res.Outcome != stream.Online {
		t.Fatalf("Outcome = %v, want online despite enrichment failures", res.Outcome)
	}
	if len(res.Embed.Fields) != 0 || res.Embed.Footer != "" {
		t.Errorf("embed = %+v, want no fields and no footer", res.Embed)
	}
	if res.Embed.Thumbnail != stream.PlaceholderAvatar {
		t.Errorf("Thumbnail = %q", res.Embed.Thumbnail)
	}
}

func TestThetaCheckOutcomes(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *testutil.MockThetaServer)
		ident string
		want  stream.Outcome
	}{
		{
			name:  "offline",
			setup: func(m *testutil.MockThetaServer) { m.MockLive(nil) },
			ident: "42",
			want:  stream.Offline,
		},
		{
			name:  "unknown login",
			setup: func(m *testutil.MockThetaServer) { m.MockUser("1", "someoneelse", "", 0) },
			ident: "alice",
			want:  stream.NotFound,
		},
		{
			name:  "login lookup 400",
			setup: func(m *testutil.MockThetaServer) { m.MockStatus("/user", http.StatusBadRequest) },
			ident: "alice",
			want:  stream.NotFound,
		},
		{
			name:  "login lookup 401",
			setup: func(m *testutil.MockThetaServer) { m.MockStatus("/user", http.StatusUnauthorized) },
			ident: "alice",
			want:  stream.InvalidCredentials,
		},
		{
			name:  "live 400",
			setup: func(m *testutil.MockThetaServer) { m.MockStatus("/theta/live", http.StatusBadRequest) },
			ident: "42",
			want:  stream.InvalidCredentials,
		},
		{
			name:  "live 404",
			setup: func(m *testutil.MockThetaServer) { m.MockStatus("/theta/live", http.StatusNotFound) },
			ident: "42",
			want:  stream.NotFound,
		},
		{
			name:  "live 503",
			setup: func(m *testutil.MockThetaServer) { m.MockStatus("/theta/live", http.StatusServiceUnavailable) },
			ident: "42",
			want:  stream.APIError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.NewMockThetaServer(t)
			tt.setup(m)
			res := stream.NewTheta(tt.ident, deps(m)).Check(context.Background())
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %v, want %v", res.Outcome, tt.want)
			}
			if tt.want != stream.Offline && res.Err == nil {
				t.Error("Err = nil for an error outcome")
			}
		})
	}
}

func TestThetaMatches(t *testing.T) {
	byName := stream.NewTheta("Alice", stream.Deps{})
	if !byName.Matches("alice") || !byName.Matches("ALICE") {
		t.Error("name match should be case-insensitive")
	}
	if byName.Matches("42") {
		t.Error("numeric identifier matched a stream without id")
	}
	byID := stream.NewTheta("42", stream.Deps{})
	if !byID.Matches("42") || byID.Matches("4") {
		t.Error("id match wrong")
	}
	if byID.Name() != "42" {
		t.Errorf("Name() = %q, want id fallback", byID.Name())
	}
}

func TestThetaResolve(t *testing.T) {
	ctx := context.Background()
	m := testutil.NewMockThetaServer(t)
	m.MockUser("42", "alice", "", 0)

	byID := stream.NewTheta("42", deps(m))
	if err := byID.Resolve(ctx); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if byID.Name() != "alice" || !byID.Matches("ALICE") {
		t.Errorf("by id: Name() = %q", byID.Name())
	}

	byName := stream.NewTheta("Alice", deps(m))
	if err := byName.Resolve(ctx); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if byName.ID() != "42" || byName.Name() != "Alice" {
		t.Errorf("by name: ID() = %q Name() = %q", byName.ID(), byName.Name())
	}

	hits := m.Hits("/user")
	if err := byName.Resolve(ctx); err != nil || m.Hits("/user") != hits {
		t.Errorf("resolved stream looked up again: err=%v hits=%d", err, m.Hits("/user")-hits)
	}

	missing := stream.NewTheta("nobody", deps(m))
	if err := missing.Resolve(ctx); err == nil {
		t.Error("Resolve() of unknown login returned nil error")
	}
}
