package alert

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/thetaalert/settings"
	"github.com/onnwee/thetaalert/stream"
	"github.com/onnwee/thetaalert/subscription"
	"github.com/onnwee/thetaalert/telemetry"
	"github.com/onnwee/thetaalert/testutil"
)

type fixture struct {
	api      *testutil.MockThetaServer
	platform *testutil.FakePlatform
	settings *settings.Memory
	store    *subscription.Store
	poller   *Poller
	svc      *Service
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	telemetry.Init()
	api := testutil.NewMockThetaServer(t)
	client := api.Client()
	deps := stream.Deps{API: client, WebURL: "https://www.theta.tv"}
	fp := testutil.NewFakePlatform()
	mem := settings.NewMemory(nil)
	store := subscription.NewStore(mem, fp, deps)
	clock := clockwork.NewFakeClock()
	return &fixture{
		api:      api,
		platform: fp,
		settings: mem,
		store:    store,
		clock:    clock,
		poller: &Poller{
			Store: store, Settings: mem, Platform: fp, Tokens: client.Tokens,
			DefaultInterval: 200 * time.Second, Clock: clock,
		},
		svc: &Service{Store: store, Settings: mem, Platform: fp, Tokens: client.Tokens, Deps: deps},
	}
}

// subscribe tracks name (by id 42) in the given channels without a verification call.
func (f *fixture) subscribe(t *testing.T, name string, channels ...string) *subscription.Subscription {
	t.Helper()
	st := stream.NewTheta(name, f.svc.Deps)
	for _, c := range channels {
		f.store.Toggle(st, c)
	}
	sub := f.store.Find(stream.ThetaType, name)
	require.NotNil(t, sub)
	return sub
}

func (f *fixture) goLive(name, title, kind string) {
	f.api.MockUser("42", name, "", 10)
	f.api.MockLive(testutil.LiveEntry("42", name, title, kind, ""))
	f.api.MockFollowers(0)
}

func (f *fixture) goOffline() { f.api.MockLive(nil) }

func (f *fixture) tick() { f.poller.Tick(context.Background()) }

// plainTextPlatform is a chat host without markdown, like Twitch chat.
type plainTextPlatform struct {
	*testutil.FakePlatform
}

func (plainTextPlatform) EscapeText(s string) string { return s }
