package stream

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/thetaalert/telemetry"
	"github.com/onnwee/thetaalert/thetaapi"
)

// ThetaType is the type tag of Theta streams in stored records.
const ThetaType = "ThetaStream"

func init() {
	Register(ThetaType, func(rec Record, deps Deps) (Stream, error) {
		return &Theta{name: rec.Name, id: rec.ID.String(), api: deps.API, webURL: deps.WebURL}, nil
	})
}

// Theta is a broadcaster on theta.tv. The id is resolved from the login name on first check.
type Theta struct {
	api    *thetaapi.Client
	webURL string

	mu   sync.RWMutex
	name string
	id   string
}

// NewTheta builds a Theta stream from a user-supplied identifier.
// All-digit identifiers are taken as user ids, anything else as a login name.
func NewTheta(nameOrID string, deps Deps) *Theta {
	t := &Theta{api: deps.API, webURL: deps.WebURL}
	if IsNumericID(nameOrID) {
		t.id = nameOrID
	} else {
		t.name = nameOrID
	}
	return t
}

// IsNumericID reports whether s looks like a platform user id.
func IsNumericID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (t *Theta) Type() string { return ThetaType }

func (t *Theta) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.name == "" {
		return t.id
	}
	return t.name
}

func (t *Theta) ID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.id
}

func (t *Theta) Matches(nameOrID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if IsNumericID(nameOrID) {
		return t.id == nameOrID
	}
	return t.name != "" && strings.EqualFold(t.name, nameOrID)
}

func (t *Theta) Record() Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Record{Type: ThetaType, Name: t.name, ID: FlexID(t.id)}
}

func (t *Theta) String() string {
	return "ThetaStream " + t.Name() + " (ID: " + t.ID() + ")"
}

// Check resolves the id if needed, queries live status and renders the embed when online.
func (t *Theta) Check(ctx context.Context) Result {
	ctx, span := telemetry.StartSpan(ctx, "stream", "stream.check",
		attribute.String("stream.type", ThetaType), attribute.String("stream.name", t.Name()))
	var res Result
	telemetry.TimeFunc(telemetry.CheckDuration, func() { res = t.check(ctx) })
	telemetry.CountCheck(res.Outcome.String())
	span.SetAttributes(attribute.String("stream.outcome", res.Outcome.String()))
	telemetry.EndSpan(span, res.Err)
	return res
}

// Resolve fills in whichever of the login name and the user id is still unknown.
func (t *Theta) Resolve(ctx context.Context) error {
	t.mu.RLock()
	name, id := t.name, t.id
	t.mu.RUnlock()
	switch {
	case id == "" && name != "":
		u, err := t.api.UserByLogin(ctx, name)
		if err != nil {
			return err
		}
		t.mu.Lock()
		t.id = u.ID
		t.mu.Unlock()
	case name == "" && id != "":
		u, err := t.api.UserByID(ctx, id)
		if err != nil {
			return err
		}
		t.mu.Lock()
		t.name = u.Login
		t.mu.Unlock()
	}
	return nil
}

func (t *Theta) check(ctx context.Context) Result {
	id := t.ID()
	if id == "" {
		u, err := t.api.UserByLogin(ctx, t.Name())
		if err != nil {
			return ResultFromError(err)
		}
		t.mu.Lock()
		t.id = u.ID
		t.mu.Unlock()
		id = u.ID
	}

	live, err := t.api.LiveStream(ctx, id)
	if err != nil {
		return ResultFromError(err)
	}
	if live == nil {
		return Result{Outcome: Offline}
	}
	if live.UserName != "" {
		t.mu.Lock()
		t.name = live.UserName
		t.mu.Unlock()
	}

	info := t.enrich(ctx, id, live)
	rerun := live.Type == "rerun"
	return Result{Outcome: Online, Embed: render(t.webURL, live, info), Rerun: rerun}
}

// enrich runs the best-effort secondary lookups. Failures leave the field unknown.
func (t *Theta) enrich(ctx context.Context, id string, live *thetaapi.LiveStream) enrichment {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("stream", t.Name()))
	var info enrichment
	if live.GameID != "" {
		if name, err := t.api.CategoryName(ctx, live.GameID); err != nil {
			log.Debug("category lookup failed", slog.String("game_id", live.GameID), slog.Any("err", err))
		} else {
			info.Category = name
		}
	}
	if n, err := t.api.FollowerCount(ctx, id); err != nil {
		log.Debug("follower lookup failed", slog.Any("err", err))
	} else {
		info.Followers = &n
	}
	if u, err := t.api.UserByID(ctx, id); err != nil {
		log.Debug("profile lookup failed", slog.Any("err", err))
	} else {
		info.ProfileImageURL = u.ProfileImageURL
		views := u.ViewCount
		info.Views = &views
	}
	return info
}
