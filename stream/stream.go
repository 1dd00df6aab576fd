// Package stream models a tracked broadcaster: its identity, how to ask the platform
// whether it is live, how to render the alert embed, and how it is persisted.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/onnwee/thetaalert/chat"
	"github.com/onnwee/thetaalert/thetaapi"
)

// Outcome is the result kind of a liveness check.
type Outcome int

const (
	Online Outcome = iota
	Offline
	NotFound
	InvalidCredentials
	APIError
)

func (o Outcome) String() string {
	switch o {
	case Online:
		return "online"
	case Offline:
		return "offline"
	case NotFound:
		return "not_found"
	case InvalidCredentials:
		return "invalid_credentials"
	default:
		return "api_error"
	}
}

// Result is what a liveness check produced. Embed is only set when Outcome is Online.
type Result struct {
	Outcome Outcome
	Embed   *chat.Embed
	Rerun   bool
	Err     error
}

// ResultFromError classifies an API error into a check result.
func ResultFromError(err error) Result {
	switch {
	case errors.Is(err, thetaapi.ErrNotFound):
		return Result{Outcome: NotFound, Err: err}
	case errors.Is(err, thetaapi.ErrInvalidCredentials), errors.Is(err, thetaapi.ErrMissingCredentials):
		return Result{Outcome: InvalidCredentials, Err: err}
	default:
		return Result{Outcome: APIError, Err: err}
	}
}

// Stream is one tracked entity on a streaming platform.
type Stream interface {
	Type() string
	Name() string
	ID() string
	// Matches reports whether nameOrID identifies this stream. Names compare case-insensitively.
	Matches(nameOrID string) bool
	Check(ctx context.Context) Result
	// Record returns the persisted identity; channels and messages are filled in by the owner.
	Record() Record
}

// Deps are the runtime collaborators a decoded stream gets re-attached to.
type Deps struct {
	API    *thetaapi.Client
	WebURL string
}

// Factory builds a Stream of one type from its persisted record.
type Factory func(rec Record, deps Deps) (Stream, error)

// ErrUnknownType is returned by Decode for records with an unregistered type tag.
var ErrUnknownType = errors.New("stream: unknown type")

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a stream type available to Decode under typeTag.
func Register(typeTag string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeTag] = f
}

// Decode rebuilds the stream described by rec.
func Decode(rec Record, deps Deps) (Stream, error) {
	registryMu.RLock()
	f, ok := registry[rec.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, rec.Type)
	}
	s, err := f(rec, deps)
	if err != nil {
		return nil, fmt.Errorf("decode %s %q: %w", rec.Type, rec.Name, err)
	}
	return s, nil
}

// Decoded is a rebuilt stream next to the record it came from.
type Decoded struct {
	Stream Stream
	Record Record
}

// DecodeAll decodes every record, skipping (and logging) the ones that cannot be rebuilt.
func DecodeAll(recs []Record, deps Deps) []Decoded {
	out := make([]Decoded, 0, len(recs))
	for _, rec := range recs {
		s, err := Decode(rec, deps)
		if err != nil {
			slog.Warn("skipping stored stream", slog.String("type", rec.Type), slog.String("name", rec.Name), slog.Any("err", err))
			continue
		}
		out = append(out, Decoded{Stream: s, Record: rec})
	}
	return out
}
