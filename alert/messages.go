package alert

import (
	"errors"
	"fmt"

	"github.com/onnwee/thetaalert/stream"
)

// UserMessage is the text shown to a user for a synchronous check outcome.
func UserMessage(o stream.Outcome) string {
	switch o {
	case stream.Offline:
		return "That user is offline."
	case stream.NotFound:
		return "That channel doesn't seem to exist."
	case stream.InvalidCredentials:
		return "The Theta token is either invalid or has not been set. Set the client id, " +
			"client secret and access token with PUT /admin/credentials."
	case stream.APIError:
		return "Something went wrong while trying to contact the stream service's API."
	default:
		return ""
	}
}

// CheckError is a failed synchronous check; Error returns the user-facing text.
type CheckError struct {
	Outcome stream.Outcome
	Err     error
}

func (e *CheckError) Error() string { return UserMessage(e.Outcome) }

func (e *CheckError) Unwrap() error { return e.Err }

var (
	// ErrChannelMention rejects a chat channel mention given where a stream name belongs.
	ErrChannelMention = errors.New("please supply the name of a Theta channel, not a Discord channel")
	// ErrIntervalTooShort rejects refresh intervals under the minimum.
	ErrIntervalTooShort = errors.New("you cannot set the refresh timer to less than 60 seconds")
	// ErrUnknownTemplate rejects template kinds other than mention/nomention.
	ErrUnknownTemplate = errors.New("template must be \"mention\" or \"nomention\"")
)

func checkError(res stream.Result) error {
	return &CheckError{Outcome: res.Outcome, Err: fmt.Errorf("check: %w", res.Err)}
}
