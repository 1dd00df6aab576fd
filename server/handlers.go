package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/thetaalert/alert"
	"github.com/onnwee/thetaalert/chat"
	"github.com/onnwee/thetaalert/telemetry"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	Deps
}

// maxBodyBytes bounds admin request bodies.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeError maps command errors to a status code. The message is always the text a
// chat user would see.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var ce *alert.CheckError
	switch {
	case errors.Is(err, alert.ErrChannelMention),
		errors.Is(err, alert.ErrIntervalTooShort),
		errors.Is(err, alert.ErrUnknownTemplate),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, chat.ErrUnknownChannel):
		status = http.StatusNotFound
	case errors.As(err, &ce):
		status = http.StatusUnprocessableEntity
	}
	if status >= 500 {
		telemetry.LoggerWithCorr(r.Context()).Error("admin command failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	writeMessage(w, status, err.Error())
}

var errBadRequest = errors.New("bad request")

type badRequest string

func (b badRequest) Error() string { return string(b) }

func (b badRequest) Is(target error) bool { return target == errBadRequest }
