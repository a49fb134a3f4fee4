package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MrWong99/lectern/internal/content"
	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/internal/playback"
	"github.com/MrWong99/lectern/internal/resilience"
	"github.com/MrWong99/lectern/internal/segment"
	"github.com/MrWong99/lectern/internal/session"
	"github.com/MrWong99/lectern/pkg/provider/image"
	"github.com/MrWong99/lectern/pkg/provider/tts"
)

// errBadRequest marks request validation failures.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, session.ErrUnknownVoice):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, playback.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, playback.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, playback.ErrNothingToPlay), errors.Is(err, segment.ErrUnpronounceable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, content.ErrNoImageProvider), errors.Is(err, content.ErrNoLyrics):
		return http.StatusNotImplemented
	case errors.Is(err, content.ErrOffline), errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, content.ErrMalformedResponse), errors.Is(err, tts.ErrNoAudio),
		errors.Is(err, image.ErrNoImage), errors.Is(err, resilience.ErrAllFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("api: encode response", "err", err)
	}
}

// writeError writes err as {"error": "..."} with its mapped status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := observe.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("api: request failed", "route", r.Pattern, "status", status, "err", err)
	} else {
		log.Debug("api: request rejected", "route", r.Pattern, "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decode reads a JSON request body into v. Unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}
