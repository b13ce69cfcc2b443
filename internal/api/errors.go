package api

import (
	"errors"
	"net/http"
	"time"

	"dvr/internal/conflict"
	"dvr/internal/recorder"
	"dvr/internal/store"
)

// ErrInvalidRequest marks malformed client input.
var ErrInvalidRequest = errors.New("invalid request")

// StatusCode maps an operation error to an HTTP status.
func StatusCode(err error) int {
	var parseErr *time.ParseError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, store.ErrInvalidTimeRange),
		errors.Is(err, store.ErrInvalidPadding),
		errors.Is(err, store.ErrInvalidSetting),
		errors.Is(err, store.ErrUnknownSetting),
		errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotCancelable),
		errors.Is(err, store.ErrNotEditable),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, conflict.ErrConflict),
		errors.Is(err, recorder.ErrAlreadyRecording):
		return http.StatusConflict
	case errors.Is(err, recorder.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
