package core

import (
	"errors"
	"net/http"

	"github.com/joeydtaylor/tbmux/pkg/adapter"
	"github.com/joeydtaylor/tbmux/pkg/registry"
	"github.com/joeydtaylor/tbmux/pkg/xsrf"
)

// StatusError is an HTTP-facing failure with the status it maps to.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return http.StatusText(e.Code)
	}
	return e.Reason
}

var (
	ErrNotFound    = &StatusError{Code: http.StatusNotFound}
	ErrForbidden   = &StatusError{Code: http.StatusForbidden}
	ErrUnavailable = &StatusError{Code: http.StatusServiceUnavailable, Reason: "tensorboard unavailable"}
)

// statusOf maps err onto a StatusError. Anything unrecognised is a 500.
func statusOf(err error) *StatusError {
	var se *StatusError
	var oe *xsrf.OriginError
	switch {
	case errors.As(err, &se):
		return se
	case errors.As(err, &oe):
		return &StatusError{Code: http.StatusForbidden, Reason: oe.Error()}
	case errors.Is(err, xsrf.ErrMissingArgument),
		errors.Is(err, xsrf.ErrInvalidFormat),
		errors.Is(err, xsrf.ErrMismatch):
		return &StatusError{Code: http.StatusForbidden, Reason: err.Error()}
	case errors.Is(err, registry.ErrInstanceNotFound):
		return ErrNotFound
	case errors.Is(err, adapter.ErrSaturated):
		return &StatusError{Code: http.StatusServiceUnavailable, Reason: err.Error()}
	}
	return &StatusError{Code: http.StatusInternalServerError}
}

func writeError(w http.ResponseWriter, err error) {
	se := statusOf(err)
	http.Error(w, se.Error(), se.Code)
}
