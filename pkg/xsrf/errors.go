package xsrf

import (
	"errors"
	"fmt"
)

var (
	ErrMissingArgument = errors.New("'_xsrf' argument missing from POST")
	ErrInvalidFormat   = errors.New("'_xsrf' argument has invalid format")
	ErrMismatch        = errors.New("XSRF cookie does not match POST argument")
)

// OriginError rejects a request whose Referer failed the origin check.
type OriginError struct {
	Referer string
}

func (e *OriginError) Error() string {
	if e.Referer == "" {
		return "Blocking request from unknown origin"
	}
	return fmt.Sprintf("Blocking Cross Origin request from %s.", e.Referer)
}
