package apierr

import (
	"errors"

	"github.com/maraichr/docpipe/internal/store"
)

// IsNotFound returns true if the error is or wraps store.ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
