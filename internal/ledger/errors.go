package ledger

import "errors"

// Errors returned by a Source or Mutator. Anything else is treated as a
// transient failure.
var (
	// ErrUnauthorized means the session has expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the user lacks permission for the request.
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)
