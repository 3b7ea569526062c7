package relay

import "errors"

// Error taxonomy. Every operation returns one of these (possibly wrapped
// with detail); the HTTP layer maps them to status codes and never leaks
// raw internal error text across the boundary.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("invalid request")
	ErrInternal        = errors.New("internal error")
)
