package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails validation (malformed local
// date or time, unknown ride type or status).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrNotReschedulable is returned when a move targets a ride whose status is
// not planned. Completed and cancelled rides are fixed in time.
var ErrNotReschedulable = errors.New("ride is not reschedulable")

// ErrMoveInProgress is returned when an event is dragged again while its
// previous move is still waiting for the write to resolve.
var ErrMoveInProgress = errors.New("move already in progress")
