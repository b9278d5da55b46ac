package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// record does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. an unknown module name or a malformed settings document).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrUnavailable is returned by fetchers when the tracked item can no longer
// be purchased. It is a determinate terminal state, not a failure: the
// tracker persists a sentinel record and moves on.
var ErrUnavailable = errors.New("item unavailable")

// ErrStore marks a persistence failure. A run that hits ErrStore stops
// immediately because stale GetLast results would produce false drops.
var ErrStore = errors.New("store failure")
