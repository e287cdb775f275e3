// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the occupancy engine to distinguish between different
// failure scenarios.
package repository

import "errors"

// ErrSeatNotFound is returned when a seat lookup by floor and seat id
// yields no rows. Handlers translate this into an HTTP 404 response.
var ErrSeatNotFound = errors.New("seat not found")

// ErrStaleSeat is returned when a seat changed between the read and the
// write of a refresh, usually because another refresh of the same floor
// committed first. The caller's transaction must be rolled back.
var ErrStaleSeat = errors.New("seat changed since read")

// ErrUserNotFound is returned when no user matches a lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrConflict is returned when an insert collides with an existing
// unique key, such as registering a username that is already taken.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
