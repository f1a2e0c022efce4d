package broadcast

import "errors"

// Common errors returned by the broadcast core.
var (
	// ErrNotFound is returned when dereferencing a destroyed broadcast or
	// when the origin has no registry entry for the requested id.
	ErrNotFound = errors.New("broadcast not found")

	// ErrNotInitialized is returned when the manager is used before
	// Initialize or after Stop.
	ErrNotInitialized = errors.New("broadcast manager not initialized")

	// ErrNotOrigin is returned when a broadcast requiring publication is
	// created on a node that is not the origin.
	ErrNotOrigin = errors.New("broadcast values must be created on the origin node")
)
