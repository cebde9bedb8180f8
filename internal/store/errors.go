package store

import "errors"

var (
	// ErrConflict is returned when a booking would overlap an active
	// booking on the same resource.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a status change is attempted
	// from a state that does not permit it, including the case where a
	// concurrent writer got there first.
	ErrInvalidTransition = errors.New("invalid transition")
)
