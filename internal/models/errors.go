package models

import "errors"

var (
	// ErrNotFound reports an order or driver id that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports an assignment that would violate the
	// one-active-order-per-driver or not-delivered invariants. The world
	// is left untouched; callers must branch rather than assume success.
	ErrConflict = errors.New("conflict")

	// ErrValidation reports construction parameters the simulation
	// cannot be built from.
	ErrValidation = errors.New("validation error")
)
