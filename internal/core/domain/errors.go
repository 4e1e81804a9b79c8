package domain

import "github.com/juju/errors"

const (
	ErrNotFound        = errors.NotFound
	ErrConflict        = errors.AlreadyExists
	ErrInvalidArgument = errors.NotValid

	ErrOutOfStock        = errors.ConstError("out of stock")
	ErrInvalidTransition = errors.ConstError("invalid status transition")

	// ErrUnavailable marks a unit of work that failed to commit for reasons
	// unrelated to the request, such as a lost connection or a deadlock
	// victim. Nothing from the aborted unit of work is visible.
	ErrUnavailable = errors.ConstError("store unavailable")
)
