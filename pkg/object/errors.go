package object

import "errors"

var (
	// ErrNotFound is returned when no record exists for a digest.
	ErrNotFound = errors.New("object not found")
	// ErrCorruptObject is returned when a record violates the canonical
	// encoding or does not hash to its key.
	ErrCorruptObject = errors.New("corrupt object")
)
