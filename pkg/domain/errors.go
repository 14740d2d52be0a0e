package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness or concurrent-update conflict.
	ErrConflict = errors.New("conflict")
)
