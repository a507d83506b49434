package location

import "errors"

var (
	// ErrNotFound is returned by reads on an identity that has no record
	// when the store runs with ReadStrict.
	ErrNotFound = errors.New("location not found")

	// ErrInvalidPosition is returned when coordinates are malformed or out of range.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrSelfReference is returned when a user tries to grant themselves access.
	ErrSelfReference = errors.New("cannot reference own identity")
)
