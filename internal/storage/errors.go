package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConflict is returned when an update was based on a stale version
	// of the record. The caller must reload and retry.
	ErrConflict = errors.New("version conflict")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAllocationFailed is returned when the backend cannot allocate
	// space for a new record (disk full, out of memory, too many connections).
	ErrAllocationFailed = errors.New("allocation failed")
)
