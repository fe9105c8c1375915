package storage

import "errors"

// Sentinel errors shared by every store implementation. The monitor's
// stores are write-once: a session outcome or timeseries point is never
// updated after insert.
var (
	// ErrNotFound signals that no record matches the lookup key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey signals an insert whose key is already present;
	// write-once stores reject it instead of overwriting.
	ErrDuplicateKey = errors.New("duplicate key: record already written")

	// ErrInvalidInput signals a record that failed validation before
	// reaching the backend.
	ErrInvalidInput = errors.New("invalid input")
)
