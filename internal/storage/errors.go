package storage

import "errors"

var (
	// ErrNotConnected is returned when an operation runs before Connect
	// or after Close
	ErrNotConnected = errors.New("database not connected")
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate record
	ErrAlreadyExists = errors.New("already exists")
	// ErrTxTimeout is returned when a transaction body outlives its timeout.
	// The underlying transaction is not aborted by the race; it may still
	// commit after the caller has seen this error.
	ErrTxTimeout = errors.New("transaction timed out")
)
