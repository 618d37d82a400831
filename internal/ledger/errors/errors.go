package errors

import "errors"

var (
	// ErrPersistence wraps any failure to write the ledger document durably.
	ErrPersistence = errors.New("ledger persistence failed")

	ErrClosed = errors.New("ledger is closed")

	ErrCorruptDocument = errors.New("ledger document is corrupt")
)
