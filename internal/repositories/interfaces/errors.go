package interfaces

import "errors"

// Storage-level sentinels. The service layer translates these into the
// user-facing error taxonomy; repositories stay ignorant of HTTP.
var (
	// ErrNotFound: no document matched the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey: a unique index rejected the write.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrStaleState: a conditional update matched the id but not the
	// expected state, i.e. someone else transitioned the record first.
	ErrStaleState = errors.New("state precondition failed")
)
