package domain

import "errors"

var (
	// ErrConflict is returned when an asset cannot be reserved (missing, unavailable or already pending)
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition is returned when a lifecycle change is not allowed from the current status
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotFound is returned when no matching record exists
	ErrNotFound = errors.New("not found")

	// ErrConnection is returned when the ledger node cannot be reached
	ErrConnection = errors.New("ledger connection failed")

	// ErrStore is returned when the record store fails transiently
	ErrStore = errors.New("store failure")

	// ErrInvalidInput is returned when caller supplied data is malformed
	ErrInvalidInput = errors.New("invalid input")
)

// IsRetryable reports whether err should be retried automatically.
// Only connection and store failures are retried; conflicts and invalid
// transitions are terminal for the triggering request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrStore)
}
