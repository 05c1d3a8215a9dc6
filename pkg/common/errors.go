package common

import "github.com/pkg/errors"

// Error taxonomy shared by the order ledger and the closure engine.
// Services wrap these sentinels with context via pkg/errors; the API
// layer maps them to HTTP status codes with errors.Is.
var (
	// ErrValidation signals malformed caller input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound signals an operation on a missing identifier.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a blocking business rule, such as a
	// duplicate same-day closure.
	ErrConflict = errors.New("conflict")
)
