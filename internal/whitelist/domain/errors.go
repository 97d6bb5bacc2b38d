package domain

import "errors"

// Failure categories for the whitelist subsystem. Callers classify with
// errors.Is; concrete causes are wrapped around these sentinels.
var (
	// ErrStore marks a backend I/O or database failure. Checks treat it as
	// "not on whitelist" (fail closed); mutations report it to the caller.
	ErrStore = errors.New("whitelist store failure")

	// ErrInvalidInput marks malformed input rejected at the boundary, such
	// as an identifier encoding that is not exactly 16 bytes.
	ErrInvalidInput = errors.New("invalid input")

	// ErrState marks a maintenance toggle invoked while already in the
	// requested state.
	ErrState = errors.New("invalid state transition")

	// ErrResolution marks a name that could not be resolved to an
	// identifier because a resolution source failed hard.
	ErrResolution = errors.New("name resolution failed")
)
