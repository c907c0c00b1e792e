package domain

import "errors"

// Sentinel errors for the API boundary. Stores wrap these with context via
// fmt.Errorf("...: %w", ...); handlers unwrap with errors.Is to pick the
// HTTP status. Anything else is treated as an infrastructure fault.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)
