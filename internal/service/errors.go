package service

import "errors"

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotFound            = errors.New("not found")
	// ErrForbidden marks an ownership mismatch. Handlers answer it like
	// ErrNotFound so existence does not leak.
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrProviderFailure   = errors.New("external provider failure")
	ErrInvalidTransition = errors.New("invalid payment state transition")
	ErrPaymentsDisabled  = errors.New("payments are temporarily disabled")
)
