package domain

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput is returned for malformed store input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when a notification workflow move is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOCRNotConfigured is returned when plate extraction runs without a provider.
	ErrOCRNotConfigured = errors.New("ocr provider not configured")

	// ErrUpstream wraps failures reported by an external provider.
	ErrUpstream = errors.New("upstream provider failure")
)
