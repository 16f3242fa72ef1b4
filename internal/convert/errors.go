package convert

import "errors"

var (
	// ErrImageNotFound is returned when the input image does not exist
	ErrImageNotFound = errors.New("image file not found")

	// ErrUnknownConverter is returned when a registry key is not registered
	ErrUnknownConverter = errors.New("unknown converter type")

	// ErrInvalidConverter is returned when registering a nil factory
	ErrInvalidConverter = errors.New("converter factory must not be nil")

	// ErrMissingCredentials is returned when no API credential could be resolved
	ErrMissingCredentials = errors.New("missing credentials")
)
