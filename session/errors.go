package session

import "errors"

var (
	// ErrInvalidClaims is returned by Encode when a required claim is empty.
	ErrInvalidClaims = errors.New("session claims missing entity_number or employee_number")
	// ErrInvalidConfig is returned by NewCodec for out-of-range settings.
	ErrInvalidConfig = errors.New("invalid session codec configuration")
)
