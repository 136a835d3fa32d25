package policy

import "errors"

var (
	// ErrUnavailable is returned when the policy service cannot be reached or times out.
	ErrUnavailable = errors.New("policy service unavailable")
	// ErrFunctionError is returned when the policy function itself failed.
	ErrFunctionError = errors.New("policy function error")
)
