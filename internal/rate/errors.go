package rate

import "errors"

var (
	// ErrRedisUnavailable is reported when the shared counter cannot be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrUnknownStrategy is returned by New for an unsupported strategy name.
	ErrUnknownStrategy = errors.New("unknown rate limit strategy")
)
