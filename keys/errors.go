package keys

import "errors"

var (
	// ErrConfigMissing is returned when no secret name is configured.
	ErrConfigMissing = errors.New("session key secret name not configured")
	// ErrKeyUnavailable is returned when the secret store cannot produce the key.
	ErrKeyUnavailable = errors.New("session key unavailable")
	// ErrInvalidKeyLength is returned when the decoded key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("session key has invalid length")
	// ErrSecretNotFound is returned by a SecretStore when the named secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrSecretUnavailable is returned by a SecretStore on transport or permission failures.
	ErrSecretUnavailable = errors.New("secret store unavailable")
)
