package keys

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SecretStore fetches a named secret value.
//
// Implementations return ErrSecretNotFound when the name does not exist and
// ErrSecretUnavailable for every other failure.
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvStore reads secrets from environment variables named after the secret.
// It is meant for local development where no parameter store is reachable.
type EnvStore struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// GetSecret implements SecretStore.
func (s EnvStore) GetSecret(_ context.Context, name string) (string, error) {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(envName(name))
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return v, nil
}

// envName maps a parameter path such as /jef/session/key to JEF_SESSION_KEY.
func envName(name string) string {
	name = strings.Trim(strings.TrimSpace(name), "/")
	return strings.ToUpper(strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(name))
}

// StaticStore is an in-memory SecretStore.
type StaticStore map[string]string

// GetSecret implements SecretStore.
func (s StaticStore) GetSecret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}
	v, ok := s[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return v, nil
}
