package secrets

import (
	"context"
	"fmt"
	"os"
)

// EnvStore resolves one secret key from an environment variable.
// Load .env files before the first Get for them to be visible.
type EnvStore struct {
	key    string
	envVar string
}

var _ Store = (*EnvStore)(nil)

// NewEnvStore maps key to the environment variable envVar.
func NewEnvStore(key, envVar string) *EnvStore {
	return &EnvStore{key: key, envVar: envVar}
}

func (s *EnvStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key != s.key || s.envVar == "" {
		return "", fmt.Errorf("secret %q: %w", key, ErrNotFound)
	}
	v, ok := os.LookupEnv(s.envVar)
	if !ok || v == "" {
		return "", fmt.Errorf("secret %q: %w", key, ErrNotFound)
	}
	return v, nil
}

func (s *EnvStore) Put(ctx context.Context, key string, value string) error {
	return ErrReadOnly
}

func (s *EnvStore) Delete(ctx context.Context, key string) error {
	return ErrReadOnly
}
