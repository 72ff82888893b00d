// Package secrets stores the chat API key outside the config file.
package secrets

import (
	"context"
	"errors"
	"strings"
)

// APIKeyName is the key under which the chat API key is stored.
const APIKeyName = "chat_api_key"

var (
	// ErrNotFound is returned when no store holds the requested key.
	ErrNotFound = errors.New("secret not found")
	// ErrReadOnly is returned by stores that cannot be written.
	ErrReadOnly = errors.New("secret store is read-only")
)

// Store reads and writes named secrets.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// Lookup returns the trimmed secret, treating a blank value as missing.
func Lookup(ctx context.Context, s Store, key string) (string, error) {
	if s == nil {
		return "", ErrNotFound
	}
	v, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}
