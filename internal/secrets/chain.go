package secrets

import (
	"context"
	"errors"
	"fmt"
)

// Chain consults stores in order. Get returns the first hit; Put and Delete go to
// the first store that is not read-only.
type Chain struct {
	stores []Store
}

var _ Store = (*Chain)(nil)

// NewChain creates a chain. Nil stores are ignored.
func NewChain(stores ...Store) *Chain {
	c := &Chain{}
	for _, s := range stores {
		if s != nil {
			c.stores = append(c.stores, s)
		}
	}
	return c
}

func (c *Chain) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	for _, s := range c.stores {
		v, err := s.Get(ctx, key)
		if err == nil {
			return v, nil
		}
		if shouldStop(err) {
			return "", err
		}
		if !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("get secret %q: %w", key, errors.Join(errs...))
	}
	return "", fmt.Errorf("secret %q: %w", key, ErrNotFound)
}

func (c *Chain) Put(ctx context.Context, key string, value string) error {
	for _, s := range c.stores {
		err := s.Put(ctx, key, value)
		if errors.Is(err, ErrReadOnly) {
			continue
		}
		return err
	}
	return ErrReadOnly
}

func (c *Chain) Delete(ctx context.Context, key string) error {
	for _, s := range c.stores {
		err := s.Delete(ctx, key)
		if errors.Is(err, ErrReadOnly) {
			continue
		}
		return err
	}
	return ErrReadOnly
}

func shouldStop(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
