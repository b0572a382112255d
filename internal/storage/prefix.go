package storage

import (
	"context"
	"fmt"
)

// UserPrefix returns the key prefix isolating one user's collections.
// Format: user:{userID}:
func UserPrefix(userID int64) string {
	return fmt.Sprintf("user:%d:", userID)
}

type prefixedStore struct {
	inner  Store
	prefix string
}

// WithPrefix scopes every key of inner under prefix.
func WithPrefix(inner Store, prefix string) Store {
	return &prefixedStore{inner: inner, prefix: prefix}
}

func (p *prefixedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixedStore) Put(ctx context.Context, key string, value []byte) error {
	return p.inner.Put(ctx, p.prefix+key, value)
}

func (p *prefixedStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return p.inner.Update(ctx, p.prefix+key, fn)
}

func (p *prefixedStore) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}
