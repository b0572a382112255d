package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when a key holds no value.
	ErrNotFound = errors.New("not found")

	// ErrCorruptState is returned when a stored payload cannot be decoded.
	// It is never conflated with an absent value.
	ErrCorruptState = errors.New("corrupt stored state")

	// ErrNoChange may be returned by an UpdateFunc to leave the stored value untouched.
	ErrNoChange = errors.New("no change")
)

// UpdateFunc receives the current value of a key (found is false when the
// key is absent) and returns the value to store. It can be invoked more than
// once when the store retries a conflicting transaction, so it must not keep
// state across calls other than its final result.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// Store is the durable key-value store behind every collection.
// Writes are all-or-nothing per key.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Update performs an atomic read-modify-write of a single key.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
