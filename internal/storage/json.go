package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection keys, one per independently stored record.
const (
	KeyProfile       = "anime-user"
	KeyLibrary       = "anime-library"
	KeyNotifications = "animind-notifications"
)

// Load decodes the JSON value stored under key. found is false when the key
// is absent; a payload that does not decode yields ErrCorruptState.
func Load[T any](ctx context.Context, s Store, key string) (v T, found bool, err error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := decode(key, raw, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Save encodes v as JSON and stores it under key.
func Save[T any](ctx context.Context, s Store, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Put(ctx, key, raw)
}

// Mutate atomically decodes the value under key, hands it to fn and stores
// the result. fn may return ErrNoChange to skip the write.
func Mutate[T any](ctx context.Context, s Store, key string, fn func(v T, found bool) (T, error)) error {
	return s.Update(ctx, key, func(current []byte, found bool) ([]byte, error) {
		var v T
		if found {
			if err := decode(key, current, &v); err != nil {
				return nil, err
			}
		}
		next, err := fn(v, found)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", key, err)
		}
		return raw, nil
	})
}

func decode(key string, raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptState, key, err)
	}
	return nil
}

// Reset deletes every collection of s. The next read of each collection
// sees it as absent and recreates its default.
func Reset(ctx context.Context, s Store) error {
	for _, key := range []string{KeyProfile, KeyLibrary, KeyNotifications} {
		if err := s.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to reset %s: %w", key, err)
		}
	}
	return nil
}
