package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON reads key and decodes it into T. ok is false when the key is
// absent; a present-but-malformed value is an error.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var zero T

	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("failed to decode key %q: %w", key, err)
	}
	return v, true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON[T any](ctx context.Context, s Store, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode key %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
