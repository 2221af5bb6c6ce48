package storage

import (
	"context"
	"errors"
	"time"
)

type (
	// Storage is a flat string key/value store. Implementations must be safe
	// for concurrent use.
	Storage interface {
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key, value string) error
		Remove(ctx context.Context, key string) error
	}
	// TTLSetter is implemented by backends which can expire single entries.
	TTLSetter interface {
		SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	}
)

var (
	ErrNotFound    = errors.New("key not found")
	ErrUnavailable = errors.New("storage not available")
)

// SetWithTTL uses the backend TTL support if present and falls back to Set.
//
//nolint:whitespace // editor/linter issue
func SetWithTTL(
	ctx context.Context, s Storage, key, value string, ttl time.Duration,
) error {
	if ts, ok := s.(TTLSetter); ok && ttl > 0 {
		return ts.SetWithTTL(ctx, key, value, ttl)
	}
	return s.Set(ctx, key, value)
}
