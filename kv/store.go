package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("key not found")

// ErrStoreUnavailable indicates the persistence backend is unreachable.
var ErrStoreUnavailable = errors.New("key-value store unavailable")

// Store is the persistent secure key-value store backing credential,
// token, and session records across restarts. Implementations must be
// safe for concurrent use.
type Store interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}
