package store

import (
	"context"
	"errors"
	"time"
)

var ErrEmptyKey = errors.New("key is required")

// Store is the persisted key/value port behind the cart, the cookie jar and
// the profile cache. Values are opaque bytes (JSON in practice).
type Store interface {
	// Get returns the value for key. Expired entries are reported as not found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value under key. A zero expiresAt means the entry never expires.
	Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Clock returns the current time; stores take one so expiry is testable
type Clock func() time.Time

func expired(expiresAt time.Time, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
