// Package keystore persists per-user OpenRouter API keys.
package keystore

import "context"

// Store is the per-user credential store. Keys are opaque strings; the store
// never validates their syntax. At most one key exists per user.
type Store interface {
	// Set stores or replaces the key for the given user.
	Set(ctx context.Context, userID int64, key string) error

	// Get retrieves the key for the given user. Returns ("", nil) when no
	// key is stored.
	Get(ctx context.Context, userID int64) (string, error)

	// Delete removes the key for the given user and reports whether
	// anything was removed. Deleting an absent key is not an error.
	Delete(ctx context.Context, userID int64) (bool, error)

	Close() error
}
