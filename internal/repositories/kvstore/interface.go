// Package kvstore persists small typed values (cursors, flags, dates) in a
// single key-value table. Every key is written independently, so a
// cancellation between two writes can never leave a torn multi-field state.
package kvstore

import "context"

// Well-known keys.
const (
	KeyBundleTag      = "last_key_bundle_tag"
	KeyNotifiedIDs    = "notified_checkin_ids"
	KeyDecoyNextFire  = "decoy_next_fire_at"
	KeySelfReported   = "self_reported_infected"
	KeySyncErrorSince = "sync_error_since"
)

// Store is a simple durable key-value store for small persisted values.
type Store interface {
	// Get returns the raw value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores the value for key, replacing any previous value atomically.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
