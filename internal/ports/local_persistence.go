package ports

import "context"

// LocalPersistence is durable string key/value storage.
// Set must replace the value atomically: a crash leaves either the old or
// the new value, never a partial one.
type LocalPersistence interface {
	// Get returns the stored value and true, or "" and false if absent.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
