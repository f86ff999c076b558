package ports

import "context"

// ConnectivitySignal reports platform connectivity.
type ConnectivitySignal interface {
	// IsOnline returns the current connectivity.
	IsOnline() bool

	// OnChange registers fn to be called with the new value whenever the
	// signal changes. Implementations may call fn with an unchanged value;
	// consumers must deduplicate. The returned func unsubscribes.
	OnChange(fn func(online bool)) (unsubscribe func())

	// Start begins observing. Signals without background work return nil.
	Start(ctx context.Context) error

	// Close stops observing and releases resources.
	Close() error
}
