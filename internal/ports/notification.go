package ports

// NotificationSink receives operator-facing notices. Implementations must not
// block for long and must not panic; the app guards against both anyway.
type NotificationSink interface {
	// NotifyQueued announces that an operation was saved for later.
	NotifyQueued(description string)

	// NotifyReconnected announces restored connectivity with the queue size.
	NotifyReconnected(pending int)

	// NotifyDrainResult summarizes a drain pass.
	NotifyDrainResult(succeeded, pending, abandoned int)

	// NotifyAbandoned announces an operation that will not be retried.
	// It should stay visible until the operator dismisses it.
	NotifyAbandoned(description, reason string)
}
