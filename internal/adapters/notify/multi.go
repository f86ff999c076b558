package notify

import "github.com/bft-labs/fieldsync/internal/ports"

// Multi forwards every notice to each sink in order.
type Multi []ports.NotificationSink

func (m Multi) NotifyQueued(description string) {
	for _, s := range m {
		s.NotifyQueued(description)
	}
}

func (m Multi) NotifyReconnected(pending int) {
	for _, s := range m {
		s.NotifyReconnected(pending)
	}
}

func (m Multi) NotifyDrainResult(succeeded, pending, abandoned int) {
	for _, s := range m {
		s.NotifyDrainResult(succeeded, pending, abandoned)
	}
}

func (m Multi) NotifyAbandoned(description, reason string) {
	for _, s := range m {
		s.NotifyAbandoned(description, reason)
	}
}
