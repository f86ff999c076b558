package domain

import (
	"encoding/json"
	"errors"
)

// Error strings reported when an operation was deferred instead of performed.
const (
	ReasonOfflineQueued      = "offline, queued"
	ReasonConnectivityQueued = "connectivity, queued"
)

// Result is what a guarded operation returns to its caller.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`

	// Queued is true when the operation was placed in the retry queue.
	Queued bool `json:"queued,omitempty"`

	// OperationID is the queue id when Queued is true.
	OperationID string `json:"operation_id,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(data json.RawMessage) Result {
	return Result{Success: true, Data: data}
}

// Failed builds a failed, unqueued result. A LogicalError contributes only
// the service's message.
func Failed(err error) Result {
	msg := err.Error()
	var logical *LogicalError
	if errors.As(err, &logical) && logical.Message != "" {
		msg = logical.Message
	}
	return Result{Success: false, Error: msg}
}

// Deferred builds the result for an operation that was queued for replay.
func Deferred(id, reason string) Result {
	return Result{Success: false, Error: reason, Queued: true, OperationID: id}
}
