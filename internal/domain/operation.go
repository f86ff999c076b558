package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Action is the kind of mutation a pending operation performs remotely.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// Kind identifies what an operation does and to which record family.
// It is the serializable replacement for a captured closure: a handler is
// looked up by Kind at replay time, so a queue reloaded after a restart is
// always replayable.
type Kind struct {
	Action Action
	Entity string
}

// String renders the kind as "action/entity".
func (k Kind) String() string {
	return string(k.Action) + "/" + k.Entity
}

// Validate checks that the kind names a known action and a non-empty entity.
func (k Kind) Validate() error {
	if !k.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidOperation, k.Action)
	}
	if strings.TrimSpace(k.Entity) == "" {
		return fmt.Errorf("%w: entity is required", ErrInvalidOperation)
	}
	return nil
}

// ParseKind parses an "action/entity" string.
func ParseKind(s string) (Kind, error) {
	action, entity, ok := strings.Cut(s, "/")
	if !ok {
		return Kind{}, fmt.Errorf("%w: kind %q must be action/entity", ErrInvalidOperation, s)
	}
	k := Kind{Action: Action(action), Entity: entity}
	if err := k.Validate(); err != nil {
		return Kind{}, err
	}
	return k, nil
}

// EmptyPayload is the payload assumed for records persisted without one.
var EmptyPayload = json.RawMessage(`{}`)

// PendingOperation is a remote write that could not be performed yet.
type PendingOperation struct {
	// ID is generated at enqueue time and never reused.
	ID string

	Kind Kind

	// Payload is the opaque request body, preserved byte for byte.
	Payload json.RawMessage

	// Description is shown to the operator in notifications.
	Description string

	EnqueuedAt time.Time

	// RetryCount counts failed replay attempts.
	RetryCount int

	// IdempotencyKey is sent with every remote attempt so the service can
	// discard duplicates. It does not change across retries.
	IdempotencyKey string
}

// Clone returns a deep copy of the operation.
func (op PendingOperation) Clone() PendingOperation {
	if op.Payload != nil {
		op.Payload = append(json.RawMessage(nil), op.Payload...)
	}
	return op
}

// Validate checks the fields required before an operation may be queued.
func (op PendingOperation) Validate() error {
	if err := op.Kind.Validate(); err != nil {
		return err
	}
	if len(bytes.TrimSpace(op.Payload)) == 0 {
		return fmt.Errorf("%w: payload is required", ErrInvalidOperation)
	}
	if !json.Valid(op.Payload) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidOperation)
	}
	return nil
}

// Label returns the description, falling back to the kind.
func (op PendingOperation) Label() string {
	if op.Description != "" {
		return op.Description
	}
	return op.Kind.String()
}
