package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the fieldsync domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("fieldsync: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("fieldsync: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("fieldsync: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("fieldsync: invalid configuration")

	// ErrInvalidOperation is returned when an operation cannot be queued.
	ErrInvalidOperation = errors.New("fieldsync: invalid operation")

	// ErrConnectivity marks failures caused by the network or an unreachable service.
	ErrConnectivity = errors.New("fieldsync: connectivity failure")

	// ErrPersistence wraps local storage failures. It is logged, never
	// returned to the caller of a guarded operation.
	ErrPersistence = errors.New("fieldsync: persistence failure")

	// ErrAbandoned is reported for operations that exhausted their retries.
	ErrAbandoned = errors.New("fieldsync: operation abandoned")

	// ErrNoHandler is returned when no handler is registered for a kind.
	ErrNoHandler = errors.New("fieldsync: no handler for operation kind")
)

// ConnectivityError wraps a transport failure. errors.Is(err, ErrConnectivity)
// is true for every ConnectivityError.
type ConnectivityError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ConnectivityError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": connectivity failure"
	}
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func (e *ConnectivityError) Is(target error) bool { return target == ErrConnectivity }

// LogicalError is returned when the remote service understood the request and
// rejected it. Logical errors are never retried automatically.
type LogicalError struct {
	StatusCode int
	Message    string
}

func (e *LogicalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rejected (%d): %s", e.StatusCode, e.Message)
	}
	return "rejected: " + e.Message
}
