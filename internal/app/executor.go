package app

import (
	"context"
	"encoding/json"

	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/internal/ports"
)

// Request describes a mutation a caller wants performed.
type Request struct {
	Kind        domain.Kind
	Payload     json.RawMessage
	Description string

	// IdempotencyKey is optional; one is generated when the request has to
	// be queued without it.
	IdempotencyKey string
}

func (r Request) operation() domain.PendingOperation {
	return domain.PendingOperation{
		Kind:           r.Kind,
		Payload:        r.Payload,
		Description:    r.Description,
		IdempotencyKey: r.IdempotencyKey,
	}
}

// GuardedExecutor performs mutations immediately when possible and defers
// them to the retry queue when connectivity is the obstacle.
type GuardedExecutor struct {
	queue    *RetryQueue
	registry *Registry
	conn     *Connection
	notifier *guardedSink
	metrics  ports.Metrics
	logger   ports.Logger
}

// NewGuardedExecutor creates an executor. sink and metrics may be nil.
func NewGuardedExecutor(queue *RetryQueue, registry *Registry, conn *Connection, sink ports.NotificationSink, metrics ports.Metrics, logger ports.Logger) *GuardedExecutor {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &GuardedExecutor{
		queue:    queue,
		registry: registry,
		conn:     conn,
		notifier: guardSink(sink, logger),
		metrics:  metrics,
		logger:   logger,
	}
}

// Execute performs req. Connectivity problems never surface as errors: the
// request is queued and the result says so. Any other failure is returned
// to the caller and nothing is queued.
func (e *GuardedExecutor) Execute(ctx context.Context, req Request) domain.Result {
	op := req.operation()
	if err := op.Validate(); err != nil {
		return domain.Failed(err)
	}
	// The immediate attempt and any later replay must share one key.
	if op.IdempotencyKey == "" {
		op.IdempotencyKey = e.queue.newID()
	}

	if !e.conn.Online() {
		return e.enqueue(ctx, op, domain.ReasonOfflineQueued, "queued_offline")
	}

	data, err := e.registry.Dispatch(ctx, op)
	if err == nil {
		e.metrics.CountOperation("immediate_success")
		return domain.Succeeded(data)
	}

	if IsConnectivity(err) {
		e.conn.SetLastError(err.Error())
		e.logger.Warn("remote unreachable, deferring operation",
			ports.String("kind", op.Kind.String()),
			ports.Err(err))
		return e.enqueue(ctx, op, domain.ReasonConnectivityQueued, "queued_connectivity")
	}

	e.metrics.CountOperation("logical_error")
	e.logger.Info("operation rejected",
		ports.String("kind", op.Kind.String()),
		ports.Err(err))
	return domain.Failed(err)
}

func (e *GuardedExecutor) enqueue(ctx context.Context, op domain.PendingOperation, reason, outcome string) domain.Result {
	stored, _, err := e.queue.Enqueue(ctx, op)
	if err != nil {
		return domain.Failed(err)
	}
	e.metrics.CountOperation(outcome)
	e.notifier.NotifyQueued(stored.Label())
	return domain.Deferred(stored.ID, reason)
}
