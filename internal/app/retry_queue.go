package app

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/internal/ports"
)

// DefaultMaxRetries bounds replay attempts per operation.
const DefaultMaxRetries = 3

// RetryQueue is the ordered collection of pending operations. It owns the
// queue: every mutation goes through its methods and is persisted before
// the method returns.
type RetryQueue struct {
	mu         sync.Mutex
	items      []domain.PendingOperation
	store      *QueueStore
	maxRetries int
	logger     ports.Logger
	metrics    ports.Metrics

	now   func() time.Time
	newID func() string
}

// NewRetryQueue creates an empty queue persisted through store.
func NewRetryQueue(store *QueueStore, maxRetries int, logger ports.Logger, metrics ports.Metrics) *RetryQueue {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &RetryQueue{
		store:      store,
		maxRetries: maxRetries,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// MaxRetries returns the retry bound.
func (q *RetryQueue) MaxRetries() int {
	return q.maxRetries
}

// Restore replaces the in-memory queue with the persisted one and returns
// its size.
func (q *RetryQueue) Restore(ctx context.Context) int {
	ops := q.store.Load(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = ops
	q.metrics.SetQueueDepth(len(q.items))
	return len(q.items)
}

// Enqueue validates op and adds it to the tail of the queue.
//
// ID and EnqueuedAt are assigned here; the retry count starts at zero. An
// empty idempotency key gets a fresh one. If a pending operation already
// carries the same idempotency key it is superseded in place: it keeps its
// id, position and enqueue time, takes the new kind, payload and
// description, and its retry count resets.
//
// The returned operation is the one now stored. replaced reports whether an
// existing entry was superseded.
func (q *RetryQueue) Enqueue(ctx context.Context, op domain.PendingOperation) (stored domain.PendingOperation, replaced bool, err error) {
	if err := op.Validate(); err != nil {
		return domain.PendingOperation{}, false, err
	}
	op = op.Clone()

	q.mu.Lock()
	defer q.mu.Unlock()

	if op.IdempotencyKey != "" {
		for i := range q.items {
			if q.items[i].IdempotencyKey != op.IdempotencyKey {
				continue
			}
			existing := &q.items[i]
			existing.Kind = op.Kind
			existing.Payload = op.Payload
			if op.Description != "" {
				existing.Description = op.Description
			}
			existing.RetryCount = 0
			q.persistLocked(ctx)
			q.logger.Info("pending operation superseded",
				ports.String("id", existing.ID),
				ports.String("kind", existing.Kind.String()))
			return existing.Clone(), true, nil
		}
	}

	op.ID = q.newID()
	if op.IdempotencyKey == "" {
		op.IdempotencyKey = q.newID()
	}
	op.EnqueuedAt = q.now().UTC()
	op.RetryCount = 0

	q.items = append(q.items, op)
	q.persistLocked(ctx)

	q.logger.Info("operation queued",
		ports.String("id", op.ID),
		ports.String("kind", op.Kind.String()),
		ports.Int("queue_size", len(q.items)))
	return op.Clone(), false, nil
}

// Size returns the number of pending operations.
func (q *RetryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// List returns a copy of the pending operations in FIFO order.
func (q *RetryQueue) List() []domain.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return cloneOps(q.items)
}

// Drainable returns the operations still within their retry budget, in FIFO
// order. Operations that already reached the bound are removed from the
// queue and returned separately as abandoned.
func (q *RetryQueue) Drainable(ctx context.Context) (drainable, abandoned []domain.PendingOperation) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0:0]
	for _, op := range q.items {
		if op.RetryCount >= q.maxRetries {
			abandoned = append(abandoned, op.Clone())
			continue
		}
		kept = append(kept, op)
		drainable = append(drainable, op.Clone())
	}

	if len(abandoned) > 0 {
		q.items = kept
		q.persistLocked(ctx)

		ids := make([]string, len(abandoned))
		for i, op := range abandoned {
			ids[i] = op.ID
		}
		q.logger.Warn("operations past retry limit removed", ports.Strings("ids", ids))
	}
	return drainable, abandoned
}

// Requeue records a failed attempt by setting the retry count of id.
// It returns false if id is no longer queued.
func (q *RetryQueue) Requeue(ctx context.Context, id string, retryCount int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return false
	}
	if retryCount > q.maxRetries {
		retryCount = q.maxRetries
	}
	q.items[i].RetryCount = retryCount
	q.persistLocked(ctx)
	return true
}

// Remove deletes id from the queue. It returns false if id was not queued.
func (q *RetryQueue) Remove(ctx context.Context, id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return false
	}
	q.items = append(q.items[:i], q.items[i+1:]...)
	q.persistLocked(ctx)
	return true
}

// RemoveAttempt deletes attempted, the snapshot a replay worked from. If the
// stored operation was superseded while the replay was in flight it is kept,
// and RemoveAttempt returns false.
func (q *RetryQueue) RemoveAttempt(ctx context.Context, attempted domain.PendingOperation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(attempted.ID)
	if i < 0 || !q.unchangedLocked(i, attempted) {
		return false
	}
	q.items = append(q.items[:i], q.items[i+1:]...)
	q.persistLocked(ctx)
	return true
}

// RequeueAttempt records a failed replay of attempted. A superseded operation
// keeps its reset retry count, and RequeueAttempt returns false.
func (q *RetryQueue) RequeueAttempt(ctx context.Context, attempted domain.PendingOperation, retryCount int) bool {
	q.mu.Lock()
	i := q.indexLocked(attempted.ID)
	unchanged := i >= 0 && q.unchangedLocked(i, attempted)
	q.mu.Unlock()

	if !unchanged {
		return false
	}
	return q.Requeue(ctx, attempted.ID, retryCount)
}

func (q *RetryQueue) unchangedLocked(i int, attempted domain.PendingOperation) bool {
	cur := q.items[i]
	if cur.Kind != attempted.Kind || cur.RetryCount != attempted.RetryCount || !bytes.Equal(cur.Payload, attempted.Payload) {
		q.logger.Info("pending operation superseded during replay, keeping the newer version",
			ports.String("id", cur.ID),
			ports.String("kind", cur.Kind.String()))
		return false
	}
	return true
}

// Clear empties the queue and returns how many operations were discarded.
func (q *RetryQueue) Clear(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	q.persistLocked(ctx)
	return n
}

// Persist writes the current queue to the store.
func (q *RetryQueue) Persist(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.persistLocked(ctx)
}

func (q *RetryQueue) persistLocked(ctx context.Context) error {
	q.metrics.SetQueueDepth(len(q.items))
	// Save logs its own failures.
	return q.store.Save(ctx, q.items)
}

func (q *RetryQueue) indexLocked(id string) int {
	for i := range q.items {
		if q.items[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneOps(ops []domain.PendingOperation) []domain.PendingOperation {
	if len(ops) == 0 {
		return nil
	}
	out := make([]domain.PendingOperation, len(ops))
	for i, op := range ops {
		out[i] = op.Clone()
	}
	return out
}
