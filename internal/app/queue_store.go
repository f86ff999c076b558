package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/internal/ports"
)

// DefaultQueueKey is the persistence key holding the serialized queue.
const DefaultQueueKey = "fieldsync.queue"

// corruptSuffix is appended to the queue key when an unreadable store is
// set aside for diagnostics.
const corruptSuffix = ".corrupt"

// record is the persisted form of a PendingOperation.
type record struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	Entity         string          `json:"entity,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Description    string          `json:"description,omitempty"`
	EnqueuedAt     string          `json:"enqueued_at"`
	RetryCount     int             `json:"retry_count"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// QueueStore reads and writes the queue through LocalPersistence.
type QueueStore struct {
	persistence ports.LocalPersistence
	key         string
	logger      ports.Logger
}

// NewQueueStore creates a store under key. An empty key uses DefaultQueueKey.
func NewQueueStore(persistence ports.LocalPersistence, key string, logger ports.Logger) *QueueStore {
	if key == "" {
		key = DefaultQueueKey
	}
	return &QueueStore{
		persistence: persistence,
		key:         key,
		logger:      logger,
	}
}

// Key returns the persistence key of the queue.
func (s *QueueStore) Key() string {
	return s.key
}

// Load returns every valid operation in the store, in stored order.
// It never fails: unreadable records are dropped and logged, and an
// unreadable store yields an empty queue.
func (s *QueueStore) Load(ctx context.Context) []domain.PendingOperation {
	raw, ok, err := s.persistence.Get(ctx, s.key)
	if err != nil {
		s.logger.Error("queue load failed", ports.String("key", s.key), ports.Err(err))
		return nil
	}
	if !ok || len(bytes.TrimSpace([]byte(raw))) == 0 {
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		s.logger.Error("queue store unreadable, setting aside",
			ports.String("key", s.key),
			ports.String("corrupt_key", s.key+corruptSuffix),
			ports.Err(err))
		if setErr := s.persistence.Set(ctx, s.key+corruptSuffix, raw); setErr != nil {
			s.logger.Warn("failed to preserve corrupt queue", ports.Err(setErr))
		}
		return nil
	}

	ops := make([]domain.PendingOperation, 0, len(elems))
	seen := make(map[string]struct{}, len(elems))
	for i, elem := range elems {
		op, err := decodeRecord(elem)
		if err != nil {
			s.logger.Warn("dropping invalid queue record", ports.Int("index", i), ports.Err(err))
			continue
		}
		if _, dup := seen[op.ID]; dup {
			s.logger.Warn("dropping duplicate queue record", ports.Int("index", i), ports.String("id", op.ID))
			continue
		}
		seen[op.ID] = struct{}{}
		ops = append(ops, op)
	}

	if dropped := len(elems) - len(ops); dropped > 0 {
		s.logger.Warn("queue loaded with dropped records",
			ports.Int("loaded", len(ops)),
			ports.Int("dropped", dropped))
	}
	return ops
}

// Save replaces the stored queue with ops. A failure is logged and returned
// wrapped in domain.ErrPersistence; the in-memory queue stays authoritative.
func (s *QueueStore) Save(ctx context.Context, ops []domain.PendingOperation) error {
	records := make([]record, len(ops))
	for i, op := range ops {
		records[i] = encodeRecord(op)
	}

	data, err := json.Marshal(records)
	if err != nil {
		s.logger.Error("queue encode failed", ports.Err(err))
		return fmt.Errorf("%w: encode queue: %v", domain.ErrPersistence, err)
	}

	if err := s.persistence.Set(ctx, s.key, string(data)); err != nil {
		s.logger.Error("queue save failed",
			ports.String("key", s.key),
			ports.Int("size", len(ops)),
			ports.Err(err))
		return fmt.Errorf("%w: save queue: %v", domain.ErrPersistence, err)
	}
	return nil
}

func encodeRecord(op domain.PendingOperation) record {
	return record{
		ID:             op.ID,
		Kind:           string(op.Kind.Action),
		Entity:         op.Kind.Entity,
		Payload:        op.Payload,
		Description:    op.Description,
		EnqueuedAt:     op.EnqueuedAt.UTC().Format(time.RFC3339Nano),
		RetryCount:     op.RetryCount,
		IdempotencyKey: op.IdempotencyKey,
	}
}

func decodeRecord(elem json.RawMessage) (domain.PendingOperation, error) {
	var r record
	if err := json.Unmarshal(elem, &r); err != nil {
		return domain.PendingOperation{}, fmt.Errorf("decode: %w", err)
	}
	if r.ID == "" {
		return domain.PendingOperation{}, fmt.Errorf("missing id")
	}

	kind := domain.Kind{Action: domain.Action(r.Kind), Entity: r.Entity}
	if r.Entity == "" {
		// Older records carry "action/entity" in the kind field.
		parsed, err := domain.ParseKind(r.Kind)
		if err != nil {
			return domain.PendingOperation{}, fmt.Errorf("record %s: %w", r.ID, err)
		}
		kind = parsed
	}
	if err := kind.Validate(); err != nil {
		return domain.PendingOperation{}, fmt.Errorf("record %s: %w", r.ID, err)
	}

	if r.EnqueuedAt == "" {
		return domain.PendingOperation{}, fmt.Errorf("record %s: missing enqueued_at", r.ID)
	}
	enqueuedAt, err := time.Parse(time.RFC3339Nano, r.EnqueuedAt)
	if err != nil {
		return domain.PendingOperation{}, fmt.Errorf("record %s: enqueued_at: %w", r.ID, err)
	}

	payload := r.Payload
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = append(json.RawMessage(nil), domain.EmptyPayload...)
	}

	retries := r.RetryCount
	if retries < 0 {
		retries = 0
	}

	key := r.IdempotencyKey
	if key == "" {
		key = r.ID
	}

	return domain.PendingOperation{
		ID:             r.ID,
		Kind:           kind,
		Payload:        payload,
		Description:    r.Description,
		EnqueuedAt:     enqueuedAt,
		RetryCount:     retries,
		IdempotencyKey: key,
	}, nil
}
