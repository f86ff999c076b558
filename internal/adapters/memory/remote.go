package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/bft-labs/fieldsync/internal/domain"
)

// Record is a stored entity in the in-memory remote.
type Record struct {
	ID     string          `json:"id"`
	Entity string          `json:"entity"`
	Body   json.RawMessage `json:"body"`
}

// RemoteStore is an idempotent in-memory stand-in for the record service.
// A repeated idempotency key returns the first response without reapplying
// the write. Create assigns an id; update and delete address the record by
// the "id" field of the payload.
type RemoteStore struct {
	mu        sync.Mutex
	records   map[string]Record
	responses map[string]json.RawMessage
	applied   int
}

// NewRemoteStore creates an empty store.
func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		records:   make(map[string]Record),
		responses: make(map[string]json.RawMessage),
	}
}

// Perform applies kind to the store.
func (s *RemoteStore) Perform(ctx context.Context, kind domain.Kind, payload json.RawMessage, idempotencyKey string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idempotencyKey != "" {
		if resp, ok := s.responses[idempotencyKey]; ok {
			return resp, nil
		}
	}

	var resp json.RawMessage
	switch kind.Action {
	case domain.ActionCreate:
		rec := Record{ID: uuid.NewString(), Entity: kind.Entity, Body: append(json.RawMessage(nil), payload...)}
		s.records[rec.ID] = rec
		resp, _ = json.Marshal(rec)
	case domain.ActionUpdate, domain.ActionDelete:
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &ref); err != nil || ref.ID == "" {
			return nil, &domain.LogicalError{StatusCode: 400, Message: "payload must carry an id"}
		}
		rec, ok := s.records[ref.ID]
		if !ok || rec.Entity != kind.Entity {
			return nil, &domain.LogicalError{StatusCode: 404, Message: "record not found"}
		}
		if kind.Action == domain.ActionDelete {
			delete(s.records, ref.ID)
			resp = json.RawMessage(`{}`)
		} else {
			rec.Body = append(json.RawMessage(nil), payload...)
			s.records[ref.ID] = rec
			resp, _ = json.Marshal(rec)
		}
	default:
		return nil, &domain.LogicalError{StatusCode: 400, Message: "unknown action " + string(kind.Action)}
	}

	s.applied++
	if idempotencyKey != "" {
		s.responses[idempotencyKey] = resp
	}
	return resp, nil
}

// Records returns a copy of the stored records.
func (s *RemoteStore) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

// Applied returns how many writes were applied, excluding deduplicated ones.
func (s *RemoteStore) Applied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}
