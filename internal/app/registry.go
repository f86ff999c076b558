package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/internal/ports"
)

// Handler performs one operation against the remote side.
type Handler func(ctx context.Context, op domain.PendingOperation) (json.RawMessage, error)

// RemoteHandler adapts a RemoteStore into a Handler.
func RemoteHandler(remote ports.RemoteStore) Handler {
	return func(ctx context.Context, op domain.PendingOperation) (json.RawMessage, error) {
		return remote.Perform(ctx, op.Kind, op.Payload, op.IdempotencyKey)
	}
}

// Registry maps operation kinds to handlers. Lookup tries the exact kind,
// then the action alone, then the fallback.
type Registry struct {
	mu       sync.RWMutex
	byKind   map[domain.Kind]Handler
	byAction map[domain.Action]Handler
	fallback Handler
}

// NewRegistry creates a registry whose fallback performs operations through
// remote. remote may be nil, in which case unmatched kinds fail with
// domain.ErrNoHandler.
func NewRegistry(remote ports.RemoteStore) *Registry {
	r := &Registry{
		byKind:   make(map[domain.Kind]Handler),
		byAction: make(map[domain.Action]Handler),
	}
	if remote != nil {
		r.fallback = RemoteHandler(remote)
	}
	return r
}

// Register installs h for kind, replacing any previous handler.
func (r *Registry) Register(kind domain.Kind, h Handler) {
	r.mu.Lock()
	r.byKind[kind] = h
	r.mu.Unlock()
}

// RegisterAction installs h for every entity of action.
func (r *Registry) RegisterAction(action domain.Action, h Handler) {
	r.mu.Lock()
	r.byAction[action] = h
	r.mu.Unlock()
}

// SetFallback replaces the handler used when nothing else matches.
func (r *Registry) SetFallback(h Handler) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// Lookup returns the handler for kind.
func (r *Registry) Lookup(kind domain.Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.byKind[kind]; ok {
		return h, true
	}
	if h, ok := r.byAction[kind.Action]; ok {
		return h, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Dispatch runs the handler for op.Kind.
func (r *Registry) Dispatch(ctx context.Context, op domain.PendingOperation) (json.RawMessage, error) {
	h, ok := r.Lookup(op.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoHandler, op.Kind)
	}
	return h(ctx, op)
}
