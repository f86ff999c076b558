// Package memory provides in-process adapters for tests and dry runs.
package memory

import (
	"context"
	"sync"
)

// Persistence is a LocalPersistence held in a map. Nothing survives the process.
type Persistence struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewPersistence creates an empty store.
func NewPersistence() *Persistence {
	return &Persistence{data: make(map[string]string)}
}

func (p *Persistence) Get(_ context.Context, key string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.data[key]
	return v, ok, nil
}

func (p *Persistence) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	p.data[key] = value
	p.mu.Unlock()
	return nil
}

func (p *Persistence) Remove(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.data, key)
	p.mu.Unlock()
	return nil
}
