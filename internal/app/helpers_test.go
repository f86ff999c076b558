package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// memPersistence is an in-memory LocalPersistence with failure injection.
type memPersistence struct {
	mu      sync.Mutex
	data    map[string]string
	sets    int
	failSet error
	failGet error
}

func newMemPersistence() *memPersistence {
	return &memPersistence{data: map[string]string{}}
}

func (m *memPersistence) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return "", false, m.failGet
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memPersistence) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memPersistence) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memPersistence) value(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

func (m *memPersistence) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// fakeSignal is a ConnectivitySignal driven by the test.
type fakeSignal struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	next   int
}

func newFakeSignal(online bool) *fakeSignal {
	return &fakeSignal{online: online, subs: map[int]func(bool){}}
}

func (s *fakeSignal) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *fakeSignal) OnChange(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *fakeSignal) Start(context.Context) error { return nil }
func (s *fakeSignal) Close() error                { return nil }

// emit publishes v without deduplicating, like a noisy platform signal.
func (s *fakeSignal) emit(v bool) {
	s.mu.Lock()
	s.online = v
	subs := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

func (s *fakeSignal) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// recordingSink records notifications.
type recordingSink struct {
	mu          sync.Mutex
	queued      []string
	reconnected []int
	results     [][3]int
	abandoned   []string
}

func (r *recordingSink) NotifyQueued(description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued = append(r.queued, description)
}

func (r *recordingSink) NotifyReconnected(pending int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnected = append(r.reconnected, pending)
}

func (r *recordingSink) NotifyDrainResult(succeeded, pending, abandoned int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, [3]int{succeeded, pending, abandoned})
}

func (r *recordingSink) NotifyAbandoned(description, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned = append(r.abandoned, description)
}

func (r *recordingSink) snapshot() recordingSink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recordingSink{
		queued:      append([]string(nil), r.queued...),
		reconnected: append([]int(nil), r.reconnected...),
		results:     append([][3]int(nil), r.results...),
		abandoned:   append([]string(nil), r.abandoned...),
	}
}

// panickySink panics on every call.
type panickySink struct{}

func (panickySink) NotifyQueued(string)             { panic("queued") }
func (panickySink) NotifyReconnected(int)           { panic("reconnected") }
func (panickySink) NotifyDrainResult(int, int, int) { panic("drain") }
func (panickySink) NotifyAbandoned(string, string)  { panic("abandoned") }

// fakeRemote is a RemoteStore that applies each idempotency key once and can
// be told to fail.
type fakeRemote struct {
	mu      sync.Mutex
	applied map[string]json.RawMessage
	order   []string
	calls   int
	fail    func(kind domain.Kind, payload json.RawMessage) error
	block   chan struct{}
	entered chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{applied: map[string]json.RawMessage{}}
}

func (f *fakeRemote) Perform(ctx context.Context, kind domain.Kind, payload json.RawMessage, key string) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fail != nil {
		if err := fail(kind, payload); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, seen := f.applied[key]; !seen {
		f.applied[key] = append(json.RawMessage(nil), payload...)
		f.order = append(f.order, key)
	}
	return json.RawMessage(fmt.Sprintf(`{"key":%q}`, key)), nil
}

func (f *fakeRemote) setFail(fn func(domain.Kind, json.RawMessage) error) {
	f.mu.Lock()
	f.fail = fn
	f.mu.Unlock()
}

func (f *fakeRemote) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRemote) appliedOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

var errUnreachable = &domain.ConnectivityError{Op: "perform", Err: errors.New("connection refused")}

func alwaysUnreachable(domain.Kind, json.RawMessage) error { return errUnreachable }

var stationCreate = domain.Kind{Action: domain.ActionCreate, Entity: "stationControl"}

func payload(s string) json.RawMessage { return json.RawMessage(s) }

// harness wires the components the way the service does.
type harness struct {
	persistence *memPersistence
	store       *QueueStore
	queue       *RetryQueue
	remote      *fakeRemote
	registry    *Registry
	conn        *Connection
	sink        *recordingSink
	coordinator *SyncCoordinator
	executor    *GuardedExecutor
}

func newHarness(online bool, maxRetries int, cfg SyncConfig) *harness {
	h := &harness{
		persistence: newMemPersistence(),
		remote:      newFakeRemote(),
		conn:        NewConnection(online),
		sink:        &recordingSink{},
	}
	h.store = NewQueueStore(h.persistence, "", mockLogger{})
	h.queue = NewRetryQueue(h.store, maxRetries, mockLogger{}, nil)
	h.registry = NewRegistry(h.remote)
	h.coordinator = NewSyncCoordinator(cfg, h.queue, h.registry, h.conn, h.sink, nil, mockLogger{})
	h.executor = NewGuardedExecutor(h.queue, h.registry, h.conn, h.sink, nil, mockLogger{})
	return h
}
