package fieldsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/fieldsync/internal/adapters/connectivity"
	"github.com/bft-labs/fieldsync/internal/adapters/memory"
	"github.com/bft-labs/fieldsync/internal/domain"
)

var stationCreate = Kind{Action: ActionCreate, Entity: "stationControl"}

func stationRequest(desc string) Request {
	return Request{
		Kind:        stationCreate,
		Payload:     json.RawMessage(`{"station":4,"state":"open"}`),
		Description: desc,
	}
}

// flakyRemote fails with a connectivity error while down is set.
type flakyRemote struct {
	*memory.RemoteStore
	down atomic.Bool
}

func (f *flakyRemote) Perform(ctx context.Context, kind Kind, payload json.RawMessage, key string) (json.RawMessage, error) {
	if f.down.Load() {
		return nil, &domain.ConnectivityError{Op: "POST /v1/records", Err: errors.New("connection refused")}
	}
	return f.RemoteStore.Perform(ctx, kind, payload, key)
}

type recordingHandler struct {
	mu      sync.Mutex
	states  []State
	reports []DrainReport
}

func (h *recordingHandler) OnStateChange(ev StateChangeEvent) {
	h.mu.Lock()
	h.states = append(h.states, ev.Current)
	h.mu.Unlock()
}

func (h *recordingHandler) OnDrain(r DrainReport) {
	h.mu.Lock()
	h.reports = append(h.reports, r)
	h.mu.Unlock()
}

func (h *recordingHandler) drains() []DrainReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]DrainReport(nil), h.reports...)
}

type fixture struct {
	svc         *Service
	remote      *flakyRemote
	persistence *memory.Persistence
	signal      *connectivity.Manual
	events      *recordingHandler
}

func newFixture(t *testing.T, online bool, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		remote:      &flakyRemote{RemoteStore: memory.NewRemoteStore()},
		persistence: memory.NewPersistence(),
		signal:      connectivity.NewManual(online),
		events:      &recordingHandler{},
	}
	f.svc = f.build(t, opts...)
	return f
}

func (f *fixture) build(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithRemoteStore(f.remote),
		WithPersistence(f.persistence),
		WithConnectivitySignal(f.signal),
		WithEventHandler(f.events),
	}
	svc, err := New(Config{RetryDelay: time.Hour}, append(base, opts...)...)
	require.NoError(t, err)
	return svc
}

func TestNew_RequiresStorageAndRemote(t *testing.T) {
	_, err := New(Config{ServiceURL: "http://records.example"})
	assert.ErrorIs(t, err, ErrInvalidConfig, "no state dir")

	_, err = New(Config{StateDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrInvalidConfig, "no service url")

	_, err = New(Config{ServiceURL: "http://records.example", StateDir: t.TempDir(), MaxRetries: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	svc, err := New(Config{ServiceURL: "http://records.example/", StateDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "http://records.example", svc.config.ServiceURL)
	assert.Equal(t, 3, svc.config.MaxRetries)
	assert.Equal(t, StateStopped, svc.Status())
}

func TestService_Lifecycle(t *testing.T) {
	f := newFixture(t, true)

	assert.ErrorIs(t, f.svc.Stop(), ErrNotRunning)
	res := f.svc.Execute(context.Background(), stationRequest("x"))
	assert.False(t, res.Success)

	require.NoError(t, f.svc.Start(context.Background()))
	assert.Equal(t, StateRunning, f.svc.Status())
	assert.ErrorIs(t, f.svc.Start(context.Background()), ErrAlreadyRunning)

	require.NoError(t, f.svc.Stop())
	assert.Equal(t, StateStopped, f.svc.Status())

	// Restartable after a clean stop.
	require.NoError(t, f.svc.Start(context.Background()))
	require.NoError(t, f.svc.Stop())

	assert.Equal(t, []State{StateStarting, StateRunning, StateStopping, StateStopped,
		StateStarting, StateRunning, StateStopping, StateStopped}, f.events.states)
}

func TestService_OfflineThenReconnect(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))
	defer f.svc.Stop()

	first := f.svc.Execute(ctx, stationRequest("Open station 4"))
	second := f.svc.Execute(ctx, stationRequest("Open station 5"))

	assert.True(t, first.Queued)
	assert.Equal(t, domain.ReasonOfflineQueued, first.Error)
	assert.True(t, second.Queued)
	assert.Len(t, f.svc.Pending(), 2)
	assert.Zero(t, f.remote.Applied())

	f.signal.Set(true)

	require.Eventually(t, func() bool { return len(f.svc.Pending()) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, f.remote.Applied())
	assert.True(t, f.svc.Online())

	require.Eventually(t, func() bool { return len(f.events.drains()) == 1 }, time.Second, 10*time.Millisecond)
	r := f.events.drains()[0]
	assert.Equal(t, "reconnect", string(r.Trigger))
	assert.Equal(t, 2, r.Succeeded)
}

func TestService_ImmediateSuccess(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))
	defer f.svc.Stop()

	res := f.svc.Execute(ctx, stationRequest("Open station 4"))

	require.True(t, res.Success)
	assert.False(t, res.Queued)
	assert.NotEmpty(t, res.Data)
	assert.Empty(t, f.svc.Pending())
}

func TestService_RestoresAndReplaysOnStart(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))
	f.svc.Execute(ctx, stationRequest("Open station 4"))
	require.NoError(t, f.svc.Stop())

	// A new process on the same storage, now online.
	f.signal = connectivity.NewManual(true)
	restarted := f.build(t)
	require.NoError(t, restarted.Start(ctx))
	defer restarted.Stop()

	require.Eventually(t, func() bool { return f.remote.Applied() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(restarted.Pending()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestService_ManualDrain(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Drain(ctx)
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, f.svc.Start(ctx))
	defer f.svc.Stop()

	f.remote.down.Store(true)
	res := f.svc.Execute(ctx, stationRequest("Open station 4"))
	require.True(t, res.Queued)
	assert.Equal(t, domain.ReasonConnectivityQueued, res.Error)
	assert.NotEmpty(t, f.svc.Connection().LastError)

	f.remote.down.Store(false)
	report, err := f.svc.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Empty(t, f.svc.Pending())
	assert.Empty(t, f.svc.Connection().LastError)
}

func TestService_SweepDrainsOnSchedule(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a cron tick")
	}
	f := newFixture(t, true, WithSweepSchedule("@every 1s"))
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))
	defer f.svc.Stop()

	f.remote.down.Store(true)
	require.True(t, f.svc.Execute(ctx, stationRequest("x")).Queued)
	f.remote.down.Store(false)

	require.Eventually(t, func() bool { return len(f.svc.Pending()) == 0 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "schedule", string(f.events.drains()[0].Trigger))
}

func TestService_BadSweepScheduleCrashesStart(t *testing.T) {
	f := newFixture(t, true, WithSweepSchedule("whenever"))

	err := f.svc.Start(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, StateCrashed, f.svc.Status())
}

func TestService_HandlerOverridesRemote(t *testing.T) {
	var got []PendingOperation
	handler := func(_ context.Context, op PendingOperation) (json.RawMessage, error) {
		got = append(got, op)
		return json.RawMessage(`{"ok":true}`), nil
	}
	f := newFixture(t, true, WithHandler(stationCreate, handler))
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))
	defer f.svc.Stop()

	res := f.svc.Execute(ctx, stationRequest("x"))

	require.True(t, res.Success)
	assert.JSONEq(t, `{"ok":true}`, string(res.Data))
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].IdempotencyKey)
	assert.Zero(t, f.remote.Applied())
}

func TestService_Purge(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))
	defer f.svc.Stop()

	f.svc.Execute(ctx, stationRequest("a"))
	f.svc.Execute(ctx, stationRequest("b"))

	n, err := f.svc.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, f.svc.Pending())
}

type orderPlugin struct {
	name  string
	log   *[]string
	fails bool
}

func (p *orderPlugin) Name() string { return p.name }

func (p *orderPlugin) Initialize(_ context.Context, cfg PluginConfig) error {
	*p.log = append(*p.log, "init:"+p.name)
	if cfg.Service == nil {
		return errors.New("missing service")
	}
	if p.fails {
		return errors.New("boom")
	}
	return nil
}

func (p *orderPlugin) Shutdown(context.Context) error {
	*p.log = append(*p.log, "shutdown:"+p.name)
	return nil
}

func TestService_PluginOrder(t *testing.T) {
	var calls []string
	f := newFixture(t, true,
		WithPlugin(&orderPlugin{name: "a", log: &calls}),
		WithPlugin(&orderPlugin{name: "b", log: &calls}))

	require.NoError(t, f.svc.Start(context.Background()))
	require.NoError(t, f.svc.Stop())

	assert.Equal(t, []string{"init:a", "init:b", "shutdown:b", "shutdown:a"}, calls)
}

func TestService_PluginFailureCrashesStart(t *testing.T) {
	var calls []string
	f := newFixture(t, true, WithPlugin(&orderPlugin{name: "a", log: &calls, fails: true}))

	err := f.svc.Start(context.Background())
	assert.EqualError(t, err, "boom")
	assert.Equal(t, StateCrashed, f.svc.Status())

	// Crashed services can start again.
	f2 := newFixture(t, true)
	require.NoError(t, f2.svc.Start(context.Background()))
	require.NoError(t, f2.svc.Stop())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "Crashed", StateCrashed.String())
}
