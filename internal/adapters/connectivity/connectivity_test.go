package connectivity

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/fieldsync/pkg/log"
)

func TestManual_PublishesOnlyChanges(t *testing.T) {
	m := NewManual(false)

	var mu sync.Mutex
	var got []bool
	unsubscribe := m.OnChange(func(v bool) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	m.Set(false)
	m.Set(true)
	m.Set(true)
	m.Set(false)
	unsubscribe()
	m.Set(true)

	assert.Equal(t, []bool{true, false}, got)
	assert.True(t, m.IsOnline())
}

type toggleDialer struct {
	up    atomic.Bool
	calls atomic.Int32
}

func (d *toggleDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	d.calls.Add(1)
	if !d.up.Load() {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

func TestProbe_FollowsReachability(t *testing.T) {
	dialer := &toggleDialer{}
	p := NewProbe(ProbeConfig{
		Address:  "records.example:443",
		Interval: 10 * time.Millisecond,
		Dialer:   dialer,
	}, log.NewNoopLogger())

	changes := make(chan bool, 8)
	p.OnChange(func(v bool) { changes <- v })

	require.NoError(t, p.Start(context.Background()))
	defer p.Close()

	// The first check runs inside Start.
	assert.False(t, p.IsOnline())
	assert.Equal(t, false, <-changes)

	dialer.up.Store(true)
	select {
	case v := <-changes:
		assert.True(t, v)
	case <-time.After(2 * time.Second):
		t.Fatal("probe never reported online")
	}
}

func TestProbe_CloseStopsLoop(t *testing.T) {
	dialer := &toggleDialer{}
	dialer.up.Store(true)
	p := NewProbe(ProbeConfig{Address: "x:1", Interval: 5 * time.Millisecond, Dialer: dialer}, log.NewNoopLogger())

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Close())

	calls := dialer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, dialer.calls.Load())
}

func TestProbe_RestartAfterClose(t *testing.T) {
	dialer := &toggleDialer{}
	dialer.up.Store(true)
	p := NewProbe(ProbeConfig{Address: "x:1", Interval: 5 * time.Millisecond, Dialer: dialer}, log.NewNoopLogger())

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Close())
	stopped := dialer.calls.Load()

	require.NoError(t, p.Start(context.Background()))
	defer p.Close()

	require.Eventually(t, func() bool { return dialer.calls.Load() > stopped+2 }, 2*time.Second, 5*time.Millisecond)
}

func TestProbeAddress(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://records.example", "records.example:443"},
		{"http://records.example", "records.example:80"},
		{"http://10.0.0.5:8080/api", "10.0.0.5:8080"},
	}
	for _, tt := range tests {
		got, err := ProbeAddress(tt.url)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.url)
	}
}

func TestMarker_OfflineWhileFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "offline")

	m := NewMarker(path, log.NewNoopLogger())
	assert.True(t, m.IsOnline())

	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.Eventually(t, func() bool { return !m.IsOnline() }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, m.IsOnline, 2*time.Second, 10*time.Millisecond)
}

func TestMarker_InitialValueFromExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	m := NewMarker(path, log.NewNoopLogger())
	assert.False(t, m.IsOnline())
	assert.NoError(t, m.Close())
}
