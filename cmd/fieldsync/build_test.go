package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/fieldsync/internal/adapters/connectivity"
	"github.com/bft-labs/fieldsync/internal/cliconfig"
	"github.com/bft-labs/fieldsync/pkg/fieldsync"
	"github.com/bft-labs/fieldsync/pkg/log"
)

func testConfig(t *testing.T) cliconfig.Config {
	t.Helper()
	cfg := cliconfig.DefaultConfig()
	cfg.DryRun = true
	cfg.StateDir = t.TempDir()
	cfg.Connectivity = cliconfig.ConnectivityOnline
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestConnectivitySignal(t *testing.T) {
	logger := log.NewZerologAdapter()
	cfg := testConfig(t)

	tests := []struct {
		name         string
		mode         string
		forceOffline bool
		check        func(t *testing.T, s fieldsync.ConnectivitySignal)
	}{
		{name: "online", mode: cliconfig.ConnectivityOnline, check: func(t *testing.T, s fieldsync.ConnectivitySignal) {
			assert.True(t, s.IsOnline())
		}},
		{name: "offline", mode: cliconfig.ConnectivityOffline, check: func(t *testing.T, s fieldsync.ConnectivitySignal) {
			assert.False(t, s.IsOnline())
		}},
		{name: "forced offline wins", mode: cliconfig.ConnectivityOnline, forceOffline: true, check: func(t *testing.T, s fieldsync.ConnectivitySignal) {
			assert.False(t, s.IsOnline())
		}},
		{name: "marker", mode: cliconfig.ConnectivityMarker, check: func(t *testing.T, s fieldsync.ConnectivitySignal) {
			assert.IsType(t, &connectivity.Marker{}, s)
		}},
		{name: "probe", mode: cliconfig.ConnectivityProbe, check: func(t *testing.T, s fieldsync.ConnectivitySignal) {
			assert.IsType(t, &connectivity.Probe{}, s)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.Connectivity = tt.mode
			c.ServiceURL = "http://records.example"
			c.MarkerPath = filepath.Join(c.StateDir, "offline")
			s, err := connectivitySignal(c, logger, tt.forceOffline)
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestBuildService_DryRunSubmitAndQueue(t *testing.T) {
	cfg := testConfig(t)
	logger := log.NewZerologAdapter()
	ctx := context.Background()

	svc, d, err := buildService(cfg, logger, buildOptions{})
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))

	res := svc.Execute(ctx, fieldsync.Request{
		Kind:    fieldsync.Kind{Action: fieldsync.ActionCreate, Entity: "stationControl"},
		Payload: []byte(`{"station":4}`),
	})
	assert.True(t, res.Success)
	require.NoError(t, svc.Stop())
	d.close()

	// The queue commands see the same state directory but never replay.
	svc, d, err = buildService(cfg, logger, buildOptions{forceOffline: true})
	require.NoError(t, err)
	defer d.close()
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	assert.False(t, svc.Online())
	res = svc.Execute(ctx, fieldsync.Request{
		Kind:    fieldsync.Kind{Action: fieldsync.ActionCreate, Entity: "stationControl"},
		Payload: []byte(`{"station":5}`),
	})
	assert.True(t, res.Queued)
	assert.Len(t, svc.Pending(), 1)
}

func TestBuildService_SQLiteStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = cliconfig.StoreSQLite
	cfg.SQLitePath = filepath.Join(cfg.StateDir, "nested", "queue.db")

	svc, d, err := buildService(cfg, log.NewZerologAdapter(), buildOptions{forceOffline: true})
	require.NoError(t, err)
	defer d.close()
	require.NoError(t, svc.Start(context.Background()))
	assert.NoError(t, svc.Stop())
	assert.FileExists(t, cfg.SQLitePath)
}
