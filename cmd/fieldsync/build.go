package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/fieldsync/internal/adapters/connectivity"
	"github.com/bft-labs/fieldsync/internal/adapters/memory"
	"github.com/bft-labs/fieldsync/internal/adapters/notify"
	"github.com/bft-labs/fieldsync/internal/adapters/redis"
	"github.com/bft-labs/fieldsync/internal/adapters/sqlite"
	"github.com/bft-labs/fieldsync/internal/cliconfig"
	"github.com/bft-labs/fieldsync/internal/metrics"
	"github.com/bft-labs/fieldsync/pkg/fieldsync"
	"github.com/bft-labs/fieldsync/pkg/log"
	"github.com/bft-labs/fieldsync/plugins/metricsserver"
	"github.com/bft-labs/fieldsync/plugins/spooldir"
)

// buildOptions controls what a subcommand needs from the service.
type buildOptions struct {
	// forceOffline keeps the service from replaying, for queue inspection.
	forceOffline bool
	// serveMetrics attaches the metrics server plugin when configured.
	serveMetrics bool
	// spool watches a directory for request files; spoolDir overrides
	// <state-dir>/spool.
	spool    bool
	spoolDir string
}

// deps owns resources that outlive New and must be released after Stop.
type deps struct {
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildService wires adapters from cfg into a fieldsync.Service.
func buildService(cfg cliconfig.Config, logger *log.ZerologAdapter, bo buildOptions) (*fieldsync.Service, *deps, error) {
	d := &deps{}
	opts := []fieldsync.Option{fieldsync.WithLogger(logger)}

	persistence, err := openPersistence(cfg, d)
	if err != nil {
		d.close()
		return nil, nil, err
	}
	if persistence != nil {
		opts = append(opts, fieldsync.WithPersistence(persistence))
	}

	if cfg.DryRun {
		opts = append(opts, fieldsync.WithRemoteStore(memory.NewRemoteStore()))
	}

	signal, err := connectivitySignal(cfg, logger, bo.forceOffline)
	if err != nil {
		d.close()
		return nil, nil, err
	}
	opts = append(opts, fieldsync.WithConnectivitySignal(signal))

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		d.close()
		return nil, nil, err
	}
	opts = append(opts, fieldsync.WithMetrics(collector))
	if bo.serveMetrics && cfg.MetricsAddr != "" {
		opts = append(opts, metricsserver.WithMetricsServer(metricsserver.Config{
			Addr:     cfg.MetricsAddr,
			Gatherer: reg,
		}))
	}

	if bo.spool {
		opts = append(opts, spooldir.WithSpoolDir(spooldir.Config{Dir: bo.spoolDir}))
	}

	if cfg.MQTTBroker != "" {
		clientID := cfg.MQTTClientID
		if clientID == "" {
			clientID = "fieldsync-" + uuid.NewString()[:8]
		}
		sink, err := notify.ConnectMQTT(notify.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    clientID,
			TopicPrefix: cfg.MQTTTopic,
		}, logger)
		if err != nil {
			// Notifications are advisory; run without them.
			logger.Warn("mqtt notifications disabled", log.Err(err))
		} else {
			opts = append(opts, fieldsync.WithNotificationSink(sink))
			d.closers = append(d.closers, func() { _ = sink.Close() })
		}
	}

	if cfg.SweepSchedule != "" && !bo.forceOffline {
		opts = append(opts, fieldsync.WithSweepSchedule(cfg.SweepSchedule))
	}

	svc, err := fieldsync.New(fieldsync.Config{
		ServiceURL:    cfg.ServiceURL,
		AuthKey:       cfg.AuthKey,
		StateDir:      cfg.StateDir,
		MaxRetries:    cfg.MaxRetries,
		RetryDelay:    cfg.RetryDelay,
		MaxRetryDelay: cfg.MaxRetryDelay,
		ReplayRate:    cfg.ReplayRate,
		ReplayBurst:   cfg.ReplayBurst,
		HTTPTimeout:   cfg.HTTPTimeout,
	}, opts...)
	if err != nil {
		d.close()
		return nil, nil, fmt.Errorf("create service: %w", err)
	}
	return svc, d, nil
}

// openPersistence returns nil for the file store, which the service builds
// itself from StateDir.
func openPersistence(cfg cliconfig.Config, d *deps) (fieldsync.LocalPersistence, error) {
	switch cfg.Store {
	case cliconfig.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o700); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		p, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = p.Close() })
		return p, nil
	case cliconfig.StoreRedis:
		client := redis.NewClient(redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		d.closers = append(d.closers, func() { _ = client.Close() })
		return redis.NewPersistence(client, "fieldsync:"), nil
	default:
		return nil, nil
	}
}

func connectivitySignal(cfg cliconfig.Config, logger *log.ZerologAdapter, forceOffline bool) (fieldsync.ConnectivitySignal, error) {
	if forceOffline {
		return connectivity.NewManual(false), nil
	}

	switch cfg.Connectivity {
	case cliconfig.ConnectivityOnline:
		return connectivity.NewManual(true), nil
	case cliconfig.ConnectivityOffline:
		return connectivity.NewManual(false), nil
	case cliconfig.ConnectivityMarker:
		return connectivity.NewMarker(cfg.MarkerPath, logger.With("connectivity")), nil
	default:
		if cfg.DryRun && cfg.ServiceURL == "" {
			return connectivity.NewManual(true), nil
		}
		addr, err := connectivity.ProbeAddress(cfg.ServiceURL)
		if err != nil {
			return nil, fmt.Errorf("probe address: %w", err)
		}
		return connectivity.NewProbe(connectivity.ProbeConfig{
			Address:  addr,
			Interval: cfg.ProbeInterval,
			Timeout:  cfg.ProbeTimeout,
		}, logger.With("connectivity")), nil
	}
}
