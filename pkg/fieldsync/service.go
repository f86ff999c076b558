package fieldsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/bft-labs/fieldsync/internal/adapters/connectivity"
	"github.com/bft-labs/fieldsync/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/fieldsync/internal/adapters/http"
	"github.com/bft-labs/fieldsync/internal/adapters/notify"
	"github.com/bft-labs/fieldsync/internal/app"
	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/internal/ports"
)

// Service is an offline-aware mutation queue that can be embedded in other
// applications. Use New to create one, then Start.
type Service struct {
	config  Config
	opts    options
	logger  ports.Logger
	metrics ports.Metrics
	emitter *eventEmitter

	lifecycle *app.Lifecycle
	conn      *app.Connection
	signal    ports.ConnectivitySignal
	monitor   *app.ConnectivityMonitor
	queue     *app.RetryQueue
	registry  *app.Registry
	sink      ports.NotificationSink
	executor  *app.GuardedExecutor

	mu     sync.RWMutex
	coord  *app.SyncCoordinator
	sweep  *sweeper
	runCtx context.Context
	cancel context.CancelFunc
}

// New creates a Service with the given configuration. The service is
// created in StateStopped; call Start to load the queue and begin replay.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	persistence := o.persistence
	if persistence == nil {
		if cfg.StateDir == "" {
			return nil, fmt.Errorf("%w: state dir is required without a custom persistence", domain.ErrInvalidConfig)
		}
		persistence = fs.NewPersistence(cfg.StateDir)
	}

	remote := o.remote
	if remote == nil {
		if cfg.ServiceURL == "" {
			return nil, fmt.Errorf("%w: service url is required without a custom remote store", domain.ErrInvalidConfig)
		}
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		remote = httpAdapter.NewRemoteStore(client, httpAdapter.Config{
			ServiceURL: cfg.ServiceURL,
			AuthKey:    cfg.AuthKey,
			Hostname:   cfg.Hostname,
		}, logger)
	}

	signal := o.signal
	if signal == nil {
		signal = connectivity.NewManual(true)
	}

	metrics := o.metrics
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	sinks := notify.Multi{notify.NewLogSink(logger)}
	sinks = append(sinks, o.sinks...)
	sink := app.GuardSink(sinks, logger)

	registry := app.NewRegistry(remote)
	for kind, h := range o.handlers {
		registry.Register(kind, h)
	}

	emitter := &eventEmitter{handler: o.eventHandler}
	conn := app.NewConnection(signal.IsOnline())
	store := app.NewQueueStore(persistence, cfg.QueueKey, logger)
	queue := app.NewRetryQueue(store, cfg.MaxRetries, logger, metrics)

	s := &Service{
		config:    cfg,
		opts:      o,
		logger:    logger,
		metrics:   metrics,
		emitter:   emitter,
		lifecycle: app.NewLifecycle(logger, emitter),
		conn:      conn,
		signal:    signal,
		monitor:   app.NewConnectivityMonitor(signal, conn, logger),
		queue:     queue,
		registry:  registry,
		sink:      sink,
		executor:  app.NewGuardedExecutor(queue, registry, conn, sink, metrics, logger),
	}

	s.monitor.OnOnline(s.handleOnline)
	s.monitor.OnOffline(s.handleOffline)

	return s, nil
}

// Start loads the saved queue, starts watching connectivity and, if online
// with saved operations, replays them in the background.
// Returns ErrAlreadyRunning if the service is not stopped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.cancel = cancel
	s.lifecycle.SetCancel(cancel)

	restored := s.queue.Restore(runCtx)

	coord := app.NewSyncCoordinator(app.SyncConfig{
		RetryDelay:    s.config.RetryDelay,
		MaxRetryDelay: s.config.MaxRetryDelay,
		ReplayRate:    s.config.ReplayRate,
		ReplayBurst:   s.config.ReplayBurst,
	}, s.queue, s.registry, s.conn, s.sink, s.metrics, s.logger)
	coord.OnReport(s.emitter.onDrain)
	s.coord = coord

	if err := s.signal.Start(runCtx); err != nil {
		return s.abortStart(fmt.Errorf("start connectivity signal: %w", err))
	}
	s.monitor.Start()
	s.metrics.SetOnline(s.conn.Online())

	if s.opts.sweepSchedule != "" {
		sw, err := newSweeper(s.opts.sweepSchedule, func(trigger app.Trigger) {
			coord.Drain(runCtx, trigger)
		}, s.logger)
		if err != nil {
			return s.abortStart(err)
		}
		s.sweep = sw
		sw.start()
	}

	pluginCfg := PluginConfig{
		ServiceURL: s.config.ServiceURL,
		StateDir:   s.config.StateDir,
		Logger:     s.logger,
		Service:    s,
	}
	for _, p := range s.opts.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			s.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			return s.abortStart(err)
		}
		s.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	if err := s.lifecycle.TransitionTo(app.StateRunning, "started"); err != nil {
		return err
	}

	s.logger.Info("fieldsync started",
		ports.Int("restored", restored),
		ports.Bool("online", s.conn.Online()))

	if restored > 0 && s.conn.Online() {
		s.lifecycle.Go(func() {
			coord.Drain(runCtx, app.TriggerStartup)
		})
	}
	return nil
}

// abortStart undoes a partial Start. Callers hold s.mu.
func (s *Service) abortStart(err error) error {
	if s.sweep != nil {
		s.sweep.stop(context.Background())
		s.sweep = nil
	}
	s.monitor.Stop()
	s.cancel()
	s.coord.Close()
	_ = s.signal.Close()
	_ = s.lifecycle.TransitionTo(app.StateCrashed, err.Error())
	return err
}

// Stop stops replay and connectivity watching. Operations still queued stay
// saved for the next Start. Returns ErrShutdownTimeout if background work
// did not finish within the shutdown timeout.
func (s *Service) Stop() error {
	s.mu.Lock()

	if !s.lifecycle.CanStop() {
		s.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		s.mu.Unlock()
		return err
	}

	s.monitor.Stop()
	s.cancel()
	coord, sweep := s.coord, s.sweep
	s.sweep = nil
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	if sweep != nil {
		sweep.stop(shutdownCtx)
	}
	coord.Close()
	err := s.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	if closeErr := s.signal.Close(); closeErr != nil {
		s.logger.Warn("close connectivity signal", ports.Err(closeErr))
	}
	if persistErr := s.queue.Persist(shutdownCtx); persistErr != nil {
		s.logger.Error("final queue save failed", ports.Err(persistErr))
	}

	for i := len(s.opts.plugins) - 1; i >= 0; i-- {
		p := s.opts.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(shutdownErr))
		}
	}

	if err != nil {
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = s.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state.
func (s *Service) Status() State {
	return convertState(s.lifecycle.State())
}

// Execute performs req now if possible, or saves it for replay when the
// obstacle is connectivity. Before Start it fails with ErrNotRunning.
func (s *Service) Execute(ctx context.Context, req Request) Result {
	if s.lifecycle.State() != app.StateRunning {
		return domain.Failed(domain.ErrNotRunning)
	}
	return s.executor.Execute(ctx, req)
}

// Drain runs one replay pass now. A pass already in flight makes this call
// return a skipped report.
func (s *Service) Drain(ctx context.Context) (DrainReport, error) {
	coord, err := s.coordinator()
	if err != nil {
		return DrainReport{Trigger: app.TriggerManual}, err
	}
	return coord.Drain(ctx, app.TriggerManual), nil
}

// Pending returns a copy of the queued operations in replay order.
func (s *Service) Pending() []PendingOperation {
	return s.queue.List()
}

// Purge drops every queued operation and returns how many were dropped.
func (s *Service) Purge(ctx context.Context) (int, error) {
	n := s.queue.Clear(ctx)
	if err := s.queue.Persist(ctx); err != nil {
		return n, err
	}
	s.logger.Warn("queue purged", ports.Int("dropped", n))
	return n, nil
}

// Online reports the current connectivity.
func (s *Service) Online() bool {
	return s.conn.Online()
}

// Connection returns a snapshot of connectivity and sync state.
func (s *Service) Connection() ConnectionState {
	return s.conn.Snapshot()
}

func (s *Service) coordinator() (*app.SyncCoordinator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lifecycle.State() != app.StateRunning || s.coord == nil {
		return nil, domain.ErrNotRunning
	}
	return s.coord, nil
}

func (s *Service) handleOnline() {
	s.metrics.SetOnline(true)
	s.sink.NotifyReconnected(s.queue.Size())

	coord, err := s.coordinator()
	if errors.Is(err, domain.ErrNotRunning) {
		return
	}
	coord.DrainAsync(app.TriggerReconnect)
}

func (s *Service) handleOffline() {
	s.metrics.SetOnline(false)
	s.logger.Warn("connectivity lost", ports.Int("pending", s.queue.Size()))
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
