// Package metricsserver serves Prometheus metrics and a queue health
// endpoint for a fieldsync service.
package metricsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/fieldsync/pkg/fieldsync"
	"github.com/bft-labs/fieldsync/pkg/log"
)

// Config holds configuration options for the metrics server plugin.
type Config struct {
	// Addr is the listen address. Default: ":9464"
	Addr string

	// Gatherer supplies the metrics. Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// ShutdownTimeout bounds graceful shutdown. Default: 5 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Addr:            ":9464",
		Gatherer:        prometheus.DefaultGatherer,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Health is the body of GET /healthz.
type Health struct {
	Status    string `json:"status"`
	Online    bool   `json:"online"`
	Syncing   bool   `json:"syncing"`
	Pending   int    `json:"pending"`
	LastError string `json:"last_error,omitempty"`
}

// Plugin serves /metrics and /healthz.
type Plugin struct {
	cfg Config

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	logger   log.Logger
	wg       sync.WaitGroup
}

// New creates a metrics server plugin.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = def.Gatherer
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return &Plugin{cfg: cfg}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "metricsserver"
}

// Initialize starts listening.
func (p *Plugin) Initialize(ctx context.Context, cfg fieldsync.PluginConfig) error {
	ln, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", p.cfg.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.cfg.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", healthHandler(cfg.Service))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	p.mu.Lock()
	p.server = srv
	p.listener = ln
	p.logger = cfg.Logger
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cfg.Logger.Error("metrics server stopped", log.Err(err))
		}
	}()

	cfg.Logger.Info("metrics server listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Initialize.
func (p *Plugin) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Shutdown stops the server.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv := p.server
	p.server = nil
	p.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	p.wg.Wait()
	return err
}

func healthHandler(svc *fieldsync.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := Health{Status: "stopped"}
		if svc != nil {
			conn := svc.Connection()
			h = Health{
				Status:    svc.Status().String(),
				Online:    conn.Online,
				Syncing:   conn.Syncing,
				Pending:   len(svc.Pending()),
				LastError: conn.LastError,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if svc == nil || svc.Status() != fieldsync.StateRunning {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(h)
	}
}
