package connectivity

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/bft-labs/fieldsync/internal/ports"
)

const (
	DefaultProbeInterval = 10 * time.Second
	DefaultProbeTimeout  = 3 * time.Second
)

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ProbeConfig configures a Probe.
type ProbeConfig struct {
	// Address is host:port to dial.
	Address  string
	Interval time.Duration
	Timeout  time.Duration
	Dialer   Dialer
}

// Probe reports online while a TCP connection to Address can be opened.
// It starts optimistic and checks once immediately on Start.
type Probe struct {
	cfg    ProbeConfig
	subs   *subscribers
	logger ports.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProbe creates a probe signal.
func NewProbe(cfg ProbeConfig, logger ports.Logger) *Probe {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{}
	}
	return &Probe{cfg: cfg, subs: newSubscribers(true), logger: logger}
}

// ProbeAddress derives host:port from a service URL.
func ProbeAddress(serviceURL string) (string, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return "", err
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func (p *Probe) IsOnline() bool                { return p.subs.get() }
func (p *Probe) OnChange(fn func(bool)) func() { return p.subs.add(fn) }

// Start performs one check and then checks every interval until Close.
func (p *Probe) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.check(ctx)

	p.wg.Add(1)
	go p.loop(ctx)
	return nil
}

// Close stops the probe loop and waits for it. The probe may be started again.
func (p *Probe) Close() error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	p.cancel = nil
	p.mu.Unlock()
	return nil
}

func (p *Probe) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

func (p *Probe) check(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	conn, err := p.cfg.Dialer.DialContext(dialCtx, "tcp", p.cfg.Address)
	if ctx.Err() != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	online := err == nil
	if conn != nil {
		_ = conn.Close()
	}

	if online != p.subs.get() {
		if online {
			p.logger.Info("probe reached service", ports.String("address", p.cfg.Address))
		} else {
			p.logger.Warn("probe failed", ports.String("address", p.cfg.Address), ports.Err(err))
		}
	}
	p.subs.publish(online)
}
