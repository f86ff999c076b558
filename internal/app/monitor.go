package app

import (
	"sync"

	"github.com/bft-labs/fieldsync/internal/ports"
)

// ConnectivityMonitor turns a raw connectivity signal into transition events.
// Callbacks fire once per transition; repeated identical signals are ignored.
type ConnectivityMonitor struct {
	signal ports.ConnectivitySignal
	conn   *Connection
	logger ports.Logger

	mu        sync.Mutex
	onOnline  []func()
	onOffline []func()

	// handleMu serializes transitions so callbacks observe them in order.
	handleMu    sync.Mutex
	unsubscribe func()
}

// NewConnectivityMonitor creates a monitor writing into conn.
func NewConnectivityMonitor(signal ports.ConnectivitySignal, conn *Connection, logger ports.Logger) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		signal: signal,
		conn:   conn,
		logger: logger,
	}
}

// OnOnline registers fn to run on every offline to online transition.
func (m *ConnectivityMonitor) OnOnline(fn func()) {
	m.mu.Lock()
	m.onOnline = append(m.onOnline, fn)
	m.mu.Unlock()
}

// OnOffline registers fn to run on every online to offline transition.
func (m *ConnectivityMonitor) OnOffline(fn func()) {
	m.mu.Lock()
	m.onOffline = append(m.onOffline, fn)
	m.mu.Unlock()
}

// Start seeds the connection state from the signal and subscribes to changes.
// The initial value is not a transition and fires no callbacks; a value that
// moved while subscribing does.
func (m *ConnectivityMonitor) Start() {
	m.handleMu.Lock()
	m.conn.SetOnline(m.signal.IsOnline())
	m.handleMu.Unlock()

	unsub := m.signal.OnChange(m.handle)

	m.mu.Lock()
	m.unsubscribe = unsub
	m.mu.Unlock()

	// A change published between seeding and subscribing is a transition.
	m.handle(m.signal.IsOnline())

	m.logger.Info("connectivity monitor started", ports.Bool("online", m.conn.Online()))
}

// Stop unsubscribes from the signal.
func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Online returns the current connectivity.
func (m *ConnectivityMonitor) Online() bool {
	return m.conn.Online()
}

func (m *ConnectivityMonitor) handle(online bool) {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()

	if !m.conn.SetOnline(online) {
		return
	}

	m.mu.Lock()
	var callbacks []func()
	if online {
		callbacks = append(callbacks, m.onOnline...)
	} else {
		callbacks = append(callbacks, m.onOffline...)
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("connectivity restored")
	} else {
		m.logger.Warn("connectivity lost")
	}

	for _, fn := range callbacks {
		fn()
	}
}
