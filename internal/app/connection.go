package app

import (
	"sync"
	"sync/atomic"

	"github.com/bft-labs/fieldsync/internal/domain"
)

// Connection holds the process-wide connectivity state. Online is written
// only by ConnectivityMonitor; the syncing flag only by SyncCoordinator.
type Connection struct {
	mu      sync.RWMutex
	online  bool
	lastErr string

	syncing atomic.Bool
}

// NewConnection creates a Connection seeded with the given online value.
func NewConnection(online bool) *Connection {
	return &Connection{online: online}
}

// Online returns the last observed connectivity.
func (c *Connection) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// SetOnline stores v and reports whether it differs from the previous value.
func (c *Connection) SetOnline(v bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online == v {
		return false
	}
	c.online = v
	return true
}

// SetLastError records a diagnostic message. An empty string clears it.
func (c *Connection) SetLastError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

// TryBeginSync sets the syncing flag if it is clear. Only the caller that
// gets true may drain; it must call EndSync when done.
func (c *Connection) TryBeginSync() bool {
	return c.syncing.CompareAndSwap(false, true)
}

// EndSync clears the syncing flag.
func (c *Connection) EndSync() {
	c.syncing.Store(false)
}

// Syncing reports whether a drain is in flight.
func (c *Connection) Syncing() bool {
	return c.syncing.Load()
}

// Snapshot returns a copy of the current state.
func (c *Connection) Snapshot() domain.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ConnectionState{
		Online:    c.online,
		Syncing:   c.syncing.Load(),
		LastError: c.lastErr,
	}
}
