package connectivity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/fieldsync/internal/ports"
)

// Marker reports offline while a marker file exists. Operators (or an
// airplane-mode hook) create and delete the file to switch modes.
type Marker struct {
	path   string
	subs   *subscribers
	logger ports.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMarker creates a marker-file signal. The initial value reflects whether
// the file exists now.
func NewMarker(path string, logger ports.Logger) *Marker {
	return &Marker{
		path:   path,
		subs:   newSubscribers(!exists(path)),
		logger: logger,
	}
}

func (m *Marker) IsOnline() bool                { return m.subs.get() }
func (m *Marker) OnChange(fn func(bool)) func() { return m.subs.add(fn) }

// Path returns the marker file path.
func (m *Marker) Path() string { return m.path }

// Start watches the marker's directory, creating it if needed.
func (m *Marker) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		return nil
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	m.watcher = watcher

	// The file may have changed between construction and the watch.
	m.subs.publish(!exists(m.path))

	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.watchLoop(ctx, watcher)
	return nil
}

// Close stops watching.
func (m *Marker) Close() error {
	m.mu.Lock()
	cancel, watcher := m.cancel, m.watcher
	m.cancel, m.watcher = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	if watcher != nil {
		return watcher.Close()
	}
	return nil
}

func (m *Marker) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer m.wg.Done()

	name := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			online := !exists(m.path)
			m.logger.Info("connectivity marker changed",
				ports.String("path", m.path),
				ports.Bool("online", online))
			m.subs.publish(online)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("marker watcher error", ports.Err(err))
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
