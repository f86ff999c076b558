// Package spooldir lets other programs hand mutations to a fieldsync
// service by dropping JSON files into a directory.
//
// Each *.json file holds one request:
//
//	{"action":"create","entity":"stationControl","payload":{"station":4},"description":"Open station 4"}
//
// A file is removed once the service has performed or queued it. Files the
// service rejects are renamed to *.rejected. Writers should create files under
// a dot-prefixed name and rename them into place; dot files are ignored.
package spooldir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/fieldsync/pkg/fieldsync"
	"github.com/bft-labs/fieldsync/pkg/log"
)

// RejectedSuffix is appended to files the service refused.
const RejectedSuffix = ".rejected"

// Config holds configuration options for the spool directory plugin.
type Config struct {
	// Dir is the spool directory. Default: <state dir>/spool
	Dir string

	// DebounceDelay is the delay between a file event and the scan.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{DebounceDelay: 100 * time.Millisecond}
}

// File is the JSON body of one spooled request.
type File struct {
	Action      string          `json:"action"`
	Entity      string          `json:"entity"`
	Payload     json.RawMessage `json:"payload"`
	Description string          `json:"description,omitempty"`

	// IdempotencyKey defaults to the file name without extension, so a file
	// picked up twice is still applied once.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Plugin watches the spool directory.
type Plugin struct {
	debounceDelay time.Duration

	mu       sync.Mutex
	dir      string
	svc      *fieldsync.Service
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	scanMu   sync.Mutex
}

// New creates a spool directory plugin.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultConfig().DebounceDelay
	}
	return &Plugin{dir: cfg.Dir, debounceDelay: cfg.DebounceDelay}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "spooldir"
}

// Dir returns the watched directory once initialized.
func (p *Plugin) Dir() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dir
}

// Initialize creates the directory and starts watching it.
func (p *Plugin) Initialize(ctx context.Context, cfg fieldsync.PluginConfig) error {
	if cfg.Service == nil {
		return errors.New("spooldir: no service")
	}

	p.mu.Lock()
	if p.dir == "" {
		if cfg.StateDir == "" {
			p.mu.Unlock()
			return errors.New("spooldir: no directory configured")
		}
		p.dir = filepath.Join(cfg.StateDir, "spool")
	}
	p.svc = cfg.Service
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	dir := p.dir
	p.mu.Unlock()

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("spooldir: create %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("spooldir: create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("spooldir: watch %s: %w", dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("spool directory watched", log.String("dir", dir))
	return nil
}

// Shutdown stops watching. Files not yet picked up stay in place.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.stopDebounce()
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	// Plugins start before the service accepts requests.
	if !p.waitRunning(ctx) {
		return
	}
	p.Scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !spooled(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceScan(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("spool watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) waitRunning(ctx context.Context) bool {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch p.svc.Status() {
		case fieldsync.StateRunning:
			return true
		case fieldsync.StateCrashed, fieldsync.StateStopped:
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (p *Plugin) debounceScan(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopDebounce()
	p.wg.Add(1)
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		defer p.wg.Done()
		if ctx.Err() == nil {
			p.Scan(ctx)
		}
	})
}

// stopDebounce cancels a pending scan. Callers hold p.mu.
func (p *Plugin) stopDebounce() {
	if p.debounce != nil && p.debounce.Stop() {
		p.wg.Done()
	}
}

// Scan submits every spooled file in name order and returns how many were
// handed to the service.
func (p *Plugin) Scan(ctx context.Context) int {
	p.scanMu.Lock()
	defer p.scanMu.Unlock()

	dir := p.Dir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		p.logger.Error("read spool directory", log.String("dir", dir), log.Err(err))
		return 0
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && spooled(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	handed := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if p.submit(ctx, filepath.Join(dir, name)) {
			handed++
		}
	}
	return handed
}

func (p *Plugin) submit(ctx context.Context, path string) bool {
	req, err := readFile(path)
	if err != nil {
		p.reject(path, err.Error())
		return false
	}

	res := p.svc.Execute(ctx, req)
	switch {
	case res.Success || res.Queued:
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Error("remove spooled file", log.String("file", path), log.Err(err))
		}
		p.logger.Debug("spooled request handed over",
			log.String("file", filepath.Base(path)),
			log.Bool("queued", res.Queued))
		return true
	case res.Error == fieldsync.ErrNotRunning.Error():
		// Left for the next start.
		return false
	default:
		p.reject(path, res.Error)
		return false
	}
}

func (p *Plugin) reject(path, reason string) {
	p.logger.Warn("spooled request rejected",
		log.String("file", filepath.Base(path)),
		log.String("reason", reason))
	if err := os.Rename(path, path+RejectedSuffix); err != nil {
		p.logger.Error("rename rejected file", log.String("file", path), log.Err(err))
	}
}

func readFile(path string) (fieldsync.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fieldsync.Request{}, fmt.Errorf("read: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return fieldsync.Request{}, fmt.Errorf("decode: %w", err)
	}
	if len(f.Payload) == 0 {
		f.Payload = json.RawMessage(`{}`)
	}
	if f.IdempotencyKey == "" {
		f.IdempotencyKey = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	return fieldsync.Request{
		Kind:           fieldsync.Kind{Action: fieldsync.Action(f.Action), Entity: f.Entity},
		Payload:        f.Payload,
		Description:    f.Description,
		IdempotencyKey: f.IdempotencyKey,
	}, nil
}

func spooled(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".json")
}

// Ensure Plugin implements fieldsync.Plugin.
var _ fieldsync.Plugin = (*Plugin)(nil)
