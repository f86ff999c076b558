package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/internal/ports"
)

// DefaultRetryDelay is the wait before an automatic retry pass.
const DefaultRetryDelay = 5 * time.Second

// Trigger names what started a drain pass.
type Trigger string

const (
	TriggerReconnect Trigger = "reconnect"
	TriggerManual    Trigger = "manual"
	TriggerTimer     Trigger = "timer"
	TriggerSchedule  Trigger = "schedule"
	TriggerStartup   Trigger = "startup"
)

// Reasons a drain call did nothing.
const (
	SkipOffline    = "offline"
	SkipEmpty      = "queue empty"
	SkipInProgress = "drain in progress"
	SkipClosed     = "coordinator closed"
)

// SyncConfig tunes the coordinator.
type SyncConfig struct {
	// RetryDelay is the delay before the automatic retry pass. Default: 5s
	RetryDelay time.Duration

	// MaxRetryDelay caps the delay when consecutive passes make no progress.
	// Zero or anything below RetryDelay keeps the delay fixed.
	MaxRetryDelay time.Duration

	// ReplayRate limits replays per second within a pass. Zero means unlimited.
	ReplayRate float64

	// ReplayBurst is the limiter burst. Default: 1
	ReplayBurst int
}

// DrainReport summarizes one drain call.
type DrainReport struct {
	Trigger    Trigger `json:"trigger"`
	Skipped    bool    `json:"skipped,omitempty"`
	SkipReason string  `json:"skip_reason,omitempty"`

	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Requeued  int `json:"requeued"`
	// Abandoned counts every operation removed without success, including
	// the Rejected ones.
	Abandoned int `json:"abandoned"`
	Rejected  int `json:"rejected"`
	Pending   int `json:"pending"`

	// Interrupted is set when the context ended mid-pass. Operations not yet
	// attempted were left untouched.
	Interrupted bool `json:"interrupted,omitempty"`

	// RetryIn is the delay of the armed automatic retry, zero if none.
	RetryIn time.Duration `json:"retry_in,omitempty"`
	Took    time.Duration `json:"took"`
}

// SyncCoordinator runs drain passes over the retry queue. At most one pass
// is in flight; concurrent calls return a skipped report immediately.
type SyncCoordinator struct {
	cfg      SyncConfig
	queue    *RetryQueue
	registry *Registry
	conn     *Connection
	notifier *guardedSink
	metrics  ports.Metrics
	logger   ports.Logger
	limiter  *rate.Limiter
	onReport func(DrainReport)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	timerMu  sync.Mutex
	timer    *time.Timer
	timerGen uint64
	backoff  *backoff
	closed   bool
}

// NewSyncCoordinator creates a coordinator. sink and metrics may be nil.
func NewSyncCoordinator(
	cfg SyncConfig,
	queue *RetryQueue,
	registry *Registry,
	conn *Connection,
	sink ports.NotificationSink,
	metrics ports.Metrics,
	logger ports.Logger,
) *SyncCoordinator {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.ReplayBurst <= 0 {
		cfg.ReplayBurst = 1
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	var limiter *rate.Limiter
	if cfg.ReplayRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ReplayRate), cfg.ReplayBurst)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SyncCoordinator{
		cfg:      cfg,
		queue:    queue,
		registry: registry,
		conn:     conn,
		notifier: guardSink(sink, logger),
		metrics:  metrics,
		logger:   logger,
		limiter:  limiter,
		ctx:      ctx,
		cancel:   cancel,
		backoff:  newBackoff(cfg.RetryDelay, cfg.MaxRetryDelay, cfg.MaxRetryDelay > cfg.RetryDelay),
	}
}

// Drain runs one pass over the queue if a pass may start now; otherwise it
// returns a skipped report without queueing a later pass.
func (s *SyncCoordinator) Drain(ctx context.Context, trigger Trigger) DrainReport {
	report := DrainReport{Trigger: trigger}

	if !s.conn.TryBeginSync() {
		return s.skip(report, SkipInProgress)
	}
	defer s.conn.EndSync()

	if s.isClosed() {
		return s.skip(report, SkipClosed)
	}
	if !s.conn.Online() {
		return s.skip(report, SkipOffline)
	}
	if s.queue.Size() == 0 {
		return s.skip(report, SkipEmpty)
	}

	// This pass supersedes any armed retry.
	s.cancelRetry()

	start := time.Now()
	s.logger.Info("drain started",
		ports.String("trigger", string(trigger)),
		ports.Int("queue_size", s.queue.Size()))

	drainable, expired := s.queue.Drainable(ctx)
	for _, op := range expired {
		report.Abandoned++
		s.abandon(op, fmt.Sprintf("retry limit of %d reached", s.queue.MaxRetries()))
	}

	for _, op := range drainable {
		if err := s.wait(ctx); err != nil {
			report.Interrupted = true
			break
		}

		report.Attempted++
		_, err := s.registry.Dispatch(ctx, op)
		if err == nil {
			s.queue.RemoveAttempt(ctx, op)
			s.conn.SetLastError("")
			report.Succeeded++
			s.metrics.CountOperation("succeeded")
			s.logger.Debug("replay succeeded", ports.String("id", op.ID), ports.String("kind", op.Kind.String()))
			continue
		}

		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// The pass was cancelled, not the operation. Leave it as is.
			report.Attempted--
			report.Interrupted = true
			break
		}

		if IsConnectivity(err) {
			s.conn.SetLastError(err.Error())
			next := op.RetryCount + 1
			if next >= s.queue.MaxRetries() {
				s.queue.RemoveAttempt(ctx, op)
				report.Abandoned++
				s.abandon(op, fmt.Sprintf("gave up after %d attempts: %v", next, err))
				continue
			}
			s.queue.RequeueAttempt(ctx, op, next)
			report.Requeued++
			s.metrics.CountOperation("requeued")
			s.logger.Warn("replay failed, requeued",
				ports.String("id", op.ID),
				ports.Int("retry_count", next),
				ports.Err(err))
			continue
		}

		// The service rejected it; replaying again cannot succeed.
		s.queue.RemoveAttempt(ctx, op)
		report.Abandoned++
		report.Rejected++
		s.metrics.CountOperation("rejected")
		s.abandon(op, err.Error())
	}

	if err := s.queue.Persist(ctx); err != nil {
		s.logger.Warn("queue persisted with errors", ports.Err(err))
	}

	report.Pending = s.queue.Size()
	if report.Pending > 0 {
		report.RetryIn = s.scheduleRetry(report.Succeeded > 0)
	} else {
		s.resetBackoff()
	}
	report.Took = time.Since(start)

	outcome := "completed"
	if report.Interrupted {
		outcome = "interrupted"
	}
	s.metrics.ObserveDrain(string(trigger), outcome, report.Took)
	s.notifier.NotifyDrainResult(report.Succeeded, report.Pending, report.Abandoned)

	s.logger.Info("drain finished",
		ports.String("trigger", string(trigger)),
		ports.Int("succeeded", report.Succeeded),
		ports.Int("requeued", report.Requeued),
		ports.Int("abandoned", report.Abandoned),
		ports.Int("pending", report.Pending),
		ports.Duration("retry_in", report.RetryIn),
		ports.Duration("took", report.Took))

	if s.onReport != nil {
		s.onReport(report)
	}
	return report
}

// OnReport sets fn to receive the report of every pass that did work. It must
// be called before the coordinator is used.
func (s *SyncCoordinator) OnReport(fn func(DrainReport)) {
	s.onReport = fn
}

// DrainAsync starts a pass in the background using the coordinator's own
// context. It is what connectivity callbacks and timers use.
func (s *SyncCoordinator) DrainAsync(trigger Trigger) {
	s.spawn(func() { s.Drain(s.ctx, trigger) })
}

// RetryArmed reports whether an automatic retry is scheduled.
func (s *SyncCoordinator) RetryArmed() bool {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return s.timer != nil
}

// Close cancels the automatic retry and any background pass, then waits for
// background passes to return.
func (s *SyncCoordinator) Close() {
	s.timerMu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	s.timerMu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *SyncCoordinator) skip(report DrainReport, reason string) DrainReport {
	report.Skipped = true
	report.SkipReason = reason
	report.Pending = s.queue.Size()
	s.metrics.ObserveDrain(string(report.Trigger), "skipped", 0)
	s.logger.Debug("drain skipped",
		ports.String("trigger", string(report.Trigger)),
		ports.String("reason", reason))
	return report
}

func (s *SyncCoordinator) abandon(op domain.PendingOperation, reason string) {
	s.metrics.CountOperation("abandoned")
	s.logger.Error("operation abandoned",
		ports.String("id", op.ID),
		ports.String("kind", op.Kind.String()),
		ports.String("description", op.Description),
		ports.Int("retry_count", op.RetryCount),
		ports.Err(fmt.Errorf("%w: %s", domain.ErrAbandoned, reason)))
	s.notifier.NotifyAbandoned(op.Label(), reason)
}

func (s *SyncCoordinator) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// scheduleRetry arms the single retry timer and returns its delay.
func (s *SyncCoordinator) scheduleRetry(progressed bool) time.Duration {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.closed {
		return 0
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	if progressed {
		s.backoff.Reset()
	}

	s.timerGen++
	gen := s.timerGen
	delay := s.backoff.Next()
	s.timer = time.AfterFunc(delay, func() {
		s.timerMu.Lock()
		stale := gen != s.timerGen
		if !stale {
			s.timer = nil
		}
		s.timerMu.Unlock()
		if stale {
			return
		}
		s.DrainAsync(TriggerTimer)
	})
	return delay
}

func (s *SyncCoordinator) cancelRetry() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.logger.Debug("automatic retry cancelled")
	}
	s.timerGen++
}

func (s *SyncCoordinator) resetBackoff() {
	s.timerMu.Lock()
	s.backoff.Reset()
	s.timerMu.Unlock()
}

func (s *SyncCoordinator) isClosed() bool {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return s.closed
}

func (s *SyncCoordinator) spawn(fn func()) {
	s.timerMu.Lock()
	if s.closed {
		s.timerMu.Unlock()
		return
	}
	s.wg.Add(1)
	s.timerMu.Unlock()

	go func() {
		defer s.wg.Done()
		fn()
	}()
}
