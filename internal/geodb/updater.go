// ABOUTME: Update scheduler driving startup, interval, and manual refreshes
// ABOUTME: Single-flight refresh that atomically installs validated handles

package geodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/needful-apps/Gunter/internal/config"
	"github.com/needful-apps/Gunter/internal/observability"
)

// Fetcher retrieves a validated database handle for a source.
// Implemented by Downloader; swapped out in tests.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) (*Handle, error)
}

// UpdaterConfig configures the update scheduler.
type UpdaterConfig struct {
	// Source is the resolved database source. The updater consults it;
	// it never re-decides priority.
	Source Source

	// Interval between timer-driven refreshes.
	Interval time.Duration

	// Timeout bounds each fetch attempt.
	Timeout time.Duration

	// Retry configures in-attempt backoff for transient and corrupt
	// fetch failures.
	Retry config.RetryConfig

	// Logger for structured logging.
	Logger *slog.Logger

	// Metrics records refresh outcomes. Optional.
	Metrics *observability.Metrics
}

// Updater schedules database refreshes: once at startup, then on a
// fixed interval, plus manual triggers. At most one refresh runs at a
// time; a failed refresh never evicts the active handle.
type Updater struct {
	cfg     UpdaterConfig
	fetcher Fetcher
	store   *Store
	tracker *Tracker
	logger  *slog.Logger

	trigger chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// refreshMu is the single-flight guard.
	refreshMu sync.Mutex
}

// NewUpdater creates an update scheduler.
func NewUpdater(cfg UpdaterConfig, fetcher Fetcher, store *Store) *Updater {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}

	return &Updater{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		tracker: NewTracker(),
		logger:  logger.With(slog.String("component", "updater")),
		trigger: make(chan struct{}, 1),
	}
}

// Start launches the background refresh worker. The first refresh runs
// immediately; lookups receive ErrNotReady until it installs a handle.
func (u *Updater) Start(ctx context.Context) error {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return fmt.Errorf("updater already running")
	}
	ctx, u.cancel = context.WithCancel(ctx)
	u.running = true
	u.mu.Unlock()

	u.wg.Add(1)
	go u.run(ctx)

	u.logger.Info("update scheduler started",
		slog.String("source", string(u.cfg.Source.Kind)),
		slog.Duration("interval", u.cfg.Interval),
	)
	return nil
}

// Stop cancels the worker and waits for an in-flight refresh to
// finish or hit its timeout.
func (u *Updater) Stop() {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return
	}
	u.cancel()
	u.running = false
	u.mu.Unlock()

	u.wg.Wait()
	u.logger.Info("update scheduler stopped")
}

// TriggerRefresh requests a refresh outside the timer schedule.
// Non-blocking; a trigger while one is already pending is a no-op.
func (u *Updater) TriggerRefresh() {
	select {
	case u.trigger <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the updater state and last outcome.
func (u *Updater) Status() Status {
	return u.tracker.Status()
}

// run is the worker loop: initial refresh, then ticks and triggers.
func (u *Updater) run(ctx context.Context) {
	defer u.wg.Done()

	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()

	u.tracker.SetNextScheduled(time.Now().Add(u.cfg.Interval).UTC())

	// Startup refresh loads every source kind, including local files.
	u.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			u.logger.Debug("refresh worker stopped")
			return

		case <-ticker.C:
			if !u.cfg.Source.AutoUpdates() {
				u.tracker.RecordOutcome(Outcome{Kind: OutcomeSkipped, Reason: ReasonLocalStatic, At: time.Now().UTC()})
				u.logger.Info("skipping scheduled refresh", slog.String("reason", ReasonLocalStatic))
			} else {
				u.Refresh(ctx)
			}
			u.tracker.SetNextScheduled(time.Now().Add(u.cfg.Interval).UTC())

		case <-u.trigger:
			u.logger.Info("manual refresh triggered")
			u.Refresh(ctx)
		}
	}
}

// Refresh performs one refresh attempt: fetch, validate, install.
// Single-flight: a call while another refresh runs returns a skipped
// outcome immediately. Transient and corrupt fetch failures are
// retried within the attempt using the configured backoff; permanent
// failures wait for the next scheduled tick.
func (u *Updater) Refresh(ctx context.Context) Outcome {
	if !u.refreshMu.TryLock() {
		o := Outcome{Kind: OutcomeSkipped, Reason: ReasonAlreadyRunning, At: time.Now().UTC()}
		u.tracker.RecordOutcome(o)
		return o
	}
	defer u.refreshMu.Unlock()

	u.tracker.SetState(StateRefreshing)
	u.logger.Info("starting database refresh")

	bo := newBackoff(u.cfg.Retry)
	var lastErr error

	for {
		h, err := u.fetchOnce(ctx)
		if err == nil {
			u.store.Install(h)

			o := Outcome{Kind: OutcomeSuccess, At: time.Now().UTC()}
			u.tracker.RecordOutcome(o)
			if u.cfg.Metrics != nil {
				u.cfg.Metrics.RecordRefresh(true)
			}

			u.logger.Info("database refresh completed",
				slog.String("origin", h.Origin),
				slog.String("version", h.VersionTag),
			)
			return o
		}
		lastErr = err

		kind := FetchKind(err)
		u.logger.Warn("database fetch failed",
			slog.String("kind", string(kind)),
			slog.String("error", observability.RedactString(err.Error())),
			slog.Int("attempt", bo.attempts()+1),
		)

		if kind == FetchPermanent || kind == FetchNotFound {
			break
		}

		delay, ok := bo.next()
		if !ok {
			u.logger.Error("database refresh failed after max retries", slog.Int("attempts", bo.attempts()))
			break
		}

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(delay):
			u.logger.Debug("retrying database fetch", slog.Duration("delay", delay))
			continue
		}
		break
	}

	o := Outcome{
		Kind:  OutcomeFailed,
		Error: observability.RedactString(errString(lastErr)),
		At:    time.Now().UTC(),
	}
	u.tracker.RecordOutcome(o)
	if u.cfg.Metrics != nil {
		u.cfg.Metrics.RecordRefresh(false)
	}
	return o
}

// fetchOnce runs a single bounded fetch attempt.
func (u *Updater) fetchOnce(ctx context.Context) (*Handle, error) {
	if u.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.Timeout)
		defer cancel()
	}
	return u.fetcher.Fetch(ctx, u.cfg.Source)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "fetch timed out"
	}
	return err.Error()
}
