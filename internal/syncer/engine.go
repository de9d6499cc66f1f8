// Package syncer orchestrates push and pull passes between the local record
// store and the remote store. A cycle runs idle → pushing → pulling → idle;
// errors are reported per record and never fatal to the engine.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/netmon"
	"github.com/claude/liftlog/internal/queue"
	"github.com/claude/liftlog/internal/remote"
	"github.com/claude/liftlog/internal/storage"
)

const (
	defaultDebounce     = 2 * time.Second
	defaultAutoInterval = 5 * time.Minute
)

// ErrSyncInProgress signals that a cycle was already running; the trigger
// was coalesced into a follow-up run rather than executed in parallel.
var ErrSyncInProgress = errors.New("sync cycle already running")

// ErrOffline signals that no cycle ran because the monitor reports offline.
var ErrOffline = errors.New("offline")

// SyncError is a per-record remote failure. The record's status is set to
// "error" with the message retained; the batch continues.
type SyncError struct {
	RecordID string
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync of %s failed: %v", e.RecordID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Result summarizes one sync cycle.
type Result struct {
	Pushed    int `json:"pushed"`
	Pulled    int `json:"pulled"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

// Status is the aggregate view for display and diagnostics.
type Status struct {
	IsOnline        bool      `json:"is_online"`
	AutoSyncEnabled bool      `json:"auto_sync_enabled"`
	LastSync        time.Time `json:"last_sync"`
	PendingWorkouts int       `json:"pending_workouts"`
	ErrorWorkouts   int       `json:"error_workouts"`
	QueuePending    int       `json:"queue_pending"`
	QueueFailed     int       `json:"queue_failed"`
}

// Engine coordinates the queue, record store and remote store. It holds no
// independent record copies; it references records by id and mutates sync
// status in place. The only state it keeps across restarts is the last-sync
// metadata value in the store.
type Engine struct {
	db      *storage.DB
	queue   *queue.Queue
	remote  remote.Store
	monitor *netmon.Monitor
	log     *slog.Logger

	debounce     time.Duration
	autoInterval time.Duration

	mu            sync.Mutex
	userID        string
	syncing       bool
	followUp      bool
	autoEnabled   bool
	autoCancel    context.CancelFunc
	debounceTimer *time.Timer

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	unsub   func()
	wg      sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithDebounce overrides the quiescence window for DebouncedSync.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// WithAutoInterval overrides the background sync cadence.
func WithAutoInterval(d time.Duration) Option {
	return func(e *Engine) { e.autoInterval = d }
}

// New creates an Engine. Dependencies are injected explicitly so tests can
// build isolated instances.
func New(db *storage.DB, q *queue.Queue, rs remote.Store, mon *netmon.Monitor, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:           db,
		queue:        q,
		remote:       rs,
		monitor:      mon,
		log:          log,
		debounce:     defaultDebounce,
		autoInterval: defaultAutoInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start subscribes to connectivity transitions: coming back online triggers
// a debounced cycle to drain whatever accumulated while offline.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.mu.Unlock()

	ch, unsub := e.monitor.Subscribe()
	e.mu.Lock()
	e.unsub = unsub
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.ctx.Done():
				return
			case online := <-ch:
				if !online {
					continue
				}
				e.mu.Lock()
				user := e.userID
				e.mu.Unlock()
				if user != "" {
					e.log.Info("back online, scheduling sync", "user", user)
					e.DebouncedSync(user)
				}
			}
		}
	}()
}

// Stop cancels timers, the auto-sync loop and the connectivity
// subscription, then waits for background work to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
	if e.autoCancel != nil {
		e.autoCancel()
		e.autoCancel = nil
		e.autoEnabled = false
	}
	unsub := e.unsub
	cancel := e.cancel
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	cancel()
	e.wg.Wait()
}

// DebouncedSync coalesces rapid repeated triggers into a single cycle fired
// after a quiescence window. Every call cancels and restarts the timer.
func (e *Engine) DebouncedSync(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userID = userID
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
	}
	e.debounceTimer = time.AfterFunc(e.debounce, func() {
		ctx := e.runContext()
		if _, err := e.ForceSyncNow(ctx, userID); err != nil &&
			!errors.Is(err, ErrSyncInProgress) && !errors.Is(err, ErrOffline) {
			e.log.Error("debounced sync failed", "error", err)
		}
	})
}

func (e *Engine) runContext() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		return e.ctx
	}
	return context.Background()
}

// ForceSyncNow bypasses the debounce and runs a full cycle immediately. If
// a cycle is already in flight the trigger is coalesced into one follow-up
// run and ErrSyncInProgress is returned.
func (e *Engine) ForceSyncNow(ctx context.Context, userID string) (*Result, error) {
	if userID == "" {
		return nil, errors.New("no user signed in")
	}
	if !e.monitor.Online() {
		return nil, ErrOffline
	}

	e.mu.Lock()
	if e.syncing {
		e.followUp = true
		e.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	e.syncing = true
	e.userID = userID
	e.mu.Unlock()

	result := e.runCycle(ctx, userID)

	for {
		e.mu.Lock()
		if !e.followUp {
			e.syncing = false
			e.mu.Unlock()
			break
		}
		e.followUp = false
		e.mu.Unlock()
		// A trigger arrived mid-cycle; run once more to pick up its writes.
		more := e.runCycle(ctx, userID)
		result.Pushed += more.Pushed
		result.Pulled += more.Pulled
		result.Conflicts += more.Conflicts
		result.Errors += more.Errors
	}
	return result, nil
}

// runCycle executes one push+pull pass. Failures on individual records are
// recorded on those records and counted; they never abort the batch.
func (e *Engine) runCycle(ctx context.Context, userID string) *Result {
	start := time.Now()
	result := &Result{}

	// Records written before sign-in join this user's push set.
	if n, err := e.db.ClaimOwnerless(ctx, userID); err != nil {
		e.log.Warn("claiming ownerless records failed", "error", err)
	} else if n > 0 {
		e.log.Info("claimed ownerless records", "count", n)
	}

	e.push(ctx, userID, result)
	e.pull(ctx, userID, result)

	if result.Errors == 0 {
		if err := e.db.SetLastSync(ctx, time.Now().UTC()); err != nil {
			e.log.Warn("persisting last-sync failed", "error", err)
		}
	}

	e.log.Info("sync cycle finished",
		"pushed", result.Pushed, "pulled", result.Pulled,
		"conflicts", result.Conflicts, "errors", result.Errors,
		"duration", time.Since(start).String())
	return result
}

// push drains the mutation queue, then pushes records whose sync status is
// not "synced".
func (e *Engine) push(ctx context.Context, userID string, result *Result) {
	drained, err := e.queue.Drain(ctx)
	if err != nil {
		e.log.Error("queue drain failed", "error", err)
		result.Errors++
	}
	result.Pushed += drained.Applied
	result.Errors += drained.Failed

	workouts, err := e.db.QueryUnsynced(ctx)
	if err != nil {
		e.log.Error("listing unsynced records failed", "error", err)
		result.Errors++
		return
	}

	for _, w := range workouts {
		if err := ctx.Err(); err != nil {
			return
		}
		if w.UserID != userID {
			continue
		}
		// error → pending on retry; never error → synced without a
		// confirmed remote acknowledgment.
		if w.SyncStatus == models.StatusError {
			if err := e.db.SetSyncStatus(ctx, w.ID, models.StatusPending, ""); err != nil {
				e.log.Warn("resetting error record failed", "record", w.ID, "error", err)
				continue
			}
		}

		if _, err := e.remote.UpdateWorkout(ctx, w.ID, w, userID); err != nil {
			serr := &SyncError{RecordID: w.ID, Err: err}
			e.log.Warn("push failed", "record", w.ID, "error", err)
			if derr := e.db.SetSyncStatus(ctx, w.ID, models.StatusError, serr.Error()); derr != nil {
				e.log.Warn("recording sync error failed", "record", w.ID, "error", derr)
			}
			result.Errors++
			continue
		}
		if err := e.db.SetSyncStatus(ctx, w.ID, models.StatusSynced, ""); err != nil {
			e.log.Warn("marking record synced failed", "record", w.ID, "error", err)
			continue
		}
		result.Pushed++
	}
}

// pull fetches remote records newer than the local last-sync timestamp and
// merges them. When both sides diverged, the later UpdatedAt wins and the
// loser's content is discarded; the identifier is always preserved.
func (e *Engine) pull(ctx context.Context, userID string, result *Result) {
	since, err := e.db.LastSync(ctx)
	if err != nil {
		e.log.Warn("reading last-sync failed", "error", err)
	}

	remoteRecs, err := e.remote.GetWorkouts(ctx, userID, since)
	if err != nil {
		e.log.Error("pull failed", "error", err)
		result.Errors++
		return
	}

	for _, rw := range remoteRecs {
		if err := ctx.Err(); err != nil {
			return
		}
		local, err := e.db.GetWorkout(ctx, rw.ID)
		if err != nil {
			if !storage.IsNotFound(err) {
				e.log.Warn("reading local record failed", "record", rw.ID, "error", err)
				result.Errors++
				continue
			}
			// New on the remote side.
			rw.SyncStatus = models.StatusSynced
			rw.SyncError = ""
			if err := e.db.ReplaceWorkout(ctx, rw); err != nil {
				e.log.Warn("storing pulled record failed", "record", rw.ID, "error", err)
				result.Errors++
				continue
			}
			result.Pulled++
			continue
		}

		if local.UpdatedAt.Equal(rw.UpdatedAt) {
			continue
		}
		// A timestamp difference is a conflict only when the local copy
		// holds content the remote has not seen. A remote-only update
		// landing on a synced record is a plain pull.
		if local.SyncStatus != models.StatusSynced {
			result.Conflicts++
		}
		if rw.UpdatedAt.After(local.UpdatedAt) {
			rw.SyncStatus = models.StatusSynced
			rw.SyncError = ""
			if err := e.db.ReplaceWorkout(ctx, rw); err != nil {
				e.log.Warn("applying remote winner failed", "record", rw.ID, "error", err)
				result.Errors++
				continue
			}
			result.Pulled++
		}
		// Local is newer: keep it; the next push sends it out.
	}
}

// EnableAutoSync starts the periodic background cadence for the given user.
// It is tied to authentication state: call DisableAutoSync on logout so
// nothing syncs to the wrong owner.
func (e *Engine) EnableAutoSync(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.autoEnabled {
		return
	}
	e.userID = userID
	e.autoEnabled = true

	parent := e.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	e.autoCancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.autoInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.ForceSyncNow(ctx, userID); err != nil &&
					!errors.Is(err, ErrSyncInProgress) && !errors.Is(err, ErrOffline) {
					e.log.Error("auto sync failed", "error", err)
				}
			}
		}
	}()
}

// DisableAutoSync stops the background cadence and forgets the user.
func (e *Engine) DisableAutoSync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.autoCancel != nil {
		e.autoCancel()
		e.autoCancel = nil
	}
	e.autoEnabled = false
	e.userID = ""
}

// GetSyncStatus returns the aggregate status for display and diagnostics.
func (e *Engine) GetSyncStatus(ctx context.Context) (*Status, error) {
	e.mu.Lock()
	auto := e.autoEnabled
	e.mu.Unlock()

	counts, err := e.db.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	lastSync, err := e.db.LastSync(ctx)
	if err != nil {
		return nil, err
	}
	pending, failed, err := e.queue.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{
		IsOnline:        e.monitor.Online(),
		AutoSyncEnabled: auto,
		LastSync:        lastSync,
		PendingWorkouts: counts[models.StatusPending] + counts[models.StatusLocal],
		ErrorWorkouts:   counts[models.StatusError],
		QueuePending:    pending,
		QueueFailed:     failed,
	}, nil
}
