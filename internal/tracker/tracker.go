// Package tracker is the domain API the UI talks to. Local writes are
// optimistic and always available: they succeed or fail synchronously
// against the record store. Remote effects are best-effort — attempted
// immediately when online, otherwise persisted to the mutation queue — and
// never propagate a failure back to the caller.
package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/netmon"
	"github.com/claude/liftlog/internal/portability"
	"github.com/claude/liftlog/internal/queue"
	"github.com/claude/liftlog/internal/remote"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/syncer"
)

// Tracker wires the record store, queue, remote store and sync engine
// behind the thin domain surface.
type Tracker struct {
	db      *storage.DB
	queue   *queue.Queue
	remote  remote.Store
	monitor *netmon.Monitor
	engine  *syncer.Engine
	port    *portability.Service
	log     *slog.Logger

	mu     sync.Mutex
	userID string
}

// New creates a Tracker.
func New(db *storage.DB, q *queue.Queue, rs remote.Store, mon *netmon.Monitor, eng *syncer.Engine, port *portability.Service, log *slog.Logger) *Tracker {
	return &Tracker{db: db, queue: q, remote: rs, monitor: mon, engine: eng, port: port, log: log}
}

// SetUser records the signed-in user and enables background sync for them.
func (t *Tracker) SetUser(userID string) {
	t.mu.Lock()
	t.userID = userID
	t.mu.Unlock()
	if userID != "" {
		t.engine.EnableAutoSync(userID)
	}
}

// ClearUser handles logout: background sync stops so nothing syncs to the
// wrong owner.
func (t *Tracker) ClearUser() {
	t.mu.Lock()
	t.userID = ""
	t.mu.Unlock()
	t.engine.DisableAutoSync()
}

func (t *Tracker) user() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userID
}

// UserID returns the currently signed-in user, empty when signed out.
func (t *Tracker) UserID() string { return t.user() }

// AddWorkout stores a workout locally and schedules the remote create.
func (t *Tracker) AddWorkout(ctx context.Context, w *models.Workout) (*models.Workout, error) {
	user := t.user()
	stored, err := t.db.AddWorkout(ctx, w, user)
	if err != nil {
		return nil, err
	}
	t.pushOrQueue(ctx, models.OpCreateWorkout, stored, user)
	return stored, nil
}

// AddRestDay stores a rest-day record.
func (t *Tracker) AddRestDay(ctx context.Context, date time.Time, quality int, activities []string, notes string) (*models.Workout, error) {
	w := &models.Workout{
		Kind:            models.KindRestDay,
		Date:            date,
		RecoveryQuality: quality,
		Activities:      activities,
		Notes:           notes,
	}
	return t.AddWorkout(ctx, w)
}

// UpdateWorkout merges the patch locally and schedules the remote update.
// A missing id surfaces as a NotFoundError.
func (t *Tracker) UpdateWorkout(ctx context.Context, id string, patch models.WorkoutPatch) (*models.Workout, error) {
	user := t.user()
	updated, err := t.db.UpdateWorkout(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	t.pushOrQueue(ctx, models.OpUpdateWorkout, updated, user)
	return updated, nil
}

// DeleteWorkout removes the workout and its children locally and schedules
// the remote delete.
func (t *Tracker) DeleteWorkout(ctx context.Context, id string) error {
	user := t.user()
	if err := t.db.DeleteWorkout(ctx, id); err != nil {
		return err
	}
	if user == "" {
		return nil
	}
	if t.monitor.Online() && !t.hasQueuedOps(ctx, id) {
		if err := t.remote.DeleteWorkout(ctx, id, user); err == nil {
			return nil
		} else {
			t.log.Debug("remote delete failed, queuing", "record", id, "error", err)
		}
	}
	if err := t.queue.EnqueueDelete(ctx, models.OpDeleteWorkout, id, user); err != nil {
		t.log.Error("queueing delete failed", "record", id, "error", err)
	}
	t.engine.DebouncedSync(user)
	return nil
}

// hasQueuedOps reports whether earlier mutations for the record are still
// sitting in the queue. A direct remote write would land before they
// replay, so new mutations join the queue behind them instead. A lookup
// failure counts as queued: enqueueing is always order-safe.
func (t *Tracker) hasQueuedOps(ctx context.Context, recordID string) bool {
	queued, err := t.queue.HasPending(ctx, recordID)
	if err != nil {
		t.log.Warn("checking queued operations failed", "record", recordID, "error", err)
		return true
	}
	return queued
}

// pushOrQueue attempts the remote write when online, falling back to the
// queue. Remote failures are absorbed here — the caller already has a
// durable local save, and sync status surfaces asynchronously.
func (t *Tracker) pushOrQueue(ctx context.Context, kind models.OpKind, w *models.Workout, user string) {
	if user == "" {
		// Unowned records wait for sign-in; they carry status "local".
		return
	}
	if t.monitor.Online() && !t.hasQueuedOps(ctx, w.ID) {
		var err error
		if kind == models.OpCreateWorkout {
			_, err = t.remote.CreateWorkout(ctx, w, user)
		} else {
			_, err = t.remote.UpdateWorkout(ctx, w.ID, w, user)
		}
		if err == nil {
			if serr := t.db.SetSyncStatus(ctx, w.ID, models.StatusSynced, ""); serr != nil {
				t.log.Warn("marking record synced failed", "record", w.ID, "error", serr)
			} else {
				w.SyncStatus = models.StatusSynced
			}
			return
		}
		t.log.Debug("remote write failed, queuing", "record", w.ID, "error", err)
	}
	if err := t.queue.EnqueueWorkout(ctx, kind, w, user); err != nil {
		t.log.Error("queueing mutation failed", "record", w.ID, "error", err)
	}
	t.engine.DebouncedSync(user)
}

// Workouts returns all locally visible workouts for the current user.
func (t *Tracker) Workouts(ctx context.Context) ([]*models.Workout, error) {
	return t.db.QueryByOwner(ctx, t.user())
}

// WorkoutsByDateRange returns workouts with date in [start, end).
func (t *Tracker) WorkoutsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Workout, error) {
	return t.db.QueryByDateRange(ctx, t.user(), start, end)
}

// SetCurrentWorkout persists the ephemeral in-progress draft.
func (t *Tracker) SetCurrentWorkout(ctx context.Context, w *models.Workout) error {
	return t.db.SetCurrentWorkout(ctx, w)
}

// CurrentWorkout returns the draft, nil if none.
func (t *Tracker) CurrentWorkout(ctx context.Context) (*models.Workout, error) {
	return t.db.CurrentWorkout(ctx)
}

// ClearCurrentWorkout discards the draft.
func (t *Tracker) ClearCurrentWorkout(ctx context.Context) error {
	return t.db.ClearCurrentWorkout(ctx)
}

// ImportWorkouts bulk-loads a snapshot and schedules a sync for the
// imported records.
func (t *Tracker) ImportWorkouts(ctx context.Context, r io.Reader, mode models.ImportMode) (*portability.ImportResult, error) {
	result, err := t.port.Import(ctx, r, mode)
	if err != nil {
		return nil, err
	}
	if user := t.user(); user != "" {
		t.engine.DebouncedSync(user)
	}
	return result, nil
}

// ExportWorkouts writes the snapshot document to w.
func (t *Tracker) ExportWorkouts(ctx context.Context, w io.Writer) error {
	return t.port.Export(ctx, t.user(), w)
}

// ForceSync runs a full sync cycle immediately.
func (t *Tracker) ForceSync(ctx context.Context) (*syncer.Result, error) {
	user := t.user()
	if user == "" {
		return nil, errors.New("no user signed in")
	}
	return t.engine.ForceSyncNow(ctx, user)
}

// RefreshWorkouts runs a sync cycle if possible, then returns the current
// local view. Offline or busy engines are fine: the local view is always
// serveable.
func (t *Tracker) RefreshWorkouts(ctx context.Context) ([]*models.Workout, error) {
	if user := t.user(); user != "" && t.monitor.Online() {
		if _, err := t.engine.ForceSyncNow(ctx, user); err != nil &&
			!errors.Is(err, syncer.ErrSyncInProgress) && !errors.Is(err, syncer.ErrOffline) {
			t.log.Warn("refresh sync failed", "error", err)
		}
	}
	return t.Workouts(ctx)
}

// AddTemplate stores a template and schedules the remote upsert.
func (t *Tracker) AddTemplate(ctx context.Context, tpl *models.Template) (*models.Template, error) {
	user := t.user()
	tpl.UserID = user
	stored, err := t.db.AddTemplate(ctx, tpl)
	if err != nil {
		return nil, err
	}
	t.templatePushOrQueue(ctx, models.OpCreateTemplate, stored, user)
	return stored, nil
}

// UpdateTemplate overwrites a template and schedules the remote upsert.
func (t *Tracker) UpdateTemplate(ctx context.Context, tpl *models.Template) error {
	user := t.user()
	if err := t.db.UpdateTemplate(ctx, tpl); err != nil {
		return err
	}
	t.templatePushOrQueue(ctx, models.OpUpdateTemplate, tpl, user)
	return nil
}

// DeleteTemplate removes a template locally and schedules the remote
// delete.
func (t *Tracker) DeleteTemplate(ctx context.Context, id string) error {
	user := t.user()
	if err := t.db.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	if user == "" {
		return nil
	}
	if t.monitor.Online() && !t.hasQueuedOps(ctx, id) {
		if err := t.remote.DeleteTemplate(ctx, id, user); err == nil {
			return nil
		}
	}
	if err := t.queue.EnqueueDelete(ctx, models.OpDeleteTemplate, id, user); err != nil {
		t.log.Error("queueing template delete failed", "record", id, "error", err)
	}
	return nil
}

// Templates returns the user's templates plus global ones.
func (t *Tracker) Templates(ctx context.Context) ([]*models.Template, error) {
	return t.db.ListTemplates(ctx, t.user())
}

// StartFromTemplate instantiates a template into a fresh workout with all
// completion flags reset, stores it, and makes it the current draft.
func (t *Tracker) StartFromTemplate(ctx context.Context, templateID string, date time.Time) (*models.Workout, error) {
	tpl, err := t.db.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	w, err := t.AddWorkout(ctx, tpl.Instantiate(date))
	if err != nil {
		return nil, err
	}
	if err := t.db.SetCurrentWorkout(ctx, w); err != nil {
		t.log.Warn("setting current workout failed", "error", err)
	}
	return w, nil
}

func (t *Tracker) templatePushOrQueue(ctx context.Context, kind models.OpKind, tpl *models.Template, user string) {
	if user == "" {
		return
	}
	if t.monitor.Online() && !t.hasQueuedOps(ctx, tpl.ID) {
		if err := t.remote.UpsertTemplate(ctx, tpl, user); err == nil {
			return
		}
	}
	if err := t.queue.EnqueueTemplate(ctx, kind, tpl, user); err != nil {
		t.log.Error("queueing template mutation failed", "record", tpl.ID, "error", err)
	}
}
