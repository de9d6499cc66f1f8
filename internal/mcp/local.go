package mcp

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/recovery"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/syncer"
	"github.com/claude/liftlog/internal/tracker"
)

// Local implements DataSource against an in-process stack. Used when the
// MCP binary owns the database directly instead of talking to a daemon.
type Local struct {
	db    *storage.DB
	tr    *tracker.Tracker
	eng   *syncer.Engine
	recov *recovery.Service
}

var _ DataSource = (*Local)(nil)

// NewLocal wraps an in-process stack as a DataSource.
func NewLocal(db *storage.DB, tr *tracker.Tracker, eng *syncer.Engine, recov *recovery.Service) *Local {
	return &Local{db: db, tr: tr, eng: eng, recov: recov}
}

func (l *Local) QueryWorkouts(ctx context.Context, start, end time.Time) ([]*models.Workout, error) {
	return l.db.QueryByDateRange(ctx, l.tr.UserID(), start, end)
}

func (l *Local) GetWorkout(ctx context.Context, id string) (*models.Workout, error) {
	return l.db.GetWorkout(ctx, id)
}

func (l *Local) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	return l.db.ListTemplates(ctx, l.tr.UserID())
}

func (l *Local) SyncStatus(ctx context.Context) (*syncer.Status, error) {
	return l.eng.GetSyncStatus(ctx)
}

func (l *Local) ForceSync(ctx context.Context) (*syncer.Result, error) {
	return l.tr.ForceSync(ctx)
}

func (l *Local) QueueOps(ctx context.Context) ([]*models.QueuedOperation, error) {
	return l.db.ListQueuedOps(ctx, models.OpPending, models.OpFailed)
}

func (l *Local) Diagnose(ctx context.Context) (*recovery.Report, error) {
	return l.recov.Diagnose(ctx)
}

func (l *Local) Stats(ctx context.Context) (*storage.Stats, error) {
	return l.db.GetStats(ctx)
}
