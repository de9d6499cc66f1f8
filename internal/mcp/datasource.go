package mcp

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/recovery"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/syncer"
)

// DataSource abstracts the data layer for MCP tools. Both Local (direct
// store access) and HTTPClient (remote via the daemon's REST API) satisfy
// this interface.
type DataSource interface {
	QueryWorkouts(ctx context.Context, start, end time.Time) ([]*models.Workout, error)
	GetWorkout(ctx context.Context, id string) (*models.Workout, error)
	ListTemplates(ctx context.Context) ([]*models.Template, error)
	SyncStatus(ctx context.Context) (*syncer.Status, error)
	ForceSync(ctx context.Context) (*syncer.Result, error)
	QueueOps(ctx context.Context) ([]*models.QueuedOperation, error)
	Diagnose(ctx context.Context) (*recovery.Report, error)
	Stats(ctx context.Context) (*storage.Stats, error)
}
