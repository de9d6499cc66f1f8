// Package remote defines the contract this core expects from the remote
// store. All calls are idempotent by identifier: a repeated create with the
// same id must not duplicate, which is what makes at-least-once queue replay
// safe. Client-generated ids are authoritative end-to-end.
package remote

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// Store is the remote backend as seen by the sync engine and queue.
type Store interface {
	// GetWorkouts returns the user's workouts with UpdatedAt after since.
	// A zero since returns everything.
	GetWorkouts(ctx context.Context, userID string, since time.Time) ([]*models.Workout, error)
	CreateWorkout(ctx context.Context, w *models.Workout, userID string) (*models.Workout, error)
	UpdateWorkout(ctx context.Context, id string, w *models.Workout, userID string) (*models.Workout, error)
	DeleteWorkout(ctx context.Context, id, userID string) error

	UpsertTemplate(ctx context.Context, t *models.Template, userID string) error
	DeleteTemplate(ctx context.Context, id, userID string) error
}
