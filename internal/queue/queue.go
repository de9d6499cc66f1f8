// Package queue guarantees that mutations attempted while offline, or that
// failed during an online attempt, are not lost and are eventually replayed
// against the remote store.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/remote"
	"github.com/claude/liftlog/internal/storage"
)

// DefaultMaxRetries is the replay ceiling before an entry is quarantined.
const DefaultMaxRetries = 5

// QueueExhaustedError reports an operation that exceeded its retry ceiling
// and now requires manual intervention.
type QueueExhaustedError struct {
	OpID     string
	RecordID string
	Retries  int
}

func (e *QueueExhaustedError) Error() string {
	return fmt.Sprintf("operation %s for record %s failed %d times and was quarantined",
		e.OpID, e.RecordID, e.Retries)
}

// Queue is the persisted, ordered log of deferred mutations.
type Queue struct {
	db         *storage.DB
	remote     remote.Store
	log        *slog.Logger
	maxRetries int
}

// New creates a Queue replaying against rs. maxRetries <= 0 gets the
// default ceiling.
func New(db *storage.DB, rs remote.Store, log *slog.Logger, maxRetries int) *Queue {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Queue{db: db, remote: rs, log: log, maxRetries: maxRetries}
}

// EnqueueWorkout persists a deferred workout mutation. For deletes the
// payload may be nil.
func (q *Queue) EnqueueWorkout(ctx context.Context, kind models.OpKind, w *models.Workout, userID string) error {
	var payload json.RawMessage
	if w != nil {
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("marshaling workout payload: %w", err)
		}
		payload = data
	}
	recordID := ""
	if w != nil {
		recordID = w.ID
	}
	return q.enqueue(ctx, kind, recordID, payload, userID)
}

// EnqueueDelete persists a deferred delete by record id.
func (q *Queue) EnqueueDelete(ctx context.Context, kind models.OpKind, recordID, userID string) error {
	return q.enqueue(ctx, kind, recordID, nil, userID)
}

// EnqueueTemplate persists a deferred template mutation.
func (q *Queue) EnqueueTemplate(ctx context.Context, kind models.OpKind, t *models.Template, userID string) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling template payload: %w", err)
	}
	return q.enqueue(ctx, kind, t.ID, data, userID)
}

// HasPending reports whether the record still has unapplied queue entries,
// pending or quarantined. While any exist, a direct remote write for that
// record must go through the queue instead: the eventual replay would land
// after the direct write and clobber it with older content.
func (q *Queue) HasPending(ctx context.Context, recordID string) (bool, error) {
	return q.db.HasPendingOps(ctx, recordID)
}

func (q *Queue) enqueue(ctx context.Context, kind models.OpKind, recordID string, payload json.RawMessage, userID string) error {
	op := &models.QueuedOperation{
		Kind:     kind,
		RecordID: recordID,
		Payload:  payload,
		UserID:   userID,
		Status:   models.OpPending,
	}
	if err := q.db.InsertQueuedOp(ctx, op); err != nil {
		return err
	}
	q.log.Debug("queued operation", "kind", kind, "record", recordID, "seq", op.Seq)
	return nil
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Applied     int
	Failed      int
	Quarantined int
	Skipped     int
}

// Drain replays pending operations in enqueue order. Operations for the
// same record are strictly FIFO: when one fails, later entries for that
// record are skipped this pass so an update is never applied before its
// create. A failure on one record never blocks the rest of the queue.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	var res DrainResult

	ops, err := q.db.ListQueuedOps(ctx, models.OpPending)
	if err != nil {
		return res, err
	}

	blocked := make(map[string]bool)
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if op.RecordID != "" && blocked[op.RecordID] {
			res.Skipped++
			continue
		}

		if err := q.apply(ctx, op); err != nil {
			res.Failed++
			blocked[op.RecordID] = true
			op.RetryCount++
			status := models.OpPending
			if op.RetryCount >= q.maxRetries {
				status = models.OpFailed
				res.Quarantined++
				q.log.Warn("operation quarantined",
					"op", op.ID, "kind", op.Kind, "record", op.RecordID,
					"retries", op.RetryCount, "error", err)
			} else {
				q.log.Debug("operation replay failed",
					"op", op.ID, "record", op.RecordID, "retry", op.RetryCount, "error", err)
			}
			if uerr := q.db.UpdateQueuedOp(ctx, op.ID, status, op.RetryCount, err.Error()); uerr != nil {
				return res, uerr
			}
			continue
		}

		// Remove only after the remote acknowledged, never optimistically.
		if err := q.db.DeleteQueuedOp(ctx, op.ID); err != nil {
			return res, err
		}
		res.Applied++
	}

	if res.Applied > 0 || res.Failed > 0 {
		q.log.Info("queue drained",
			"applied", res.Applied, "failed", res.Failed,
			"quarantined", res.Quarantined, "skipped", res.Skipped)
	}
	return res, nil
}

func (q *Queue) apply(ctx context.Context, op *models.QueuedOperation) error {
	switch op.Kind {
	case models.OpCreateWorkout, models.OpUpdateWorkout:
		var w models.Workout
		if err := json.Unmarshal(op.Payload, &w); err != nil {
			return fmt.Errorf("parsing workout payload: %w", err)
		}
		var err error
		if op.Kind == models.OpCreateWorkout {
			_, err = q.remote.CreateWorkout(ctx, &w, op.UserID)
		} else {
			_, err = q.remote.UpdateWorkout(ctx, w.ID, &w, op.UserID)
		}
		if err != nil {
			return err
		}
		// Best effort: the record may have been deleted locally since.
		if serr := q.db.SetSyncStatus(ctx, w.ID, models.StatusSynced, ""); serr != nil && !storage.IsNotFound(serr) {
			return serr
		}
		return nil

	case models.OpDeleteWorkout:
		return q.remote.DeleteWorkout(ctx, op.RecordID, op.UserID)

	case models.OpCreateTemplate, models.OpUpdateTemplate:
		var t models.Template
		if err := json.Unmarshal(op.Payload, &t); err != nil {
			return fmt.Errorf("parsing template payload: %w", err)
		}
		return q.remote.UpsertTemplate(ctx, &t, op.UserID)

	case models.OpDeleteTemplate:
		return q.remote.DeleteTemplate(ctx, op.RecordID, op.UserID)

	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// RetryOperation resets one quarantined entry back to pending.
func (q *Queue) RetryOperation(ctx context.Context, id string) error {
	n, err := q.db.ResetFailedOps(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return &storage.NotFoundError{Kind: "failed queue op", ID: id}
	}
	return nil
}

// RetryAll resets every quarantined entry back to pending.
func (q *Queue) RetryAll(ctx context.Context) (int64, error) {
	return q.db.ResetFailedOps(ctx, "")
}

// ClearFailed discards all quarantined entries. Destructive; the caller is
// expected to have confirmed with the user.
func (q *Queue) ClearFailed(ctx context.Context) (int64, error) {
	return q.db.ClearFailedOps(ctx)
}

// Stats reports pending and failed counts for display.
func (q *Queue) Stats(ctx context.Context) (pending, failed int, err error) {
	return q.db.CountQueuedOps(ctx)
}
