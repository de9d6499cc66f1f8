package storage

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// InsertQueuedOp persists a deferred mutation with status pending. The
// sequence number fixing replay order is assigned by the database.
func (db *DB) InsertQueuedOp(ctx context.Context, op *models.QueuedOperation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now().UTC()
	}
	if op.Status == "" {
		op.Status = models.OpPending
	}
	res, err := db.sql.ExecContext(ctx,
		`INSERT INTO queue_ops (id, kind, record_id, payload, user_id, status, retry_count, last_error, enqueued_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		op.ID, op.Kind, op.RecordID, string(op.Payload), op.UserID,
		op.Status, op.RetryCount, op.LastError, op.EnqueuedAt)
	if err != nil {
		return &StorageError{Op: "insert queue op", Err: err}
	}
	if seq, err := res.LastInsertId(); err == nil {
		op.Seq = seq
	}
	return nil
}

// ListQueuedOps returns operations in the given statuses, in enqueue order.
func (db *DB) ListQueuedOps(ctx context.Context, statuses ...models.OpStatus) ([]*models.QueuedOperation, error) {
	if len(statuses) == 0 {
		statuses = []models.OpStatus{models.OpPending, models.OpFailed}
	}
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}
	rows, err := db.sql.QueryContext(ctx,
		`SELECT seq, id, kind, record_id, payload, user_id, status, retry_count, last_error, enqueued_at
		 FROM queue_ops WHERE status IN (`+placeholders(len(args))+`)
		 ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, &StorageError{Op: "query queue ops", Err: err}
	}
	defer rows.Close()

	var result []*models.QueuedOperation
	for rows.Next() {
		var op models.QueuedOperation
		var payload string
		if err := rows.Scan(&op.Seq, &op.ID, &op.Kind, &op.RecordID, &payload,
			&op.UserID, &op.Status, &op.RetryCount, &op.LastError, &op.EnqueuedAt); err != nil {
			return nil, &StorageError{Op: "scan queue op", Err: err}
		}
		op.Payload = []byte(payload)
		result = append(result, &op)
	}
	return result, rows.Err()
}

// HasPendingOps reports whether the record has queue entries that have not
// been applied yet, pending or quarantined.
func (db *DB) HasPendingOps(ctx context.Context, recordID string) (bool, error) {
	var n int
	err := db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_ops WHERE record_id = ? AND status IN (?, ?)`,
		recordID, models.OpPending, models.OpFailed).Scan(&n)
	if err != nil {
		return false, &StorageError{Op: "count record queue ops", Err: err}
	}
	return n > 0, nil
}

// DeleteQueuedOp removes an entry. Only called after a confirmed remote
// acknowledgment, never optimistically.
func (db *DB) DeleteQueuedOp(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM queue_ops WHERE id = ?`, id)
	if err != nil {
		return &StorageError{Op: "delete queue op", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "queue op", ID: id}
	}
	return nil
}

// UpdateQueuedOp records a replay failure or a status change.
func (db *DB) UpdateQueuedOp(ctx context.Context, id string, status models.OpStatus, retryCount int, lastError string) error {
	res, err := db.sql.ExecContext(ctx,
		`UPDATE queue_ops SET status = ?, retry_count = ?, last_error = ? WHERE id = ?`,
		status, retryCount, lastError, id)
	if err != nil {
		return &StorageError{Op: "update queue op", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "queue op", ID: id}
	}
	return nil
}

// ResetFailedOps moves failed entries back to pending with a fresh retry
// budget. With a non-empty id only that entry is reset.
func (db *DB) ResetFailedOps(ctx context.Context, id string) (int64, error) {
	query := `UPDATE queue_ops SET status = ?, retry_count = 0, last_error = '' WHERE status = ?`
	args := []any{models.OpPending, models.OpFailed}
	if id != "" {
		query += ` AND id = ?`
		args = append(args, id)
	}
	res, err := db.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &StorageError{Op: "reset failed ops", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClearFailedOps discards all quarantined entries. Destructive; callers
// confirm upstream.
func (db *DB) ClearFailedOps(ctx context.Context) (int64, error) {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM queue_ops WHERE status = ?`, models.OpFailed)
	if err != nil {
		return 0, &StorageError{Op: "clear failed ops", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountQueuedOps returns pending and failed entry counts.
func (db *DB) CountQueuedOps(ctx context.Context) (pending, failed int, err error) {
	rows, err := db.sql.QueryContext(ctx, `SELECT status, COUNT(*) FROM queue_ops GROUP BY status`)
	if err != nil {
		return 0, 0, &StorageError{Op: "count queue ops", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var status models.OpStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return 0, 0, &StorageError{Op: "scan queue count", Err: err}
		}
		switch status {
		case models.OpPending:
			pending = n
		case models.OpFailed:
			failed = n
		}
	}
	return pending, failed, rows.Err()
}
