package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/claude/liftlog/internal/models"
)

func insertOp(t *testing.T, db *DB, kind models.OpKind, recordID string) *models.QueuedOperation {
	t.Helper()
	op := &models.QueuedOperation{
		Kind:     kind,
		RecordID: recordID,
		Payload:  json.RawMessage(`{}`),
		UserID:   "u1",
	}
	if err := db.InsertQueuedOp(context.Background(), op); err != nil {
		t.Fatalf("InsertQueuedOp: %v", err)
	}
	return op
}

func TestInsertQueuedOpAssignsSeq(t *testing.T) {
	db := newTestDB(t)

	first := insertOp(t, db, models.OpCreateWorkout, "w1")
	second := insertOp(t, db, models.OpUpdateWorkout, "w1")

	if first.ID == "" || second.ID == "" {
		t.Error("expected ids to be assigned")
	}
	if first.Status != models.OpPending {
		t.Errorf("status = %q, want pending", first.Status)
	}
	if second.Seq <= first.Seq {
		t.Errorf("seq not monotonic: %d then %d", first.Seq, second.Seq)
	}
	if first.EnqueuedAt.IsZero() {
		t.Error("EnqueuedAt should be populated")
	}
}

func TestListQueuedOpsOrderAndFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := insertOp(t, db, models.OpCreateWorkout, "w1")
	b := insertOp(t, db, models.OpDeleteWorkout, "w2")
	c := insertOp(t, db, models.OpUpdateWorkout, "w1")
	if err := db.UpdateQueuedOp(ctx, b.ID, models.OpFailed, 5, "gave up"); err != nil {
		t.Fatalf("UpdateQueuedOp: %v", err)
	}

	pending, err := db.ListQueuedOps(ctx, models.OpPending)
	if err != nil {
		t.Fatalf("ListQueuedOps: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != a.ID || pending[1].ID != c.ID {
		t.Fatalf("pending ops out of order: %+v", pending)
	}

	failed, err := db.ListQueuedOps(ctx, models.OpFailed)
	if err != nil {
		t.Fatalf("ListQueuedOps failed: %v", err)
	}
	if len(failed) != 1 || failed[0].LastError != "gave up" || failed[0].RetryCount != 5 {
		t.Fatalf("failed op = %+v, want the quarantined entry", failed)
	}

	// No statuses means both.
	all, err := db.ListQueuedOps(ctx)
	if err != nil {
		t.Fatalf("ListQueuedOps all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all ops = %d, want 3", len(all))
	}
}

func TestHasPendingOps(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if has, err := db.HasPendingOps(ctx, "w1"); err != nil || has {
		t.Fatalf("HasPendingOps empty = %v/%v, want false", has, err)
	}

	op := insertOp(t, db, models.OpCreateWorkout, "w1")
	if has, _ := db.HasPendingOps(ctx, "w1"); !has {
		t.Error("pending entry not reported")
	}
	if has, _ := db.HasPendingOps(ctx, "w2"); has {
		t.Error("reported entries for an unrelated record")
	}

	// Quarantined entries still count: they may be retried and replayed.
	if err := db.UpdateQueuedOp(ctx, op.ID, models.OpFailed, 5, "boom"); err != nil {
		t.Fatalf("UpdateQueuedOp: %v", err)
	}
	if has, _ := db.HasPendingOps(ctx, "w1"); !has {
		t.Error("quarantined entry not reported")
	}

	if err := db.DeleteQueuedOp(ctx, op.ID); err != nil {
		t.Fatalf("DeleteQueuedOp: %v", err)
	}
	if has, _ := db.HasPendingOps(ctx, "w1"); has {
		t.Error("deleted entry still reported")
	}
}

func TestDeleteQueuedOp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	op := insertOp(t, db, models.OpCreateWorkout, "w1")
	if err := db.DeleteQueuedOp(ctx, op.ID); err != nil {
		t.Fatalf("DeleteQueuedOp: %v", err)
	}
	if err := db.DeleteQueuedOp(ctx, op.ID); !IsNotFound(err) {
		t.Fatalf("second delete err = %v, want NotFoundError", err)
	}
}

func TestResetFailedOps(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := insertOp(t, db, models.OpCreateWorkout, "w1")
	b := insertOp(t, db, models.OpCreateWorkout, "w2")
	for _, op := range []*models.QueuedOperation{a, b} {
		if err := db.UpdateQueuedOp(ctx, op.ID, models.OpFailed, 5, "boom"); err != nil {
			t.Fatalf("UpdateQueuedOp: %v", err)
		}
	}

	n, err := db.ResetFailedOps(ctx, a.ID)
	if err != nil {
		t.Fatalf("ResetFailedOps one: %v", err)
	}
	if n != 1 {
		t.Fatalf("reset %d, want 1", n)
	}
	pending, _ := db.ListQueuedOps(ctx, models.OpPending)
	if len(pending) != 1 || pending[0].RetryCount != 0 || pending[0].LastError != "" {
		t.Fatalf("reset op = %+v, want pending with fresh retry budget", pending)
	}

	n, err = db.ResetFailedOps(ctx, "")
	if err != nil {
		t.Fatalf("ResetFailedOps all: %v", err)
	}
	if n != 1 {
		t.Fatalf("reset %d remaining, want 1", n)
	}
}

func TestClearFailedOps(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	keep := insertOp(t, db, models.OpCreateWorkout, "w1")
	gone := insertOp(t, db, models.OpCreateWorkout, "w2")
	if err := db.UpdateQueuedOp(ctx, gone.ID, models.OpFailed, 5, "boom"); err != nil {
		t.Fatalf("UpdateQueuedOp: %v", err)
	}

	n, err := db.ClearFailedOps(ctx)
	if err != nil {
		t.Fatalf("ClearFailedOps: %v", err)
	}
	if n != 1 {
		t.Fatalf("cleared %d, want 1", n)
	}
	pending, failed, err := db.CountQueuedOps(ctx)
	if err != nil {
		t.Fatalf("CountQueuedOps: %v", err)
	}
	if pending != 1 || failed != 0 {
		t.Fatalf("counts = %d/%d, want 1 pending 0 failed", pending, failed)
	}
	if ops, _ := db.ListQueuedOps(ctx, models.OpPending); ops[0].ID != keep.ID {
		t.Error("pending op disturbed by clear")
	}
}
