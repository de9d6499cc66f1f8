package storage

import (
	"context"
	"testing"

	"github.com/claude/liftlog/internal/models"
)

func TestGetStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustAdd(t, db, &models.Workout{
		Exercises: []models.Exercise{
			{Name: "bench", Category: models.CategoryChest, Sets: []models.Set{{Reps: 8}, {Reps: 8}}},
		},
	}, "u1")
	if _, err := db.AddTemplate(ctx, &models.Template{Name: "t"}); err != nil {
		t.Fatalf("AddTemplate: %v", err)
	}
	insertOp(t, db, models.OpCreateWorkout, "w1")

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Workouts != 1 || stats.Exercises != 1 || stats.Sets != 2 ||
		stats.Templates != 1 || stats.QueuedOps != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.SizeBytes <= 0 {
		t.Errorf("size = %d, want a positive on-disk size", stats.SizeBytes)
	}
}

// seedOrphans plants child rows without parents. The write path cannot
// produce these, so the referential checks are lifted for the insert.
func seedOrphans(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	sqldb := db.SQL()
	if _, err := sqldb.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatalf("pragma off: %v", err)
	}
	defer func() {
		if _, err := sqldb.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			t.Fatalf("pragma on: %v", err)
		}
	}()
	if _, err := sqldb.ExecContext(ctx,
		`INSERT INTO exercises (id, workout_id, name) VALUES ('orphan-ex', 'gone', 'ghost')`); err != nil {
		t.Fatalf("insert orphan exercise: %v", err)
	}
	if _, err := sqldb.ExecContext(ctx,
		`INSERT INTO sets (id, exercise_id) VALUES ('orphan-set', 'also-gone')`); err != nil {
		t.Fatalf("insert orphan set: %v", err)
	}
}

func TestCountAndDeleteOrphans(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	intact := mustAdd(t, db, &models.Workout{
		Exercises: []models.Exercise{
			{Name: "squat", Category: models.CategoryLegs, Sets: []models.Set{{Reps: 5}}},
		},
	}, "u1")
	seedOrphans(t, db)

	oc, err := db.CountOrphans(ctx)
	if err != nil {
		t.Fatalf("CountOrphans: %v", err)
	}
	if oc.Exercises != 1 || oc.Sets != 1 {
		t.Fatalf("orphans = %+v, want 1 exercise and 1 set", oc)
	}

	n, err := db.DeleteOrphans(ctx)
	if err != nil {
		t.Fatalf("DeleteOrphans: %v", err)
	}
	// The orphaned set plus the orphaned exercise; cleaning the exercise
	// cannot orphan further sets here.
	if n != 2 {
		t.Errorf("deleted %d rows, want 2", n)
	}
	oc, _ = db.CountOrphans(ctx)
	if oc.Exercises+oc.Sets != 0 {
		t.Errorf("orphans remain after cleanup: %+v", oc)
	}

	// Healthy data is untouched.
	got, err := db.GetWorkout(ctx, intact.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if len(got.Exercises) != 1 || len(got.Exercises[0].Sets) != 1 {
		t.Errorf("intact workout damaged: %+v", got)
	}
}
