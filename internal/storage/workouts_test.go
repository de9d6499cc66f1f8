package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddWorkoutAssignsDefaults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	w, err := db.AddWorkout(ctx, &models.Workout{Name: "push day"}, "")
	if err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}
	if w.ID == "" {
		t.Error("expected an id to be assigned")
	}
	if w.Kind != models.KindWorkout {
		t.Errorf("kind = %q, want %q", w.Kind, models.KindWorkout)
	}
	if w.SyncStatus != models.StatusLocal {
		t.Errorf("status without owner = %q, want %q", w.SyncStatus, models.StatusLocal)
	}
	if w.CreatedAt.IsZero() || w.UpdatedAt.IsZero() || w.Date.IsZero() {
		t.Error("timestamps should be populated")
	}

	owned, err := db.AddWorkout(ctx, &models.Workout{Name: "pull day"}, "u1")
	if err != nil {
		t.Fatalf("AddWorkout owned: %v", err)
	}
	if owned.SyncStatus != models.StatusPending {
		t.Errorf("status with owner = %q, want %q", owned.SyncStatus, models.StatusPending)
	}
	if owned.UserID != "u1" {
		t.Errorf("user = %q, want u1", owned.UserID)
	}
}

func TestAddWorkoutNormalizesInput(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	dur := -10
	w := &models.Workout{
		Name:        "junk in",
		DurationMin: -5,
		Exercises: []models.Exercise{{
			Name:     "bench",
			Category: "biceps of steel",
			Sets: []models.Set{{
				Reps:        -3,
				Weight:      math.NaN(),
				DurationMin: &dur,
			}},
		}},
	}
	stored, err := db.AddWorkout(ctx, w, "u1")
	if err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}

	got, err := db.GetWorkout(ctx, stored.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if got.DurationMin != 0 {
		t.Errorf("duration = %d, want 0", got.DurationMin)
	}
	ex := got.Exercises[0]
	if ex.Category != models.CategoryOther {
		t.Errorf("category = %q, want other", ex.Category)
	}
	set := ex.Sets[0]
	if set.Reps != 0 || set.Weight != 0 {
		t.Errorf("set = %+v, want clamped to zero", set)
	}
	if set.DurationMin == nil || *set.DurationMin != 0 {
		t.Errorf("set duration = %v, want 0", set.DurationMin)
	}
}

func TestGetWorkoutNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetWorkout(context.Background(), "nope")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestGetWorkoutReassemblesChildren(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	w := &models.Workout{
		Name: "legs",
		Exercises: []models.Exercise{
			{Name: "squat", Category: models.CategoryLegs, Position: 0, Sets: []models.Set{
				{Reps: 5, Weight: 100, Position: 0},
				{Reps: 5, Weight: 110, Position: 1},
			}},
			{Name: "lunge", Category: models.CategoryLegs, Position: 1},
		},
	}
	stored, err := db.AddWorkout(ctx, w, "u1")
	if err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}

	got, err := db.GetWorkout(ctx, stored.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if len(got.Exercises) != 2 {
		t.Fatalf("exercises = %d, want 2", len(got.Exercises))
	}
	if got.Exercises[0].Name != "squat" || got.Exercises[1].Name != "lunge" {
		t.Errorf("exercise order wrong: %q, %q", got.Exercises[0].Name, got.Exercises[1].Name)
	}
	if len(got.Exercises[0].Sets) != 2 {
		t.Fatalf("sets = %d, want 2", len(got.Exercises[0].Sets))
	}
	if got.Exercises[0].Sets[1].Weight != 110 {
		t.Errorf("second set weight = %v, want 110", got.Exercises[0].Sets[1].Weight)
	}
}

func TestUpdateWorkoutStatusTransitions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	w, err := db.AddWorkout(ctx, &models.Workout{Name: "before"}, "u1")
	if err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}
	if err := db.SetSyncStatus(ctx, w.ID, models.StatusSynced, ""); err != nil {
		t.Fatalf("SetSyncStatus: %v", err)
	}

	name := "after"
	updated, err := db.UpdateWorkout(ctx, w.ID, models.WorkoutPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateWorkout: %v", err)
	}
	if updated.Name != "after" {
		t.Errorf("name = %q, want after", updated.Name)
	}
	if updated.SyncStatus != models.StatusPending {
		t.Errorf("status = %q, want pending after editing a synced record", updated.SyncStatus)
	}
	if !updated.UpdatedAt.After(w.CreatedAt) {
		t.Error("UpdatedAt should be bumped")
	}
}

func TestUpdateWorkoutReplacesChildren(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	w, err := db.AddWorkout(ctx, &models.Workout{
		Name: "day one",
		Exercises: []models.Exercise{
			{Name: "bench", Category: models.CategoryChest, Sets: []models.Set{{Reps: 8, Weight: 60}}},
			{Name: "row", Category: models.CategoryBack},
		},
	}, "u1")
	if err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}

	replacement := []models.Exercise{
		{Name: "deadlift", Category: models.CategoryBack, Sets: []models.Set{{Reps: 3, Weight: 140}}},
	}
	updated, err := db.UpdateWorkout(ctx, w.ID, models.WorkoutPatch{Exercises: &replacement})
	if err != nil {
		t.Fatalf("UpdateWorkout: %v", err)
	}
	if len(updated.Exercises) != 1 || updated.Exercises[0].Name != "deadlift" {
		t.Fatalf("exercises not replaced: %+v", updated.Exercises)
	}

	// Old children must be gone from the store, not just the returned value.
	got, err := db.GetWorkout(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if len(got.Exercises) != 1 {
		t.Fatalf("stored exercises = %d, want 1", len(got.Exercises))
	}
	orphans, err := db.CountOrphans(ctx)
	if err != nil {
		t.Fatalf("CountOrphans: %v", err)
	}
	if orphans.Exercises+orphans.Sets != 0 {
		t.Errorf("orphans after replace = %+v, want none", orphans)
	}
}

func TestUpdateWorkoutNotFound(t *testing.T) {
	db := newTestDB(t)
	name := "x"
	_, err := db.UpdateWorkout(context.Background(), "missing", models.WorkoutPatch{Name: &name})
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestDeleteWorkoutCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	w, err := db.AddWorkout(ctx, &models.Workout{
		Name: "full",
		Exercises: []models.Exercise{
			{Name: "press", Category: models.CategoryShoulders, Sets: []models.Set{{Reps: 10, Weight: 40}}},
		},
	}, "u1")
	if err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}

	if err := db.DeleteWorkout(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWorkout: %v", err)
	}
	if _, err := db.GetWorkout(ctx, w.ID); !IsNotFound(err) {
		t.Fatalf("workout still present: %v", err)
	}
	orphans, err := db.CountOrphans(ctx)
	if err != nil {
		t.Fatalf("CountOrphans: %v", err)
	}
	if orphans.Exercises+orphans.Sets != 0 {
		t.Errorf("orphans after delete = %+v, want none", orphans)
	}

	if err := db.DeleteWorkout(ctx, w.ID); !IsNotFound(err) {
		t.Fatalf("second delete err = %v, want NotFoundError", err)
	}
}

func TestReplaceWorkoutKeepsID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	w, err := db.AddWorkout(ctx, &models.Workout{Name: "local copy"}, "u1")
	if err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}

	incoming := *w
	incoming.Name = "remote copy"
	incoming.SyncStatus = models.StatusSynced
	incoming.Exercises = []models.Exercise{{Name: "curl", Category: models.CategoryArms}}
	if err := db.ReplaceWorkout(ctx, &incoming); err != nil {
		t.Fatalf("ReplaceWorkout: %v", err)
	}

	got, err := db.GetWorkout(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if got.Name != "remote copy" || got.SyncStatus != models.StatusSynced {
		t.Errorf("got %q/%q, want remote copy/synced", got.Name, got.SyncStatus)
	}
	if len(got.Exercises) != 1 {
		t.Errorf("exercises = %d, want 1", len(got.Exercises))
	}

	// Replacing an id never seen before behaves as an insert.
	fresh := models.Workout{ID: "brand-new", Name: "pulled", Date: time.Now(),
		CreatedAt: time.Now(), UpdatedAt: time.Now(), SyncStatus: models.StatusSynced}
	if err := db.ReplaceWorkout(ctx, &fresh); err != nil {
		t.Fatalf("ReplaceWorkout insert: %v", err)
	}
	if _, err := db.GetWorkout(ctx, "brand-new"); err != nil {
		t.Fatalf("GetWorkout after insert-replace: %v", err)
	}
}

func TestQueryByOwnerIncludesOwnerless(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustAdd(t, db, &models.Workout{Name: "mine"}, "u1")
	mustAdd(t, db, &models.Workout{Name: "pre-signin"}, "")
	mustAdd(t, db, &models.Workout{Name: "theirs"}, "u2")

	got, err := db.QueryByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("QueryByOwner: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d workouts, want 2 (owned + ownerless)", len(got))
	}
	for _, w := range got {
		if w.UserID == "u2" {
			t.Errorf("another user's record leaked: %+v", w)
		}
	}
}

func TestQueryByDateRangeBoundaries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	day := func(d int) time.Time {
		return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC)
	}
	for d := 1; d <= 4; d++ {
		mustAdd(t, db, &models.Workout{Name: "w", Date: day(d)}, "u1")
	}

	// [start, end): day 1 in, day 3 out.
	got, err := db.QueryByDateRange(ctx, "u1", day(1), day(3))
	if err != nil {
		t.Fatalf("QueryByDateRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d workouts, want 2", len(got))
	}
	for _, w := range got {
		if !w.Date.Before(day(3)) {
			t.Errorf("workout at %v should be excluded by the end bound", w.Date)
		}
	}
}

func TestQueryUnsyncedOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	older := mustAdd(t, db, &models.Workout{Name: "older",
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, "u1")
	newer := mustAdd(t, db, &models.Workout{Name: "newer",
		UpdatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}, "u1")
	synced := mustAdd(t, db, &models.Workout{Name: "done"}, "u1")
	if err := db.SetSyncStatus(ctx, synced.ID, models.StatusSynced, ""); err != nil {
		t.Fatalf("SetSyncStatus: %v", err)
	}

	got, err := db.QueryUnsynced(ctx)
	if err != nil {
		t.Fatalf("QueryUnsynced: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d unsynced, want 2", len(got))
	}
	if got[0].ID != older.ID || got[1].ID != newer.ID {
		t.Errorf("unsynced not in modification order: %q then %q", got[0].Name, got[1].Name)
	}
}

func TestSetSyncStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	w := mustAdd(t, db, &models.Workout{Name: "w"}, "u1")
	if err := db.SetSyncStatus(ctx, w.ID, models.StatusError, "remote said no"); err != nil {
		t.Fatalf("SetSyncStatus: %v", err)
	}
	got, err := db.GetWorkout(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if got.SyncStatus != models.StatusError || got.SyncError != "remote said no" {
		t.Errorf("got %q/%q, want error state with message", got.SyncStatus, got.SyncError)
	}

	if err := db.SetSyncStatus(ctx, w.ID, models.StatusSynced, ""); err != nil {
		t.Fatalf("SetSyncStatus clear: %v", err)
	}
	got, _ = db.GetWorkout(ctx, w.ID)
	if got.SyncError != "" {
		t.Errorf("sync error not cleared: %q", got.SyncError)
	}

	if err := db.SetSyncStatus(ctx, "missing", models.StatusSynced, ""); !IsNotFound(err) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestClaimOwnerless(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	pre := mustAdd(t, db, &models.Workout{Name: "pre-signin"}, "")
	owned := mustAdd(t, db, &models.Workout{Name: "owned"}, "u1")

	n, err := db.ClaimOwnerless(ctx, "u1")
	if err != nil {
		t.Fatalf("ClaimOwnerless: %v", err)
	}
	if n != 1 {
		t.Fatalf("claimed %d, want 1", n)
	}

	got, err := db.GetWorkout(ctx, pre.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if got.UserID != "u1" || got.SyncStatus != models.StatusPending {
		t.Errorf("claimed record = %q/%q, want u1/pending", got.UserID, got.SyncStatus)
	}
	if got, _ := db.GetWorkout(ctx, owned.ID); got.SyncStatus != models.StatusPending {
		t.Errorf("owned record disturbed: %q", got.SyncStatus)
	}
}

func TestCountByStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustAdd(t, db, &models.Workout{}, "")
	mustAdd(t, db, &models.Workout{}, "u1")
	w := mustAdd(t, db, &models.Workout{}, "u1")
	if err := db.SetSyncStatus(ctx, w.ID, models.StatusSynced, ""); err != nil {
		t.Fatalf("SetSyncStatus: %v", err)
	}

	counts, err := db.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	want := map[models.SyncStatus]int{
		models.StatusLocal:   1,
		models.StatusPending: 1,
		models.StatusSynced:  1,
	}
	for status, n := range want {
		if counts[status] != n {
			t.Errorf("counts[%s] = %d, want %d", status, counts[status], n)
		}
	}
}

func mustAdd(t *testing.T, db *DB, w *models.Workout, owner string) *models.Workout {
	t.Helper()
	stored, err := db.AddWorkout(context.Background(), w, owner)
	if err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}
	return stored
}
