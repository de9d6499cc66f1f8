package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// AddWorkout writes the workout and cascades its exercises and sets in one
// transaction. Ids are assigned where absent. The stored record gets status
// "local" when ownerID is empty and "pending" otherwise.
func (db *DB) AddWorkout(ctx context.Context, w *models.Workout, ownerID string) (*models.Workout, error) {
	now := time.Now().UTC()
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if ownerID != "" {
		w.UserID = ownerID
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = now
	}
	if w.Date.IsZero() {
		w.Date = now
	}
	if w.SyncStatus == "" {
		if w.UserID == "" {
			w.SyncStatus = models.StatusLocal
		} else {
			w.SyncStatus = models.StatusPending
		}
	}
	w.Normalize()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		return insertWorkoutTx(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// insertWorkoutTx writes a workout row plus children. Child ids are assigned
// here so callers can pass bare records.
func insertWorkoutTx(ctx context.Context, tx *sql.Tx, w *models.Workout) error {
	activities, err := json.Marshal(w.Activities)
	if err != nil {
		return &StorageError{Op: "marshal activities", Err: err}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workouts (id, user_id, kind, name, date, duration_min, notes,
		 recovery_quality, activities, created_at, updated_at, sync_status, sync_error)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.UserID, w.Kind, w.Name, w.Date, w.DurationMin, w.Notes,
		w.RecoveryQuality, string(activities), w.CreatedAt, w.UpdatedAt,
		w.SyncStatus, w.SyncError)
	if err != nil {
		return &StorageError{Op: "insert workout", Err: err}
	}

	for i := range w.Exercises {
		e := &w.Exercises[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		e.WorkoutID = w.ID
		if e.Position == 0 {
			e.Position = i
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO exercises (id, workout_id, name, category, notes, position)
			 VALUES (?,?,?,?,?,?)`,
			e.ID, e.WorkoutID, e.Name, e.Category, e.Notes, e.Position)
		if err != nil {
			return &StorageError{Op: "insert exercise", Err: err}
		}
		for j := range e.Sets {
			s := &e.Sets[j]
			if s.ID == "" {
				s.ID = uuid.New().String()
			}
			s.ExerciseID = e.ID
			if s.Position == 0 {
				s.Position = j
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO sets (id, exercise_id, reps, weight, duration_min, incline, speed, completed, position)
				 VALUES (?,?,?,?,?,?,?,?,?)`,
				s.ID, s.ExerciseID, s.Reps, s.Weight, s.DurationMin, s.Incline, s.Speed, s.Completed, s.Position)
			if err != nil {
				return &StorageError{Op: "insert set", Err: err}
			}
		}
	}
	return nil
}

// GetWorkout retrieves a single workout with its exercises and sets
// reassembled in display order.
func (db *DB) GetWorkout(ctx context.Context, id string) (*models.Workout, error) {
	row := db.sql.QueryRowContext(ctx,
		`SELECT id, user_id, kind, name, date, duration_min, notes, recovery_quality,
		 activities, created_at, updated_at, sync_status, sync_error
		 FROM workouts WHERE id = ?`, id)

	w, err := scanWorkout(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "workout", ID: id}
	}
	if err != nil {
		return nil, &StorageError{Op: "query workout", Err: err}
	}
	if err := db.attachChildren(ctx, []*models.Workout{w}); err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateWorkout merges patch into the stored record. A non-nil child
// collection in the patch replaces the existing exercises and sets
// wholesale. A synced record drops back to pending so the change is pushed
// on the next cycle.
func (db *DB) UpdateWorkout(ctx context.Context, id string, patch models.WorkoutPatch) (*models.Workout, error) {
	w, err := db.GetWorkout(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(w)
	if w.SyncStatus == models.StatusSynced || w.SyncStatus == models.StatusError {
		w.SyncStatus = models.StatusPending
		w.SyncError = ""
	}

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		activities, err := json.Marshal(w.Activities)
		if err != nil {
			return &StorageError{Op: "marshal activities", Err: err}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE workouts SET name = ?, date = ?, duration_min = ?, notes = ?,
			 recovery_quality = ?, activities = ?, updated_at = ?, sync_status = ?, sync_error = ?
			 WHERE id = ?`,
			w.Name, w.Date, w.DurationMin, w.Notes, w.RecoveryQuality,
			string(activities), w.UpdatedAt, w.SyncStatus, w.SyncError, id)
		if err != nil {
			return &StorageError{Op: "update workout", Err: err}
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &NotFoundError{Kind: "workout", ID: id}
		}
		if patch.Exercises != nil {
			if err := replaceChildrenTx(ctx, tx, w); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ReplaceWorkout overwrites the stored record with w, children included.
// Used by the pull path when the remote copy wins a conflict; the id is
// preserved so no duplicate-id fork is created.
func (db *DB) ReplaceWorkout(ctx context.Context, w *models.Workout) error {
	w.Normalize()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteWorkoutTx(ctx, tx, w.ID); err != nil {
			if _, ok := err.(*NotFoundError); !ok {
				return err
			}
		}
		return insertWorkoutTx(ctx, tx, w)
	})
}

// DeleteWorkout removes the workout and, transactionally, every exercise and
// set referencing it. No orphaned children survive, even under interruption:
// the whole cascade commits or none of it does.
func (db *DB) DeleteWorkout(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return deleteWorkoutTx(ctx, tx, id)
	})
}

func deleteWorkoutTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM sets WHERE exercise_id IN (SELECT id FROM exercises WHERE workout_id = ?)`, id)
	if err != nil {
		return &StorageError{Op: "delete sets", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exercises WHERE workout_id = ?`, id); err != nil {
		return &StorageError{Op: "delete exercises", Err: err}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM workouts WHERE id = ?`, id)
	if err != nil {
		return &StorageError{Op: "delete workout", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "workout", ID: id}
	}
	return nil
}

// DeleteAllWorkouts wipes the workouts tree. Used by replace-mode imports
// and restore tooling.
func (db *DB) DeleteAllWorkouts(ctx context.Context) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{`DELETE FROM sets`, `DELETE FROM exercises`, `DELETE FROM workouts`} {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return &StorageError{Op: "wipe workouts", Err: err}
			}
		}
		return nil
	})
}

// QueryByOwner retrieves all workouts for an owner, newest first. Records
// written before sign-in (empty user id) are included so they surface in the
// UI and get claimed on the next sync.
func (db *DB) QueryByOwner(ctx context.Context, ownerID string) ([]*models.Workout, error) {
	return db.queryWorkouts(ctx,
		`SELECT id, user_id, kind, name, date, duration_min, notes, recovery_quality,
		 activities, created_at, updated_at, sync_status, sync_error
		 FROM workouts WHERE user_id = ? OR user_id = ''
		 ORDER BY date DESC`, ownerID)
}

// QueryByDateRange retrieves workouts with date in [start, end).
func (db *DB) QueryByDateRange(ctx context.Context, ownerID string, start, end time.Time) ([]*models.Workout, error) {
	return db.queryWorkouts(ctx,
		`SELECT id, user_id, kind, name, date, duration_min, notes, recovery_quality,
		 activities, created_at, updated_at, sync_status, sync_error
		 FROM workouts WHERE (user_id = ? OR user_id = '') AND date >= ? AND date < ?
		 ORDER BY date DESC`, ownerID, start, end)
}

// QueryByStatus retrieves workouts in a given sync status, oldest first so
// pushes happen in modification order.
func (db *DB) QueryByStatus(ctx context.Context, status models.SyncStatus) ([]*models.Workout, error) {
	return db.queryWorkouts(ctx,
		`SELECT id, user_id, kind, name, date, duration_min, notes, recovery_quality,
		 activities, created_at, updated_at, sync_status, sync_error
		 FROM workouts WHERE sync_status = ?
		 ORDER BY updated_at ASC`, status)
}

// QueryUnsynced retrieves every workout whose status is not "synced".
func (db *DB) QueryUnsynced(ctx context.Context) ([]*models.Workout, error) {
	return db.queryWorkouts(ctx,
		`SELECT id, user_id, kind, name, date, duration_min, notes, recovery_quality,
		 activities, created_at, updated_at, sync_status, sync_error
		 FROM workouts WHERE sync_status != ?
		 ORDER BY updated_at ASC`, models.StatusSynced)
}

func (db *DB) queryWorkouts(ctx context.Context, query string, args ...any) ([]*models.Workout, error) {
	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query workouts", Err: err}
	}
	defer rows.Close()

	var result []*models.Workout
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan workout", Err: err}
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate workouts", Err: err}
	}
	if err := db.attachChildren(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkout(row scanner) (*models.Workout, error) {
	var w models.Workout
	var activities string
	err := row.Scan(&w.ID, &w.UserID, &w.Kind, &w.Name, &w.Date, &w.DurationMin,
		&w.Notes, &w.RecoveryQuality, &activities, &w.CreatedAt, &w.UpdatedAt,
		&w.SyncStatus, &w.SyncError)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(activities), &w.Activities); err != nil {
		return nil, fmt.Errorf("parsing activities: %w", err)
	}
	return &w, nil
}

// attachChildren loads exercises and sets for the given workouts and
// reassembles them in display order. Relational reassembly happens here, at
// read time.
func (db *DB) attachChildren(ctx context.Context, workouts []*models.Workout) error {
	if len(workouts) == 0 {
		return nil
	}

	byID := make(map[string]*models.Workout, len(workouts))
	ids := make([]any, 0, len(workouts))
	for _, w := range workouts {
		byID[w.ID] = w
		ids = append(ids, w.ID)
	}

	query := `SELECT id, workout_id, name, category, notes, position
	 FROM exercises WHERE workout_id IN (` + placeholders(len(ids)) + `)
	 ORDER BY workout_id, position`
	rows, err := db.sql.QueryContext(ctx, query, ids...)
	if err != nil {
		return &StorageError{Op: "query exercises", Err: err}
	}
	defer rows.Close()

	exByID := make(map[string]*models.Exercise)
	exIDs := make([]any, 0)
	for rows.Next() {
		var e models.Exercise
		if err := rows.Scan(&e.ID, &e.WorkoutID, &e.Name, &e.Category, &e.Notes, &e.Position); err != nil {
			return &StorageError{Op: "scan exercise", Err: err}
		}
		w := byID[e.WorkoutID]
		w.Exercises = append(w.Exercises, e)
		exByID[e.ID] = &w.Exercises[len(w.Exercises)-1]
		exIDs = append(exIDs, e.ID)
	}
	if err := rows.Err(); err != nil {
		return &StorageError{Op: "iterate exercises", Err: err}
	}
	if len(exIDs) == 0 {
		return nil
	}

	query = `SELECT id, exercise_id, reps, weight, duration_min, incline, speed, completed, position
	 FROM sets WHERE exercise_id IN (` + placeholders(len(exIDs)) + `)
	 ORDER BY exercise_id, position`
	setRows, err := db.sql.QueryContext(ctx, query, exIDs...)
	if err != nil {
		return &StorageError{Op: "query sets", Err: err}
	}
	defer setRows.Close()

	for setRows.Next() {
		var s models.Set
		if err := setRows.Scan(&s.ID, &s.ExerciseID, &s.Reps, &s.Weight,
			&s.DurationMin, &s.Incline, &s.Speed, &s.Completed, &s.Position); err != nil {
			return &StorageError{Op: "scan set", Err: err}
		}
		if e, ok := exByID[s.ExerciseID]; ok {
			e.Sets = append(e.Sets, s)
		}
	}
	if err := setRows.Err(); err != nil {
		return &StorageError{Op: "iterate sets", Err: err}
	}
	return nil
}

// replaceChildrenTx swaps the workout's child collections for the ones on w.
// Replace-by-parent-id, not field-level diffing.
func replaceChildrenTx(ctx context.Context, tx *sql.Tx, w *models.Workout) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM sets WHERE exercise_id IN (SELECT id FROM exercises WHERE workout_id = ?)`, w.ID)
	if err != nil {
		return &StorageError{Op: "replace sets", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exercises WHERE workout_id = ?`, w.ID); err != nil {
		return &StorageError{Op: "replace exercises", Err: err}
	}

	for i := range w.Exercises {
		e := &w.Exercises[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		e.WorkoutID = w.ID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO exercises (id, workout_id, name, category, notes, position)
			 VALUES (?,?,?,?,?,?)`,
			e.ID, e.WorkoutID, e.Name, e.Category, e.Notes, e.Position)
		if err != nil {
			return &StorageError{Op: "insert exercise", Err: err}
		}
		for j := range e.Sets {
			s := &e.Sets[j]
			if s.ID == "" {
				s.ID = uuid.New().String()
			}
			s.ExerciseID = e.ID
			_, err = tx.ExecContext(ctx,
				`INSERT INTO sets (id, exercise_id, reps, weight, duration_min, incline, speed, completed, position)
				 VALUES (?,?,?,?,?,?,?,?,?)`,
				s.ID, s.ExerciseID, s.Reps, s.Weight, s.DurationMin, s.Incline, s.Speed, s.Completed, s.Position)
			if err != nil {
				return &StorageError{Op: "insert set", Err: err}
			}
		}
	}
	return nil
}

// SetSyncStatus updates a record's sync status in place. An empty errMsg
// clears any previous sync error.
func (db *DB) SetSyncStatus(ctx context.Context, id string, status models.SyncStatus, errMsg string) error {
	res, err := db.sql.ExecContext(ctx,
		`UPDATE workouts SET sync_status = ?, sync_error = ? WHERE id = ?`,
		status, errMsg, id)
	if err != nil {
		return &StorageError{Op: "set sync status", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "workout", ID: id}
	}
	return nil
}

// ClaimOwnerless assigns ownerID to records written before sign-in and marks
// them pending so they join the next push.
func (db *DB) ClaimOwnerless(ctx context.Context, ownerID string) (int64, error) {
	res, err := db.sql.ExecContext(ctx,
		`UPDATE workouts SET user_id = ?, sync_status = ? WHERE user_id = '' AND sync_status = ?`,
		ownerID, models.StatusPending, models.StatusLocal)
	if err != nil {
		return 0, &StorageError{Op: "claim ownerless", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountByStatus returns how many workouts sit in each sync status.
func (db *DB) CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT sync_status, COUNT(*) FROM workouts GROUP BY sync_status`)
	if err != nil {
		return nil, &StorageError{Op: "count by status", Err: err}
	}
	defer rows.Close()

	counts := make(map[models.SyncStatus]int)
	for rows.Next() {
		var status models.SyncStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, &StorageError{Op: "scan status count", Err: err}
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
