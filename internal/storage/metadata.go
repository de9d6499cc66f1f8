package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// Metadata keys used across the process.
const (
	metaLastSync       = "last_sync"
	metaCurrentWorkout = "current_workout"
)

// GetMeta reads a metadata value. Missing keys return ("", false, nil).
func (db *DB) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.sql.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Op: "get metadata", Err: err}
	}
	return value, true, nil
}

// SetMeta upserts a metadata value.
func (db *DB) SetMeta(ctx context.Context, key, value string) error {
	_, err := db.sql.ExecContext(ctx,
		`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return &StorageError{Op: "set metadata", Err: err}
	}
	return nil
}

// DeleteMeta removes a metadata key. Missing keys are not an error.
func (db *DB) DeleteMeta(ctx context.Context, key string) error {
	if _, err := db.sql.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
		return &StorageError{Op: "delete metadata", Err: err}
	}
	return nil
}

// LastSync returns the persisted last-sync timestamp, zero if never synced.
func (db *DB) LastSync(ctx context.Context) (time.Time, error) {
	value, ok, err := db.GetMeta(ctx, metaLastSync)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		// A corrupt marker degrades to "never synced", which only costs a
		// full pull.
		return time.Time{}, nil
	}
	return t, nil
}

// SetLastSync persists the last-sync timestamp.
func (db *DB) SetLastSync(ctx context.Context, t time.Time) error {
	return db.SetMeta(ctx, metaLastSync, t.UTC().Format(time.RFC3339Nano))
}

// CurrentWorkout returns the ephemeral in-progress draft, nil if none.
func (db *DB) CurrentWorkout(ctx context.Context) (*models.Workout, error) {
	value, ok, err := db.GetMeta(ctx, metaCurrentWorkout)
	if err != nil || !ok {
		return nil, err
	}
	var w models.Workout
	if err := json.Unmarshal([]byte(value), &w); err != nil {
		return nil, &StorageError{Op: "parse current workout", Err: err}
	}
	return &w, nil
}

// SetCurrentWorkout persists the in-progress draft.
func (db *DB) SetCurrentWorkout(ctx context.Context, w *models.Workout) error {
	data, err := json.Marshal(w)
	if err != nil {
		return &StorageError{Op: "marshal current workout", Err: err}
	}
	return db.SetMeta(ctx, metaCurrentWorkout, string(data))
}

// ClearCurrentWorkout discards the in-progress draft.
func (db *DB) ClearCurrentWorkout(ctx context.Context) error {
	return db.DeleteMeta(ctx, metaCurrentWorkout)
}
