package storage

import (
	"context"
	"os"
)

// Stats holds per-entity counts plus an estimated on-disk size, used for
// quota warnings.
type Stats struct {
	Workouts  int   `json:"workouts"`
	Exercises int   `json:"exercises"`
	Sets      int   `json:"sets"`
	Templates int   `json:"templates"`
	QueuedOps int   `json:"queued_ops"`
	SizeBytes int64 `json:"size_bytes"`
}

// GetStats counts rows per entity and estimates the database file size.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM workouts`, &stats.Workouts},
		{`SELECT COUNT(*) FROM exercises`, &stats.Exercises},
		{`SELECT COUNT(*) FROM sets`, &stats.Sets},
		{`SELECT COUNT(*) FROM templates`, &stats.Templates},
		{`SELECT COUNT(*) FROM queue_ops`, &stats.QueuedOps},
	}
	for _, c := range counts {
		if err := db.sql.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, &StorageError{Op: "count rows", Err: err}
		}
	}
	if db.path != "" {
		if fi, err := os.Stat(db.path); err == nil {
			stats.SizeBytes = fi.Size()
		}
	}
	return stats, nil
}

// OrphanCounts reports children whose parent row no longer exists. Under
// normal operation the transactional cascade keeps these at zero; nonzero
// counts indicate an interrupted write from a previous data format.
type OrphanCounts struct {
	Exercises int `json:"exercises"`
	Sets      int `json:"sets"`
}

// CountOrphans scans for exercises without a surviving workout and sets
// without a surviving exercise.
func (db *DB) CountOrphans(ctx context.Context) (*OrphanCounts, error) {
	var oc OrphanCounts
	err := db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exercises e LEFT JOIN workouts w ON w.id = e.workout_id WHERE w.id IS NULL`,
	).Scan(&oc.Exercises)
	if err != nil {
		return nil, &StorageError{Op: "count orphan exercises", Err: err}
	}
	err = db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sets s LEFT JOIN exercises e ON e.id = s.exercise_id WHERE e.id IS NULL`,
	).Scan(&oc.Sets)
	if err != nil {
		return nil, &StorageError{Op: "count orphan sets", Err: err}
	}
	return &oc, nil
}

// DeleteOrphans removes orphaned children bottom-up (sets first, then
// exercises, then sets orphaned by the exercise pass).
func (db *DB) DeleteOrphans(ctx context.Context) (int64, error) {
	var total int64
	queries := []string{
		`DELETE FROM sets WHERE exercise_id NOT IN (SELECT id FROM exercises)`,
		`DELETE FROM exercises WHERE workout_id NOT IN (SELECT id FROM workouts)`,
		`DELETE FROM sets WHERE exercise_id NOT IN (SELECT id FROM exercises)`,
	}
	for _, q := range queries {
		res, err := db.sql.ExecContext(ctx, q)
		if err != nil {
			return total, &StorageError{Op: "delete orphans", Err: err}
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
