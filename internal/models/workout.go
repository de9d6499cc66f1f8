package models

import (
	"math"
	"time"
)

// SyncStatus tracks a record's relationship to the remote store.
type SyncStatus string

const (
	// StatusLocal means the record was written before a user signed in and
	// has never been considered for sync.
	StatusLocal SyncStatus = "local"
	// StatusPending means the record has local changes awaiting push.
	StatusPending SyncStatus = "pending"
	// StatusSynced means the remote store acknowledged the current content.
	StatusSynced SyncStatus = "synced"
	// StatusError means the last push or pull of this record failed.
	StatusError SyncStatus = "error"
)

// WorkoutKind distinguishes a training session from a logged rest day.
type WorkoutKind string

const (
	KindWorkout WorkoutKind = "workout"
	KindRestDay WorkoutKind = "rest_day"
)

// Category buckets exercises for display and stats.
type Category string

const (
	CategoryChest     Category = "chest"
	CategoryBack      Category = "back"
	CategoryShoulders Category = "shoulders"
	CategoryLegs      Category = "legs"
	CategoryArms      Category = "arms"
	CategoryCore      Category = "core"
	CategoryCardio    Category = "cardio"
	CategoryOther     Category = "other"
)

var validCategories = map[Category]bool{
	CategoryChest: true, CategoryBack: true, CategoryShoulders: true,
	CategoryLegs: true, CategoryArms: true, CategoryCore: true,
	CategoryCardio: true, CategoryOther: true,
}

// NormalizeCategory maps unknown category values to "other".
func NormalizeCategory(c Category) Category {
	if validCategories[c] {
		return c
	}
	return CategoryOther
}

// Workout is a dated activity record. Kind "workout" carries exercises;
// kind "rest_day" carries recovery quality and activity tags instead.
type Workout struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id,omitempty"`
	Kind            WorkoutKind `json:"kind"`
	Name            string      `json:"name,omitempty"`
	Date            time.Time   `json:"date"`
	DurationMin     int         `json:"duration_min,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	RecoveryQuality int         `json:"recovery_quality,omitempty"`
	Activities      []string    `json:"activities,omitempty"`
	Exercises       []Exercise  `json:"exercises,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	SyncStatus      SyncStatus  `json:"sync_status"`
	SyncError       string      `json:"sync_error,omitempty"`
}

// Exercise belongs to exactly one workout. Deleting the workout cascades.
type Exercise struct {
	ID        string   `json:"id"`
	WorkoutID string   `json:"workout_id"`
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Notes     string   `json:"notes,omitempty"`
	Position  int      `json:"position"`
	Sets      []Set    `json:"sets,omitempty"`
}

// Set belongs to exactly one exercise. The cardio fields are populated only
// for cardio/treadmill exercises and stay nil otherwise.
type Set struct {
	ID          string   `json:"id"`
	ExerciseID  string   `json:"exercise_id"`
	Reps        int      `json:"reps"`
	Weight      float64  `json:"weight"`
	DurationMin *int     `json:"duration_min,omitempty"`
	Incline     *float64 `json:"incline,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
	Completed   bool     `json:"completed"`
	Position    int      `json:"position"`
}

// Normalize clamps numeric fields into their valid ranges and defaults the
// category. Malformed numbers are coerced to zero rather than rejected so a
// bad input never blocks a local save.
func (w *Workout) Normalize() {
	if w.Kind == "" {
		w.Kind = KindWorkout
	}
	w.DurationMin = clampInt(w.DurationMin)
	if w.Kind == KindRestDay {
		if w.RecoveryQuality < 1 {
			w.RecoveryQuality = 1
		}
		if w.RecoveryQuality > 5 {
			w.RecoveryQuality = 5
		}
	}
	for i := range w.Exercises {
		e := &w.Exercises[i]
		e.Category = NormalizeCategory(e.Category)
		e.Position = clampInt(e.Position)
		for j := range e.Sets {
			e.Sets[j].Normalize()
		}
	}
}

// Normalize clamps a set's numeric fields to domain-valid ranges.
func (s *Set) Normalize() {
	s.Reps = clampInt(s.Reps)
	s.Weight = clampFloat(s.Weight)
	if s.DurationMin != nil {
		v := clampInt(*s.DurationMin)
		s.DurationMin = &v
	}
	if s.Incline != nil {
		v := clampFloat(*s.Incline)
		s.Incline = &v
	}
	if s.Speed != nil {
		v := clampFloat(*s.Speed)
		s.Speed = &v
	}
	s.Position = clampInt(s.Position)
}

func clampInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clampFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
