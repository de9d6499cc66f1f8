package models

import "time"

// WorkoutPatch is a partial update. Nil fields are left untouched; a non-nil
// Exercises replaces the workout's child collection wholesale (replace by
// parent id, not field-level diffing).
type WorkoutPatch struct {
	Name            *string     `json:"name,omitempty"`
	Date            *time.Time  `json:"date,omitempty"`
	DurationMin     *int        `json:"duration_min,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
	RecoveryQuality *int        `json:"recovery_quality,omitempty"`
	Activities      *[]string   `json:"activities,omitempty"`
	Exercises       *[]Exercise `json:"exercises,omitempty"`
}

// Apply merges the patch into w and bumps UpdatedAt.
func (p WorkoutPatch) Apply(w *Workout) {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.Date != nil {
		w.Date = *p.Date
	}
	if p.DurationMin != nil {
		w.DurationMin = *p.DurationMin
	}
	if p.Notes != nil {
		w.Notes = *p.Notes
	}
	if p.RecoveryQuality != nil {
		w.RecoveryQuality = *p.RecoveryQuality
	}
	if p.Activities != nil {
		w.Activities = *p.Activities
	}
	if p.Exercises != nil {
		w.Exercises = *p.Exercises
	}
	w.UpdatedAt = time.Now().UTC()
	w.Normalize()
}
