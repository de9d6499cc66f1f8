package models

import "time"

// Template is a reusable exercise/set skeleton. It carries no date and no
// completion state; an empty UserID marks a global template.
type Template struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id,omitempty"`
	Name      string             `json:"name"`
	Notes     string             `json:"notes,omitempty"`
	Exercises []TemplateExercise `json:"exercises,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TemplateExercise mirrors Exercise without completion state.
type TemplateExercise struct {
	Name     string        `json:"name"`
	Category Category      `json:"category"`
	Notes    string        `json:"notes,omitempty"`
	Position int           `json:"position"`
	Sets     []TemplateSet `json:"sets,omitempty"`
}

// TemplateSet mirrors Set without the completed flag.
type TemplateSet struct {
	Reps        int      `json:"reps"`
	Weight      float64  `json:"weight"`
	DurationMin *int     `json:"duration_min,omitempty"`
	Incline     *float64 `json:"incline,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
	Position    int      `json:"position"`
}

// Instantiate builds a fresh workout from the template. All completed flags
// start false regardless of how the template was captured.
func (t *Template) Instantiate(date time.Time) *Workout {
	w := &Workout{
		Kind:   KindWorkout,
		Name:   t.Name,
		Date:   date,
		UserID: t.UserID,
	}
	for i, te := range t.Exercises {
		ex := Exercise{
			Name:     te.Name,
			Category: NormalizeCategory(te.Category),
			Notes:    te.Notes,
			Position: i,
		}
		for j, ts := range te.Sets {
			ex.Sets = append(ex.Sets, Set{
				Reps:        ts.Reps,
				Weight:      ts.Weight,
				DurationMin: ts.DurationMin,
				Incline:     ts.Incline,
				Speed:       ts.Speed,
				Completed:   false,
				Position:    j,
			})
		}
		w.Exercises = append(w.Exercises, ex)
	}
	w.Normalize()
	return w
}
