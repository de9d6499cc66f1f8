package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// Memory is an in-memory Store. It enforces the same upsert-by-id contract
// the production backend provides, which makes it the reference remote for
// tests and for running the daemon without a backend.
type Memory struct {
	mu        sync.Mutex
	workouts  map[string]*models.Workout
	templates map[string]*models.Template

	// Fail, when set, makes every call return its error. Tests use it to
	// simulate outages.
	Fail error
	// FailOn makes calls touching a specific record id fail.
	FailOn map[string]error

	calls int
}

// NewMemory creates an empty in-memory remote store.
func NewMemory() *Memory {
	return &Memory{
		workouts:  make(map[string]*models.Workout),
		templates: make(map[string]*models.Template),
		FailOn:    make(map[string]error),
	}
}

var _ Store = (*Memory)(nil)

// Calls reports how many remote operations were attempted.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// SetFail toggles the global failure injection.
func (m *Memory) SetFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fail = err
}

// Workout returns a copy of the stored workout, nil if absent.
func (m *Memory) Workout(id string) *models.Workout {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workouts[id]
	if !ok {
		return nil
	}
	cp := *w
	return &cp
}

// Len reports how many workouts the remote holds.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workouts)
}

// Seed stores a workout directly, bypassing failure injection.
func (m *Memory) Seed(w *models.Workout) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.workouts[w.ID] = &cp
}

func (m *Memory) check(id string) error {
	m.calls++
	if m.Fail != nil {
		return m.Fail
	}
	if err, ok := m.FailOn[id]; ok {
		return err
	}
	return nil
}

// GetWorkouts returns workouts for the user updated after since.
func (m *Memory) GetWorkouts(ctx context.Context, userID string, since time.Time) ([]*models.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(""); err != nil {
		return nil, err
	}
	var out []*models.Workout
	for _, w := range m.workouts {
		if w.UserID != userID {
			continue
		}
		if !since.IsZero() && !w.UpdatedAt.After(since) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	return out, nil
}

// CreateWorkout upserts by id: repeating a create for the same id replaces
// the stored content instead of forking a duplicate.
func (m *Memory) CreateWorkout(ctx context.Context, w *models.Workout, userID string) (*models.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(w.ID); err != nil {
		return nil, err
	}
	cp := *w
	cp.UserID = userID
	cp.SyncStatus = models.StatusSynced
	m.workouts[cp.ID] = &cp
	out := cp
	return &out, nil
}

// UpdateWorkout replaces the stored content. Updating an unseen id upserts;
// out-of-order replay of create/update for the same record still converges.
func (m *Memory) UpdateWorkout(ctx context.Context, id string, w *models.Workout, userID string) (*models.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(id); err != nil {
		return nil, err
	}
	cp := *w
	cp.ID = id
	cp.UserID = userID
	cp.SyncStatus = models.StatusSynced
	m.workouts[id] = &cp
	out := cp
	return &out, nil
}

// DeleteWorkout removes the workout; deleting an unseen id succeeds.
func (m *Memory) DeleteWorkout(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(id); err != nil {
		return err
	}
	delete(m.workouts, id)
	return nil
}

// UpsertTemplate stores the template by id.
func (m *Memory) UpsertTemplate(ctx context.Context, t *models.Template, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(t.ID); err != nil {
		return err
	}
	cp := *t
	cp.UserID = userID
	m.templates[cp.ID] = &cp
	return nil
}

// DeleteTemplate removes the template.
func (m *Memory) DeleteTemplate(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(id); err != nil {
		return err
	}
	delete(m.templates, id)
	return nil
}

// ErrUnavailable is a canned outage error for tests and dev tooling.
var ErrUnavailable = errors.New("remote store unavailable")
