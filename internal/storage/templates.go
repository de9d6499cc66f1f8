package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// AddTemplate stores a reusable workout skeleton. Exercises are persisted as
// a JSON column: templates have no completion state and no per-child sync
// tracking, so relational rows buy nothing here.
func (db *DB) AddTemplate(ctx context.Context, t *models.Template) (*models.Template, error) {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	exercises, err := json.Marshal(t.Exercises)
	if err != nil {
		return nil, &StorageError{Op: "marshal template", Err: err}
	}
	_, err = db.sql.ExecContext(ctx,
		`INSERT INTO templates (id, user_id, name, notes, exercises, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.UserID, t.Name, t.Notes, string(exercises), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, &StorageError{Op: "insert template", Err: err}
	}
	return t, nil
}

// GetTemplate retrieves a template by id.
func (db *DB) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	row := db.sql.QueryRowContext(ctx,
		`SELECT id, user_id, name, notes, exercises, created_at, updated_at
		 FROM templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "template", ID: id}
	}
	if err != nil {
		return nil, &StorageError{Op: "query template", Err: err}
	}
	return t, nil
}

// ListTemplates returns the owner's templates plus global ones.
func (db *DB) ListTemplates(ctx context.Context, ownerID string) ([]*models.Template, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, user_id, name, notes, exercises, created_at, updated_at
		 FROM templates WHERE user_id = ? OR user_id = ''
		 ORDER BY name`, ownerID)
	if err != nil {
		return nil, &StorageError{Op: "query templates", Err: err}
	}
	defer rows.Close()

	var result []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan template", Err: err}
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// UpdateTemplate overwrites the stored template content.
func (db *DB) UpdateTemplate(ctx context.Context, t *models.Template) error {
	t.UpdatedAt = time.Now().UTC()
	exercises, err := json.Marshal(t.Exercises)
	if err != nil {
		return &StorageError{Op: "marshal template", Err: err}
	}
	res, err := db.sql.ExecContext(ctx,
		`UPDATE templates SET name = ?, notes = ?, exercises = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Notes, string(exercises), t.UpdatedAt, t.ID)
	if err != nil {
		return &StorageError{Op: "update template", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "template", ID: t.ID}
	}
	return nil
}

// DeleteTemplate removes a template. Template lifecycle is independent of
// workouts; nothing cascades.
func (db *DB) DeleteTemplate(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return &StorageError{Op: "delete template", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "template", ID: id}
	}
	return nil
}

// DeleteAllTemplates wipes the templates table. Used by replace-mode imports.
func (db *DB) DeleteAllTemplates(ctx context.Context) error {
	if _, err := db.sql.ExecContext(ctx, `DELETE FROM templates`); err != nil {
		return &StorageError{Op: "wipe templates", Err: err}
	}
	return nil
}

func scanTemplate(row scanner) (*models.Template, error) {
	var t models.Template
	var exercises string
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Notes, &exercises, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(exercises), &t.Exercises); err != nil {
		return nil, err
	}
	return &t, nil
}
