// Package portability serializes the record store to a portable JSON
// snapshot and loads snapshots back, in merge or replace mode.
package portability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// Service exports and imports snapshots.
type Service struct {
	db  *storage.DB
	log *slog.Logger
}

// New creates a portability Service.
func New(db *storage.DB, log *slog.Logger) *Service {
	return &Service{db: db, log: log}
}

// Export writes the full snapshot document for one owner to w.
func (s *Service) Export(ctx context.Context, ownerID string, w io.Writer) error {
	snap, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// Snapshot builds the export document in memory.
func (s *Service) Snapshot(ctx context.Context, ownerID string) (*models.Snapshot, error) {
	workouts, err := s.db.QueryByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	templates, err := s.db.ListTemplates(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	snap := &models.Snapshot{
		Version:    models.SnapshotVersion,
		ExportDate: time.Now().UTC(),
	}
	for _, w := range workouts {
		snap.Workouts = append(snap.Workouts, *w)
		snap.Stats.Exercises += len(w.Exercises)
		for _, e := range w.Exercises {
			snap.Stats.Sets += len(e.Sets)
		}
	}
	for _, t := range templates {
		snap.Templates = append(snap.Templates, *t)
	}
	snap.Stats.Workouts = len(snap.Workouts)
	snap.Stats.Templates = len(snap.Templates)
	return snap, nil
}

// ImportResult summarizes an import.
type ImportResult struct {
	Workouts  int `json:"workouts"`
	Templates int `json:"templates"`
	Skipped   int `json:"skipped"`
}

// Import loads a snapshot from r. Merge mode skips entries whose ids exist
// locally; replace mode wipes workouts and templates first, then loads the
// snapshot wholesale.
func (s *Service) Import(ctx context.Context, r io.Reader, mode models.ImportMode) (*ImportResult, error) {
	var snap models.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if snap.Version > models.SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", snap.Version, models.SnapshotVersion)
	}
	return s.ImportSnapshot(ctx, &snap, mode)
}

// ImportSnapshot loads an already-parsed snapshot.
func (s *Service) ImportSnapshot(ctx context.Context, snap *models.Snapshot, mode models.ImportMode) (*ImportResult, error) {
	if mode != models.ImportMerge && mode != models.ImportReplace {
		return nil, fmt.Errorf("unknown import mode %q", mode)
	}

	if mode == models.ImportReplace {
		if err := s.db.DeleteAllWorkouts(ctx); err != nil {
			return nil, err
		}
		if err := s.db.DeleteAllTemplates(ctx); err != nil {
			return nil, err
		}
	}

	result := &ImportResult{}
	for i := range snap.Workouts {
		w := snap.Workouts[i]
		if mode == models.ImportMerge {
			if _, err := s.db.GetWorkout(ctx, w.ID); err == nil {
				result.Skipped++
				continue
			} else if !storage.IsNotFound(err) {
				return nil, err
			}
		}
		// Imported records re-enter the sync pipeline from scratch.
		if w.SyncStatus != models.StatusSynced {
			w.SyncStatus = ""
		}
		w.SyncError = ""
		if _, err := s.db.AddWorkout(ctx, &w, w.UserID); err != nil {
			return nil, fmt.Errorf("importing workout %s: %w", w.ID, err)
		}
		result.Workouts++
	}

	for i := range snap.Templates {
		t := snap.Templates[i]
		if mode == models.ImportMerge {
			if _, err := s.db.GetTemplate(ctx, t.ID); err == nil {
				result.Skipped++
				continue
			} else if !storage.IsNotFound(err) {
				return nil, err
			}
		}
		if _, err := s.db.AddTemplate(ctx, &t); err != nil {
			return nil, fmt.Errorf("importing template %s: %w", t.ID, err)
		}
		result.Templates++
	}

	s.log.Info("snapshot imported", "mode", mode,
		"workouts", result.Workouts, "templates", result.Templates, "skipped", result.Skipped)
	return result, nil
}
