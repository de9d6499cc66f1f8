package recovery

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/queue"
	"github.com/claude/liftlog/internal/remote"
	"github.com/claude/liftlog/internal/storage"
)

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.db")

	db, err := storage.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	w, err := db.AddWorkout(ctx, &models.Workout{Name: "precious"}, "u1")
	if err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}

	q := queue.New(db, remote.NewMemory(), log, 0)
	svc := New(db, q, nil, nil, log, 0)

	backupPath := filepath.Join(dir, "backups", "snap.db")
	info, err := svc.CreateBackup(ctx, backupPath)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if info.SizeBytes <= 0 || info.Checksum == "" {
		t.Fatalf("info = %+v, want size and checksum", info)
	}
	sidecar, err := os.ReadFile(backupPath + ".sha256")
	if err != nil {
		t.Fatalf("reading checksum sidecar: %v", err)
	}
	if strings.TrimSpace(string(sidecar)) != info.Checksum {
		t.Error("sidecar does not match the reported checksum")
	}

	// Lose the data, then restore.
	if err := db.DeleteWorkout(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWorkout: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := RestoreBackup(backupPath, dbPath); err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}

	restored, err := storage.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer restored.Close()
	got, err := restored.GetWorkout(ctx, w.ID)
	if err != nil {
		t.Fatalf("workout missing after restore: %v", err)
	}
	if got.Name != "precious" {
		t.Errorf("name = %q, want precious", got.Name)
	}
}

func TestRestoreRejectsChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.db")

	db, err := storage.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer db.Close()

	q := queue.New(db, remote.NewMemory(), log, 0)
	svc := New(db, q, nil, nil, log, 0)

	backupPath := filepath.Join(dir, "snap.db")
	if _, err := svc.CreateBackup(ctx, backupPath); err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	// Corrupt the backup after the checksum was written.
	f, err := os.OpenFile(backupPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("tampered"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	err = RestoreBackup(backupPath, filepath.Join(dir, "target.db"))
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("err = %v, want checksum mismatch", err)
	}
}

func TestCreateBackupRequiresPath(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	svc := New(db, queue.New(db, remote.NewMemory(), log, 0), nil, nil, log, 0)

	if _, err := svc.CreateBackup(context.Background(), "  "); err == nil {
		t.Fatal("expected an error for an empty output path")
	}
}

func TestBackupOverwritesStaleFile(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	db, err := storage.Open(ctx, filepath.Join(dir, "live.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	svc := New(db, queue.New(db, remote.NewMemory(), log, 0), nil, nil, log, 0)

	backupPath := filepath.Join(dir, "snap.db")
	if err := os.WriteFile(backupPath, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := svc.CreateBackup(ctx, backupPath)
	if err != nil {
		t.Fatalf("CreateBackup over stale file: %v", err)
	}
	if info.SizeBytes <= int64(len("stale")) {
		t.Errorf("backup size = %d, want a real database snapshot", info.SizeBytes)
	}
}
