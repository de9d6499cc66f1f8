package recovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackupInfo describes a created backup file.
type BackupInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes"`
}

// CreateBackup writes a consistent snapshot of the live database to outPath
// (VACUUM INTO, so in-flight transactions never tear the copy) and a
// .sha256 sidecar next to it. Run this before risky operations.
func (s *Service) CreateBackup(ctx context.Context, outPath string) (*BackupInfo, error) {
	if strings.TrimSpace(outPath) == "" {
		return nil, fmt.Errorf("backup output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	// VACUUM INTO refuses to overwrite.
	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("clearing stale backup: %w", err)
	}

	if _, err := s.db.SQL().ExecContext(ctx, `VACUUM INTO ?`, outPath); err != nil {
		return nil, fmt.Errorf("snapshotting database: %w", err)
	}

	checksum, err := fileSHA256(outPath)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(outPath+".sha256", []byte(checksum+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("writing checksum file: %w", err)
	}
	fi, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}

	s.log.Info("backup created", "path", outPath, "bytes", fi.Size())
	return &BackupInfo{
		Path:      outPath,
		Checksum:  checksum,
		CreatedAt: fi.ModTime(),
		SizeBytes: fi.Size(),
	}, nil
}

// RestoreBackup replaces the database file at dbPath with the backup,
// wholesale (non-merging). The store must be closed and reopened by the
// caller; restoring under a live handle is not supported.
func RestoreBackup(backupPath, dbPath string) error {
	if strings.TrimSpace(backupPath) == "" || strings.TrimSpace(dbPath) == "" {
		return fmt.Errorf("backup path and db path are required")
	}
	if expected, err := os.ReadFile(backupPath + ".sha256"); err == nil {
		actual, err := fileSHA256(backupPath)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(expected)) != actual {
			return fmt.Errorf("backup checksum mismatch")
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating db directory: %w", err)
	}
	return copyFile(backupPath, dbPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying backup: %w", err)
	}
	return out.Sync()
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
