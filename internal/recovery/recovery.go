// Package recovery inspects the record store and mutation queue for
// inconsistency and performs bounded automatic repair, with a manual
// backup/restore escape hatch for everything else.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/queue"
	"github.com/claude/liftlog/internal/storage"
)

// Severity tags a diagnostic finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityInfo     Severity = "info"
)

// Issue is one diagnostic finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Count    int      `json:"count,omitempty"`
}

// Report is the result of a read-only diagnostic scan.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Issues      []Issue   `json:"issues"`
}

// Highest returns the most severe level present, or "" for a clean report.
func (r *Report) Highest() Severity {
	order := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityInfo}
	for _, s := range order {
		for _, issue := range r.Issues {
			if issue.Severity == s {
				return s
			}
		}
	}
	return ""
}

// Syncer is the slice of the sync engine recovery needs.
type Syncer interface {
	DebouncedSync(userID string)
}

// ConnStatus reports effective connectivity.
type ConnStatus interface {
	Online() bool
}

// Service runs diagnostics and bounded repair.
type Service struct {
	db         *storage.DB
	queue      *queue.Queue
	syncer     Syncer
	conn       ConnStatus
	log        *slog.Logger
	quotaBytes int64
}

// New creates a recovery Service. quotaBytes <= 0 disables the storage
// pressure check.
func New(db *storage.DB, q *queue.Queue, s Syncer, conn ConnStatus, log *slog.Logger, quotaBytes int64) *Service {
	return &Service{db: db, queue: q, syncer: s, conn: conn, log: log, quotaBytes: quotaBytes}
}

// Diagnose runs a read-only scan and returns a severity-tagged report.
func (s *Service) Diagnose(ctx context.Context) (*Report, error) {
	report := &Report{GeneratedAt: time.Now().UTC()}

	stats, err := s.db.GetStats(ctx)
	if err != nil {
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityCritical,
			Code:     "store_unavailable",
			Message:  fmt.Sprintf("record store unavailable: %v", err),
		})
		return report, nil
	}

	pending, failed, err := s.queue.Stats(ctx)
	if err != nil {
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityHigh,
			Code:     "queue_unreadable",
			Message:  fmt.Sprintf("mutation queue unreadable: %v", err),
		})
	} else {
		if failed > 0 {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityHigh,
				Code:     "queue_failed_ops",
				Message:  "quarantined queue operations need manual retry or clear",
				Count:    failed,
			})
		}
		if pending > 0 {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityInfo,
				Code:     "queue_pending_ops",
				Message:  "operations waiting for the next drain",
				Count:    pending,
			})
		}
	}

	counts, err := s.db.CountByStatus(ctx)
	if err == nil {
		if n := counts[models.StatusError]; n > 0 {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityHigh,
				Code:     "records_in_error",
				Message:  "records stuck in sync error state",
				Count:    n,
			})
		}
		if n := counts[models.StatusPending] + counts[models.StatusLocal]; n > 0 {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityInfo,
				Code:     "records_pending",
				Message:  "records awaiting sync",
				Count:    n,
			})
		}
	}

	orphans, err := s.db.CountOrphans(ctx)
	if err == nil && orphans.Exercises+orphans.Sets > 0 {
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityMedium,
			Code:     "orphaned_children",
			Message:  "child records without a surviving parent",
			Count:    orphans.Exercises + orphans.Sets,
		})
	}

	if s.quotaBytes > 0 && stats.SizeBytes > s.quotaBytes*8/10 {
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityMedium,
			Code:     "storage_pressure",
			Message:  fmt.Sprintf("database size %d bytes is above 80%% of the %d byte quota", stats.SizeBytes, s.quotaBytes),
		})
	}

	return report, nil
}

// StepResult records one remediation step's outcome.
type StepResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// AttemptAutoRecovery runs bounded, ordered remediation: retry failed queue
// operations, reset error records for re-sync, delete orphaned children,
// then trigger a sync cycle if online. Each step reports independently; a
// failing step does not abort the rest.
func (s *Service) AttemptAutoRecovery(ctx context.Context, userID string) []StepResult {
	var steps []StepResult

	n, err := s.queue.RetryAll(ctx)
	steps = append(steps, stepResult("retry_failed_operations", err, fmt.Sprintf("%d operations reset", n)))

	reset, err := s.resetErrorRecords(ctx)
	steps = append(steps, stepResult("reset_error_records", err, fmt.Sprintf("%d records reset to pending", reset)))

	deleted, err := s.db.DeleteOrphans(ctx)
	steps = append(steps, stepResult("delete_orphans", err, fmt.Sprintf("%d orphaned rows deleted", deleted)))

	if s.conn.Online() && userID != "" {
		s.syncer.DebouncedSync(userID)
		steps = append(steps, StepResult{Name: "trigger_sync", OK: true, Detail: "sync cycle scheduled"})
	} else {
		steps = append(steps, StepResult{Name: "trigger_sync", OK: true, Detail: "skipped: offline or no user"})
	}

	for _, st := range steps {
		s.log.Info("recovery step", "name", st.Name, "ok", st.OK, "detail", st.Detail)
	}
	return steps
}

func (s *Service) resetErrorRecords(ctx context.Context) (int, error) {
	records, err := s.db.QueryByStatus(ctx, models.StatusError)
	if err != nil {
		return 0, err
	}
	reset := 0
	for _, w := range records {
		if err := s.db.SetSyncStatus(ctx, w.ID, models.StatusPending, ""); err != nil {
			return reset, err
		}
		reset++
	}
	return reset, nil
}

func stepResult(name string, err error, detail string) StepResult {
	if err != nil {
		return StepResult{Name: name, OK: false, Detail: err.Error()}
	}
	return StepResult{Name: name, OK: true, Detail: detail}
}
