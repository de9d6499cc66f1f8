package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetWorkouts = mcp.NewTool("get_workouts",
	mcp.WithDescription("Query workouts and rest days in a date range. Returns full records including exercises, sets, and per-record sync status."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("kind", mcp.Description("Filter by record kind"), mcp.Enum("workout", "rest_day")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Fetch one workout by id, with its exercises and sets."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id")),
)

var toolGetTemplates = mcp.NewTool("get_templates",
	mcp.WithDescription("List workout templates (reusable blueprints without completion state)."),
)

var toolGetSyncStatus = mcp.NewTool("get_sync_status",
	mcp.WithDescription("Report connectivity, last successful sync, and counts of pending, errored, and queued records."),
)

var toolForceSync = mcp.NewTool("force_sync",
	mcp.WithDescription("Run a full sync cycle now: drain the offline queue, push unsynced records, pull remote changes. Fails when offline or no user is signed in."),
)

var toolGetQueue = mcp.NewTool("get_queue",
	mcp.WithDescription("List queued offline mutations in replay order, including retry counts and last errors for quarantined entries."),
)

var toolDiagnose = mcp.NewTool("diagnose",
	mcp.WithDescription("Run read-only health checks on local storage and the sync pipeline. Returns severity-tagged issues with suggested remediations."),
)

var toolGetStats = mcp.NewTool("get_stats",
	mcp.WithDescription("Row counts per entity plus estimated database file size."),
)

// --- Tool handlers ---

func (h *handlers) getWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	workouts, err := h.ds.QueryWorkouts(ctx, start, end)
	if err != nil {
		h.log.Error("mcp get_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	if kind := req.GetString("kind", ""); kind != "" {
		filtered := workouts[:0]
		for _, w := range workouts {
			if string(w.Kind) == kind {
				filtered = append(filtered, w)
			}
		}
		workouts = filtered
	}

	result, err := mcp.NewToolResultJSON(workouts)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	workout, err := h.ds.GetWorkout(ctx, id)
	if err != nil {
		return mcp.NewToolResultError("lookup failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(workout)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := h.ds.ListTemplates(ctx)
	if err != nil {
		h.log.Error("mcp get_templates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(templates)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSyncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := h.ds.SyncStatus(ctx)
	if err != nil {
		h.log.Error("mcp get_sync_status", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(status)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) forceSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	syncResult, err := h.ds.ForceSync(ctx)
	if err != nil {
		return mcp.NewToolResultError("sync failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(syncResult)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getQueue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ops, err := h.ds.QueueOps(ctx)
	if err != nil {
		h.log.Error("mcp get_queue", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	// Payloads can be large; summarize to kinds and errors.
	type opSummary struct {
		ID         string    `json:"id"`
		Seq        int64     `json:"seq"`
		Kind       string    `json:"kind"`
		RecordID   string    `json:"record_id"`
		Status     string    `json:"status"`
		RetryCount int       `json:"retry_count"`
		LastError  string    `json:"last_error,omitempty"`
		EnqueuedAt time.Time `json:"enqueued_at"`
	}
	summaries := make([]opSummary, 0, len(ops))
	for _, op := range ops {
		summaries = append(summaries, opSummary{
			ID:         op.ID,
			Seq:        op.Seq,
			Kind:       string(op.Kind),
			RecordID:   op.RecordID,
			Status:     string(op.Status),
			RetryCount: op.RetryCount,
			LastError:  op.LastError,
			EnqueuedAt: op.EnqueuedAt,
		})
	}

	result, err := mcp.NewToolResultJSON(summaries)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) diagnose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := h.ds.Diagnose(ctx)
	if err != nil {
		h.log.Error("mcp diagnose", "error", err)
		return mcp.NewToolResultError("diagnostics failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(report)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.Stats(ctx)
	if err != nil {
		h.log.Error("mcp get_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
