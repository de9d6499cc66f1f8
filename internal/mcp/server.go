package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("LiftLog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("LiftLog workout tracking server. Query workouts and templates, inspect sync and queue state, run diagnostics, and trigger a sync. Local data is authoritative; sync state tells you how much of it has reached the remote store."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetWorkouts, Handler: h.getWorkouts},
		server.ServerTool{Tool: toolGetWorkout, Handler: h.getWorkout},
		server.ServerTool{Tool: toolGetTemplates, Handler: h.getTemplates},
		server.ServerTool{Tool: toolGetSyncStatus, Handler: h.getSyncStatus},
		server.ServerTool{Tool: toolForceSync, Handler: h.forceSync},
		server.ServerTool{Tool: toolGetQueue, Handler: h.getQueue},
		server.ServerTool{Tool: toolDiagnose, Handler: h.diagnose},
		server.ServerTool{Tool: toolGetStats, Handler: h.getStats},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
		server.ServerResource{Resource: resSyncStatus, Handler: h.syncStatus},
		server.ServerResource{Resource: resStorageStats, Handler: h.storageStats},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resRecentWorkouts = mcp.NewResource(
	"liftlog://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Workouts and rest days from the last 14 days"),
	mcp.WithMIMEType("application/json"),
)

var resSyncStatus = mcp.NewResource(
	"liftlog://sync_status",
	"Sync Status",
	mcp.WithResourceDescription("Connectivity, last sync time, and counts of pending and failed records"),
	mcp.WithMIMEType("application/json"),
)

var resStorageStats = mcp.NewResource(
	"liftlog://storage_stats",
	"Storage Stats",
	mcp.WithResourceDescription("Row counts per entity and estimated database size"),
	mcp.WithMIMEType("application/json"),
)
