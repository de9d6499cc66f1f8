package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/netmon"
	"github.com/claude/liftlog/internal/portability"
	"github.com/claude/liftlog/internal/queue"
	"github.com/claude/liftlog/internal/recovery"
	"github.com/claude/liftlog/internal/remote"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/syncer"
	"github.com/claude/liftlog/internal/tracker"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	serverURL := flag.String("url", "", "daemon base URL; when set, data is queried over HTTP instead of opening the database")
	apiKey := flag.String("api-key", "", "API key for mutating daemon endpoints (force_sync)")
	userID := flag.String("user", "", "user id for sync operations in local mode")
	flag.Parse()

	// MCP talks JSON-RPC on stdout; logs must stay on stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	if *serverURL != "" {
		ds = mcp.NewHTTPClient(*serverURL, *apiKey)
		log.Info("mcp server starting", "mode", "http", "url", *serverURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}

		db, err := storage.Open(context.Background(), cfg.Database.Path)
		if err != nil {
			log.Error("failed to open database", "path", cfg.Database.Path, "error", err)
			os.Exit(1)
		}
		defer db.Close()

		var rs remote.Store
		if cfg.Remote.BaseURL != "" {
			rs = remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Remote.Timeout.Std())
		} else {
			rs = remote.NewMemory()
		}

		monitor := netmon.New(cfg.Sync.ProbeURL, log, netmon.WithInterval(cfg.Sync.ProbeInterval.Std()))
		monitor.Start()
		defer monitor.Stop()

		q := queue.New(db, rs, log, cfg.Sync.MaxRetries)
		engine := syncer.New(db, q, rs, monitor, log,
			syncer.WithDebounce(cfg.Sync.Debounce.Std()),
			syncer.WithAutoInterval(cfg.Sync.AutoInterval.Std()),
		)
		port := portability.New(db, log)
		tr := tracker.New(db, q, rs, monitor, engine, port, log)
		if *userID != "" {
			tr.SetUser(*userID)
			defer tr.ClearUser()
		}
		recov := recovery.New(db, q, engine, monitor, log, cfg.Database.QuotaBytes)

		ds = mcp.NewLocal(db, tr, engine, recov)
		log.Info("mcp server starting", "mode", "local", "db", cfg.Database.Path)
	}

	s := mcp.New(ds, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
