package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/netmon"
	"github.com/claude/liftlog/internal/portability"
	"github.com/claude/liftlog/internal/queue"
	"github.com/claude/liftlog/internal/recovery"
	"github.com/claude/liftlog/internal/remote"
	"github.com/claude/liftlog/internal/server"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/syncer"
	"github.com/claude/liftlog/internal/tracker"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	userID := flag.String("user", "", "user id to sync as (empty runs local-only)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("LiftLog starting", "version", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, cfg.Database.Path)
	if err != nil {
		log.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database ready", "path", cfg.Database.Path)

	// Remote store: real HTTP backend when configured, otherwise everything
	// stays local and the queue just accumulates.
	var rs remote.Store
	if cfg.Remote.BaseURL != "" {
		rs = remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Remote.Timeout.Std())
		log.Info("remote store configured", "base_url", cfg.Remote.BaseURL)
	} else {
		rs = remote.NewMemory()
		log.Info("no remote configured, running local-only")
	}

	monitor := netmon.New(cfg.Sync.ProbeURL, log, netmon.WithInterval(cfg.Sync.ProbeInterval.Std()))
	monitor.Start()
	defer monitor.Stop()

	q := queue.New(db, rs, log, cfg.Sync.MaxRetries)
	engine := syncer.New(db, q, rs, monitor, log,
		syncer.WithDebounce(cfg.Sync.Debounce.Std()),
		syncer.WithAutoInterval(cfg.Sync.AutoInterval.Std()),
	)
	engine.Start()
	defer engine.Stop()

	port := portability.New(db, log)
	tr := tracker.New(db, q, rs, monitor, engine, port, log)
	recov := recovery.New(db, q, engine, monitor, log, cfg.Database.QuotaBytes)

	if *userID != "" {
		tr.SetUser(*userID)
		log.Info("auto-sync enabled", "user", *userID)
	}

	// Startup health pass: surface issues early, repair what is safe.
	if report, err := recov.Diagnose(ctx); err == nil && len(report.Issues) > 0 {
		log.Warn("diagnostics found issues", "count", len(report.Issues), "highest", report.Highest())
		recov.AttemptAutoRecovery(ctx, *userID)
	}

	srv := server.New(db, tr, engine, q, recov, cfg.Remote.APIKey, log)

	// Start server — tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
			AuthKey:  cfg.Tailscale.AuthKey,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
