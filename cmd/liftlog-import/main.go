package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/portability"
	"github.com/claude/liftlog/internal/queue"
	"github.com/claude/liftlog/internal/recovery"
	"github.com/claude/liftlog/internal/remote"
	"github.com/claude/liftlog/internal/storage"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: liftlog-import <command> [flags]

Commands:
  export   write all workouts and templates as a JSON snapshot
  import   load a JSON snapshot into the local database
  backup   write a consistent copy of the database file
  restore  replace the database file with a backup

Run "liftlog-import <command> -h" for command flags.
`)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var err error
	switch os.Args[1] {
	case "export":
		err = runExport(log, os.Args[2:])
	case "import":
		err = runImport(log, os.Args[2:])
	case "backup":
		err = runBackup(log, os.Args[2:])
	case "restore":
		err = runRestore(log, os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		log.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, configPath string) (*storage.DB, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

func runExport(log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	out := fs.String("out", "", "output file (stdout when empty)")
	user := fs.String("user", "", "export only this user's records (all when empty)")
	fs.Parse(args)

	ctx := context.Background()
	db, _, err := openStore(ctx, *configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if err := portability.New(db, log).Export(ctx, *user, w); err != nil {
		return err
	}
	if *out != "" {
		log.Info("export written", "path", *out)
	}
	return nil
}

func runImport(log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	in := fs.String("in", "", "snapshot file to load (required)")
	mode := fs.String("mode", "merge", "merge keeps existing records; replace wipes them first")
	fs.Parse(args)

	if *in == "" {
		fs.Usage()
		return fmt.Errorf("-in is required")
	}
	importMode := models.ImportMode(*mode)
	if importMode != models.ImportMerge && importMode != models.ImportReplace {
		return fmt.Errorf("mode must be merge or replace, got %q", *mode)
	}

	ctx := context.Background()
	db, _, err := openStore(ctx, *configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := portability.New(db, log).Import(ctx, f, importMode)
	if err != nil {
		return err
	}
	log.Info("import complete",
		"workouts", result.Workouts,
		"templates", result.Templates,
		"skipped", result.Skipped,
		"mode", *mode,
	)
	return nil
}

func runBackup(log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	out := fs.String("out", "", "backup file to write (required)")
	fs.Parse(args)

	if *out == "" {
		fs.Usage()
		return fmt.Errorf("-out is required")
	}

	ctx := context.Background()
	db, cfg, err := openStore(ctx, *configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rs := remote.NewMemory()
	q := queue.New(db, rs, log, cfg.Sync.MaxRetries)
	recov := recovery.New(db, q, nil, nil, log, cfg.Database.QuotaBytes)

	info, err := recov.CreateBackup(ctx, *out)
	if err != nil {
		return err
	}
	log.Info("backup complete", "path", info.Path, "bytes", info.SizeBytes, "sha256", info.Checksum)
	return nil
}

func runRestore(log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	in := fs.String("in", "", "backup file to restore from (required)")
	fs.Parse(args)

	if *in == "" {
		fs.Usage()
		return fmt.Errorf("-in is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// The database must not be open during restore; this command owns the
	// file exclusively, so a plain file swap is safe here.
	if err := recovery.RestoreBackup(*in, cfg.Database.Path); err != nil {
		return err
	}

	// Reopen to run migrations and confirm the restored file is usable.
	db, err := storage.Open(context.Background(), cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("restored database failed verification: %w", err)
	}
	defer db.Close()

	log.Info("restore complete", "path", cfg.Database.Path)
	return nil
}
