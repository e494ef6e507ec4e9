package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/erazemk/foodmap/internal/api"
	"github.com/erazemk/foodmap/internal/bootstrap"
	"github.com/erazemk/foodmap/internal/config"
	"github.com/erazemk/foodmap/internal/db"
	"github.com/erazemk/foodmap/internal/foods"
	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/store"
	"github.com/erazemk/foodmap/internal/sweep"
	"github.com/erazemk/foodmap/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("foodmap", flag.ContinueOnError)

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")

	fs.StringVar(&cfg.MediaDir, "media", cfg.MediaDir, "")
	fs.StringVar(&cfg.MediaDir, "m", cfg.MediaDir, "")

	fs.StringVar(&cfg.AdminUser, "user", cfg.AdminUser, "")
	fs.StringVar(&cfg.AdminUser, "u", cfg.AdminUser, "")

	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: foodmap [flags]

Flags:
  -d, -db <path>          SQLite database path (default: foodmap.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -m, -media <dir>        directory for uploaded images (default: media)
  -u, -user <name>        admin username on first run (default: admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Every flag can also be set in the environment (FOODMAP_DB, FOODMAP_ADDR,
FOODMAP_MEDIA_DIR, FOODMAP_ADMIN, FOODMAP_LOG) or in a .env file. Other
settings: FOODMAP_LOG_LEVEL, FOODMAP_EXTRACTOR_CMD, FOODMAP_EXTRACTOR_TIMEOUT,
FOODMAP_SWEEP_INTERVAL, FOODMAP_TIMEZONE.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		database, password, err := bootstrap.InitDatabase(cfg.DBPath, cfg.AdminUser)
		if err != nil {
			slog.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		database.Close()

		bootstrap.PrintInitResult(os.Stdout, cfg.DBPath, cfg.AdminUser, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	// Apply pending migrations (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	slog.Info("database ready", "path", cfg.DBPath)

	if admins, err := store.CountAdmins(context.Background(), database); err != nil {
		slog.Error("failed to count admins", "error", err)
		os.Exit(1)
	} else if admins == 0 {
		slog.Warn("no active admin; create one with: foodmapctl users add -role admin <name>")
	}

	images, err := media.NewDir(cfg.MediaDir)
	if err != nil {
		slog.Error("failed to open media directory", "error", err)
		os.Exit(1)
	}

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		slog.Error("failed to set up food extractor", "error", err)
		os.Exit(1)
	}

	sweeper := sweep.New(database, images, slog.Default().With("component", "sweep"))
	sweeper.SetZone(cfg.Zone)

	// Set up routers.
	apiRouter := api.NewRouter(database, images, extractor, sweeper, jwtSecret)
	webRouter, err := web.NewRouter(database, images, extractor, jwtSecret, cfg.Zone)
	if err != nil {
		slog.Error("failed to set up web router", "error", err)
		os.Exit(1)
	}

	// Combine: the feed and API routes take priority, web routes handle the
	// rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/offerings/", apiRouter)
	mux.Handle("/", webRouter)

	handler := api.LoggingMiddleware(mux)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if cfg.SweepInterval > 0 {
		sweeper.SetTickInterval(cfg.SweepInterval)
		wg.Go(func() { sweeper.Run(ctx) })
		slog.Info("sweeper started", "interval", cfg.SweepInterval)
	} else {
		slog.Info("in-process sweep disabled")
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		stop()
		wg.Wait()
		os.Exit(1)
	}

	wg.Wait()
	slog.Info("server stopped, closing database")
}

// newExtractor picks the external extractor if one is configured and the
// built-in dictionary otherwise.
func newExtractor(cfg config.Config) (foods.Extractor, error) {
	if cfg.ExtractorCmd == "" {
		slog.Info("using built-in food dictionary")
		return foods.Default(), nil
	}
	cmd, err := foods.NewCommand(cfg.ExtractorCmd, cfg.ExtractorTimeout, slog.Default().With("component", "extractor"))
	if err != nil {
		return nil, err
	}
	slog.Info("using external food extractor", "command", cfg.ExtractorCmd, "timeout", cfg.ExtractorTimeout)
	return cmd, nil
}
