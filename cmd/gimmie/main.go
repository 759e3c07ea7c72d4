package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/gimmie/internal/api"
	"github.com/erazemk/gimmie/internal/auth"
	"github.com/erazemk/gimmie/internal/backup"
	"github.com/erazemk/gimmie/internal/config"
	"github.com/erazemk/gimmie/internal/db"
	"github.com/erazemk/gimmie/internal/exchange"
	"github.com/erazemk/gimmie/internal/list"
	"github.com/erazemk/gimmie/internal/metrics"
	"github.com/erazemk/gimmie/internal/store"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if closeLog != nil {
		defer closeLog()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, dialect, err := db.Open(cfg.DB)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return 1
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database, dialect); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		return 1
	}
	slog.Info("database ready", "dialect", dialect)

	st := store.New(database, dialect)
	m := metrics.New()
	svc := list.NewService(st, m)

	n, err := svc.Check(ctx)
	if cfg.Check {
		if err != nil {
			fmt.Fprintf(os.Stderr, "list check failed: %v\n", err)
			return 1
		}
		fmt.Printf("list ok: %d items at positions 1..%d\n", n, n)
		return 0
	}
	if err != nil {
		slog.Error("list check failed, edits will be refused until it is fixed", "error", err)
	} else {
		m.ActiveItems(n)
	}

	if err := ensurePassword(ctx, st, cfg.Password); err != nil {
		slog.Error("failed to set up password", "error", err)
		return 1
	}

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := st.JWTSecret(ctx)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		return 1
	}

	transformer := exchange.NewTransformer(svc, cfg.ReplaceMode)

	if cfg.Backup.Enabled() {
		sched, err := setupBackups(ctx, cfg.Backup, transformer, m)
		if err != nil {
			slog.Error("failed to set up backups", "error", err)
			return 1
		}
		sched.Start()
		defer sched.Stop()
	}

	handler := api.NewRouter(api.Options{
		Store:       st,
		List:        svc,
		Transformer: transformer,
		Metrics:     m,
		JWTSecret:   jwtSecret,
		CORSOrigins: cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
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

	slog.Info("server started", "addr", cfg.Addr, "replace_mode", transformer.ReplaceMode())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		return 1
	}

	slog.Info("server stopped, closing database")
	return 0
}

// ensurePassword stores the family password on first run. When none is
// configured, a random one is generated and printed once.
func ensurePassword(ctx context.Context, st *store.Store, password string) error {
	hash, err := st.PasswordHash(ctx)
	if err != nil {
		return err
	}
	if hash != "" {
		return nil
	}

	generated := password == ""
	if generated {
		if password, err = auth.GeneratePassword(16); err != nil {
			return fmt.Errorf("generating password: %w", err)
		}
	}

	hash, err = auth.HashPassword(password)
	if err != nil {
		return err
	}
	created, err := st.InitPasswordHash(ctx, hash)
	if err != nil {
		return err
	}

	if created && generated {
		fmt.Println("Family password created:")
		fmt.Printf("  Password: %s\n", password)
		fmt.Println()
		fmt.Println("Save this password, it cannot be recovered.")
		fmt.Println("It can be changed after logging in.")
		fmt.Println()
	}
	return nil
}

func setupBackups(ctx context.Context, cfg config.Backup, exporter backup.Exporter, m *metrics.Metrics) (*backup.Scheduler, error) {
	var sink backup.Sink
	if cfg.S3.Bucket != "" {
		s3Sink, err := backup.NewS3Sink(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		sink = s3Sink
		slog.Info("backups go to s3", "bucket", cfg.S3.Bucket)
	} else {
		dirSink, err := backup.NewDirSink(cfg.Dir)
		if err != nil {
			return nil, err
		}
		sink = dirSink
		slog.Info("backups go to directory", "dir", cfg.Dir)
	}

	snap := backup.NewSnapshotter(exporter, sink, cfg.Prefix, cfg.RetentionDays, m)
	return backup.NewScheduler(ctx, cfg.Schedule, snap)
}
