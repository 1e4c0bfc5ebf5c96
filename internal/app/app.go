// Package app wires the venuetrace agent: storage, services and the
// supervised background loops, plus the one-shot reporting mode.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	_ "modernc.org/sqlite"

	"github.com/mkraev/venuetrace/internal/checkin"
	"github.com/mkraev/venuetrace/internal/client"
	"github.com/mkraev/venuetrace/internal/config"
	"github.com/mkraev/venuetrace/internal/decoy"
	"github.com/mkraev/venuetrace/internal/exposure"
	"github.com/mkraev/venuetrace/internal/logging"
	"github.com/mkraev/venuetrace/internal/matching"
	"github.com/mkraev/venuetrace/internal/migrate"
	"github.com/mkraev/venuetrace/internal/notify"
	"github.com/mkraev/venuetrace/internal/report"
	"github.com/mkraev/venuetrace/internal/repositories/diary"
	"github.com/mkraev/venuetrace/internal/repositories/events"
	"github.com/mkraev/venuetrace/internal/repositories/kvstore"
)

// App holds the wired services and owns the database handle.
type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	diary        diary.Repository
	manager      *checkin.Manager
	engine       *exposure.Engine
	scheduler    *decoy.Scheduler
	orchestrator *report.Orchestrator
}

// NewApp opens the database, runs migrations and wires every service.
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	// modernc sqlite is happiest with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrate.Up(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	kv := kvstore.NewSQLiteStore(db)
	d := diary.NewSQLiteRepository(db)
	ev := events.NewSQLiteRepository(db)

	matcher := matching.NewLocalMatcher()
	notifier := notify.NewLogNotifier(logger)
	api := client.NewHTTPClient(cfg.BackendBaseURL, nil, logger)

	manager := checkin.NewManager(d, matcher, notifier, logger, cfg.MaxCheckInDuration)

	engine := exposure.NewEngine(d, ev, kv, api, matcher, notifier, manager, logger)
	engine.SetRetentionDays(cfg.RetentionDays)

	scheduler := decoy.NewScheduler(kv, logger)
	scheduler.SetMeanInterval(cfg.DecoyMeanInterval)

	orchestrator := report.NewOrchestrator(api, kv, scheduler, logger)
	scheduler.SetReporter(orchestrator)

	return &App{
		config:       cfg,
		logger:       logger,
		db:           db,
		diary:        d,
		manager:      manager,
		engine:       engine,
		scheduler:    scheduler,
		orchestrator: orchestrator,
	}, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.db.Close()
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the agent loops and blocks until the context is cancelled or
// a loop fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	a.logger.Info(ctx, "starting agent",
		"backend", a.config.BackendBaseURL,
		"sync_interval", a.config.SyncInterval,
	)

	a.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.syncLoop(ctx) })
	g.Go(func() error { return a.decoyLoop(ctx) })
	g.Go(func() error { return a.sweepLoop(ctx) })

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		// Cancellation is the normal way down.
		err = nil
	}
	a.logger.Info(context.Background(), "agent stopped")
	return err
}

// syncLoop runs one pass immediately and then on every tick. A failed pass
// is logged and retried on the next tick; only cancellation ends the loop.
func (a *App) syncLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.config.SyncInterval)
	defer ticker.Stop()

	a.syncOnce(ctx)

	for {
		select {
		case <-ticker.C:
			a.syncOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *App) syncOnce(ctx context.Context) {
	res, err := a.engine.Sync(ctx, true)
	if err != nil {
		a.logger.Warn(ctx, "sync failed", "error", err)
		return
	}
	if res.NeedsNotification {
		a.logger.Info(ctx, "new exposures surfaced")
	}
}

// decoyLoop wakes up periodically and lets the scheduler decide whether a
// decoy is due.
func (a *App) decoyLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.config.DecoyCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.scheduler.Fire(ctx); err != nil {
				a.logger.Warn(ctx, "decoy check failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sweepInterval is how often stale open check-ins are closed between syncs.
const sweepInterval = 30 * time.Minute

// sweepLoop closes overdue check-ins so a forgotten checkout does not wait
// for the next sync pass.
func (a *App) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			closed, err := a.manager.AutoCheckoutIfStale(ctx, time.Now())
			if err != nil {
				a.logger.Warn(ctx, "auto-checkout sweep failed", "error", err)
			} else if closed {
				a.logger.Info(ctx, "stale check-in closed")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunReport performs a one-shot real report: prompt for the verification
// code unless the config carries one, submit the full diary, print the
// resulting onset date.
func (a *App) RunReport(ctx context.Context) error {
	code := a.config.ReportCode
	if code == "" {
		var err error
		code, err = promptCode()
		if err != nil {
			return err
		}
	}

	recs, err := a.diary.All(ctx)
	if err != nil {
		return err
	}

	outcome, err := a.orchestrator.Report(ctx, code, recs, false)
	if err != nil {
		return err
	}

	a.logger.Info(ctx, "report submitted",
		"check_ins", len(recs),
		"onset", outcome.Onset.Format("2006-01-02"),
	)
	return nil
}

// promptCode reads the verification code without echoing it.
func promptCode() (string, error) {
	fmt.Fprint(os.Stderr, "verification code: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read code: %w", err)
	}

	code := strings.TrimSpace(string(raw))
	if code == "" {
		return "", fmt.Errorf("empty verification code")
	}
	return code, nil
}
