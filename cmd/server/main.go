package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"helphub/internal/adapters/email"
	"helphub/internal/adapters/fixtures"
	web "helphub/internal/adapters/http"
	"helphub/internal/adapters/http/perf"
	"helphub/internal/adapters/sheets"
	"helphub/internal/adapters/storage"
	retrievalStore "helphub/internal/adapters/storage/retrieval"
	"helphub/internal/application/orchestrators"
	"helphub/internal/config"
	"helphub/internal/domain/contact"
	"helphub/internal/domain/link"
	"helphub/internal/logger"
	"helphub/internal/scheduler"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	// WAL mode, busy timeout and NORMAL sync for the diagnostics log
	dsn := cfg.Database.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := db.Ping(); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := storage.InitDB(db); err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.Database.SlowQuery)
	attempts := retrievalStore.NewSQLiteStore(timedDB)

	store, err := fixtures.Load()
	if err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}
	contacts, err := contact.NewDirectory(cfg.ContactTemplates())
	if err != nil {
		return fmt.Errorf("contact templates: %w", err)
	}

	client := sheets.NewClient(
		sheets.WithTimeout(cfg.Remote.Timeout),
		sheets.WithMaxBodyBytes(cfg.Remote.MaxBodyBytes),
		sheets.WithRecorder(collector),
	)
	if cfg.Remote.Endpoint == "" {
		slog.Warn("config_event", "event", "no_remote_endpoint", "detail", "remote attempts will fall back to bundled data")
	}
	noticesLocator, err := sheets.SheetLocator(cfg.Remote.Endpoint, cfg.Notices.Sheet)
	if err != nil {
		return err
	}
	linkLocators := make(map[link.Section]string, len(link.Sections()))
	for _, s := range link.Sections() {
		loc, err := sheets.SheetLocator(cfg.Remote.Endpoint, cfg.SheetFor(s))
		if err != nil {
			return err
		}
		linkLocators[s] = loc
	}

	sender := email.NewSender(cfg.Alerts.ResendKey, cfg.Alerts.From)
	if cfg.Alerts.ResendKey == "" && cfg.IsProduction() && len(cfg.Alerts.To) > 0 {
		slog.Warn("config_event", "event", "alerts_disabled", "detail", "alerts.resend_key is not set")
	}
	alerter := orchestrators.NewFallbackAlerter(orchestrators.FallbackAlerterDeps{
		Sender:   sender,
		To:       cfg.Alerts.To,
		From:     cfg.Alerts.From,
		Cooldown: cfg.Alerts.Cooldown,
	})
	defer alerter.Wait()

	cookieKey, err := cfg.CookieKey()
	if err != nil {
		return err
	}
	csrfKey, err := cfg.CSRFKey()
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Config{
		PruneSchedule: cfg.Diagnostics.PruneSchedule,
		Retention:     cfg.Diagnostics.Retention,
	}, attempts)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	app, err := web.NewMux(web.Deps{
		Fixtures:   store,
		Fetcher:    client,
		Contacts:   contacts,
		Attempts:   attempts,
		Notifier:   alerter,
		AttemptLog: attempts,
		Perf:       collector,
		DB:         timedDB,
		Options: web.Options{
			NoticesMode:    web.SourceMode(cfg.Notices.Mode),
			LinksMode:      web.SourceMode(cfg.Links.Mode),
			NoticesLocator: noticesLocator,
			LinkLocators:   linkLocators,
			Diagnostics:    cfg.Diagnostics.Enabled,
			Production:     cfg.IsProduction(),
			CookieKey:      cookieKey,
			CSRFKey:        csrfKey,
			TrustedOrigins: cfg.Security.TrustedOrigins,
			RateLimit:      cfg.Security.RateLimit,
		},
	})
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_event", "event", "starting", "version", version, "addr", cfg.Server.Addr,
			"env", cfg.Env, "notices_mode", cfg.Notices.Mode, "links_mode", cfg.Links.Mode,
			"next_prune", sched.NextRun())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("server_event", "event", "shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
