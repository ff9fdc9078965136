package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/studytrack/internal/clock"
	"github.com/rpggio/studytrack/internal/config"
	"github.com/rpggio/studytrack/internal/domain/analytics"
	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/filestore"
	"github.com/rpggio/studytrack/internal/mcp"
	"github.com/rpggio/studytrack/internal/notify"
	"github.com/rpggio/studytrack/internal/remote"
	"github.com/rpggio/studytrack/internal/repository"
	"github.com/rpggio/studytrack/internal/sqlite"
	"github.com/rpggio/studytrack/internal/syncer"
)

// sessionStore is what the tracker writes to and analytics reads from.
type sessionStore interface {
	session.Store
	analytics.SessionLister
}

// app holds the wired services for one process.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	clock     clock.Clock
	db        *sqlite.DB
	store     sessionStore
	apiKeys   *sqlite.APIKeyRepository
	syncer    *syncer.Worker
	tracker   *session.Tracker
	analytics *analytics.Service

	closers []func() error
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, clock: clock.NewReal()}

	db, err := openDB(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	a.apiKeys = sqlite.NewAPIKeyRepository(db)

	switch cfg.Store.Driver {
	case "json":
		if err := ensureDir(cfg.Store.JSONPath); err != nil {
			a.close()
			return nil, fmt.Errorf("prepare session file: %w", err)
		}
		a.store = filestore.NewSessionStore(cfg.Store.JSONPath)
	default:
		a.store = sqlite.NewSessionRepository(db)
	}

	remoteStore, err := a.remoteStore()
	if err != nil {
		a.close()
		return nil, err
	}

	opts := session.Options{
		Clock: a.clock,
		Store: a.store,
		Policy: session.Policy{
			BreakThreshold:   cfg.Tracking.BreakThreshold,
			AutoEndThreshold: cfg.Tracking.AutoEndThreshold,
		},
		Logger: logger,
	}
	if remoteStore != nil {
		a.syncer = syncer.New(remoteStore, syncer.Options{
			QueueSize: cfg.Sync.QueueSize,
			Workers:   cfg.Sync.Workers,
			Timeout:   cfg.Sync.Timeout,
			Logger:    logger,
		})
		opts.Syncer = a.syncer
	}
	if cfg.Notify.Enabled {
		opts.Observer = notify.NewDesktop(cfg.Notify.AppName, logger)
	}

	a.tracker = session.NewTracker(opts)
	a.analytics = analytics.NewService(a.store, a.clock, cfg.Location(), cfg.Analytics.WindowDays, logger)
	return a, nil
}

// remoteStore returns nil when sync is disabled.
func (a *app) remoteStore() (repository.RemoteStore, error) {
	switch a.cfg.Sync.Mode {
	case "http":
		return remote.NewClient(a.cfg.Sync.URL, a.cfg.Sync.APIKey, a.cfg.Sync.Timeout), nil
	case "sqlite":
		if a.cfg.Sync.DBPath == "" || a.cfg.Sync.DBPath == a.cfg.DB.Path {
			return sqlite.NewRemoteRepository(a.db), nil
		}
		mirror, err := openDB(a.cfg.Sync.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sync mirror: %w", err)
		}
		a.closers = append(a.closers, mirror.Close)
		return sqlite.NewRemoteRepository(mirror), nil
	default:
		return nil, nil
	}
}

func (a *app) mcpServerConfig() mcp.Config {
	return mcp.Config{
		Services: mcp.Services{
			Tracker:   a.tracker,
			Analytics: a.analytics,
			History:   a.store,
			Clock:     a.clock,
		},
		Resolver:      a.apiKeys,
		AuthEnabled:   a.cfg.Auth.Enabled,
		TransportMode: a.cfg.Transport.Mode,
		DefaultUser:   a.cfg.Auth.DefaultUser,
		Version:       version,
		Logger:        a.logger,
	}
}

// restoreDefaultUser re-arms the timers of a session left active by a
// previous run, ending it if it has already timed out.
func (a *app) restoreDefaultUser(ctx context.Context) {
	m, err := a.tracker.Machine(ctx, a.cfg.Auth.DefaultUser)
	if err != nil {
		a.logger.Warn("failed to restore session", "error", err)
		return
	}
	if sess, _ := m.Current(); sess != nil {
		a.logger.Info("session restored", "session_id", sess.ID, "state", sess.State())
	}
}

// shutdown cancels the inactivity timers before draining the sync queue so
// no auto-end can enqueue into a closed queue.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	if err := a.tracker.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close tracker: %w", err))
	}
	if a.syncer != nil {
		if err := a.syncer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain sync queue: %w", err))
		}
		stats := a.syncer.Stats()
		a.logger.Info("sync stopped", "synced", stats.Synced, "failed", stats.Failed, "dropped", stats.Dropped)
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openDB(path string) (*sqlite.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
