package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"michatta/internal/config"
	"michatta/internal/facade"
	"michatta/internal/legacy"
	"michatta/internal/logging"
	"michatta/internal/migration"
	"michatta/internal/viewed"
)

// Migration states reported by Status.
const (
	MigrationPending   = "pending"
	MigrationCompleted = "completed"
	MigrationSkipped   = "skipped"
	MigrationFailed    = "failed"
	MigrationDisabled  = "disabled"
)

// MigrationStatus describes the outcome of the startup migration.
type MigrationStatus struct {
	State  string            `json:"state"`
	Result *migration.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	StartedAt    time.Time       `json:"startedAt,omitzero"`
	DatabasePath string          `json:"databasePath"`
	LegacyPath   string          `json:"legacyPath"`
	LockPath     string          `json:"lockPath"`
	APIAddress   string          `json:"apiAddress,omitempty"`
	Migration    MigrationStatus `json:"migration"`
	ViewedCount  int             `json:"viewedCount"`
	Methods      []string        `json:"methods"`
}

// Daemon owns the store lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *viewed.Store
	mirror   *legacy.Mirror
	facade   *facade.Facade
	migrator *migration.Migrator

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running   atomic.Bool
	cancel    context.CancelFunc
	mu        sync.Mutex
	startedAt time.Time
	migration MigrationStatus
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *viewed.Store, mirror *legacy.Mirror, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || mirror == nil {
		return nil, errors.New("daemon requires config, store, and legacy mirror")
	}
	f, err := facade.New(store, logger)
	if err != nil {
		return nil, fmt.Errorf("build facade: %w", err)
	}

	d := &Daemon{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "daemon"),
		store:  store,
		mirror: mirror,
		facade: f,
		migrator: migration.New(store, mirror,
			migration.WithBatchSize(cfg.Migration.BatchSize),
			migration.WithLogger(logger)),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
		migration: MigrationStatus{State: MigrationPending},
	}
	if !cfg.Migration.Enabled {
		d.migration.State = MigrationDisabled
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, opens the store, runs the legacy migration
// and starts the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another michatta daemon instance is already running")
	}

	if err := d.store.Open(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("open viewed store: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.runMigration(runCtx)

	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.mu.Lock()
	d.cancel = cancel
	d.startedAt = time.Now()
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("michatta daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
		logging.String("api", d.api.address()))
	return nil
}

func (d *Daemon) runMigration(ctx context.Context) {
	if !d.cfg.Migration.Enabled {
		return
	}
	result, err := d.migrator.Run(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case err != nil:
		d.migration = MigrationStatus{State: MigrationFailed, Result: &result, Error: err.Error()}
	case result.Skipped:
		d.migration = MigrationStatus{State: MigrationSkipped}
	default:
		d.migration = MigrationStatus{State: MigrationCompleted, Result: &result}
	}
}

// Stop shuts down the API server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()

	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may need the stale lock file removed"))
	}
	d.running.Store(false)
	d.logger.Info("michatta daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Facade exposes the storage facade served by the daemon.
func (d *Daemon) Facade() *facade.Facade {
	return d.facade
}

// Addr returns the API listener address, empty before Start.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Status reports runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	migrationStatus := d.migration
	startedAt := d.startedAt
	d.mu.Unlock()

	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    startedAt,
		DatabasePath: d.store.Path(),
		LegacyPath:   d.mirror.Path(),
		LockPath:     d.lockPath,
		APIAddress:   d.api.address(),
		Migration:    migrationStatus,
		ViewedCount:  d.store.Count(ctx),
		Methods:      d.facade.Methods(),
	}
}
