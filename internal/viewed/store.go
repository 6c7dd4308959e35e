package viewed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"michatta/internal/config"
	"michatta/internal/legacy"
	"michatta/internal/logging"
	"michatta/internal/recency"
)

// Mirror receives best-effort snapshots of the store. *legacy.Mirror
// satisfies it.
type Mirror interface {
	MigrationMarker() (string, error)
	WriteSnapshot(legacy.Snapshot) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.NewComponentLogger(logger, "viewed") }
}

// WithCacheCapacity bounds the in-memory recency cache.
func WithCacheCapacity(capacity int) Option {
	return func(s *Store) { s.cache = recency.New[string, int64](capacity) }
}

// WithMirror enables background refreshes of a legacy mirror.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithUngatedMirror lets mirror refreshes run without waiting for the
// legacy migration marker. Used when migration is disabled.
func WithUngatedMirror() Option {
	return func(s *Store) { s.mirrorUngated = true }
}

// WithNow overrides the clock used by MarkViewed.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the durable viewed-item store.
type Store struct {
	path   string
	logger *slog.Logger
	cache  *recency.Cache[string, int64]
	mirror Mirror
	now    func() time.Time

	mirrorUngated bool

	openMu sync.Mutex
	db     *sql.DB
	closed bool

	// writeMu orders cache updates with the commits that justify them so a
	// concurrent Clear cannot leave stale entries behind.
	writeMu sync.RWMutex

	refresh    chan struct{}
	stopWorker context.CancelFunc
	workerDone chan struct{}
}

// New constructs a store for the database at path. Nothing touches disk
// until Open or the first operation.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:   strings.TrimSpace(path),
		logger: logging.NewComponentLogger(nil, "viewed"),
		cache:  recency.New[string, int64](recency.DefaultCapacity),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Open establishes the database and applies pending schema steps. Calling
// it again on an open store is a no-op.
func (s *Store) Open(ctx context.Context) error {
	_, err := s.handle(ensureContext(ctx))
	return err
}

func (s *Store) handle(ctx context.Context) (*sql.DB, error) {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	if s.db != nil {
		return s.db, nil
	}
	if s.closed {
		return nil, ErrClosed
	}
	if s.path == "" {
		return nil, fmt.Errorf("open viewed store: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if err := retryOnBusy(ctx, func() error { return s.initSchema(ctx, db) }); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.db = db
	s.startWorker()
	s.logger.Debug("viewed store opened", logging.String("path", s.path))
	return db, nil
}

// Close flushes any pending mirror refresh, stops the worker and closes the
// database. Later calls fail with ErrClosed.
func (s *Store) Close() error {
	s.openMu.Lock()
	if s.closed {
		s.openMu.Unlock()
		return nil
	}
	s.closed = true
	stop, done := s.stopWorker, s.workerDone
	s.openMu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	s.openMu.Lock()
	db := s.db
	s.db = nil
	s.refresh = nil
	s.openMu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

// ClearCache drops every cached entry. Results are unaffected.
func (s *Store) ClearCache() {
	s.cache.Clear()
}

// CachedLen reports how many entries the recency cache holds.
func (s *Store) CachedLen() int {
	return s.cache.Len()
}

func (s *Store) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, s.logger)
}

func (s *Store) readFailed(ctx context.Context, op string, err error) {
	logging.WarnWithContext(s.log(ctx), "viewed store read failed", "viewed_read_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check database path permissions and disk space"),
		logging.String(logging.FieldImpact, "caller receives a default result"))
}

func (s *Store) writeFailed(ctx context.Context, op string, err error) {
	logging.ErrorWithContext(s.log(ctx), "viewed store write failed", "viewed_write_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "previously stored data is unchanged; retry the operation"))
}

// FromConfig builds a store using the configured database path and cache
// capacity. mirror is attached only when mirroring is enabled.
func FromConfig(cfg *config.Config, mirror Mirror, logger *slog.Logger) *Store {
	opts := []Option{
		WithLogger(logger),
		WithCacheCapacity(cfg.Cache.Capacity),
	}
	if cfg.Mirror.Enabled && mirror != nil {
		opts = append(opts, WithMirror(mirror))
		if !cfg.Migration.Enabled {
			opts = append(opts, WithUngatedMirror())
		}
	}
	return New(cfg.Paths.DatabasePath, opts...)
}
