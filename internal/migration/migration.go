package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"michatta/internal/legacy"
	"michatta/internal/logging"
)

// DefaultBatchSize bounds the number of records committed per transaction.
const DefaultBatchSize = 100

// Source is the legacy storage being migrated. *legacy.Mirror satisfies it.
type Source interface {
	Load() (legacy.Snapshot, error)
	MigrationMarker() (string, error)
	SetMigrationMarker(string) error
}

// Target receives migrated data. *viewed.Store satisfies it.
type Target interface {
	PutBatch(ctx context.Context, items map[string]int64) error
	SaveAlertSettings(ctx context.Context, value json.RawMessage) error
	UnlockPremium(ctx context.Context) error
}

// Refresher is implemented by targets that mirror themselves back to the
// legacy file once migration is done.
type Refresher interface {
	RequestMirrorRefresh()
}

// Result summarizes a run.
type Result struct {
	Skipped          bool          `json:"skipped"`
	ItemsMigrated    int           `json:"itemsMigrated"`
	Batches          int           `json:"batches"`
	SettingsMigrated bool          `json:"settingsMigrated"`
	PremiumMigrated  bool          `json:"premiumMigrated"`
	Duration         time.Duration `json:"duration"`
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithBatchSize overrides the batch size; non-positive values keep the default.
func WithBatchSize(size int) Option {
	return func(m *Migrator) {
		if size > 0 {
			m.batchSize = size
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) { m.logger = logging.NewComponentLogger(logger, "migration") }
}

// Migrator performs the one-time import.
type Migrator struct {
	target    Target
	source    Source
	batchSize int
	logger    *slog.Logger

	mu sync.Mutex
}

// New constructs a Migrator.
func New(target Target, source Source, opts ...Option) *Migrator {
	m := &Migrator{
		target:    target,
		source:    source,
		batchSize: DefaultBatchSize,
		logger:    logging.NewComponentLogger(nil, "migration"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Completed reports whether the marker has been recorded.
func (m *Migrator) Completed() (bool, error) {
	marker, err := m.source.MigrationMarker()
	if err != nil {
		return false, fmt.Errorf("read migration marker: %w", err)
	}
	return marker == legacy.MarkerCompleted, nil
}

// Run migrates legacy data unless the marker says it already happened.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	logger := logging.WithContext(ctx, m.logger)

	done, err := m.Completed()
	if err != nil {
		return Result{}, m.fail(logger, err)
	}
	if done {
		logger.Debug("legacy migration already completed")
		return Result{Skipped: true}, nil
	}

	snap, err := m.source.Load()
	if err != nil {
		return Result{}, m.fail(logger, fmt.Errorf("load legacy data: %w", err))
	}

	logger.Info("legacy migration started",
		logging.String(logging.FieldEventType, "migration_started"),
		logging.Int("item_count", len(snap.Items)),
		logging.Int("batch_size", m.batchSize))

	var result Result
	if err := m.migrateItems(ctx, logger, snap.Items, &result); err != nil {
		return result, m.fail(logger, err)
	}

	if len(snap.AlertSettings) > 0 {
		if err := m.target.SaveAlertSettings(ctx, snap.AlertSettings); err != nil {
			return result, m.fail(logger, fmt.Errorf("migrate alert settings: %w", err))
		}
		result.SettingsMigrated = true
	}

	if snap.PremiumUnlocked {
		if err := m.target.UnlockPremium(ctx); err != nil {
			return result, m.fail(logger, fmt.Errorf("migrate premium flag: %w", err))
		}
		result.PremiumMigrated = true
	}

	if err := m.source.SetMigrationMarker(legacy.MarkerCompleted); err != nil {
		return result, m.fail(logger, fmt.Errorf("record migration marker: %w", err))
	}

	if refresher, ok := m.target.(Refresher); ok {
		refresher.RequestMirrorRefresh()
	}

	result.Duration = time.Since(start)
	logger.Info("legacy migration completed",
		logging.String(logging.FieldEventType, "migration_completed"),
		logging.Int("items_migrated", result.ItemsMigrated),
		logging.Int("batches", result.Batches),
		logging.Bool("settings_migrated", result.SettingsMigrated),
		logging.Bool("premium_migrated", result.PremiumMigrated),
		logging.Duration("duration", result.Duration))
	return result, nil
}

func (m *Migrator) migrateItems(ctx context.Context, logger *slog.Logger, items map[string]int64, result *Result) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := len(ids)
	for start := 0; start < total; start += m.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+m.batchSize, total)
		batch := make(map[string]int64, end-start)
		for _, id := range ids[start:end] {
			batch[id] = items[id]
		}
		if err := m.target.PutBatch(ctx, batch); err != nil {
			return fmt.Errorf("migrate batch %d (items %d-%d): %w", result.Batches+1, start+1, end, err)
		}
		result.Batches++
		result.ItemsMigrated = end
		logger.Info("legacy migration progress",
			logging.String(logging.FieldEventType, "migration_progress"),
			logging.Int("migrated", end),
			logging.Int("total", total))
	}
	return nil
}

func (m *Migrator) fail(logger *slog.Logger, err error) error {
	impact := "migration will retry on next start"
	if errors.Is(err, context.Canceled) {
		impact = "migration interrupted; it will resume on next start"
	}
	logging.WarnWithContext(logger, "legacy migration failed", "migration_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect the legacy storage file and database permissions"),
		logging.String(logging.FieldImpact, impact))
	return err
}
