package legacy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"michatta/internal/logging"
)

// Storage keys used by the legacy file.
const (
	KeyViewedItems     = "mercari_viewed_items"
	KeyAlertSettings   = "mercari_alert_settings"
	KeyPremiumUnlocked = "mercari_premium_unlocked"
	KeyMigration       = "michatta_migration_v2"
)

// MarkerCompleted is the only marker value that suppresses migration.
const MarkerCompleted = "completed"

// Snapshot is the decoded content of the legacy file.
type Snapshot struct {
	Items           map[string]int64
	AlertSettings   json.RawMessage // nil when absent
	PremiumUnlocked bool
	MigrationMarker string
}

// Mirror provides serialized access to the legacy file. A Mirror with an
// empty path is disabled: loads return an empty snapshot and writes are no-ops.
type Mirror struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
	lock   *flock.Flock
}

// Open returns a mirror for path. The file is created lazily on first write.
func Open(path string, logger *slog.Logger) *Mirror {
	path = strings.TrimSpace(path)
	m := &Mirror{
		path:   path,
		logger: logging.NewComponentLogger(logger, "legacy"),
	}
	if path != "" {
		m.lock = flock.New(path + ".lock")
	}
	return m
}

// Path returns the file location, empty when disabled.
func (m *Mirror) Path() string {
	if m == nil {
		return ""
	}
	return m.path
}

// Enabled reports whether the mirror is backed by a file.
func (m *Mirror) Enabled() bool {
	return m != nil && m.path != ""
}

// Load decodes the legacy file. A missing or empty file yields an empty snapshot.
func (m *Mirror) Load() (Snapshot, error) {
	empty := Snapshot{Items: map[string]int64{}}
	if !m.Enabled() {
		return empty, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.lockShared(); err != nil {
		return empty, err
	}
	defer m.unlock()

	raw, err := m.readRaw()
	if err != nil {
		return empty, err
	}
	return m.decode(raw), nil
}

// MigrationMarker returns the stored marker, empty when absent.
func (m *Mirror) MigrationMarker() (string, error) {
	snap, err := m.Load()
	if err != nil {
		return "", err
	}
	return snap.MigrationMarker, nil
}

// SetMigrationMarker stores marker, leaving every other key untouched.
func (m *Mirror) SetMigrationMarker(marker string) error {
	return m.update(func(raw map[string]json.RawMessage) error {
		if marker == "" {
			delete(raw, KeyMigration)
			return nil
		}
		encoded, err := json.Marshal(marker)
		if err != nil {
			return err
		}
		raw[KeyMigration] = encoded
		return nil
	})
}

// WriteSnapshot replaces the items, alert settings and unlock flag with the
// snapshot contents. The migration marker on disk is kept as is.
func (m *Mirror) WriteSnapshot(snap Snapshot) error {
	err := m.update(func(raw map[string]json.RawMessage) error {
		items := snap.Items
		if items == nil {
			items = map[string]int64{}
		}
		encoded, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("encode items: %w", err)
		}
		raw[KeyViewedItems] = encoded

		if len(snap.AlertSettings) > 0 {
			if !json.Valid(snap.AlertSettings) {
				return errors.New("alert settings are not valid json")
			}
			raw[KeyAlertSettings] = append(json.RawMessage(nil), snap.AlertSettings...)
		} else {
			delete(raw, KeyAlertSettings)
		}

		if snap.PremiumUnlocked {
			raw[KeyPremiumUnlocked] = json.RawMessage("true")
		} else {
			delete(raw, KeyPremiumUnlocked)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if m.Enabled() {
		m.logger.Debug("legacy mirror refreshed",
			logging.Int("item_count", len(snap.Items)),
			logging.String("path", m.path))
	}
	return nil
}

func (m *Mirror) update(mutate func(map[string]json.RawMessage) error) error {
	if !m.Enabled() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create legacy directory: %w", err)
	}
	if err := m.lock.Lock(); err != nil {
		return fmt.Errorf("lock legacy file: %w", err)
	}
	defer m.unlock()

	raw, err := m.readRaw()
	if err != nil {
		return err
	}
	if err := mutate(raw); err != nil {
		return err
	}
	return m.writeRaw(raw)
}

func (m *Mirror) lockShared() error {
	if _, err := os.Stat(filepath.Dir(m.path)); errors.Is(err, fs.ErrNotExist) {
		// Nothing to share-lock against; readRaw reports the missing file.
		return nil
	}
	if err := m.lock.RLock(); err != nil {
		return fmt.Errorf("lock legacy file: %w", err)
	}
	return nil
}

func (m *Mirror) unlock() {
	if m.lock == nil || !m.lock.Locked() && !m.lock.RLocked() {
		return
	}
	if err := m.lock.Unlock(); err != nil {
		m.logger.Debug("legacy lock release failed", logging.Error(err))
	}
}

func (m *Mirror) readRaw() (map[string]json.RawMessage, error) {
	raw := map[string]json.RawMessage{}
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return raw, nil
		}
		return nil, fmt.Errorf("read legacy file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse legacy file: %w", err)
	}
	if raw == nil {
		raw = map[string]json.RawMessage{}
	}
	return raw, nil
}

func (m *Mirror) writeRaw(raw map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal legacy file: %w", err)
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// decode tolerates individual bad values; they are logged and skipped so a
// single corrupt entry cannot block migration of the rest.
func (m *Mirror) decode(raw map[string]json.RawMessage) Snapshot {
	snap := Snapshot{Items: map[string]int64{}}

	if data, ok := raw[KeyViewedItems]; ok && !isNull(data) {
		var values map[string]json.Number
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&values); err != nil {
			logging.WarnWithContext(m.logger, "legacy viewed items unreadable", "legacy_items_invalid",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect "+KeyViewedItems+" in the legacy file"),
				logging.String(logging.FieldImpact, "legacy viewed items will not be migrated"))
		}
		skipped := 0
		for id, value := range values {
			ts, ok := parseTimestamp(value)
			if id == "" || !ok {
				skipped++
				continue
			}
			snap.Items[id] = ts
		}
		if skipped > 0 {
			logging.WarnWithContext(m.logger, "skipped invalid legacy viewed items", "legacy_items_skipped",
				logging.Int("skipped", skipped),
				logging.String(logging.FieldImpact, "those items will appear unviewed"))
		}
	}

	if data, ok := raw[KeyAlertSettings]; ok && !isNull(data) {
		var compact bytes.Buffer
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) && json.Compact(&compact, data) == nil {
			snap.AlertSettings = json.RawMessage(compact.Bytes())
		} else {
			logging.WarnWithContext(m.logger, "legacy alert settings ignored", "legacy_settings_invalid",
				logging.String(logging.FieldImpact, "alert settings fall back to defaults"))
		}
	}

	if data, ok := raw[KeyPremiumUnlocked]; ok {
		snap.PremiumUnlocked = bytes.Equal(bytes.TrimSpace(data), []byte("true"))
	}

	if data, ok := raw[KeyMigration]; ok && !isNull(data) {
		var marker string
		if err := json.Unmarshal(data, &marker); err == nil {
			snap.MigrationMarker = marker
		}
	}
	return snap
}

func parseTimestamp(value json.Number) (int64, bool) {
	if ts, err := value.Int64(); err == nil {
		return ts, ts >= 0
	}
	f, err := value.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func isNull(data json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
