package viewed

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"michatta/internal/logging"
)

// Setting names stored in the settings table.
const (
	SettingAlertSettings   = "alertSettings"
	SettingPremiumUnlocked = "premiumUnlocked"
)

// AlertSettings are the listing-quality thresholds used by the popup and
// content scripts.
type AlertSettings struct {
	Ratings     int     `json:"ratings"`
	BadRate     float64 `json:"badRate"`
	ListedDays  int     `json:"listedDays"`
	UpdatedDays int     `json:"updatedDays"`
	Shipping47  bool    `json:"shipping47"`
	Shipping8   bool    `json:"shipping8"`
}

// DefaultAlertSettings returns the compiled-in thresholds.
func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		Ratings:     100,
		BadRate:     5,
		ListedDays:  180,
		UpdatedDays: 90,
	}
}

// AlertSettings returns the stored thresholds shallow-merged over the
// defaults: stored fields win, missing fields keep their default.
func (s *Store) AlertSettings(ctx context.Context) AlertSettings {
	ctx = ensureContext(ctx)
	settings := DefaultAlertSettings()

	raw, found, err := s.readSetting(ctx, SettingAlertSettings)
	if err != nil {
		s.readFailed(ctx, "get_alert_settings", err)
		return settings
	}
	if !found {
		return settings
	}
	// Unmarshal assigns every well-typed field before reporting the first
	// mismatch, so a partially bad record still merges what it can.
	if err := json.Unmarshal(raw, &settings); err != nil {
		logging.WarnWithContext(s.log(ctx), "stored alert settings partially unreadable", "alert_settings_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "save alert settings again to rewrite the record"),
			logging.String(logging.FieldImpact, "mistyped fields fall back to defaults"))
	}
	return settings
}

// StoredAlertSettings returns the raw stored object, nil when never saved.
func (s *Store) StoredAlertSettings(ctx context.Context) json.RawMessage {
	ctx = ensureContext(ctx)
	raw, found, err := s.readSetting(ctx, SettingAlertSettings)
	if err != nil {
		s.readFailed(ctx, "get_stored_alert_settings", err)
		return nil
	}
	if !found {
		return nil
	}
	return raw
}

// integerSettingFields are the AlertSettings keys decoded into int fields.
var integerSettingFields = []string{"ratings", "listedDays", "updatedDays"}

// maxExactFloat is the largest magnitude at which every integer is exactly
// representable as a float64.
const maxExactFloat = 1 << 53

// normalizeAlertSettings checks that value is a JSON object and rewrites
// whole-number floats in integer fields (50.0, 5e1) as integers so they read
// back. Fractional values there are rejected. Other keys pass through.
func normalizeAlertSettings(value json.RawMessage) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidSettings)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidSettings)
	}
	for _, key := range integerSettingFields {
		n, ok := fields[key].(json.Number)
		if !ok {
			continue
		}
		if _, err := n.Int64(); err == nil {
			continue
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactFloat {
			return nil, fmt.Errorf("%w: %s must be a whole number, got %s", ErrInvalidSettings, key, n)
		}
		fields[key] = json.Number(strconv.FormatInt(int64(f), 10))
	}
	return json.Marshal(fields)
}

// SaveAlertSettings overwrites the stored thresholds with value, which must
// be a JSON object. Fields are not merged with the previous record.
func (s *Store) SaveAlertSettings(ctx context.Context, value json.RawMessage) error {
	ctx = ensureContext(ctx)
	normalized, err := normalizeAlertSettings(value)
	if err != nil {
		s.writeFailed(ctx, "save_alert_settings", err)
		return err
	}
	if err := s.writeSetting(ctx, SettingAlertSettings, normalized); err != nil {
		err = fmt.Errorf("save alert settings: %w", err)
		s.writeFailed(ctx, "save_alert_settings", err)
		return err
	}
	s.log(ctx).Info("saved alert settings", logging.String(logging.FieldEventType, "alert_settings_saved"))
	s.requestRefresh()
	return nil
}

// PremiumUnlocked reports whether the unlock flag is stored as boolean true.
// Any other stored value counts as locked.
func (s *Store) PremiumUnlocked(ctx context.Context) bool {
	ctx = ensureContext(ctx)
	raw, found, err := s.readSetting(ctx, SettingPremiumUnlocked)
	if err != nil {
		s.readFailed(ctx, "is_premium_unlocked", err)
		return false
	}
	return found && bytes.Equal(bytes.TrimSpace(raw), []byte("true"))
}

// UnlockPremium stores the unlock flag.
func (s *Store) UnlockPremium(ctx context.Context) error {
	ctx = ensureContext(ctx)
	if err := s.writeSetting(ctx, SettingPremiumUnlocked, []byte("true")); err != nil {
		err = fmt.Errorf("unlock premium: %w", err)
		s.writeFailed(ctx, "unlock_premium", err)
		return err
	}
	s.log(ctx).Info("premium unlocked", logging.String(logging.FieldEventType, "premium_unlocked"))
	s.requestRefresh()
	return nil
}

func (s *Store) readSetting(ctx context.Context, key string) (json.RawMessage, bool, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, false, err
	}
	var value string
	err = retryOnBusy(ctx, func() error {
		return db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

func (s *Store) writeSetting(ctx context.Context, key string, value []byte) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	return retryOnBusy(ctx, func() error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, string(value))
		return err
	})
}
