package legacy_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"michatta/internal/legacy"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	m := legacy.Open(filepath.Join(t.TempDir(), "legacy.json"), nil)
	snap, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Items) != 0 || snap.AlertSettings != nil || snap.PremiumUnlocked || snap.MigrationMarker != "" {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestLoadDecodesLegacyKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	writeFile(t, path, `{
		"mercari_viewed_items": {"m1": 500, "m2": 600.0, "bad": "x", "neg": -4},
		"mercari_alert_settings": {"ratings": 50},
		"mercari_premium_unlocked": true
	}`)

	snap, err := legacy.Open(path, nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Items) != 2 || snap.Items["m1"] != 500 || snap.Items["m2"] != 600 {
		t.Fatalf("unexpected items: %v", snap.Items)
	}
	if string(snap.AlertSettings) != `{"ratings":50}` {
		t.Fatalf("unexpected settings: %s", snap.AlertSettings)
	}
	if !snap.PremiumUnlocked {
		t.Fatal("expected premium unlocked")
	}
	if snap.MigrationMarker != "" {
		t.Fatalf("expected no marker, got %q", snap.MigrationMarker)
	}
}

func TestPremiumFlagRequiresBooleanTrue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	for _, value := range []string{`"true"`, `1`, `false`, `null`} {
		writeFile(t, path, `{"mercari_premium_unlocked": `+value+`}`)
		snap, err := legacy.Open(path, nil).Load()
		if err != nil {
			t.Fatalf("Load(%s): %v", value, err)
		}
		if snap.PremiumUnlocked {
			t.Fatalf("value %s must not unlock premium", value)
		}
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	writeFile(t, path, `{not json`)
	if _, err := legacy.Open(path, nil).Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWriteSnapshotKeepsMarkerAndUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	writeFile(t, path, `{"michatta_migration_v2": "completed", "other_extension_key": [1, 2]}`)

	m := legacy.Open(path, nil)
	err := m.WriteSnapshot(legacy.Snapshot{
		Items:           map[string]int64{"m100": 1000},
		AlertSettings:   json.RawMessage(`{"ratings":10}`),
		PremiumUnlocked: true,
		MigrationMarker: "ignored",
	})
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	marker, err := m.MigrationMarker()
	if err != nil || marker != legacy.MarkerCompleted {
		t.Fatalf("marker = %q, %v", marker, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw["other_extension_key"]; !ok {
		t.Fatal("unknown keys must be preserved")
	}

	snap, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Items["m100"] != 1000 || !snap.PremiumUnlocked || string(snap.AlertSettings) != `{"ratings":10}` {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestWriteSnapshotEmptyResetsItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	m := legacy.Open(path, nil)
	if err := m.WriteSnapshot(legacy.Snapshot{Items: map[string]int64{"a": 1}, PremiumUnlocked: true}); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if err := m.WriteSnapshot(legacy.Snapshot{}); err != nil {
		t.Fatalf("WriteSnapshot empty: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw[legacy.KeyViewedItems]) != "{}" {
		t.Fatalf("expected empty items object, got %s", raw[legacy.KeyViewedItems])
	}
	if _, ok := raw[legacy.KeyPremiumUnlocked]; ok {
		t.Fatal("expected unlock flag removed")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file should not remain after write")
	}
}

func TestSetMigrationMarkerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "legacy.json")
	m := legacy.Open(path, nil)
	if err := m.SetMigrationMarker(legacy.MarkerCompleted); err != nil {
		t.Fatalf("SetMigrationMarker: %v", err)
	}
	marker, err := legacy.Open(path, nil).MigrationMarker()
	if err != nil || marker != legacy.MarkerCompleted {
		t.Fatalf("marker = %q, %v", marker, err)
	}
	if err := m.SetMigrationMarker(""); err != nil {
		t.Fatalf("clear marker: %v", err)
	}
	if marker, _ := m.MigrationMarker(); marker != "" {
		t.Fatalf("expected cleared marker, got %q", marker)
	}
}

func TestDisabledMirrorIsNoop(t *testing.T) {
	m := legacy.Open("  ", nil)
	if m.Enabled() {
		t.Fatal("blank path must disable the mirror")
	}
	if err := m.WriteSnapshot(legacy.Snapshot{Items: map[string]int64{"a": 1}}); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if err := m.SetMigrationMarker(legacy.MarkerCompleted); err != nil {
		t.Fatalf("SetMigrationMarker: %v", err)
	}
	snap, err := m.Load()
	if err != nil || len(snap.Items) != 0 {
		t.Fatalf("expected empty snapshot, got %+v, %v", snap, err)
	}
}
