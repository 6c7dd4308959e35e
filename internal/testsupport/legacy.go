package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteLegacyFile writes raw JSON to the configured legacy storage path.
func WriteLegacyFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
