package testsupport

import (
	"path/filepath"
	"testing"

	"michatta/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.DatabasePath = filepath.Join(cfgVal.Paths.DataDir, "viewed.db")
	cfgVal.Paths.LegacyPath = filepath.Join(cfgVal.Paths.DataDir, "legacy_storage.json")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Logging.Level = "debug"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithCacheCapacity overrides the recency cache size.
func WithCacheCapacity(capacity int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Capacity = capacity
	}
}

// WithBatchSize overrides the migration batch size.
func WithBatchSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Migration.BatchSize = size
	}
}

// WithAPIToken sets the bearer token required by the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithoutMirror disables legacy mirror refreshes.
func WithoutMirror() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mirror.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
