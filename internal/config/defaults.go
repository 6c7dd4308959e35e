package config

const (
	defaultDataDir            = "~/.local/share/michatta"
	defaultDatabaseFile       = "viewed.db"
	defaultLegacyFile         = "legacy_storage.json"
	defaultAPIBind            = "127.0.0.1:7611"
	defaultCacheCapacity      = 1000
	defaultMigrationBatchSize = 100
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults. Derived paths
// stay empty until Load normalizes them against the data directory.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Cache: Cache{
			Capacity: defaultCacheCapacity,
		},
		Migration: Migration{
			Enabled:   true,
			BatchSize: defaultMigrationBatchSize,
		},
		Mirror: Mirror{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
