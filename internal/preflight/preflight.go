package preflight

import (
	"context"

	"michatta/internal/config"
	"michatta/internal/legacy"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// CheckDataDir runs the access and free-space checks on the data directory.
func CheckDataDir(path string) []Result {
	access := CheckDirectoryAccess("Data directory", path)
	if !access.Passed {
		return []Result{access}
	}
	return []Result{access, CheckFreeSpace("Free space", path)}
}

// RunAll executes every check for the given config, store and mirror.
func RunAll(ctx context.Context, cfg *config.Config, db Database, mirror *legacy.Mirror) []Result {
	if cfg == nil {
		return nil
	}
	results := CheckDataDir(cfg.Paths.DataDir)
	if db != nil {
		results = append(results, CheckDatabase(ctx, db))
	}
	if mirror != nil {
		results = append(results, CheckLegacy(mirror))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
