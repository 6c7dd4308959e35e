package main

import (
	"context"
	"fmt"
	"log/slog"

	"michatta/internal/config"
	"michatta/internal/daemon"
	"michatta/internal/legacy"
	"michatta/internal/logging"
	"michatta/internal/preflight"
	"michatta/internal/viewed"
)

func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("build daemon: config is required")
	}
	mirror := legacy.Open(cfg.Paths.LegacyPath, logger)
	store := viewed.FromConfig(cfg, mirror, logger)
	d, err := daemon.New(cfg, store, mirror, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

// warnPreflight logs failed data directory checks without blocking startup.
func warnPreflight(logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.CheckDataDir(cfg.Paths.DataDir) {
		if result.Passed {
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "writes to the viewed store may fail"))
	}
}

// run starts the daemon and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	warnPreflight(logger, cfg)

	d, err := buildDaemon(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-ctx.Done()
	logger.Info("michattad shutting down")
	return nil
}
