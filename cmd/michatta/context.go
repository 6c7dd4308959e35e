package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"michatta/internal/config"
	"michatta/internal/legacy"
	"michatta/internal/logging"
	"michatta/internal/migration"
	"michatta/internal/storeaccess"
	"michatta/internal/viewed"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool
	localFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag, localFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
		localFlag:  localFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) localOnly() bool {
	return c.localFlag != nil && *c.localFlag
}

// logger writes warnings from in-process store access to stderr so command
// output stays clean.
func (c *commandContext) logger() *slog.Logger {
	format := "console"
	if c.config != nil {
		format = c.config.Logging.Format
	}
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// dialDaemon returns a caller for the configured daemon, or an error when it
// does not answer.
func (c *commandContext) dialDaemon(ctx context.Context) (*storeaccess.HTTPCaller, error) {
	if c.localOnly() {
		return nil, storeaccess.ErrDaemonUnavailable
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return storeaccess.Dial(ctx, cfg.APIBaseURL(), cfg.Paths.APIToken)
}

// openLocalStore opens the configured store in-process and runs the legacy
// migration first when it is enabled.
func (c *commandContext) openLocalStore(ctx context.Context) (*viewed.Store, *legacy.Mirror, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := c.logger()
	mirror := legacy.Open(cfg.Paths.LegacyPath, logger)
	store := viewed.FromConfig(cfg, mirror, logger)
	if err := store.Open(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if cfg.Migration.Enabled {
		m := migration.New(store, mirror,
			migration.WithBatchSize(cfg.Migration.BatchSize),
			migration.WithLogger(logger))
		if _, err := m.Run(ctx); err != nil {
			logging.WarnWithContext(logger, "legacy migration failed", "migration_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "legacy items are not in the store yet; the next run retries"))
		}
	}
	return store, mirror, nil
}

func (c *commandContext) withSession(cmd *cobra.Command, fn func(context.Context, *storeaccess.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	session, err := storeaccess.OpenWithFallback(
		func() (*storeaccess.HTTPCaller, error) { return c.dialDaemon(ctx) },
		func() (*viewed.Store, error) {
			store, _, err := c.openLocalStore(ctx)
			return store, err
		},
		cfg.LockPath(),
	)
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(ctx, session.Client)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func requireConfig(ctx *commandContext) (*config.Config, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
