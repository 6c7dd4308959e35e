package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"michatta/internal/legacy"
	"michatta/internal/migration"
	"michatta/internal/storeaccess"
	"michatta/internal/viewed"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Import the legacy storage file into the viewed store",
		Long: "Import the legacy storage file into the viewed store.\n\n" +
			"The import runs at most once; later runs report that it was skipped.\n" +
			"It refuses to run while michattad is up, since the daemon migrates on start.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			c := cmd.Context()
			if c == nil {
				c = context.Background()
			}

			lock, err := storeaccess.AcquireLocal(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			logger := ctx.logger()
			mirror := legacy.Open(cfg.Paths.LegacyPath, logger)
			store := viewed.FromConfig(cfg, mirror, logger)
			defer store.Close()
			if err := store.Open(c); err != nil {
				return fmt.Errorf("open viewed store: %w", err)
			}

			m := migration.New(store, mirror,
				migration.WithBatchSize(cfg.Migration.BatchSize),
				migration.WithLogger(logger))
			result, err := m.Run(c)
			if err != nil {
				return fmt.Errorf("migrate legacy storage: %w", err)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			if result.Skipped {
				fmt.Fprintln(out, "Migration already completed; nothing to do")
				return nil
			}
			fmt.Fprintf(out, "Migrated %s items in %s batches\n", formatCount(result.ItemsMigrated), formatCount(result.Batches))
			fmt.Fprintf(out, "Alert settings migrated: %s\n", yesNo(result.SettingsMigrated))
			fmt.Fprintf(out, "Premium flag migrated: %s\n", yesNo(result.PremiumMigrated))
			return nil
		},
	}
}
