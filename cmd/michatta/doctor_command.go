package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"michatta/internal/legacy"
	"michatta/internal/preflight"
	"michatta/internal/viewed"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the data directory, database, and legacy file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			c := cmd.Context()
			if c == nil {
				c = context.Background()
			}

			logger := ctx.logger()
			mirror := legacy.Open(cfg.Paths.LegacyPath, logger)
			store := viewed.New(cfg.Paths.DatabasePath, viewed.WithLogger(logger))
			defer store.Close()

			results := preflight.RunAll(c, cfg, store, mirror)
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					state := "ok"
					if !r.Passed {
						state = "FAIL"
					}
					rows = append(rows, []string{r.Name, state, r.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Result", "Detail"}, rows, nil))
			}

			if !preflight.AllPassed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}
