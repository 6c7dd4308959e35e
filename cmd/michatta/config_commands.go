package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"michatta/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigPathCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved configuration and data paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			paths := map[string]string{
				"config":   ctx.configPath,
				"data":     cfg.Paths.DataDir,
				"database": cfg.Paths.DatabasePath,
				"legacy":   cfg.Paths.LegacyPath,
				"api":      cfg.APIBaseURL(),
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, paths)
			}
			out := cmd.OutOrStdout()
			for _, key := range []string{"config", "data", "database", "legacy", "api"} {
				fmt.Fprintf(out, "%-9s %s\n", key+":", paths[key])
			}
			return nil
		},
	}
}
