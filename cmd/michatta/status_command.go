package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"michatta/internal/daemon"
	"michatta/internal/legacy"
	"michatta/internal/viewed"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context()
			if c == nil {
				c = context.Background()
			}

			status, err := daemonStatus(c, ctx)
			if err != nil {
				status, err = localStatus(c, ctx)
				if err != nil {
					return err
				}
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderStatus(status, shouldColorize(out)))
			return nil
		},
	}
}

func daemonStatus(c context.Context, ctx *commandContext) (daemon.Status, error) {
	caller, err := ctx.dialDaemon(c)
	if err != nil {
		return daemon.Status{}, err
	}
	defer caller.Close()
	return caller.Status(c)
}

// localStatus reports what can be learned without a daemon. The legacy
// marker stands in for the migration state.
func localStatus(c context.Context, ctx *commandContext) (daemon.Status, error) {
	cfg, err := requireConfig(ctx)
	if err != nil {
		return daemon.Status{}, err
	}
	logger := ctx.logger()
	mirror := legacy.Open(cfg.Paths.LegacyPath, logger)
	store := viewed.New(cfg.Paths.DatabasePath, viewed.WithLogger(logger))
	defer store.Close()

	status := daemon.Status{
		DatabasePath: cfg.Paths.DatabasePath,
		LegacyPath:   mirror.Path(),
		LockPath:     cfg.LockPath(),
		ViewedCount:  store.Count(c),
		Migration:    daemon.MigrationStatus{State: daemon.MigrationPending},
	}
	switch marker, err := mirror.MigrationMarker(); {
	case !cfg.Migration.Enabled:
		status.Migration.State = daemon.MigrationDisabled
	case err != nil:
		status.Migration = daemon.MigrationStatus{State: daemon.MigrationFailed, Error: err.Error()}
	case marker == legacy.MarkerCompleted:
		status.Migration.State = daemon.MigrationCompleted
	}
	return status, nil
}

func renderStatus(status daemon.Status, colorize bool) string {
	var b strings.Builder
	b.WriteString("Daemon\n")
	if status.Running {
		msg := fmt.Sprintf("pid %d", status.PID)
		if status.APIAddress != "" {
			msg += " on " + status.APIAddress
		}
		b.WriteString(renderStatusLine("Daemon", statusOK, msg, colorize) + "\n")
	} else {
		b.WriteString(renderStatusLine("Daemon", statusWarn, "not running; commands open the store directly", colorize) + "\n")
	}

	b.WriteString("\nStore\n")
	b.WriteString(renderStatusLine("Database", statusInfo, status.DatabasePath, colorize) + "\n")
	legacyPath := status.LegacyPath
	if legacyPath == "" {
		legacyPath = "disabled"
	}
	b.WriteString(renderStatusLine("Legacy file", statusInfo, legacyPath, colorize) + "\n")
	b.WriteString(renderStatusLine("Viewed items", statusInfo, formatCount(status.ViewedCount), colorize) + "\n")

	kind := statusInfo
	switch status.Migration.State {
	case daemon.MigrationCompleted, daemon.MigrationSkipped:
		kind = statusOK
	case daemon.MigrationPending:
		kind = statusWarn
	case daemon.MigrationFailed:
		kind = statusError
	}
	msg := titleState(status.Migration.State)
	if status.Migration.Error != "" {
		msg += ": " + status.Migration.Error
	}
	b.WriteString(renderStatusLine("Migration", kind, msg, colorize) + "\n")
	return b.String()
}
