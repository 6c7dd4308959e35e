package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"michatta/internal/storeaccess"
	"michatta/internal/viewed"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change alert settings",
	}

	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))

	return settingsCmd
}

func settingsRows(s viewed.AlertSettings) [][]string {
	return [][]string{
		{"ratings", strconv.Itoa(s.Ratings)},
		{"badRate", strconv.FormatFloat(s.BadRate, 'f', -1, 64)},
		{"listedDays", strconv.Itoa(s.ListedDays)},
		{"updatedDays", strconv.Itoa(s.UpdatedDays)},
		{"shipping47", yesNo(s.Shipping47)},
		{"shipping8", yesNo(s.Shipping8)},
	}
}

func printSettings(cmd *cobra.Command, ctx *commandContext, s viewed.AlertSettings) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, s)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, settingsRows(s), []columnAlignment{alignLeft, alignRight}))
	return nil
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show alert settings merged over defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, client *storeaccess.Client) error {
				settings, err := client.GetAlertSettings(c)
				if err != nil {
					return err
				}
				return printSettings(cmd, ctx, settings)
			})
		},
	}
}

var settingFlagNames = []string{"ratings", "bad-rate", "listed-days", "updated-days", "shipping47", "shipping8"}

func anyChanged(flags *pflag.FlagSet, names ...string) bool {
	for _, name := range names {
		if flags.Changed(name) {
			return true
		}
	}
	return false
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var next viewed.AlertSettings

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change individual alert settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !anyChanged(flags, settingFlagNames...) {
				return errors.New("no settings given; see --help for the available flags")
			}
			if next.Ratings < 0 || next.BadRate < 0 || next.ListedDays < 0 || next.UpdatedDays < 0 {
				return errors.New("settings must not be negative")
			}
			return ctx.withSession(cmd, func(c context.Context, client *storeaccess.Client) error {
				current, err := client.GetAlertSettings(c)
				if err != nil {
					return err
				}
				if flags.Changed("ratings") {
					current.Ratings = next.Ratings
				}
				if flags.Changed("bad-rate") {
					current.BadRate = next.BadRate
				}
				if flags.Changed("listed-days") {
					current.ListedDays = next.ListedDays
				}
				if flags.Changed("updated-days") {
					current.UpdatedDays = next.UpdatedDays
				}
				if flags.Changed("shipping47") {
					current.Shipping47 = next.Shipping47
				}
				if flags.Changed("shipping8") {
					current.Shipping8 = next.Shipping8
				}
				if err := client.SaveAlertSettings(c, current); err != nil {
					return err
				}
				return printSettings(cmd, ctx, current)
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&next.Ratings, "ratings", 0, "Minimum seller rating count")
	flags.Float64Var(&next.BadRate, "bad-rate", 0, "Maximum bad rating percentage")
	flags.IntVar(&next.ListedDays, "listed-days", 0, "Flag listings older than this many days")
	flags.IntVar(&next.UpdatedDays, "updated-days", 0, "Flag listings not updated for this many days")
	flags.BoolVar(&next.Shipping47, "shipping47", false, "Alert on 4-7 day shipping")
	flags.BoolVar(&next.Shipping8, "shipping8", false, "Alert on 8+ day shipping")
	return cmd
}
