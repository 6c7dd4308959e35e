package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"michatta/internal/storeaccess"
)

func newPremiumCommand(ctx *commandContext) *cobra.Command {
	premiumCmd := &cobra.Command{
		Use:   "premium",
		Short: "Inspect or set the premium unlock flag",
	}

	premiumCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether premium is unlocked",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, client *storeaccess.Client) error {
				unlocked, err := client.IsPremiumUnlocked(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]bool{"unlocked": unlocked})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Premium unlocked: %s\n", yesNo(unlocked))
				return nil
			})
		},
	})

	premiumCmd.AddCommand(&cobra.Command{
		Use:   "unlock",
		Short: "Unlock premium features",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, client *storeaccess.Client) error {
				if err := client.UnlockPremium(c); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Premium unlocked")
				return nil
			})
		},
	})

	return premiumCmd
}
