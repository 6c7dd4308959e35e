package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"michatta/internal/storeaccess"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect and edit viewed items",
	}

	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsCountCommand(ctx))
	itemsCmd.AddCommand(newItemsCheckCommand(ctx))
	itemsCmd.AddCommand(newItemsAddCommand(ctx))
	itemsCmd.AddCommand(newItemsImportCommand(ctx))
	itemsCmd.AddCommand(newItemsClearCommand(ctx))

	return itemsCmd
}

type viewedEntry struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// sortedEntries orders items newest first, breaking ties by id.
func sortedEntries(items map[string]int64) []viewedEntry {
	entries := make([]viewedEntry, 0, len(items))
	for id, ts := range items {
		entries = append(entries, viewedEntry{ID: id, Timestamp: ts})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List viewed items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, client *storeaccess.Client) error {
				items, err := client.GetViewedItems(c)
				if err != nil {
					return err
				}
				entries := sortedEntries(items)
				if limit > 0 && len(entries) > limit {
					entries = entries[:limit]
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}

				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No viewed items")
					return nil
				}
				now := time.Now()
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{e.ID, formatTimestamp(e.Timestamp), formatAge(e.Timestamp, now)})
				}
				fmt.Fprintln(out, renderTable([]string{"Item", "Viewed", "Age"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
				fmt.Fprintf(out, "%s of %s items\n", formatCount(len(entries)), formatCount(len(items)))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many items (0 for all)")
	return cmd
}

func newItemsCountCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of viewed items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, client *storeaccess.Client) error {
				count, err := client.GetViewedItemsCount(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"count": count})
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatCount(count))
				return nil
			})
		},
	}
}

func newItemsCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <id>...",
		Short: "Report whether items were viewed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, client *storeaccess.Client) error {
				found, err := client.GetViewedItemsBatch(c, args)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, found)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, id := range args {
					ts, ok := found[id]
					if !ok {
						fmt.Fprintln(out, renderStatusLine(id, statusInfo, "not viewed", colorize))
						continue
					}
					fmt.Fprintln(out, renderStatusLine(id, statusOK, "viewed "+formatTimestamp(ts), colorize))
				}
				return nil
			})
		},
	}
}

func newItemsAddCommand(ctx *commandContext) *cobra.Command {
	var at int64

	cmd := &cobra.Command{
		Use:   "add <id>...",
		Short: "Mark items as viewed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				id := strings.TrimSpace(arg)
				if id == "" {
					return errors.New("item id must not be empty")
				}
				ids = append(ids, id)
			}
			return ctx.withSession(cmd, func(c context.Context, client *storeaccess.Client) error {
				if cmd.Flags().Changed("at") {
					entries := make(map[string]int64, len(ids))
					for _, id := range ids {
						entries[id] = at
					}
					if err := client.SaveViewedItemsBulk(c, entries); err != nil {
						return err
					}
				} else {
					for _, id := range ids {
						if err := client.SaveViewedItem(c, id); err != nil {
							return fmt.Errorf("save %s: %w", id, err)
						}
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s items as viewed\n", formatCount(len(ids)))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&at, "at", 0, "Timestamp in milliseconds since the epoch (default now)")
	return cmd
}

// readImportFile decodes a JSON object mapping item ids to millisecond
// timestamps.
func readImportFile(path string) (map[string]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	var entries map[string]int64
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse import file: expected an object of id to millisecond timestamp: %w", err)
	}
	if entries == nil {
		return nil, errors.New("parse import file: expected an object of id to millisecond timestamp")
	}
	return entries, nil
}

func newItemsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import viewed items from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readImportFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(c context.Context, client *storeaccess.Client) error {
				if err := client.SaveViewedItemsBulk(c, entries); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"imported": len(entries)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s items\n", formatCount(len(entries)))
				return nil
			})
		},
	}
}

func newItemsClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every viewed item (settings are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to clear viewed items without --yes")
			}
			return ctx.withSession(cmd, func(c context.Context, client *storeaccess.Client) error {
				if err := client.ClearAllViewedItems(c); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared all viewed items")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the irreversible clear")
	return cmd
}
