package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"meetingmedia/internal/config"
	"meetingmedia/internal/overrides"
)

func newCongregationCommand(ctx *commandContext) *cobra.Command {
	congCmd := &cobra.Command{
		Use:     "congregation",
		Aliases: []string{"cong"},
		Short:   "Manage congregation uploads and hidden items",
	}
	congCmd.AddCommand(newCongregationListCommand(ctx))
	congCmd.AddCommand(newCongregationAddCommand(ctx))
	congCmd.AddCommand(newCongregationRemoveCommand(ctx))
	congCmd.AddCommand(newCongregationHideCommand(ctx, false))
	congCmd.AddCommand(newCongregationHideCommand(ctx, true))
	return congCmd
}

func (c *commandContext) store() (*overrides.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return openStore(cfg, c.log())
}

func openStore(cfg *config.Config, logger *slog.Logger) (*overrides.Store, error) {
	if !cfg.Congregation.Enabled {
		return nil, errors.New("congregation store is disabled (set congregation.enabled in the config)")
	}
	backend, err := overrides.NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return overrides.NewStore(backend, cfg.Media.DateFormat, logger), nil
}

func newCongregationListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List congregation uploads and hidden markers",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			listing, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			var rows [][]string
			for _, e := range listing.Recurring {
				rows = append(rows, []string{"recurring", e.Name, sizeLabel(e.Size), "no"})
			}
			for _, key := range sortedKeys(listing.Media) {
				for _, e := range listing.Media[key] {
					rows = append(rows, []string{key, e.Name, sizeLabel(e.Size), "no"})
				}
			}
			for _, key := range sortedKeys(listing.Hidden) {
				for _, name := range listing.Hidden[key] {
					rows = append(rows, []string{key, name, "-", "yes"})
				}
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No congregation items")
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"Date", "Name", "Size", "Hidden"}, rows, alignLeft, alignLeft, alignRight, alignLeft))
			return nil
		},
	}
}

func newCongregationAddCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <date|recurring> <file>",
		Short: "Upload a file for one meeting date or for every meeting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			folder, err := storeFolder(store, args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open upload: %w", err)
			}
			defer file.Close()

			target := strings.TrimSpace(name)
			if target == "" {
				target = filepath.Base(args[1])
			}
			if err := store.Put(cmd.Context(), folder, target, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", target, folder)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name to store the file under")
	return cmd
}

func newCongregationRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <date|recurring> <name>",
		Short: "Delete a congregation upload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			folder, err := storeFolder(store, args[0])
			if err != nil {
				return err
			}
			entry := overrides.Entry{Folder: folder, Name: args[1], Recurring: folder == overrides.RecurringFolder}
			if err := store.Remove(cmd.Context(), entry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", entry.Path())
			return nil
		},
	}
}

func newCongregationHideCommand(ctx *commandContext, unhide bool) *cobra.Command {
	use, short := "hide", "Hide an item from a meeting"
	if unhide {
		use, short = "unhide", "Show a previously hidden item again"
	}
	return &cobra.Command{
		Use:   use + " <date> <name>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			date, err := parseDay(args[0], time.Now())
			if err != nil {
				return err
			}
			if unhide {
				err = store.Unhide(cmd.Context(), date, args[1])
			} else {
				err = store.Hide(cmd.Context(), date, args[1])
			}
			if err != nil {
				return err
			}
			verb := "Hid"
			if unhide {
				verb = "Unhid"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s on %s\n", verb, args[1], date.Format(dateFlagLayout))
			return nil
		},
	}
}

func newDateFormatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "date-format <layout>",
		Short: "Rename dated output and congregation folders to a new layout",
		Long: "Rename dated output and congregation folders to a new Go time layout, " +
			"for example 2006-01-02 or 20060102. Update media.date_format afterwards.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			probe := *cfg
			probe.Media.DateFormat = args[0]
			if err := probe.Validate(); err != nil {
				return err
			}
			coordinator, err := ctx.coordinator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			renamed, err := coordinator.ChangeDateLayout(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Renamed %d folder(s)\n", renamed)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Set date_format = %q in the [media] section of the config\n", args[0])
			return nil
		},
	}
}

func storeFolder(store *overrides.Store, value string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(value), "recurring") {
		return overrides.RecurringFolder, nil
	}
	date, err := parseDay(value, time.Now())
	if err != nil {
		return "", err
	}
	return store.Folder(date), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
