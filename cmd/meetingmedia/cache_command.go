package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"meetingmedia/internal/mediacache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the publication cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and free space",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache := mediacache.New(cfg.Paths.AppDir, nil, ctx.log())
			stats, err := cache.Stats()
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Location", cache.Root()},
				{"Files", strconv.Itoa(stats.Files)},
				{"Archives", strconv.Itoa(stats.Archives)},
				{"Size", humanize.Bytes(uint64(max(stats.Bytes, 0)))},
				{"Free space", humanize.Bytes(stats.FreeBytes)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Cache", "Value"}, rows, alignLeft, alignRight))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached publication and congregation file",
		RunE: func(cmd *cobra.Command, args []string) error {
			coordinator, err := ctx.coordinator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			before, err := coordinator.Cache().Stats()
			if err != nil {
				return err
			}
			if err := coordinator.ClearCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d files (%s)\n", before.Files, humanize.Bytes(uint64(max(before.Bytes, 0))))
			return nil
		},
	}
}
