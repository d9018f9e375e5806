package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/mediasync"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var flags rangeFlags

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the media each meeting would receive without downloading",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			from, to, err := flags.resolve(cfg.Meetings.WeeksAhead)
			if err != nil {
				return err
			}
			coordinator, err := ctx.coordinator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			report, err := coordinator.Plan(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), report, isTerminal(cmd.OutOrStdout()))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printPlan(out io.Writer, report *mediasync.Report, colorize bool) {
	var rows [][]string
	for _, day := range report.Days {
		if day.Err != nil {
			fmt.Fprintln(out, renderStatusLine(day.Meeting.Date.Format("Mon 01-02"), dayStatus(day), daySummary(day), colorize))
			continue
		}
		for _, item := range day.Items {
			rows = append(rows, []string{
				dayKey(day),
				partLabel(item.File),
				item.Name,
				string(item.File.Source),
				sizeLabel(item.File.Size),
				yesNo(item.File.Hidden),
			})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No media planned")
		return
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Date", "Part", "Name", "Source", "Size", "Hidden"},
		rows,
		alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft,
	))
}

func partLabel(f mediaindex.File) string {
	if f.Ordinal == mediaindex.DateLevel {
		return "-"
	}
	if f.ParagraphLabel != "" {
		return f.ParagraphLabel
	}
	return strconv.Itoa(f.Ordinal)
}

func sizeLabel(size int64) string {
	if size <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(size))
}
