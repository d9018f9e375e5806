package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"meetingmedia/internal/logging"
	"meetingmedia/internal/mediasync"
	"meetingmedia/internal/services"
)

type rangeFlags struct {
	from  string
	to    string
	weeks int
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "First date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&f.to, "to", "", "Last date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&f.weeks, "weeks", "w", 0, "Weeks to cover when --to is omitted (default from config)")
}

func (f *rangeFlags) resolve(defaultWeeks int) (time.Time, time.Time, error) {
	weeks := f.weeks
	if weeks <= 0 {
		weeks = defaultWeeks
	}
	return parseRange(f.from, f.to, weeks, time.Now())
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var flags rangeFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download and place media for upcoming meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			from, to, err := flags.resolve(cfg.Meetings.WeeksAhead)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			reporter := newProgressReporter(out, ctx.log())
			coordinator, err := ctx.coordinator(cmd.Context(), reporter.update)
			if err != nil {
				return err
			}
			report, err := coordinator.SyncRange(cmd.Context(), from, to)
			reporter.finish()
			if err != nil {
				return err
			}

			printReport(out, report, isTerminal(out))
			if _, _, failed := report.Totals(); failed > 0 {
				return fmt.Errorf("%d item(s) failed", failed)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printReport(out io.Writer, report *mediasync.Report, colorize bool) {
	var failures [][]string
	for _, day := range report.Days {
		label := day.Meeting.Date.Format("Mon 01-02")
		fmt.Fprintln(out, renderStatusLine(label, dayStatus(day), daySummary(day), colorize))
		for _, item := range day.Items {
			if item.Err != nil {
				failures = append(failures, []string{dayKey(day), item.Name, item.Err.Error()})
			}
		}
		for _, f := range day.Failures {
			failures = append(failures, []string{dayKey(day), fmt.Sprintf("part %d (%s)", f.Ordinal, f.Source), f.Err.Error()})
		}
	}
	placed, hidden, failed := report.Totals()
	fmt.Fprintf(out, "\n%d placed, %d hidden, %d failed\n", placed, hidden, failed)
	if len(failures) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Date", "Item", "Error"}, failures))
	}
}

func dayKey(day mediasync.DayOutcome) string {
	return day.Meeting.Date.Format(dateFlagLayout)
}

func dayStatus(day mediasync.DayOutcome) statusKind {
	switch {
	case mediasync.ScheduleMissing(day.Err), services.Kind(day.Err) == "no_database":
		return statusInfo
	case day.Err != nil:
		return statusError
	}
	for _, item := range day.Items {
		if item.Err != nil {
			return statusWarn
		}
	}
	if len(day.Failures) > 0 {
		return statusWarn
	}
	return statusOK
}

func daySummary(day mediasync.DayOutcome) string {
	switch {
	case mediasync.ScheduleMissing(day.Err):
		return "no meeting media"
	case services.Kind(day.Err) == "no_database":
		return "meeting publication not available yet"
	}
	if day.Err != nil {
		return day.Err.Error()
	}
	var placed, copied, hidden, failed int
	var bytes int64
	for _, item := range day.Items {
		switch {
		case item.File.Hidden:
			hidden++
		case item.Err != nil:
			failed++
		default:
			placed++
			bytes += item.File.Size
			if item.Copied {
				copied++
			}
		}
	}
	failed += len(day.Failures)
	msg := fmt.Sprintf("%d items (%s)", placed, humanize.Bytes(uint64(max(bytes, 0))))
	if hidden > 0 {
		msg += fmt.Sprintf(", %d hidden", hidden)
	}
	if failed > 0 {
		msg += fmt.Sprintf(", %d failed", failed)
	}
	if day.Removed > 0 {
		msg += fmt.Sprintf(", %d removed", day.Removed)
	}
	return msg
}

// progressReporter draws a byte progress bar on terminals and falls back to
// sampled log lines elsewhere.
type progressReporter struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	sampler *logging.ProgressSampler
	logger  *slog.Logger
}

func newProgressReporter(out io.Writer, logger *slog.Logger) *progressReporter {
	r := &progressReporter{logger: logger}
	if isTerminal(out) {
		r.bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
	} else {
		r.sampler = logging.NewProgressSampler(25)
	}
	return r
}

func (r *progressReporter) update(loaded, total int64, global bool) {
	if !global || total <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.ChangeMax64(total)
		_ = r.bar.Set64(loaded)
		return
	}
	if r.sampler.ShouldLog(loaded, total) {
		r.logger.Info("download progress",
			logging.String(logging.FieldEventType, "download_progress"),
			logging.String("loaded", humanize.Bytes(uint64(loaded))),
			logging.String("total", humanize.Bytes(uint64(total))))
	}
}

func (r *progressReporter) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}
