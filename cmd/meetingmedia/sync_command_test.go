package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"meetingmedia/internal/assembler"
	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/mediasync"
	"meetingmedia/internal/schedule"
	"meetingmedia/internal/services"
)

func TestPrintReport(t *testing.T) {
	tuesday := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	report := &mediasync.Report{Days: []mediasync.DayOutcome{
		{
			Meeting: schedule.Meeting{Date: tuesday, Kind: schedule.Midweek},
			Items: []mediasync.ItemOutcome{
				{File: mediaindex.File{Size: 1500}, Name: "01-01 - Song 8.mp4", Path: "/out/01-01 - Song 8.mp4"},
				{File: mediaindex.File{Hidden: true}, Name: "00-00 - Song 20.mp4"},
				{Name: "02-01 - Picture.jpg", Err: errors.New("connection reset")},
			},
			Failures: []assembler.Failure{{Ordinal: 3, Source: mediaindex.SourceExtract, Err: errors.New("sjjm/12 not published")}},
		},
		{
			Meeting: schedule.Meeting{Date: sunday, Kind: schedule.Weekend},
			Err:     services.Wrap(services.ErrNoSchedule, "2024-01-07", "locate", errors.New("no issue")),
		},
	}}

	var buf bytes.Buffer
	printReport(&buf, report, false)
	out := buf.String()

	lines := strings.Split(out, "\n")
	if !strings.Contains(lines[0], "[WARN] 1 items (1.5 kB), 1 hidden, 2 failed") {
		t.Fatalf("unexpected midweek line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[INFO] no meeting media") {
		t.Fatalf("unexpected weekend line %q", lines[1])
	}
	requireContains(t, out, "1 placed, 1 hidden, 2 failed")
	requireContains(t, out, "connection reset")
	requireContains(t, out, "part 3 (extract)")
	requireContains(t, out, "sjjm/12 not published")
}

func TestDaySummaryCountsRemovals(t *testing.T) {
	day := mediasync.DayOutcome{
		Items:   []mediasync.ItemOutcome{{File: mediaindex.File{Hidden: true}, Name: "00-00 - x.mp4"}},
		Removed: 1,
	}
	if got := daySummary(day); got != "0 items (0 B), 1 hidden, 1 removed" {
		t.Fatalf("daySummary = %q", got)
	}
	if dayStatus(day) != statusOK {
		t.Fatalf("expected OK status")
	}
}

func TestDayStatusSeparatesMissingPublicationFromNetwork(t *testing.T) {
	unpublished := mediasync.DayOutcome{
		Err: services.Wrap(services.ErrNoDatabase, "2024-01-07", "locate weekend document", errors.New("not published")),
	}
	if dayStatus(unpublished) != statusInfo || daySummary(unpublished) != "meeting publication not available yet" {
		t.Fatalf("unexpected rendering %v %q", dayStatus(unpublished), daySummary(unpublished))
	}

	offline := mediasync.DayOutcome{
		Err: services.Wrap(services.ErrNetwork, "2024-01-02", "locate midweek document", errors.New("status 503")),
	}
	if dayStatus(offline) != statusError {
		t.Fatalf("network failure should be an error, got %v", dayStatus(offline))
	}
	if !strings.Contains(daySummary(offline), "network failure") {
		t.Fatalf("unexpected summary %q", daySummary(offline))
	}
}
