package mediasync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"meetingmedia/internal/assembler"
	"meetingmedia/internal/logging"
	"meetingmedia/internal/mediacache"
	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/overrides"
	"meetingmedia/internal/progress"
	"meetingmedia/internal/publications"
	"meetingmedia/internal/schedule"
	"meetingmedia/internal/services"
)

// Options locate the output tree.
type Options struct {
	Lang       string
	OutputDir  string
	DateLayout string
}

// Deps are the collaborators a coordinator drives. Store may be nil when
// congregation overrides are disabled; Tracker may be nil.
type Deps struct {
	Calendar  *schedule.Calendar
	Locator   *schedule.Locator
	Assembler *assembler.Assembler
	Library   *publications.Library
	Cache     *mediacache.Cache
	Store     *overrides.Store
	Tracker   *progress.Tracker
	Logger    *slog.Logger
}

// Coordinator runs sync passes.
type Coordinator struct {
	calendar  *schedule.Calendar
	locator   *schedule.Locator
	assembler *assembler.Assembler
	library   *publications.Library
	cache     *mediacache.Cache
	store     *overrides.Store
	tracker   *progress.Tracker
	index     *mediaindex.Index
	logger    *slog.Logger

	mu   sync.Mutex
	opts Options
}

// New constructs a coordinator.
func New(deps Deps, opts Options) *Coordinator {
	tracker := deps.Tracker
	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}
	return &Coordinator{
		calendar:  deps.Calendar,
		locator:   deps.Locator,
		assembler: deps.Assembler,
		library:   deps.Library,
		cache:     deps.Cache,
		store:     deps.Store,
		tracker:   tracker,
		index:     mediaindex.New(),
		logger:    logging.NewComponentLogger(deps.Logger, "mediasync"),
		opts:      opts,
	}
}

// Index returns the in-memory media index filled by Plan and SyncRange.
func (c *Coordinator) Index() *mediaindex.Index { return c.index }

// Cache returns the media cache.
func (c *Coordinator) Cache() *mediacache.Cache { return c.cache }

// Store returns the override store, or nil.
func (c *Coordinator) Store() *overrides.Store { return c.store }

func (c *Coordinator) options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// DayDir returns the output folder for date.
func (c *Coordinator) DayDir(date time.Time) string {
	opts := c.options()
	return filepath.Join(opts.OutputDir, opts.Lang, date.Format(opts.DateLayout))
}

// ItemOutcome is the result for one media item.
type ItemOutcome struct {
	File   mediaindex.File
	Name   string
	Path   string
	Copied bool
	Err    error
}

// DayOutcome is the result for one meeting.
type DayOutcome struct {
	Meeting     schedule.Meeting
	Publication string
	Items       []ItemOutcome
	Failures    []assembler.Failure
	Removed     int
	// Err is a date-level failure: no schedule or no database. The day is
	// empty when set.
	Err error
}

// Report is the outcome of a pass.
type Report struct {
	RunID string
	Days  []DayOutcome
}

// Totals counts placed, hidden, and failed items across the report.
func (r *Report) Totals() (placed, hidden, failed int) {
	for _, day := range r.Days {
		failed += len(day.Failures)
		for _, item := range day.Items {
			switch {
			case item.File.Hidden:
				hidden++
			case item.Err != nil:
				failed++
			case item.Path != "":
				placed++
			}
		}
	}
	return placed, hidden, failed
}

// Plan assembles every meeting in [from, to] and merges overrides without
// downloading anything.
func (c *Coordinator) Plan(ctx context.Context, from, to time.Time) (*Report, error) {
	runID := uuid.NewString()
	ctx = services.WithRequestID(ctx, runID)
	return c.plan(ctx, runID, from, to)
}

func (c *Coordinator) plan(ctx context.Context, runID string, from, to time.Time) (*Report, error) {
	logger := logging.WithContext(ctx, c.logger)
	report := &Report{RunID: runID}

	var listing *overrides.Listing
	if c.store != nil {
		l, err := c.store.List(ctx)
		if err != nil {
			logging.WarnWithContext(logger, "congregation overrides unavailable", "overrides_list",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check congregation url and credentials"),
				logging.String(logging.FieldImpact, "congregation uploads and hidden items are ignored this pass"))
		} else {
			listing = l
		}
	}

	for _, meeting := range c.calendar.Meetings(from, to) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Days = append(report.Days, c.planDay(ctx, meeting, listing))
	}
	return report, nil
}

func (c *Coordinator) planDay(ctx context.Context, meeting schedule.Meeting, listing *overrides.Listing) DayOutcome {
	dctx := services.WithDate(ctx, meeting.Date)
	logger := logging.WithContext(dctx, c.logger)
	out := DayOutcome{Meeting: meeting}

	day := mediaindex.NewDay(meeting.Date)
	located, err := c.locator.Locate(dctx, meeting)
	if err != nil {
		out.Err = err
		switch {
		case ScheduleMissing(err):
			logger.Info("no meeting document for date",
				logging.String("meeting", string(meeting.Kind)),
				logging.String(logging.FieldErrorHint, "no dated content published for this week"))
		case services.IsItemLevel(err):
			logging.WarnWithContext(logger, "meeting document unreachable", "schedule_locate",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Kind(err)),
				logging.String(logging.FieldImpact, "date skipped; earlier output kept"))
		default:
			logging.ErrorWithContext(logger, "meeting document unavailable", "schedule_locate",
				logging.Error(err),
				logging.String(logging.FieldImpact, "date skipped; earlier output kept"))
		}
		if !ScheduleMissing(err) {
			return out
		}
	} else {
		out.Publication = located.Publication.Key()
		result, err := c.assembler.Assemble(dctx, assembler.Request{
			Publication: located.Publication,
			Document:    located.Document,
			Date:        meeting.Date,
			VisitWeek:   meeting.VisitWeek,
		})
		if err != nil {
			out.Err = err
			logging.ErrorWithContext(logger, "assembly failed", "assembly",
				logging.Error(err),
				logging.String(logging.FieldImpact, "date skipped; earlier output kept"))
			return out
		}
		day = result.Day
		out.Failures = result.Failures
	}

	if listing != nil && c.store != nil {
		rec := c.store.Reconcile(day, listing)
		if rec.Added > 0 || rec.Replaced > 0 || rec.Hidden > 0 {
			logger.Debug("overrides applied",
				logging.Int("added", rec.Added),
				logging.Int("replaced", rec.Replaced),
				logging.Int("hidden", rec.Hidden))
		}
	}
	c.index.Set(day)

	out.Items = numbered(day)
	return out
}

// ScheduleMissing reports whether err only says that no dated document
// covers the meeting. Such a day is settled: its output folder is tidied to
// the congregation items alone. Any other day error leaves the folder as it
// was.
func ScheduleMissing(err error) bool {
	return errors.Is(err, services.ErrNoSchedule) &&
		!errors.Is(err, services.ErrNetwork) &&
		!errors.Is(err, services.ErrExtraction)
}

// numbered lists day's items with their output names. Visible items are
// numbered by part and position; hidden items keep an unnumbered name used
// only to find earlier copies.
func numbered(day *mediaindex.Day) []ItemOutcome {
	var items []ItemOutcome
	part := 0
	for _, ordinal := range day.Ordinals() {
		files := day.Part(ordinal)
		visible := 0
		for _, f := range files {
			if !f.Hidden {
				visible++
			}
		}
		if visible > 0 {
			part++
		}
		n := 0
		for _, f := range files {
			if f.Hidden {
				items = append(items, ItemOutcome{File: f, Name: mediacache.OutputName(mediacache.OrderPrefix(0, 0), f.Title, f.Ext())})
				continue
			}
			n++
			items = append(items, ItemOutcome{File: f, Name: mediacache.OutputName(mediacache.OrderPrefix(part, n), f.Title, f.Ext())})
		}
	}
	return items
}

// SyncRange plans [from, to], then downloads and places every visible item
// concurrently. Hidden items have their earlier output copies removed.
func (c *Coordinator) SyncRange(ctx context.Context, from, to time.Time) (*Report, error) {
	runID := uuid.NewString()
	ctx = services.WithRequestID(ctx, runID)
	logger := logging.WithContext(ctx, c.logger)

	unlock, err := c.cache.LockShared(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	started := time.Now()
	report, err := c.plan(ctx, runID, from, to)
	if err != nil {
		return report, err
	}

	var g errgroup.Group
	for d := range report.Days {
		day := &report.Days[d]
		dir := c.DayDir(day.Meeting.Date)
		for i := range day.Items {
			item := &day.Items[i]
			if item.File.Hidden {
				n, err := mediacache.RemoveMatching(dir, item.Name)
				if err != nil {
					item.Err = err
				}
				day.Removed += n
				continue
			}
			g.Go(func() error {
				item.Path, item.Copied, item.Err = c.materialize(ctx, dir, item)
				return nil
			})
		}
	}
	_ = g.Wait()

	for d := range report.Days {
		day := &report.Days[d]
		if day.Err != nil && !ScheduleMissing(day.Err) {
			continue
		}
		c.finishDay(logger, day)
	}

	placed, hidden, failed := report.Totals()
	logger.Info("sync complete",
		logging.String(logging.FieldEventType, "sync_complete"),
		logging.Int("days", len(report.Days)),
		logging.Int("placed", placed),
		logging.Int("hidden", hidden),
		logging.Int("failed", failed),
		logging.Int64("transfers", c.cache.Transfers()),
		logging.String("duration", time.Since(started).Round(time.Millisecond).String()))
	return report, nil
}

func (c *Coordinator) materialize(ctx context.Context, dir string, item *ItemOutcome) (string, bool, error) {
	f := item.File
	ctx = progress.WithBranch(ctx, c.tracker.Branch(f.Name()))
	cached, err := c.cache.EnsureLocal(ctx, f)
	if err != nil {
		return "", false, err
	}
	if f.CongregationSpecific && f.Kind == mediaindex.KindAudio {
		if title, ok := overrides.AudioTitle(cached); ok {
			item.Name = mediacache.OutputName(item.Name[:mediacache.PrefixLen], title, f.Ext())
		}
	}
	path, copied, err := mediacache.Place(cached, dir, item.Name)
	if err != nil {
		return "", false, services.Wrap(services.ErrExtraction, item.Name, "place", err)
	}
	return path, copied, nil
}

func (c *Coordinator) finishDay(logger *slog.Logger, day *DayOutcome) {
	dir := c.DayDir(day.Meeting.Date)
	keep := make([]string, 0, len(day.Items))
	for i := range day.Items {
		item := &day.Items[i]
		switch {
		case item.Path != "":
			keep = append(keep, item.Path)
		case item.Err != nil && !item.File.Hidden:
			// keep any earlier copy of an item that failed this time
			keep = append(keep, item.Name)
			logging.WarnWithContext(logger, "media item not placed", "sync_item",
				logging.String(logging.FieldDate, mediaindex.DateKey(day.Meeting.Date)),
				logging.String("item", item.File.Identifier()),
				logging.String("resource", services.ResourceOf(item.Err)),
				logging.Error(item.Err),
				logging.String(logging.FieldErrorHint, services.Kind(item.Err)),
				logging.String(logging.FieldImpact, "item missing from output folder"))
		}
	}
	n, err := mediacache.Prune(dir, keep)
	if err != nil {
		logger.Warn("prune output folder failed", logging.String("dir", dir), logging.Error(err))
	}
	day.Removed += n
	if day.Removed > 0 {
		logger.Debug("output folder tidied",
			logging.String("dir", dir),
			logging.Int("removed", day.Removed))
	}
}

// ChangeDateLayout renames output and override date folders from the
// current layout to layout, then uses layout for later passes.
func (c *Coordinator) ChangeDateLayout(ctx context.Context, layout string) (int, error) {
	opts := c.options()
	langDir := filepath.Join(opts.OutputDir, opts.Lang)
	var names []string
	entries, err := os.ReadDir(langDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read output folder: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	renamed, err := overrides.RenameDated(names, opts.DateLayout, layout, func(oldName, newName string) error {
		target := filepath.Join(langDir, newName)
		if _, err := os.Stat(target); err == nil {
			return fmt.Errorf("%s already exists", newName)
		}
		return os.Rename(filepath.Join(langDir, oldName), target)
	})
	errs := []error{err}
	if c.store != nil {
		n, err := c.store.RenameDateFolders(ctx, layout)
		renamed += n
		errs = append(errs, err)
	}

	c.mu.Lock()
	c.opts.DateLayout = layout
	c.mu.Unlock()
	return renamed, errors.Join(errs...)
}

// ClearCache closes open publications and empties the media cache. It
// waits for running sync passes through the exclusive cache lock.
func (c *Coordinator) ClearCache(ctx context.Context) error {
	return c.cache.Clear(ctx, func() {
		c.library.Clear()
		c.index.Reset()
	})
}
