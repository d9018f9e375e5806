// Package schedule maps calendar dates to meetings and locates the dated
// document each meeting reads.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"meetingmedia/internal/config"
	"meetingmedia/internal/logging"
	"meetingmedia/internal/publications"
	"meetingmedia/internal/pubdb"
	"meetingmedia/internal/services"
)

// Kind distinguishes the two weekly meetings.
type Kind string

const (
	Midweek Kind = "midweek"
	Weekend Kind = "weekend"
)

// DateKeyLayout formats dates in configuration and logs.
const DateKeyLayout = "2006-01-02"

// Publication symbols read by each meeting.
const (
	WorkbookSymbol = "mwb"
	StudySymbol    = "w"
)

// Meeting is one scheduled meeting date.
type Meeting struct {
	Date      time.Time
	Kind      Kind
	WeekStart time.Time
	VisitWeek bool
}

// Candidate is a publication issue that may hold a meeting's document.
type Candidate struct {
	Symbol string
	Issue  string
}

// Opener opens publications with language fallback.
type Opener interface {
	Open(ctx context.Context, symbol, issue, preferredLang, fallbackLang string) (*publications.Publication, error)
}

// Calendar computes meeting dates from configuration.
type Calendar struct {
	midweek time.Weekday
	weekend time.Weekday
	isVisit func(weekStart string) bool
}

// NewCalendar builds a calendar from the meetings section.
func NewCalendar(cfg *config.Config) (*Calendar, error) {
	midweek, err := config.ParseWeekday(cfg.Meetings.MidweekDay)
	if err != nil {
		return nil, fmt.Errorf("midweek day: %w", err)
	}
	weekend, err := config.ParseWeekday(cfg.Meetings.WeekendDay)
	if err != nil {
		return nil, fmt.Errorf("weekend day: %w", err)
	}
	return &Calendar{midweek: midweek, weekend: weekend, isVisit: cfg.IsVisitWeek}, nil
}

// Meetings lists the meetings between from and to inclusive.
func (c *Calendar) Meetings(from, to time.Time) []Meeting {
	from, to = Day(from), Day(to)
	var out []Meeting
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		var kind Kind
		switch d.Weekday() {
		case c.midweek:
			kind = Midweek
		case c.weekend:
			kind = Weekend
		default:
			continue
		}
		start := WeekStart(d)
		visit := false
		if c.isVisit != nil {
			visit = c.isVisit(start.Format(DateKeyLayout))
		}
		out = append(out, Meeting{Date: d, Kind: kind, WeekStart: start, VisitWeek: visit})
	}
	return out
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of the week containing t.
func WeekStart(t time.Time) time.Time {
	d := Day(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func issueOf(t time.Time) string {
	return fmt.Sprintf("%04d%02d", t.Year(), int(t.Month()))
}

// Candidates lists the issues that may carry m's document, most likely
// first. Workbooks are bimonthly, starting on odd months; study editions
// are published two to three months ahead of the study week.
func Candidates(m Meeting) []Candidate {
	start := m.WeekStart
	if m.Kind == Midweek {
		seen := map[string]bool{}
		var out []Candidate
		for _, d := range []time.Time{start, start.AddDate(0, 0, 6)} {
			first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
			if first.Month()%2 == 0 {
				first = first.AddDate(0, -1, 0)
			}
			issue := issueOf(first)
			if !seen[issue] {
				seen[issue] = true
				out = append(out, Candidate{Symbol: WorkbookSymbol, Issue: issue})
			}
		}
		return out
	}
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	return []Candidate{
		{Symbol: StudySymbol, Issue: issueOf(first.AddDate(0, -2, 0))},
		{Symbol: StudySymbol, Issue: issueOf(first.AddDate(0, -3, 0))},
	}
}

// Located is the publication and document a meeting reads.
type Located struct {
	Publication *publications.Publication
	Document    pubdb.Document
}

// Locator finds meeting documents.
type Locator struct {
	opener       Opener
	lang         string
	fallbackLang string
	logger       *slog.Logger
}

// NewLocator constructs a locator.
func NewLocator(opener Opener, lang, fallbackLang string, logger *slog.Logger) *Locator {
	return &Locator{
		opener:       opener,
		lang:         lang,
		fallbackLang: fallbackLang,
		logger:       logging.NewComponentLogger(logger, "schedule"),
	}
}

// Locate opens each candidate issue in turn and returns the first document
// whose dated range contains the week start. When nothing matches the error
// says why: services.ErrNetwork if any candidate could not be fetched,
// services.ErrExtraction if an opened database could not be queried,
// services.ErrNoSchedule if a candidate opened but none covers the week,
// and services.ErrNoDatabase if no candidate was published at all.
func (l *Locator) Locate(ctx context.Context, m Meeting) (Located, error) {
	ctx = services.WithDate(ctx, m.Date)
	logger := logging.WithContext(ctx, l.logger)

	var (
		errs   []error
		opened int
	)
	for _, c := range Candidates(m) {
		pub, err := l.opener.Open(ctx, c.Symbol, c.Issue, l.lang, l.fallbackLang)
		if err != nil {
			logger.Debug("schedule candidate unavailable",
				logging.String("symbol", c.Symbol),
				logging.String("issue", c.Issue),
				logging.Error(err))
			errs = append(errs, err)
			continue
		}
		opened++
		doc, ok, err := pub.DB.DatedDocument(ctx, m.WeekStart)
		if err != nil {
			errs = append(errs, services.Wrap(services.ErrExtraction, pub.Key(), "dated document", err))
			continue
		}
		if ok {
			logger.Debug("meeting document located",
				logging.String(logging.FieldPublication, pub.Key()),
				logging.Int("document_id", doc.MepsID))
			return Located{Publication: pub, Document: doc}, nil
		}
	}

	resource := m.Date.Format(DateKeyLayout)
	operation := "locate " + string(m.Kind) + " document"
	cause := errors.Join(errs...)
	switch {
	case errors.Is(cause, services.ErrNetwork):
		return Located{}, services.Wrap(services.ErrNetwork, resource, operation, cause)
	case errors.Is(cause, services.ErrExtraction):
		return Located{}, services.Wrap(services.ErrExtraction, resource, operation, cause)
	case opened > 0:
		if cause == nil {
			cause = errors.New("no dated document for week")
		}
		return Located{}, services.Wrap(services.ErrNoSchedule, resource, operation, cause)
	default:
		return Located{}, services.Wrap(services.ErrNoDatabase, resource, operation, cause)
	}
}
