package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"meetingmedia/internal/fileutil"
	"meetingmedia/internal/logging"
	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/medialinks"
	"meetingmedia/internal/publications"
	"meetingmedia/internal/pubdb"
	"meetingmedia/internal/services"
)

// Library opens publications with language fallback.
type Library interface {
	Open(ctx context.Context, symbol, issue, preferredLang, fallbackLang string) (*publications.Publication, error)
}

// Resolver turns references into files.
type Resolver interface {
	Resolve(ctx context.Context, ref medialinks.Reference, preferredLang, fallbackLang string) ([]mediaindex.File, error)
}

// Options carries the viewer preferences assembly depends on.
type Options struct {
	Lang         string
	FallbackLang string
	SignLanguage bool
}

// Request names the document to assemble.
type Request struct {
	Publication *publications.Publication
	Document    pubdb.Document
	Date        time.Time
	VisitWeek   bool
}

// Failure is an item that could not be resolved.
type Failure struct {
	Ordinal int
	Source  mediaindex.Source
	Err     error
}

// Result is the assembled day plus the item-level failures met on the way.
type Result struct {
	Day      *mediaindex.Day
	Failures []Failure
}

// Assembler walks meeting documents.
type Assembler struct {
	library  Library
	resolver Resolver
	policy   ExtractPolicy
	opts     Options
	logger   *slog.Logger
}

// New constructs an assembler.
func New(library Library, resolver Resolver, policy ExtractPolicy, opts Options, logger *slog.Logger) *Assembler {
	return &Assembler{
		library:  library,
		resolver: resolver,
		policy:   policy,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "assembler"),
	}
}

// pending is one discovered multimedia row awaiting resolution.
type pending struct {
	pub     *publications.Publication
	row     pubdb.MediaRow
	ordinal int
	source  mediaindex.Source

	files []mediaindex.File
	err   error
}

// Assemble builds the media list for req. Only failures to read the root
// document are returned as errors; item-level failures land in
// Result.Failures.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	pub := req.Publication
	ctx = services.WithPublication(services.WithDate(ctx, req.Date), pub.Key())
	logger := logging.WithContext(ctx, a.logger)

	var (
		items    []*pending
		failures []Failure
	)

	direct, err := pub.DB.Multimedia(ctx, req.Document.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, pub.Key(), "query multimedia", err)
	}
	for _, row := range direct {
		items = append(items, &pending{pub: pub, row: row, ordinal: row.Ordinal, source: mediaindex.SourceDirect})
	}

	extracted, extractFailures := a.discoverExtracts(ctx, logger, req)
	items = append(items, extracted...)
	failures = append(failures, extractFailures...)

	linked, err := a.discoverLinks(ctx, pub, req.Document)
	if err != nil {
		logging.WarnWithContext(logger, "internal links unreadable", "assembly_links",
			logging.Error(err),
			logging.String(logging.FieldImpact, "linked media skipped"))
		failures = append(failures, Failure{Source: mediaindex.SourceInternalLink, Err: err})
	}
	items = append(items, linked...)

	a.resolveAll(ctx, items)

	day := mediaindex.NewDay(req.Date)
	for _, item := range items {
		if item.err != nil {
			failures = append(failures, Failure{Ordinal: item.ordinal, Source: item.source, Err: item.err})
			logging.WarnWithContext(logger, "media item skipped", "assembly_item",
				logging.Int("ordinal", item.ordinal),
				logging.String("source", string(item.source)),
				logging.String("resource", services.ResourceOf(item.err)),
				logging.Error(item.err),
				logging.String(logging.FieldErrorHint, services.Kind(item.err)),
				logging.String(logging.FieldImpact, "item missing from meeting media"))
			continue
		}
		for _, file := range item.files {
			day.Add(file)
		}
	}

	if req.VisitWeek {
		if removed, ok := a.removeClosingSong(day); ok {
			logger.Info("closing song removed for visit week",
				logging.String("title", removed.Title),
				logging.Int("ordinal", removed.Ordinal))
		}
	}

	logger.Debug("document assembled",
		logging.Int("items", day.Len()),
		logging.Int("failures", len(failures)))
	return &Result{Day: day, Failures: failures}, nil
}

func (a *Assembler) discoverExtracts(ctx context.Context, logger *slog.Logger, req Request) ([]*pending, []Failure) {
	extracts, err := req.Publication.DB.Extracts(ctx, req.Document.ID, a.policy.ExcludedSymbols...)
	if err != nil {
		err = services.Wrap(services.ErrExtraction, req.Publication.Key(), "query extracts", err)
		return nil, []Failure{{Source: mediaindex.SourceExtract, Err: err}}
	}

	var (
		items    []*pending
		failures []Failure
	)
	for i, extract := range extracts {
		if req.VisitWeek && containsSymbol(a.policy.VisitSuppressedSymbols, extract.Symbol) {
			logger.Debug("extract suppressed for visit week", logging.String("symbol", extract.Symbol))
			continue
		}
		imageOnly := a.imageOnly(extracts, i)

		extPub, err := a.library.Open(ctx, extract.Symbol, pubdb.IssueKey(extract.IssueTag), a.opts.Lang, a.opts.FallbackLang)
		if err != nil {
			failures = append(failures, Failure{Ordinal: extract.BeginOrdinal, Source: mediaindex.SourceExtract, Err: err})
			logging.WarnWithContext(logger, "extract publication unavailable", "assembly_extract",
				logging.String("symbol", extract.Symbol),
				logging.Int("ordinal", extract.BeginOrdinal),
				logging.Error(err),
				logging.String(logging.FieldImpact, "extract media skipped"))
			continue
		}
		extDoc, ok, err := extPub.DB.DocumentByMepsID(ctx, extract.RefMepsDocID)
		if err != nil || !ok {
			if err == nil {
				err = fmt.Errorf("document %d not in %s", extract.RefMepsDocID, extPub.Key())
			}
			failures = append(failures, Failure{Ordinal: extract.BeginOrdinal, Source: mediaindex.SourceExtract,
				Err: services.Wrap(services.ErrExtraction, extPub.Key(), "find extract document", err)})
			continue
		}
		rows, err := extPub.DB.Multimedia(ctx, extDoc.ID)
		if err != nil {
			failures = append(failures, Failure{Ordinal: extract.BeginOrdinal, Source: mediaindex.SourceExtract,
				Err: services.Wrap(services.ErrExtraction, extPub.Key(), "query extract multimedia", err)})
			continue
		}
		for _, row := range rows {
			if !a.keepExtractRow(extract, row, imageOnly) {
				continue
			}
			items = append(items, &pending{pub: extPub, row: row, ordinal: extract.BeginOrdinal, source: mediaindex.SourceExtract})
		}
	}
	return items, failures
}

func (a *Assembler) imageOnly(extracts []pubdb.ExtractRow, i int) bool {
	current := extracts[i]
	if containsSymbol(a.policy.ImageOnlySymbols, current.Symbol) {
		return true
	}
	if !a.policy.EarlierOfPairImageOnly {
		return false
	}
	for _, later := range extracts[i+1:] {
		if later.Symbol == current.Symbol && later.BeginOrdinal != current.BeginOrdinal {
			return true
		}
	}
	return false
}

func (a *Assembler) keepExtractRow(extract pubdb.ExtractRow, row pubdb.MediaRow, imageOnly bool) bool {
	if imageOnly && !row.IsImage() {
		return false
	}
	if a.opts.SignLanguage && mediaindex.KindFromMime(row.MimeType) == mediaindex.KindVideo && row.Ordinal == 0 {
		return true
	}
	return extract.InRange(row.Ordinal)
}

// discoverLinks follows internal links from doc recursively. Everything
// reached from one link is attached at that link's ordinal, so two
// paragraphs linking the same document each get its media. visited holds
// only the current path, which stops cycles.
func (a *Assembler) discoverLinks(ctx context.Context, pub *publications.Publication, doc pubdb.Document) ([]*pending, error) {
	visited := map[string]bool{visitKey(pub, doc.MepsID): true}
	links, err := pub.DB.InternalLinks(ctx, doc.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, pub.Key(), "query internal links", err)
	}
	var (
		items []*pending
		errs  []error
	)
	for _, link := range links {
		found, err := a.walkLink(ctx, pub, link.MepsDocumentID, link.Ordinal, visited)
		items = append(items, found...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return items, errors.Join(errs...)
}

func (a *Assembler) walkLink(ctx context.Context, pub *publications.Publication, mepsID, ordinal int, visited map[string]bool) ([]*pending, error) {
	key := visitKey(pub, mepsID)
	if visited[key] {
		return nil, nil
	}
	visited[key] = true
	defer delete(visited, key)

	target, ok, err := pub.DB.DocumentByMepsID(ctx, mepsID)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, pub.Key(), "find linked document", err)
	}
	if !ok || target.Class == pubdb.ClassAdministrative {
		return nil, nil
	}

	rows, err := pub.DB.Multimedia(ctx, target.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, pub.Key(), "query linked multimedia", err)
	}
	items := make([]*pending, 0, len(rows))
	for _, row := range rows {
		items = append(items, &pending{pub: pub, row: row, ordinal: ordinal, source: mediaindex.SourceInternalLink})
	}

	links, err := pub.DB.InternalLinks(ctx, target.ID)
	if err != nil {
		return items, services.Wrap(services.ErrExtraction, pub.Key(), "query nested links", err)
	}
	var errs []error
	for _, link := range links {
		nested, err := a.walkLink(ctx, pub, link.MepsDocumentID, ordinal, visited)
		items = append(items, nested...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return items, errors.Join(errs...)
}

func visitKey(pub *publications.Publication, mepsID int) string {
	return pub.Key() + "#" + strconv.Itoa(mepsID)
}

// resolveAll resolves every pending item concurrently. Each goroutine
// records its own outcome and returns nil, so one failure never cancels
// the others.
func (a *Assembler) resolveAll(ctx context.Context, items []*pending) {
	var g errgroup.Group
	for _, item := range items {
		g.Go(func() error {
			item.files, item.err = a.resolve(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Assembler) resolve(ctx context.Context, item *pending) ([]mediaindex.File, error) {
	row := item.row
	if !row.Remote() {
		return a.localFile(item)
	}

	ref := medialinks.Reference{
		Pub:   row.KeySymbol,
		Issue: pubdb.IssueKey(row.IssueTag),
		Track: row.Track,
	}
	if ref.Pub == "" {
		ref.DocID = row.MepsDocumentID
	}
	files, err := a.resolver.Resolve(ctx, ref, a.opts.Lang, a.opts.FallbackLang)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrUnavailable, ref.String(), "resolve", errors.New("no media published for reference"))
	}
	for i := range files {
		files[i].Ordinal = item.ordinal
		files[i].Source = item.source
		files[i].ParagraphLabel = row.ParagraphLabel
		if files[i].Title == "" {
			files[i].Title = rowTitle(row)
		}
	}
	return files, nil
}

func (a *Assembler) localFile(item *pending) ([]mediaindex.File, error) {
	row := item.row
	if row.FilePath == "" {
		return nil, services.Wrap(services.ErrExtraction, item.pub.Key(), "local media", errors.New("row has neither reference nor file path"))
	}
	member := item.pub.MemberPath(row.FilePath)
	size, ok := fileutil.Size(member)
	if !ok {
		return nil, services.Wrap(services.ErrExtraction, item.pub.Key(), "local media",
			fmt.Errorf("member %s not extracted", path.Base(row.FilePath)))
	}
	kind := mediaindex.KindFromMime(row.MimeType)
	if kind == mediaindex.KindOther {
		kind = mediaindex.KindFromName(row.FilePath)
	}
	return []mediaindex.File{{
		Title:          rowTitle(row),
		FileName:       path.Base(row.FilePath),
		LocalPath:      member,
		CachePath:      member,
		Size:           size,
		Kind:           kind,
		Pub:            item.pub.Symbol,
		Issue:          item.pub.Issue,
		Lang:           item.pub.Lang,
		Ordinal:        item.ordinal,
		ParagraphLabel: row.ParagraphLabel,
		Source:         item.source,
	}}, nil
}

func rowTitle(row pubdb.MediaRow) string {
	switch {
	case row.Caption != "":
		return row.Caption
	case row.Label != "":
		return row.Label
	case row.FilePath != "":
		return path.Base(row.FilePath)
	}
	return row.KeySymbol
}

// removeClosingSong drops one trailing song: the last item in the
// closing-song range, or failing that the last song-publication item.
func (a *Assembler) removeClosingSong(day *mediaindex.Day) (mediaindex.File, bool) {
	if a.policy.ClosingSongFrom > 0 {
		if removed, ok := day.RemoveLast(func(f mediaindex.File) bool {
			return f.Ordinal >= a.policy.ClosingSongFrom
		}); ok {
			return removed, true
		}
	}
	return day.RemoveLast(func(f mediaindex.File) bool {
		return a.policy.IsSong(f.Pub)
	})
}
