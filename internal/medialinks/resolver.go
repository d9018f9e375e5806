package medialinks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"meetingmedia/internal/config"
	"meetingmedia/internal/logging"
	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/services"
)

// SubtitleTolerance is the largest duration gap, in seconds, at which a
// subtitle track from another language is still attached.
const SubtitleTolerance = 2.0

// DefaultFormats is the file-format preference for references that do not
// name one.
var DefaultFormats = []string{"MP4", "M4V", "MP3"}

// Reference is an abstract pointer to a unit of media.
type Reference struct {
	Pub        string
	Issue      string
	Track      int
	DocID      int
	Lang       string
	FileFormat string
}

func (r Reference) query(pub, lang string) Query {
	return Query{Pub: pub, DocID: r.DocID, Issue: r.Issue, Track: r.Track, FileFormat: r.FileFormat, Lang: lang}
}

// String identifies the reference in logs and errors.
func (r Reference) String() string {
	return r.query(r.Pub, r.Lang).String()
}

// Options tunes variant selection.
type Options struct {
	// MaxResolution is the ceiling in lines; zero disables the filter.
	MaxResolution int
	Subtitles     bool
	SubtitleLang  string
	// AltSymbol maps a symbol to its alternate. When nil, symbols ending in
	// "m" are retried without it and all others with it appended.
	AltSymbol func(symbol string) string
}

// OptionsFromConfig builds resolver options from the media section.
func OptionsFromConfig(cfg *config.Config) Options {
	maxRes, err := config.ParseResolution(cfg.Media.MaxResolution)
	if err != nil {
		maxRes = 0
	}
	return Options{
		MaxResolution: maxRes,
		Subtitles:     cfg.Media.Subtitles,
		SubtitleLang:  cfg.Media.SubtitleLanguage,
	}
}

// AltSymbol toggles the trailing "m" of a publication symbol.
func AltSymbol(symbol string) string {
	if len(symbol) > 1 && strings.HasSuffix(symbol, "m") {
		return strings.TrimSuffix(symbol, "m")
	}
	return symbol + "m"
}

// Resolver applies language fallback and variant selection on top of Lookup.
type Resolver struct {
	lookup Lookup
	opts   Options
	logger *slog.Logger
}

// NewResolver constructs a resolver.
func NewResolver(lookup Lookup, opts Options, logger *slog.Logger) *Resolver {
	if opts.AltSymbol == nil {
		opts.AltSymbol = AltSymbol
	}
	return &Resolver{
		lookup: lookup,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "medialinks"),
	}
}

// Options returns the resolver's selection options.
func (r *Resolver) Options() Options { return r.opts }

// Resolve turns ref into concrete files. An explicit ref.Lang pins the
// language; otherwise preferredLang is tried, then fallbackLang. Within each
// language the primary symbol is tried before its alternate. No match yields
// an empty slice and a nil error; a network failure with no match yields a
// services.ErrNetwork error.
func (r *Resolver) Resolve(ctx context.Context, ref Reference, preferredLang, fallbackLang string) ([]mediaindex.File, error) {
	langs := []string{preferredLang}
	if ref.Lang != "" {
		langs = []string{ref.Lang}
	} else if fallbackLang != "" && !strings.EqualFold(fallbackLang, preferredLang) {
		langs = append(langs, fallbackLang)
	}

	var subtitleEntries []Entry
	wantSubs := r.opts.Subtitles && r.opts.SubtitleLang != "" && !strings.EqualFold(r.opts.SubtitleLang, langs[0])

	var (
		entries  []Entry
		resolved string
		netErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	if wantSubs {
		g.Go(func() error {
			found, err := r.lookupSymbols(gctx, ref, r.opts.SubtitleLang)
			if err != nil {
				r.logger.Debug("subtitle variant lookup failed",
					logging.String("reference", ref.String()),
					logging.Error(err))
				return nil
			}
			subtitleEntries = found
			return nil
		})
	}
	g.Go(func() error {
		for _, lang := range langs {
			found, err := r.lookupSymbols(ctx, ref, lang)
			if err != nil {
				netErr = errors.Join(netErr, err)
				continue
			}
			if len(found) > 0 {
				entries = found
				resolved = lang
				return nil
			}
		}
		return nil
	})
	_ = g.Wait()

	if len(entries) == 0 {
		if netErr != nil {
			return nil, netErr
		}
		r.logger.Debug("reference resolved to nothing",
			logging.String("reference", ref.String()),
			logging.String("languages", strings.Join(langs, ",")))
		return nil, nil
	}

	selected := selectVariants(entries, r.opts.MaxResolution)
	files := make([]mediaindex.File, 0, len(selected))
	for _, entry := range selected {
		file := toFile(entry, ref, resolved)
		switch {
		case !r.opts.Subtitles:
			file.SubtitleURL = ""
		case r.opts.SubtitleLang == "" || strings.EqualFold(resolved, r.opts.SubtitleLang):
		default:
			file.SubtitleURL = matchSubtitle(entry, subtitleEntries)
		}
		files = append(files, file)
	}
	return files, nil
}

// lookupSymbols queries lang with the primary symbol, then the alternate.
// A non-network error is treated as "no result".
func (r *Resolver) lookupSymbols(ctx context.Context, ref Reference, lang string) ([]Entry, error) {
	symbols := []string{ref.Pub}
	if ref.Pub != "" {
		if alt := r.opts.AltSymbol(ref.Pub); alt != "" && alt != ref.Pub {
			symbols = append(symbols, alt)
		}
	}
	var netErr error
	for _, symbol := range symbols {
		resp, err := r.lookup.Lookup(ctx, ref.query(symbol, lang))
		if err != nil {
			if errors.Is(err, services.ErrNetwork) {
				netErr = err
				continue
			}
			r.logger.Debug("pub-media lookup rejected",
				logging.String("reference", ref.query(symbol, lang).String()),
				logging.Error(err))
			continue
		}
		entries := usable(resp.Entries(lang, formatsFor(ref)...))
		if len(entries) > 0 {
			return entries, nil
		}
	}
	return nil, netErr
}

func formatsFor(ref Reference) []string {
	if ref.FileFormat != "" {
		return []string{ref.FileFormat}
	}
	return DefaultFormats
}

func usable(entries []Entry) []Entry {
	out := entries[:0:0]
	for _, entry := range entries {
		if strings.TrimSpace(entry.File.URL) == "" {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// Resolution returns the leading integer of a label such as "720p", or zero.
func Resolution(label string) int {
	label = strings.TrimSpace(label)
	n := 0
	for _, r := range label {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// selectVariants keeps, per logical item, the highest resolution at or under
// maxRes, preferring subtitled variants on a tie. When every variant of an
// item exceeds maxRes the lowest one is kept. Discovery order is preserved.
func selectVariants(entries []Entry, maxRes int) []Entry {
	type group struct {
		best    Entry
		fitting bool
	}
	order := make([]string, 0, len(entries))
	groups := make(map[string]*group, len(entries))
	for _, entry := range entries {
		key := variantKey(entry)
		res := Resolution(entry.Label)
		fits := maxRes <= 0 || res <= maxRes
		current, ok := groups[key]
		if !ok {
			order = append(order, key)
			groups[key] = &group{best: entry, fitting: fits}
			continue
		}
		bestRes := Resolution(current.best.Label)
		switch {
		case fits && !current.fitting:
			current.best, current.fitting = entry, true
		case fits && current.fitting:
			if res > bestRes || (res == bestRes && entry.Subtitled && !current.best.Subtitled) {
				current.best = entry
			}
		case !fits && !current.fitting:
			if res < bestRes || (res == bestRes && entry.Subtitled && !current.best.Subtitled) {
				current.best = entry
			}
		}
	}
	out := make([]Entry, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key].best)
	}
	return out
}

func variantKey(entry Entry) string {
	return fmt.Sprintf("%s|%d|%d|%s", entry.Pub, entry.DocID, entry.Track, strings.TrimSpace(entry.Title))
}

// matchSubtitle returns the subtitle URL of the variant matching primary's
// track whose duration is within SubtitleTolerance.
func matchSubtitle(primary Entry, candidates []Entry) string {
	for _, candidate := range candidates {
		if candidate.Track != primary.Track || candidate.DocID != primary.DocID {
			continue
		}
		if candidate.Subtitles == nil || candidate.Subtitles.URL == "" {
			continue
		}
		if math.Abs(candidate.Duration-primary.Duration) <= SubtitleTolerance {
			return candidate.Subtitles.URL
		}
	}
	return ""
}

func toFile(entry Entry, ref Reference, lang string) mediaindex.File {
	kind := mediaindex.KindFromMime(entry.Mimetype)
	if kind == mediaindex.KindOther {
		kind = mediaindex.KindFromName(entry.File.URL)
	}
	file := mediaindex.File{
		Title:        strings.TrimSpace(entry.Title),
		URL:          entry.File.URL,
		Checksum:     entry.File.Checksum,
		Size:         entry.Filesize,
		Kind:         kind,
		Duration:     entry.Duration,
		ThumbnailURL: entry.TrackImage.URL,
		Label:        entry.Label,
		Pub:          entry.Pub,
		Issue:        ref.Issue,
		Track:        entry.Track,
		DocID:        entry.DocID,
		Lang:         lang,
	}
	if file.Pub == "" {
		file.Pub = ref.Pub
	}
	if file.Track == 0 {
		file.Track = ref.Track
	}
	if file.DocID == 0 {
		file.DocID = ref.DocID
	}
	if entry.Subtitles != nil {
		file.SubtitleURL = entry.Subtitles.URL
	}
	if entry.Markers != nil {
		file.Markers = entry.Markers.Markers
	}
	return file
}
