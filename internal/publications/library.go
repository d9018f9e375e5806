// Package publications opens publication databases on demand and keeps them
// open for the life of the process, keyed by symbol and language, then issue.
package publications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"meetingmedia/internal/archive"
	"meetingmedia/internal/logging"
	"meetingmedia/internal/mediacache"
	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/medialinks"
	"meetingmedia/internal/pubdb"
	"meetingmedia/internal/services"
)

// ArchiveFormat is the pub-media file format of publication archives.
const ArchiveFormat = "JWPUB"

// Resolver is the subset of medialinks.Resolver the library needs.
type Resolver interface {
	Resolve(ctx context.Context, ref medialinks.Reference, preferredLang, fallbackLang string) ([]mediaindex.File, error)
}

// Publication is an opened archive: its database and extracted members.
type Publication struct {
	Symbol string
	Issue  string
	Lang   string
	Dir    string
	DB     *pubdb.DB
	// FromCache is set when the remote lookup failed and a previously
	// extracted copy was used instead.
	FromCache bool
}

// Key identifies the publication in logs and errors.
func (p *Publication) Key() string {
	return Key(p.Symbol, p.Issue, p.Lang)
}

// MemberPath returns the extracted location of an archive member.
func (p *Publication) MemberPath(name string) string {
	return filepath.Join(p.Dir, path.Base(filepath.ToSlash(name)))
}

// Key renders the "<symbol>_<lang>_<issue>" identifier of an archive.
func Key(symbol, issue, lang string) string {
	if issue == "" {
		issue = "0"
	}
	return fmt.Sprintf("%s_%s_%s", symbol, lang, issue)
}

// Library caches opened publications.
type Library struct {
	cache    *mediacache.Cache
	resolver Resolver
	logger   *slog.Logger

	group singleflight.Group
	mu    sync.Mutex
	open  map[string]map[string]*Publication
}

// NewLibrary builds a library that downloads archives through cache.
func NewLibrary(cache *mediacache.Cache, resolver Resolver, logger *slog.Logger) *Library {
	return &Library{
		cache:    cache,
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "publications"),
		open:     make(map[string]map[string]*Publication),
	}
}

func (l *Library) lookup(symbol, issue, lang string) *Publication {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[symbol+"|"+lang][issue]
}

func (l *Library) store(p *Publication) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := p.Symbol + "|" + p.Lang
	if l.open[key] == nil {
		l.open[key] = make(map[string]*Publication)
	}
	l.open[key][p.Issue] = p
}

// Open returns the publication for symbol and issue, trying preferredLang,
// then fallbackLang, then any previously extracted copy in the cache. A
// publication that cannot be found at all is a services.ErrNoDatabase error.
func (l *Library) Open(ctx context.Context, symbol, issue, preferredLang, fallbackLang string) (*Publication, error) {
	if issue == "" {
		issue = "0"
	}
	for _, lang := range languages(preferredLang, fallbackLang) {
		if p := l.lookup(symbol, issue, lang); p != nil {
			return p, nil
		}
	}

	v, err, _ := l.group.Do(Key(symbol, issue, preferredLang+"/"+fallbackLang), func() (any, error) {
		return l.load(ctx, symbol, issue, preferredLang, fallbackLang)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Publication), nil
}

func (l *Library) load(ctx context.Context, symbol, issue, preferredLang, fallbackLang string) (*Publication, error) {
	ref := medialinks.Reference{Pub: symbol, Issue: issue, FileFormat: ArchiveFormat}
	files, err := l.resolver.Resolve(ctx, ref, preferredLang, fallbackLang)
	if err == nil && len(files) > 0 {
		file := files[0]
		file.Pub, file.Issue, file.Track = symbol, issue, 0
		archivePath, ensureErr := l.cache.EnsureLocal(ctx, file)
		if ensureErr == nil {
			p, openErr := l.openDir(ctx, symbol, issue, file.Lang, filepath.Dir(archivePath), archivePath)
			if openErr == nil {
				l.store(p)
				return p, nil
			}
			return nil, openErr
		}
		err = ensureErr
	}

	if err != nil && errors.Is(err, services.ErrNetwork) {
		for _, lang := range languages(preferredLang, fallbackLang) {
			dir := l.cache.PublicationDir(lang, symbol, issue, 0)
			if !archive.Extracted(dir) {
				continue
			}
			p, openErr := l.openDir(ctx, symbol, issue, lang, dir, "")
			if openErr != nil {
				continue
			}
			p.FromCache = true
			logging.WarnWithContext(l.logger, "using previously cached publication", "publication_cache_fallback",
				logging.String(logging.FieldPublication, p.Key()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check network connectivity"),
				logging.String(logging.FieldImpact, "media may be out of date"))
			l.store(p)
			return p, nil
		}
	}

	if err == nil {
		err = errors.New("not published in requested languages")
	}
	return nil, services.Wrap(services.ErrNoDatabase, Key(symbol, issue, preferredLang), "open publication", err)
}

func (l *Library) openDir(ctx context.Context, symbol, issue, lang, dir, archivePath string) (*Publication, error) {
	key := Key(symbol, issue, lang)
	if archivePath != "" && !archive.Extracted(dir) {
		if _, err := archive.ExtractAll(archivePath, dir); err != nil {
			return nil, err
		}
	}
	dbPath, err := findDatabase(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, key, "locate database", err)
	}
	db, err := pubdb.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("publication opened",
		logging.String(logging.FieldPublication, key),
		logging.String("path", dbPath))
	return &Publication{Symbol: symbol, Issue: issue, Lang: lang, Dir: dir, DB: db}, nil
}

func findDatabase(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".db") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", archive.ErrMemberNotFound
}

// Clear closes every open database and forgets them, as after a language
// change. Callers must not run it during a sync pass.
func (l *Library) Clear() {
	l.mu.Lock()
	open := l.open
	l.open = make(map[string]map[string]*Publication)
	l.mu.Unlock()

	for _, issues := range open {
		for _, p := range issues {
			_ = p.DB.Close()
		}
	}
}

// Len returns how many publications are open.
func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, issues := range l.open {
		n += len(issues)
	}
	return n
}

func languages(preferred, fallback string) []string {
	langs := []string{preferred}
	if fallback != "" && !strings.EqualFold(fallback, preferred) {
		langs = append(langs, fallback)
	}
	return langs
}
