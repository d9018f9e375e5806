package mediacache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"meetingmedia/internal/archive"
	"meetingmedia/internal/fileutil"
	"meetingmedia/internal/logging"
	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/progress"
	"meetingmedia/internal/services"
	"meetingmedia/internal/textutil"
)

// ArchiveExt is the extension of publication archives, which are extracted
// into their cache directory after download.
const ArchiveExt = ".jwpub"

// Cache owns the on-disk media cache and the per-URL in-flight map.
type Cache struct {
	root    string
	fetcher Fetcher
	group   singleflight.Group
	logger  *slog.Logger

	transfers atomic.Int64
}

// New returns a cache rooted at appRoot.
func New(appRoot string, fetcher Fetcher, logger *slog.Logger) *Cache {
	return &Cache{
		root:    appRoot,
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "mediacache"),
	}
}

// Root returns the app root.
func (c *Cache) Root() string { return c.root }

// PublicationsDir returns the root of publication-sourced files.
func (c *Cache) PublicationsDir() string {
	return filepath.Join(c.root, "Publications")
}

// CongregationDir returns where ad hoc congregation files are cached.
func (c *Cache) CongregationDir() string {
	return filepath.Join(c.root, "Congregation")
}

// Transfers returns how many network transfers the cache has completed.
func (c *Cache) Transfers() int64 { return c.transfers.Load() }

// PublicationDir returns the cache directory for a publication item.
func (c *Cache) PublicationDir(lang, pub, issue string, track int) string {
	if issue == "" {
		issue = "0"
	}
	return filepath.Join(c.PublicationsDir(),
		textutil.SanitizeFileName(lang),
		textutil.SanitizeFileName(pub),
		textutil.SanitizeFileName(issue),
		strconv.Itoa(track))
}

// Path derives the cache location of f. Publication-sourced files are keyed
// by language, publication, issue, and track; anything else by its name.
func (c *Cache) Path(f mediaindex.File) string {
	name := textutil.SanitizeFileName(f.Name())
	if f.Pub == "" || f.CongregationSpecific {
		return filepath.Join(c.CongregationDir(), name)
	}
	return filepath.Join(c.PublicationDir(f.Lang, f.Pub, f.Issue, f.Track), name)
}

// Valid reports whether path holds a usable copy: it exists and, when
// expected is positive, its size equals expected.
func Valid(path string, expected int64) bool {
	size, ok := fileutil.Size(path)
	if !ok {
		return false
	}
	return expected <= 0 || size == expected
}

// EnsureLocal makes sure f's bytes are in the cache and returns the path.
// Files that already live on disk are returned as is. Concurrent calls for
// one URL share a single transfer.
func (c *Cache) EnsureLocal(ctx context.Context, f mediaindex.File) (string, error) {
	if f.URL == "" {
		if f.LocalPath == "" {
			return "", services.Wrap(services.ErrUnavailable, f.Identifier(), "ensure local", errors.New("no url or local path"))
		}
		if _, ok := fileutil.Size(f.LocalPath); !ok {
			return "", services.Wrap(services.ErrUnavailable, f.LocalPath, "ensure local", errors.New("local file missing"))
		}
		return f.LocalPath, nil
	}

	target := f.CachePath
	if target == "" {
		target = c.Path(f)
	}
	if Valid(target, f.Size) {
		return target, nil
	}
	if size, ok := fileutil.Size(target); ok {
		logging.WarnWithContext(c.logger, "cached copy size mismatch; downloading again", "cache_integrity",
			logging.String(logging.FieldURL, f.URL),
			logging.String("path", target),
			logging.Int64("cached_bytes", size),
			logging.Int64("expected_bytes", f.Size),
			logging.String(logging.FieldErrorHint, "previous download was interrupted or the file changed upstream"),
			logging.String(logging.FieldImpact, "file is re-downloaded"))
	}

	branch := progress.FromContext(ctx)
	ch := c.group.DoChan(f.URL, func() (any, error) {
		// A started transfer outlives the caller that triggered it.
		return c.download(context.WithoutCancel(ctx), f, target, branch)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Cache) download(ctx context.Context, f mediaindex.File, target string, branch *progress.Branch) (string, error) {
	if Valid(target, f.Size) {
		return target, nil
	}

	body, size, err := c.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	expected := f.Size
	if expected <= 0 && size > 0 {
		expected = size
	}
	branch.Expect(expected)

	written, err := fileutil.WriteAtomic(target, progress.Reader(body, branch))
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, f.URL, "download", err)
	}
	c.transfers.Add(1)
	if expected > 0 && written != expected {
		_ = RemoveFile(target)
		return "", services.Wrap(services.ErrIntegrity, f.URL, "download",
			fmt.Errorf("received %d bytes, expected %d", written, expected))
	}
	c.logger.Debug("downloaded",
		logging.String(logging.FieldURL, f.URL),
		logging.String("path", target),
		logging.Int64("bytes", written))

	if strings.EqualFold(filepath.Ext(target), ArchiveExt) {
		if _, err := archive.ExtractAll(target, filepath.Dir(target)); err != nil {
			return "", err
		}
	}
	return target, nil
}
