package overrides

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"meetingmedia/internal/logging"
	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/services"
	"meetingmedia/internal/textutil"
)

// Store layout names.
const (
	MediaDir        = "Media"
	HiddenDir       = "Hidden"
	RecurringFolder = "Recurring"
)

// Entry is one file in the store.
type Entry struct {
	Folder    string
	Date      time.Time
	Recurring bool
	Name      string
	Size      int64
	ModTime   time.Time
}

// Path returns the entry's store-relative path.
func (e Entry) Path() string {
	return path.Join(MediaDir, e.Folder, e.Name)
}

// Listing is a parsed snapshot of the store.
type Listing struct {
	// Media maps date keys to congregation uploads.
	Media map[string][]Entry
	// Hidden maps date keys to hidden file names.
	Hidden    map[string][]string
	Recurring []Entry
}

// IsHidden reports whether name is hidden on date.
func (l *Listing) IsHidden(date time.Time, name string) bool {
	for _, hidden := range l.Hidden[mediaindex.DateKey(date)] {
		if textutil.SameFileName(hidden, name) {
			return true
		}
	}
	return false
}

// Store reads and writes overrides through a backend.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu     sync.Mutex
	layout string
}

// NewStore returns a store whose date folders use layout.
func NewStore(backend Backend, layout string, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		layout:  layout,
		logger:  logging.NewComponentLogger(logger, "overrides"),
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Layout returns the current date-folder layout.
func (s *Store) Layout() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// Folder names the date folder for date.
func (s *Store) Folder(date time.Time) string {
	return date.Format(s.Layout())
}

// List parses the whole store. Folders that do not parse as dates in the
// current layout are skipped.
func (s *Store) List(ctx context.Context) (*Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	listing := &Listing{Media: map[string][]Entry{}, Hidden: map[string][]string{}}

	err := s.walk(MediaDir, func(folder string, date time.Time, info fs.FileInfo) {
		entry := Entry{Folder: folder, Date: date, Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()}
		if folder == RecurringFolder {
			entry.Recurring = true
			listing.Recurring = append(listing.Recurring, entry)
			return
		}
		key := mediaindex.DateKey(date)
		listing.Media[key] = append(listing.Media[key], entry)
	})
	if err != nil {
		return nil, err
	}
	err = s.walk(HiddenDir, func(folder string, date time.Time, info fs.FileInfo) {
		if folder == RecurringFolder {
			return
		}
		key := mediaindex.DateKey(date)
		listing.Hidden[key] = append(listing.Hidden[key], info.Name())
	})
	if err != nil {
		return nil, err
	}

	for key := range listing.Media {
		sortEntries(listing.Media[key])
	}
	sortEntries(listing.Recurring)
	return listing, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return textutil.NormalizeName(entries[i].Name) < textutil.NormalizeName(entries[j].Name)
	})
}

func (s *Store) walk(top string, fn func(folder string, date time.Time, info fs.FileInfo)) error {
	folders, err := s.backend.ReadDir(top)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return services.Wrap(services.ErrNetwork, top, "list overrides", err)
	}
	layout := s.Layout()
	for _, folder := range folders {
		if !folder.IsDir() {
			continue
		}
		name := folder.Name()
		var date time.Time
		if name != RecurringFolder {
			parsed, err := time.Parse(layout, name)
			if err != nil {
				s.logger.Debug("skipping unrecognised override folder",
					logging.String("folder", path.Join(top, name)),
					logging.String("layout", layout))
				continue
			}
			date = parsed
		}
		files, err := s.backend.ReadDir(path.Join(top, name))
		if err != nil {
			return services.Wrap(services.ErrNetwork, path.Join(top, name), "list overrides", err)
		}
		for _, info := range files {
			if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
				continue
			}
			fn(name, date, info)
		}
	}
	return nil
}

// Put uploads a congregation file to folder, which is a date folder or
// RecurringFolder.
func (s *Store) Put(ctx context.Context, folder, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = textutil.SanitizeFileName(name)
	if name == "" {
		return services.Wrap(services.ErrConfiguration, folder, "put override", errors.New("empty file name"))
	}
	target := path.Join(MediaDir, folder, name)
	if err := s.backend.Write(target, r); err != nil {
		return services.Wrap(services.ErrNetwork, target, "put override", err)
	}
	s.logger.Info("override uploaded", logging.String("path", target))
	return nil
}

// Hide writes a marker hiding name on date.
func (s *Store) Hide(ctx context.Context, date time.Time, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := path.Join(HiddenDir, s.Folder(date), name)
	if err := s.backend.Write(target, bytes.NewReader(nil)); err != nil {
		return services.Wrap(services.ErrNetwork, target, "hide", err)
	}
	s.logger.Info("item hidden",
		logging.String(logging.FieldDate, mediaindex.DateKey(date)),
		logging.String("name", name))
	return nil
}

// Unhide removes the marker hiding name on date.
func (s *Store) Unhide(ctx context.Context, date time.Time, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := path.Join(HiddenDir, s.Folder(date), name)
	if err := s.backend.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrNetwork, target, "unhide", err)
	}
	return nil
}

// Remove deletes a congregation upload.
func (s *Store) Remove(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.backend.Remove(e.Path()); err != nil {
		return services.Wrap(services.ErrNetwork, e.Path(), "remove override", err)
	}
	return nil
}

// RenameDateFolders renames every date folder from the current layout to
// newLayout and switches the store to it. Folders that already exist under
// the new name are left alone and reported in the returned error.
func (s *Store) RenameDateFolders(ctx context.Context, newLayout string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	oldLayout := s.Layout()
	renamed := 0
	var errs []error
	for _, top := range []string{MediaDir, HiddenDir} {
		folders, err := s.backend.ReadDir(top)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return renamed, services.Wrap(services.ErrNetwork, top, "rename date folders", err)
		}
		names := make([]string, 0, len(folders))
		for _, f := range folders {
			if f.IsDir() {
				names = append(names, f.Name())
			}
		}
		n, err := RenameDated(names, oldLayout, newLayout, func(oldName, newName string) error {
			return s.backend.Rename(path.Join(top, oldName), path.Join(top, newName))
		})
		renamed += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	s.layout = newLayout
	s.mu.Unlock()
	s.logger.Info("override date folders renamed",
		logging.Int("renamed", renamed),
		logging.String("old_layout", oldLayout),
		logging.String("new_layout", newLayout))
	return renamed, errors.Join(errs...)
}

// RenameDated renames every name that parses under oldLayout to its
// newLayout form through rename and returns how many were renamed.
func RenameDated(names []string, oldLayout, newLayout string, rename func(oldName, newName string) error) (int, error) {
	if oldLayout == newLayout {
		return 0, nil
	}
	renamed := 0
	var errs []error
	for _, name := range names {
		date, err := time.Parse(oldLayout, name)
		if err != nil {
			continue
		}
		target := date.Format(newLayout)
		if target == name {
			continue
		}
		if err := rename(name, target); err != nil {
			errs = append(errs, fmt.Errorf("rename %s to %s: %w", name, target, err))
			continue
		}
		renamed++
	}
	return renamed, errors.Join(errs...)
}
