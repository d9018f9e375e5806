package overrides

import (
	"os"

	"github.com/dhowden/tag"

	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/textutil"
)

// FileFor converts a stored entry into an index file at date level.
func (s *Store) FileFor(e Entry) mediaindex.File {
	url, local := s.backend.Locate(e.Path())
	source := mediaindex.SourceCongregation
	if e.Recurring {
		source = mediaindex.SourceRecurring
	}
	return mediaindex.File{
		Title:                textutil.TitleFromFileName(e.Name),
		FileName:             e.Name,
		URL:                  url,
		LocalPath:            local,
		Size:                 e.Size,
		Kind:                 mediaindex.KindFromName(e.Name),
		Ordinal:              mediaindex.DateLevel,
		Source:               source,
		CongregationSpecific: true,
		Recurring:            e.Recurring,
	}
}

// Outcome counts what Reconcile changed.
type Outcome struct {
	Added    int
	Replaced int
	Hidden   int
}

// Reconcile merges the listing into day. Uploads for the date replace any
// item with the same name; recurring uploads are added only when no item
// with that name is present. Both land at date level. Hidden markers then
// flag matching items.
func (s *Store) Reconcile(day *mediaindex.Day, listing *Listing) Outcome {
	var out Outcome
	for _, e := range listing.Media[mediaindex.DateKey(day.Date)] {
		replaced := day.Remove(func(f mediaindex.File) bool {
			return f.Source != mediaindex.SourceCongregation && textutil.SameFileName(f.Name(), e.Name)
		})
		out.Replaced += len(replaced)
		if day.Add(s.FileFor(e)) {
			out.Added++
		}
	}
	for _, e := range listing.Recurring {
		if day.HasName(e.Name, textutil.SameFileName) {
			continue
		}
		if day.Add(s.FileFor(e)) {
			out.Added++
		}
	}
	out.Hidden = day.Update(func(f mediaindex.File) bool {
		return !f.Hidden && listing.IsHidden(day.Date, f.Name())
	}, func(f *mediaindex.File) {
		f.Hidden = true
	})
	return out
}

// AudioTitle reads the title tag of an audio file.
func AudioTitle(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil || m.Title() == "" {
		return "", false
	}
	return m.Title(), true
}
