package mediaindex

import (
	"sort"
	"sync"
	"time"
)

// Day is the ordered media for one meeting date.
type Day struct {
	Date time.Time

	mu    sync.Mutex
	parts map[int][]File
}

// NewDay returns an empty day.
func NewDay(date time.Time) *Day {
	return &Day{Date: date, parts: make(map[int][]File)}
}

// Add appends f to its part unless the slot already holds an item with the
// same key or the same non-empty checksum, or, for two remote items, the
// same asset. It reports whether f was added.
func (d *Day) Add(f File) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := f.Key()
	for _, existing := range d.parts[f.Ordinal] {
		if existing.Key() == key {
			return false
		}
		if f.Checksum != "" && existing.Checksum == f.Checksum {
			return false
		}
		if f.LocalPath == "" && existing.LocalPath == "" && f.SameAsset(existing) {
			return false
		}
	}
	d.parts[f.Ordinal] = append(d.parts[f.Ordinal], f)
	return true
}

// Ordinals returns the part ordinals in presentation order.
func (d *Day) Ordinals() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ordinalsLocked()
}

func (d *Day) ordinalsLocked() []int {
	ordinals := make([]int, 0, len(d.parts))
	for ordinal, files := range d.parts {
		if len(files) > 0 {
			ordinals = append(ordinals, ordinal)
		}
	}
	sort.Slice(ordinals, func(i, j int) bool {
		a, b := ordinals[i], ordinals[j]
		if a == DateLevel || b == DateLevel {
			return b == DateLevel && a != DateLevel
		}
		return a < b
	})
	return ordinals
}

// Part returns a copy of the files attached to ordinal.
func (d *Day) Part(ordinal int) []File {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]File(nil), d.parts[ordinal]...)
}

// Items returns every file in presentation order: by ordinal, then arrival.
func (d *Day) Items() []File {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []File
	for _, ordinal := range d.ordinalsLocked() {
		out = append(out, d.parts[ordinal]...)
	}
	return out
}

// Len returns the number of files in the day.
func (d *Day) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, files := range d.parts {
		n += len(files)
	}
	return n
}

// Update applies fn to every file matching pred and returns how many changed.
func (d *Day) Update(pred func(File) bool, fn func(*File)) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for ordinal, files := range d.parts {
		for i := range files {
			if pred(files[i]) {
				fn(&d.parts[ordinal][i])
				n++
			}
		}
	}
	return n
}

// Remove drops every file matching pred and returns the removed files.
func (d *Day) Remove(pred func(File) bool) []File {
	d.mu.Lock()
	defer d.mu.Unlock()

	var removed []File
	for ordinal, files := range d.parts {
		kept := files[:0]
		for _, f := range files {
			if pred(f) {
				removed = append(removed, f)
				continue
			}
			kept = append(kept, f)
		}
		if len(kept) == 0 {
			delete(d.parts, ordinal)
		} else {
			d.parts[ordinal] = kept
		}
	}
	return removed
}

// RemoveLast drops the last file in presentation order matching pred.
func (d *Day) RemoveLast(pred func(File) bool) (File, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ordinals := d.ordinalsLocked()
	for i := len(ordinals) - 1; i >= 0; i-- {
		files := d.parts[ordinals[i]]
		for j := len(files) - 1; j >= 0; j-- {
			if !pred(files[j]) {
				continue
			}
			removed := files[j]
			d.parts[ordinals[i]] = append(files[:j:j], files[j+1:]...)
			if len(d.parts[ordinals[i]]) == 0 {
				delete(d.parts, ordinals[i])
			}
			return removed, true
		}
	}
	return File{}, false
}

// HasName reports whether any file on the day carries name.
func (d *Day) HasName(name string, equal func(a, b string) bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, files := range d.parts {
		for _, f := range files {
			if equal(f.Name(), name) {
				return true
			}
		}
	}
	return false
}

// Index maps dates to their media.
type Index struct {
	mu   sync.Mutex
	days map[string]*Day
}

// DateKey renders the map key for a date.
func DateKey(date time.Time) string {
	return date.Format("2006-01-02")
}

// New returns an empty index.
func New() *Index {
	return &Index{days: make(map[string]*Day)}
}

// Day returns the day for date, creating it when absent.
func (x *Index) Day(date time.Time) *Day {
	x.mu.Lock()
	defer x.mu.Unlock()
	key := DateKey(date)
	if day, ok := x.days[key]; ok {
		return day
	}
	day := NewDay(date)
	x.days[key] = day
	return day
}

// Set replaces the day stored for its date.
func (x *Index) Set(day *Day) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.days[DateKey(day.Date)] = day
}

// Lookup returns the day for date without creating it.
func (x *Index) Lookup(date time.Time) (*Day, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	day, ok := x.days[DateKey(date)]
	return day, ok
}

// Days returns every day sorted by date.
func (x *Index) Days() []*Day {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]*Day, 0, len(x.days))
	for _, day := range x.days {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Reset drops every day.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.days = make(map[string]*Day)
}
