// Package mediaindex holds the per-date, per-part list of resolved media
// that the sync layer fills and presentation code reads.
package mediaindex

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Kind is the media type of a resolved file.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
	KindOther Kind = "other"
)

// Source records how the assembler reached an item.
type Source string

const (
	SourceDirect       Source = "direct"
	SourceExtract      Source = "extract"
	SourceInternalLink Source = "internal_link"
	SourceCongregation Source = "congregation"
	SourceRecurring    Source = "recurring"
)

// DateLevel is the part ordinal for items that belong to a date but not to a
// paragraph, such as congregation uploads. It sorts after every paragraph.
const DateLevel = -1

// Marker is one chapter marker inside a time-based file.
type Marker struct {
	Label     string `json:"label"`
	StartTime string `json:"startTime"`
	Duration  string `json:"duration"`
}

// File is a concrete, addressable media asset.
type File struct {
	Title    string `json:"title"`
	FileName string `json:"file_name,omitempty"`
	URL      string `json:"url,omitempty"`
	// LocalPath is set for files that never touch the network: archive
	// members and congregation items.
	LocalPath string `json:"local_path,omitempty"`
	// CachePath is where the bytes live once EnsureLocal succeeds.
	CachePath    string   `json:"cache_path,omitempty"`
	Checksum     string   `json:"checksum,omitempty"`
	Size         int64    `json:"size,omitempty"`
	Kind         Kind     `json:"kind"`
	Duration     float64  `json:"duration,omitempty"`
	SubtitleURL  string   `json:"subtitle_url,omitempty"`
	Markers      []Marker `json:"markers,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Label        string   `json:"label,omitempty"`

	Pub   string `json:"pub,omitempty"`
	Issue string `json:"issue,omitempty"`
	Track int    `json:"track,omitempty"`
	DocID int    `json:"docid,omitempty"`
	Lang  string `json:"lang,omitempty"`

	Ordinal        int    `json:"ordinal"`
	ParagraphLabel string `json:"paragraph_label,omitempty"`
	Source         Source `json:"source"`

	Hidden               bool `json:"hidden,omitempty"`
	CongregationSpecific bool `json:"congregation_specific,omitempty"`
	Recurring            bool `json:"recurring,omitempty"`
}

// Key is the unique identity of an item within a slot: ordinal, source kind,
// checksum, and local path. Items with neither checksum nor local path fall
// back to their URL so distinct remote files without checksums stay distinct.
func (f File) Key() string {
	parts := []string{strconv.Itoa(f.Ordinal), string(f.Source), f.Checksum, f.LocalPath}
	if f.Checksum == "" && f.LocalPath == "" {
		parts = append(parts, f.URL)
	}
	return strings.Join(parts, "|")
}

// SameAsset reports whether two files are the same physical asset: equal
// checksums, or lacking checksums, equal publication/issue/track/language.
func (f File) SameAsset(other File) bool {
	if f.Checksum != "" && other.Checksum != "" {
		return f.Checksum == other.Checksum
	}
	if f.Pub == "" && f.DocID == 0 {
		return false
	}
	return f.Pub == other.Pub && f.DocID == other.DocID && f.Issue == other.Issue &&
		f.Track == other.Track && strings.EqualFold(f.Lang, other.Lang)
}

// Name returns the file name used for placement and override matching.
func (f File) Name() string {
	if f.FileName != "" {
		return f.FileName
	}
	for _, candidate := range []string{f.LocalPath, f.URL, f.CachePath} {
		if candidate == "" {
			continue
		}
		if i := strings.IndexAny(candidate, "?#"); i >= 0 {
			candidate = candidate[:i]
		}
		if base := path.Base(strings.ReplaceAll(candidate, "\\", "/")); base != "." && base != "/" {
			return base
		}
	}
	return ""
}

// Ext returns the lower-case extension of the file name, including the dot.
func (f File) Ext() string {
	return strings.ToLower(path.Ext(f.Name()))
}

// Identifier names the file in error reports.
func (f File) Identifier() string {
	switch {
	case f.URL != "":
		return f.URL
	case f.LocalPath != "":
		return f.LocalPath
	case f.Pub != "":
		return fmt.Sprintf("%s_%s_%s_%d", f.Pub, f.Lang, f.Issue, f.Track)
	}
	return f.Title
}

// KindFromName guesses the media kind from a file name or URL.
func KindFromName(name string) Kind {
	ext := strings.ToLower(path.Ext(name))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	switch ext {
	case ".mp4", ".m4v", ".mov", ".webm", ".mkv":
		return KindVideo
	case ".mp3", ".m4a", ".aac", ".wav", ".ogg", ".flac":
		return KindAudio
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp", ".heic":
		return KindImage
	}
	return KindOther
}

// KindFromMime maps a MIME type to a media kind.
func KindFromMime(mime string) Kind {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	}
	return KindOther
}
