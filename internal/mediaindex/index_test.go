package mediaindex

import (
	"strings"
	"testing"
	"time"
)

var day1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func TestAddDropsSameChecksumAcrossSources(t *testing.T) {
	day := NewDay(day1)
	direct := File{Title: "Song", URL: "https://cdn/a.mp4", Checksum: "abc", Ordinal: 3, Source: SourceDirect}
	viaExtract := direct
	viaExtract.Source = SourceExtract
	viaExtract.URL = "https://cdn/a_480p.mp4"

	if !day.Add(direct) {
		t.Fatal("expected first add to succeed")
	}
	if day.Add(viaExtract) {
		t.Fatal("expected same checksum to be dropped")
	}
	if day.Len() != 1 {
		t.Fatalf("expected 1 item, got %d", day.Len())
	}
}

func TestAddDropsSameKey(t *testing.T) {
	day := NewDay(day1)
	img := File{Title: "Picture", LocalPath: "/cache/img.jpg", Ordinal: 2, Source: SourceDirect}
	if !day.Add(img) || day.Add(img) {
		t.Fatal("expected duplicate local item to be dropped")
	}
	other := img
	other.Ordinal = 4
	if !day.Add(other) {
		t.Fatal("expected same file at another ordinal to be kept")
	}
}

func TestAddKeepsDistinctRemoteFilesWithoutChecksum(t *testing.T) {
	day := NewDay(day1)
	if !day.Add(File{URL: "https://cdn/a.mp4", Ordinal: 1, Source: SourceDirect}) {
		t.Fatal("first add failed")
	}
	if !day.Add(File{URL: "https://cdn/b.mp4", Ordinal: 1, Source: SourceDirect}) {
		t.Fatal("expected distinct url to be kept")
	}
}

func TestAddDropsSameAssetWithoutChecksum(t *testing.T) {
	day := NewDay(day1)
	direct := File{Title: "Song 151", URL: "https://cdn/sjjm_E_151_r720P.mp4", Pub: "sjjm", Track: 151, Lang: "E", Ordinal: 3, Source: SourceDirect}
	viaExtract := direct
	viaExtract.URL = "https://cdn/sjjm_E_151_r480P.mp4"
	viaExtract.Source = SourceExtract
	if !day.Add(direct) {
		t.Fatal("first add failed")
	}
	if day.Add(viaExtract) {
		t.Fatal("expected same publication/track/language to be dropped")
	}

	otherTrack := direct
	otherTrack.Track = 152
	otherTrack.URL = "https://cdn/sjjm_E_152_r720P.mp4"
	if !day.Add(otherTrack) {
		t.Fatal("expected a different track to be kept")
	}
	otherLang := direct
	otherLang.Lang = "S"
	otherLang.URL = "https://cdn/sjjm_S_151_r720P.mp4"
	if !day.Add(otherLang) {
		t.Fatal("expected a different language to be kept")
	}
	if day.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", day.Len())
	}
}

func TestItemsOrderDateLevelLast(t *testing.T) {
	day := NewDay(day1)
	day.Add(File{Title: "extra", LocalPath: "/c/x.jpg", Ordinal: DateLevel, Source: SourceCongregation})
	day.Add(File{Title: "p5-b", Checksum: "2", Ordinal: 5})
	day.Add(File{Title: "p1", Checksum: "1", Ordinal: 1})
	day.Add(File{Title: "p5-a", Checksum: "3", Ordinal: 5})

	var titles []string
	for _, f := range day.Items() {
		titles = append(titles, f.Title)
	}
	if got := strings.Join(titles, ","); got != "p1,p5-b,p5-a,extra" {
		t.Fatalf("unexpected order %s", got)
	}
}

func TestRemoveLastAndUpdate(t *testing.T) {
	day := NewDay(day1)
	day.Add(File{Title: "song1", Pub: "sjjm", Checksum: "1", Ordinal: 1})
	day.Add(File{Title: "video", Checksum: "2", Ordinal: 4})
	day.Add(File{Title: "song2", Pub: "sjjm", Checksum: "3", Ordinal: 9})

	removed, ok := day.RemoveLast(func(f File) bool { return f.Pub == "sjjm" })
	if !ok || removed.Title != "song2" {
		t.Fatalf("unexpected removal %+v %v", removed, ok)
	}
	if len(day.Part(9)) != 0 {
		t.Fatal("expected part 9 to be empty")
	}

	n := day.Update(func(f File) bool { return f.Title == "video" }, func(f *File) { f.Hidden = true })
	if n != 1 || !day.Part(4)[0].Hidden {
		t.Fatal("expected video to be hidden")
	}
}

func TestFileNameAndKind(t *testing.T) {
	f := File{URL: "https://cdn.example/path/sjjm_E_151_r720P.mp4?x=1"}
	if f.Name() != "sjjm_E_151_r720P.mp4" {
		t.Fatalf("unexpected name %q", f.Name())
	}
	if KindFromName(f.URL) != KindVideo || f.Ext() != ".mp4" {
		t.Fatal("unexpected kind or extension")
	}
	if KindFromMime("image/jpeg") != KindImage {
		t.Fatal("unexpected mime kind")
	}
}

func TestSameAsset(t *testing.T) {
	a := File{Pub: "sjjm", Track: 151, Lang: "E"}
	b := File{Pub: "sjjm", Track: 151, Lang: "e"}
	if !a.SameAsset(b) {
		t.Fatal("expected tuple match")
	}
	if (File{Checksum: "x"}).SameAsset(File{Checksum: "y"}) {
		t.Fatal("expected checksum mismatch")
	}
}

func TestIndexDaysSorted(t *testing.T) {
	idx := New()
	idx.Day(day1.AddDate(0, 0, 5))
	idx.Day(day1)
	days := idx.Days()
	if len(days) != 2 || !days[0].Date.Equal(day1) {
		t.Fatal("expected days sorted by date")
	}
	if _, ok := idx.Lookup(day1.AddDate(0, 0, 1)); ok {
		t.Fatal("expected lookup miss")
	}
}
