package assembler_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"meetingmedia/internal/assembler"
	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/medialinks"
	"meetingmedia/internal/publications"
	"meetingmedia/internal/pubdb"
	"meetingmedia/internal/services"
	"meetingmedia/internal/testsupport"
)

type fakeLibrary struct {
	pubs map[string]*publications.Publication
}

func (l *fakeLibrary) Open(_ context.Context, symbol, issue, preferredLang, _ string) (*publications.Publication, error) {
	if pub, ok := l.pubs[symbol]; ok {
		return pub, nil
	}
	return nil, services.Wrap(services.ErrNoDatabase, publications.Key(symbol, issue, preferredLang), "open publication", errors.New("not published"))
}

type fakeResolver struct {
	mu       sync.Mutex
	files    map[string]mediaindex.File
	failures map[string]error
	calls    []string
}

func refKey(ref medialinks.Reference) string {
	return fmt.Sprintf("%s/%d", ref.Pub, ref.Track)
}

func (r *fakeResolver) Resolve(_ context.Context, ref medialinks.Reference, preferredLang, _ string) ([]mediaindex.File, error) {
	key := refKey(ref)
	r.mu.Lock()
	r.calls = append(r.calls, key)
	r.mu.Unlock()
	if err := r.failures[key]; err != nil {
		return nil, err
	}
	file, ok := r.files[key]
	if !ok {
		return nil, nil
	}
	file.Lang = preferredLang
	return []mediaindex.File{file}, nil
}

func remote(pub string, track int, title string) mediaindex.File {
	return mediaindex.File{
		Title:    title,
		URL:      fmt.Sprintf("https://cdn.test/%s_%d.mp4", pub, track),
		Checksum: fmt.Sprintf("sum-%s-%d", pub, track),
		Kind:     mediaindex.KindVideo,
		Pub:      pub,
		Track:    track,
	}
}

func openPublication(t *testing.T, symbol, issue string, statements []string, members ...string) *publications.Publication {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, symbol+"_E.db")
	testsupport.CreateDatabase(t, dbPath, statements...)
	for _, name := range members {
		testsupport.WriteFile(t, filepath.Join(dir, name), 16)
	}
	db, err := pubdb.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open %s: %v", symbol, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &publications.Publication{Symbol: symbol, Issue: issue, Lang: "E", Dir: dir, DB: db}
}

func workbook(t *testing.T) *publications.Publication {
	t.Helper()
	return openPublication(t, "mwb", "202401", append(testsupport.CurrentSchema,
		`INSERT INTO Document VALUES (1, 202024001, 106, 'Week'), (2, 99, 0, 'Linked'), (3, 98, 0, 'Nested')`,
		`INSERT INTO Multimedia VALUES
			(1, 0, 'sjjm', 8, 0, 0, 'video/mp4', '', 'Song 8', '', 0),
			(2, 0, '', 0, 0, 0, 'image/jpeg', 'pic.jpg', 'Picture', 'Opening picture', 0),
			(3, 0, 'sjjm', 20, 0, 0, 'video/mp4', '', 'Song 20', '', 0),
			(4, 0, 'mwbv', 1, 20240100, 0, 'video/mp4', '', 'Linked video', '', 0),
			(5, 0, 'mwbv', 1, 20240100, 0, 'video/mp4', '', 'Linked video again', '', 0)`,
		`INSERT INTO DocumentMultimedia VALUES (1, 1, 1, 1), (2, 1, 2, 3), (3, 1, 3, 10), (4, 2, 4, 1), (5, 3, 5, 2)`,
		`INSERT INTO RefPublication VALUES (1, 'th', 0), (2, 'lffi', 0)`,
		`INSERT INTO Extract VALUES (1, 1001, 1, 0, 0), (2, 500, 2, 2, 3)`,
		`INSERT INTO DocumentExtract VALUES (1, 1, 1, 5, 5), (2, 1, 2, 6, 6)`,
		`INSERT INTO InternalLink VALUES (1, 99), (2, 202024001), (3, 98), (4, 99)`,
		`INSERT INTO DocumentInternalLink VALUES (1, 1, 1, 7), (2, 2, 2, 1), (3, 2, 3, 2), (4, 3, 4, 1)`,
	), "pic.jpg")
}

func illustrations(t *testing.T) *publications.Publication {
	t.Helper()
	return openPublication(t, "lffi", "0", append(testsupport.CurrentSchema,
		`INSERT INTO Document VALUES (1, 500, 0, 'Illustrations')`,
		`INSERT INTO Multimedia VALUES
			(1, 0, 'lffi', 2, 0, 0, 'video/mp4', '', 'Clip', '', 0),
			(2, 0, '', 0, 0, 0, 'image/jpeg', 'lffi.jpg', 'Illustration', '', 0),
			(3, 0, '', 0, 0, 0, 'image/jpeg', 'other.jpg', 'Other', '', 0)`,
		`INSERT INTO DocumentMultimedia VALUES (1, 1, 1, 2), (2, 1, 2, 3), (3, 1, 3, 9)`,
	), "lffi.jpg", "other.jpg")
}

func newResolver() *fakeResolver {
	return &fakeResolver{files: map[string]mediaindex.File{
		"sjjm/8":  remote("sjjm", 8, "Song 8"),
		"sjjm/20": remote("sjjm", 20, "Song 20"),
		"mwbv/1":  remote("mwbv", 1, "Linked video"),
		"lffi/2":  remote("lffi", 2, "Clip"),
	}}
}

type summary struct {
	Ordinal int
	Source  mediaindex.Source
	Name    string
}

func summarize(files []mediaindex.File) []summary {
	out := make([]summary, 0, len(files))
	for _, f := range files {
		out = append(out, summary{Ordinal: f.Ordinal, Source: f.Source, Name: f.Name()})
	}
	return out
}

func assemble(t *testing.T, a *assembler.Assembler, pub *publications.Publication, visit bool) *assembler.Result {
	t.Helper()
	doc, ok, err := pub.DB.DocumentByMepsID(context.Background(), 202024001)
	if err != nil || !ok {
		t.Fatalf("document lookup: %v, %v", ok, err)
	}
	result, err := a.Assemble(context.Background(), assembler.Request{
		Publication: pub,
		Document:    doc,
		Date:        time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		VisitWeek:   visit,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return result
}

func TestAssembleOrdersAllSources(t *testing.T) {
	pub := workbook(t)
	lib := &fakeLibrary{pubs: map[string]*publications.Publication{"lffi": illustrations(t)}}
	a := assembler.New(lib, newResolver(), assembler.DefaultPolicy(true), assembler.Options{Lang: "E"}, nil)

	result := assemble(t, a, pub, false)

	want := []summary{
		{Ordinal: 1, Source: mediaindex.SourceDirect, Name: "sjjm_8.mp4"},
		{Ordinal: 3, Source: mediaindex.SourceDirect, Name: "pic.jpg"},
		{Ordinal: 6, Source: mediaindex.SourceExtract, Name: "lffi.jpg"},
		{Ordinal: 7, Source: mediaindex.SourceInternalLink, Name: "mwbv_1.mp4"},
		{Ordinal: 10, Source: mediaindex.SourceDirect, Name: "sjjm_20.mp4"},
	}
	if diff := cmp.Diff(want, summarize(result.Day.Items())); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", result.Failures)
	}

	items := result.Day.Items()
	if items[1].Title != "Opening picture" || items[1].LocalPath != pub.MemberPath("pic.jpg") || items[1].Size != 16 {
		t.Fatalf("unexpected local image %+v", items[1])
	}
}

func TestAssembleVisitWeek(t *testing.T) {
	pub := workbook(t)
	lib := &fakeLibrary{pubs: map[string]*publications.Publication{"lffi": illustrations(t)}}
	a := assembler.New(lib, newResolver(), assembler.DefaultPolicy(true), assembler.Options{Lang: "E"}, nil)

	result := assemble(t, a, pub, true)

	want := []summary{
		{Ordinal: 1, Source: mediaindex.SourceDirect, Name: "sjjm_8.mp4"},
		{Ordinal: 3, Source: mediaindex.SourceDirect, Name: "pic.jpg"},
		{Ordinal: 7, Source: mediaindex.SourceInternalLink, Name: "mwbv_1.mp4"},
	}
	if diff := cmp.Diff(want, summarize(result.Day.Items())); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleClosingSongRange(t *testing.T) {
	pub := workbook(t)
	resolver := newResolver()
	delete(resolver.files, "sjjm/20")
	policy := assembler.DefaultPolicy(true)
	policy.ClosingSongFrom = 7
	a := assembler.New(&fakeLibrary{}, resolver, policy, assembler.Options{Lang: "E"}, nil)

	result := assemble(t, a, pub, true)

	want := []summary{
		{Ordinal: 1, Source: mediaindex.SourceDirect, Name: "sjjm_8.mp4"},
		{Ordinal: 3, Source: mediaindex.SourceDirect, Name: "pic.jpg"},
	}
	if diff := cmp.Diff(want, summarize(result.Day.Items())); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleSettlesFailures(t *testing.T) {
	pub := workbook(t)
	resolver := newResolver()
	resolver.failures = map[string]error{
		"sjjm/8": services.Wrap(services.ErrNetwork, "sjjm_E_0_8", "lookup", errors.New("connection reset")),
	}
	delete(resolver.files, "mwbv/1")
	a := assembler.New(&fakeLibrary{}, resolver, assembler.DefaultPolicy(false), assembler.Options{Lang: "E"}, nil)

	result := assemble(t, a, pub, false)

	want := []summary{
		{Ordinal: 3, Source: mediaindex.SourceDirect, Name: "pic.jpg"},
		{Ordinal: 10, Source: mediaindex.SourceDirect, Name: "sjjm_20.mp4"},
	}
	if diff := cmp.Diff(want, summarize(result.Day.Items())); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}

	var network, unavailable, noDatabase int
	for _, failure := range result.Failures {
		switch {
		case errors.Is(failure.Err, services.ErrNetwork):
			network++
		case errors.Is(failure.Err, services.ErrUnavailable):
			unavailable++
		case errors.Is(failure.Err, services.ErrNoDatabase):
			noDatabase++
		}
	}
	// th and lffi are both missing from the library; mwbv is reached twice
	// at the same ordinal.
	if network != 1 || unavailable != 2 || noDatabase != 2 {
		t.Fatalf("network=%d unavailable=%d noDatabase=%d failures=%+v", network, unavailable, noDatabase, result.Failures)
	}
}

func TestAssembleTerminatesOnLinkCycles(t *testing.T) {
	pub := workbook(t)
	resolver := newResolver()
	a := assembler.New(&fakeLibrary{}, resolver, assembler.DefaultPolicy(true), assembler.Options{Lang: "E"}, nil)

	assemble(t, a, pub, false)

	count := 0
	for _, call := range resolver.calls {
		if call == "mwbv/1" {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected each linked document visited once, got %d mwbv lookups", count)
	}
}

func TestAssembleSignLanguageKeepsParagraphAgnosticVideo(t *testing.T) {
	pub := workbook(t)
	ill := openPublication(t, "nwt", "0", append(testsupport.CurrentSchema,
		`INSERT INTO Document VALUES (1, 500, 0, 'Verse')`,
		`INSERT INTO Multimedia VALUES
			(1, 0, 'nwtsv', 0, 0, 0, 'video/mp4', '', 'Whole chapter', '', 0),
			(2, 0, 'nwtsv', 4, 0, 0, 'video/mp4', '', 'Verse 4', '', 0)`,
		`INSERT INTO DocumentMultimedia VALUES (1, 1, 1, 0), (2, 1, 2, 9)`,
	))
	// Point the lffi extract at a non-illustration publication.
	lib := &fakeLibrary{pubs: map[string]*publications.Publication{"lffi": ill}}
	resolver := newResolver()
	resolver.files["nwtsv/0"] = remote("nwtsv", 0, "Whole chapter")
	resolver.files["nwtsv/4"] = remote("nwtsv", 4, "Verse 4")
	policy := assembler.DefaultPolicy(true)
	policy.ImageOnlySymbols = nil

	signed := assembler.New(lib, resolver, policy, assembler.Options{Lang: "ASL", SignLanguage: true}, nil)
	part := assemble(t, signed, pub, false).Day.Part(6)
	if len(part) != 1 || part[0].Title != "Whole chapter" {
		t.Fatalf("expected paragraph-agnostic video kept, got %+v", part)
	}

	spoken := assembler.New(lib, resolver, policy, assembler.Options{Lang: "E"}, nil)
	if part := assemble(t, spoken, pub, false).Day.Part(6); len(part) != 0 {
		t.Fatalf("expected out-of-range video dropped, got %+v", part)
	}
}

func TestAssembleMissingLocalMember(t *testing.T) {
	pub := workbook(t)
	if err := os.Remove(pub.MemberPath("pic.jpg")); err != nil {
		t.Fatal(err)
	}
	a := assembler.New(&fakeLibrary{}, newResolver(), assembler.DefaultPolicy(true), assembler.Options{Lang: "E"}, nil)

	result := assemble(t, a, pub, false)
	if len(result.Day.Part(3)) != 0 {
		t.Fatal("expected missing member to be skipped")
	}
	found := false
	for _, failure := range result.Failures {
		if errors.Is(failure.Err, services.ErrExtraction) && failure.Ordinal == 3 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected extraction failure, got %+v", result.Failures)
	}
}

func TestImageOnlyEarlierOfPair(t *testing.T) {
	pub := openPublication(t, "mwb", "202401", append(testsupport.CurrentSchema,
		`INSERT INTO Document VALUES (1, 202024001, 106, 'Week')`,
		`INSERT INTO RefPublication VALUES (1, 'lff', 0)`,
		`INSERT INTO Extract VALUES (1, 500, 1, 0, 0), (2, 500, 1, 0, 0)`,
		`INSERT INTO DocumentExtract VALUES (1, 1, 1, 4, 4), (2, 1, 2, 8, 8)`,
	))
	lff := openPublication(t, "lff", "0", append(testsupport.CurrentSchema,
		`INSERT INTO Document VALUES (1, 500, 0, 'Lesson')`,
		`INSERT INTO Multimedia VALUES
			(1, 0, 'lffv', 3, 0, 0, 'video/mp4', '', 'Lesson video', '', 0),
			(2, 0, '', 0, 0, 0, 'image/jpeg', 'lesson.jpg', 'Lesson art', '', 0)`,
		`INSERT INTO DocumentMultimedia VALUES (1, 1, 1, 1), (2, 1, 2, 2)`,
	), "lesson.jpg")
	resolver := newResolver()
	resolver.files["lffv/3"] = remote("lffv", 3, "Lesson video")
	a := assembler.New(&fakeLibrary{pubs: map[string]*publications.Publication{"lff": lff}}, resolver,
		assembler.DefaultPolicy(true), assembler.Options{Lang: "E"}, nil)

	result := assemble(t, a, pub, false)

	want := []summary{
		{Ordinal: 4, Source: mediaindex.SourceExtract, Name: "lesson.jpg"},
		{Ordinal: 8, Source: mediaindex.SourceExtract, Name: "lffv_3.mp4"},
		{Ordinal: 8, Source: mediaindex.SourceExtract, Name: "lesson.jpg"},
	}
	if diff := cmp.Diff(want, summarize(result.Day.Items())); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleAttachesSharedLinkAtEveryReferringParagraph(t *testing.T) {
	pub := openPublication(t, "mwb", "202401", append(testsupport.CurrentSchema,
		`INSERT INTO Document VALUES (1, 202024001, 106, 'Week'), (2, 99, 0, 'Linked')`,
		`INSERT INTO Multimedia VALUES (1, 0, 'mwbv', 1, 20240100, 0, 'video/mp4', '', 'Linked video', '', 0)`,
		`INSERT INTO DocumentMultimedia VALUES (1, 2, 1, 1)`,
		`INSERT INTO InternalLink VALUES (1, 99), (2, 99)`,
		`INSERT INTO DocumentInternalLink VALUES (1, 1, 1, 2), (2, 1, 2, 5)`,
	))
	a := assembler.New(&fakeLibrary{}, newResolver(), assembler.DefaultPolicy(true), assembler.Options{Lang: "E"}, nil)

	result := assemble(t, a, pub, false)

	want := []summary{
		{Ordinal: 2, Source: mediaindex.SourceInternalLink, Name: "mwbv_1.mp4"},
		{Ordinal: 5, Source: mediaindex.SourceInternalLink, Name: "mwbv_1.mp4"},
	}
	if diff := cmp.Diff(want, summarize(result.Day.Items())); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleWalksSiblingLinksAfterNestedFailure(t *testing.T) {
	pub := openPublication(t, "mwb", "202401", append(testsupport.CurrentSchema,
		`INSERT INTO Document VALUES (1, 202024001, 106, 'Week'), (2, 90, 0, 'Hub'), (3, 91, 0, 'Broken'), (4, 92, 0, 'Leaf')`,
		`INSERT INTO Multimedia VALUES (1, 0, 'mwbv', 1, 20240100, 0, 'video/mp4', '', 'Leaf video', '', 0)`,
		`INSERT INTO DocumentMultimedia VALUES (1, 4, 1, 1)`,
		`INSERT INTO InternalLink VALUES (1, 90), (2, 91), (3, 92), (4, 90)`,
		// The broken document's link row has an unreadable paragraph ordinal.
		`INSERT INTO DocumentInternalLink VALUES (1, 1, 1, 4), (2, 2, 2, 1), (3, 2, 3, 2), (4, 3, 4, 'bad')`,
	))
	a := assembler.New(&fakeLibrary{}, newResolver(), assembler.DefaultPolicy(true), assembler.Options{Lang: "E"}, nil)

	result := assemble(t, a, pub, false)

	if part := result.Day.Part(4); len(part) != 1 || part[0].Name() != "mwbv_1.mp4" {
		t.Fatalf("expected leaf media after the broken sibling, got %+v", part)
	}
	found := false
	for _, failure := range result.Failures {
		if failure.Source == mediaindex.SourceInternalLink && errors.Is(failure.Err, services.ErrExtraction) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the broken link reported, got %+v", result.Failures)
	}
}
