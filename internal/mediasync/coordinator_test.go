package mediasync_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"meetingmedia/internal/config"
	"meetingmedia/internal/medialinks"
	"meetingmedia/internal/mediasync"
	"meetingmedia/internal/services"
	"meetingmedia/internal/testsupport"
)

type fixture struct {
	srv      *httptest.Server
	files    map[string][]byte
	requests atomic.Int64
	offline  atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{files: map[string][]byte{
		"sjjm_E_008_r720P.mp4": bytes.Repeat([]byte("8"), 300),
		"sjjm_E_020_r720P.mp4": bytes.Repeat([]byte("2"), 200),
	}}
	f.files["mwb_E_202401.jwpub"] = testsupport.ArchiveBytes(t, "mwb_E_202401.db", append(testsupport.CurrentSchema,
		`INSERT INTO Document VALUES (1, 202024001, 106, 'January 1-7')`,
		`INSERT INTO DatedText VALUES (1, 1, 20240101, 20240107)`,
		`INSERT INTO Multimedia VALUES
			(1, 0, 'sjjm', 8, 0, 0, 'video/mp4', '', 'Song 8', '', 0),
			(2, 0, '', 0, 0, 0, 'image/jpeg', 'pic.jpg', 'Picture', 'Picture', 0),
			(3, 0, 'sjjm', 20, 0, 0, 'video/mp4', '', 'Song 20', '', 0)`,
		`INSERT INTO DocumentMultimedia VALUES (1, 1, 1, 1), (2, 1, 2, 3), (3, 1, 3, 10)`,
	), map[string][]byte{"pic.jpg": []byte("jpeg bytes")})

	mux := http.NewServeMux()
	mux.HandleFunc("/GETPUBMEDIALINKS", func(w http.ResponseWriter, r *http.Request) {
		if f.offline.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		var name, format, title, mime string
		switch {
		case q.Get("pub") == "mwb" && q.Get("issue") == "202401" && q.Get("fileformat") == "JWPUB":
			name, format, title, mime = "mwb_E_202401.jwpub", "JWPUB", "Workbook", "application/octet-stream"
		case q.Get("pub") == "sjjm" && q.Get("track") == "8":
			name, format, title, mime = "sjjm_E_008_r720P.mp4", "MP4", "Song 8", "video/mp4"
		case q.Get("pub") == "sjjm" && q.Get("track") == "20":
			name, format, title, mime = "sjjm_E_020_r720P.mp4", "MP4", "Song 20", "video/mp4"
		default:
			http.NotFound(w, r)
			return
		}
		entry := medialinks.Entry{Title: title, Filesize: int64(len(f.files[name])), Mimetype: mime, Label: "720p"}
		entry.File.URL = f.srv.URL + "/files/" + name
		_ = json.NewEncoder(w).Encode(medialinks.Response{Files: map[string]map[string][]medialinks.Entry{
			"E": {format: {entry}},
		}})
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		body, ok := f.files[strings.TrimPrefix(r.URL.Path, "/files/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newConfig(t *testing.T, f *fixture) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithRemote(f.srv.URL), testsupport.WithCongregationDir())
	spoken := false
	cfg.Media.SignLanguage = &spoken
	root := cfg.Congregation.LocalDir
	testsupport.WriteFile(t, filepath.Join(root, "Media", "2024-01-02", "welcome.jpg"), 10)
	testsupport.WriteFile(t, filepath.Join(root, "Hidden", "2024-01-02", "sjjm_E_020_r720P.mp4"), 1)
	return cfg
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

var (
	from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
)

func TestSyncRangePlacesNumberedOutput(t *testing.T) {
	f := newFixture(t)
	cfg := newConfig(t, f)
	var updates atomic.Int64
	coord, err := mediasync.Build(context.Background(), cfg, nil, func(_, _ int64, _ bool) { updates.Add(1) })
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dayDir := filepath.Join(cfg.Paths.OutputDir, "E", "2024-01-02")
	testsupport.WriteFile(t, filepath.Join(dayDir, "09-09 - Stale.mp4"), 5)
	testsupport.WriteFile(t, filepath.Join(dayDir, "04-01 - Song 20.mp4"), 200)
	testsupport.WriteFile(t, filepath.Join(dayDir, "notes.txt"), 5)

	report, err := coord.SyncRange(context.Background(), from, to)
	if err != nil {
		t.Fatalf("SyncRange: %v", err)
	}

	want := []string{"01-01 - Song 8.mp4", "02-01 - Picture.jpg", "03-01 - welcome.jpg", "notes.txt"}
	if diff := cmp.Diff(want, listDir(t, dayDir)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}

	if len(report.Days) != 2 || report.RunID == "" {
		t.Fatalf("unexpected report %+v", report)
	}
	if !errors.Is(report.Days[1].Err, services.ErrNoDatabase) {
		t.Fatalf("expected unpublished weekend study, got %v", report.Days[1].Err)
	}
	placed, hidden, failed := report.Totals()
	if placed != 3 || hidden != 1 || failed != 0 {
		t.Fatalf("placed=%d hidden=%d failed=%d", placed, hidden, failed)
	}
	if transfers := coord.Cache().Transfers(); transfers != 2 {
		t.Fatalf("expected archive and one song downloaded, got %d transfers", transfers)
	}
	if updates.Load() == 0 {
		t.Fatal("expected progress updates")
	}

	day, ok := coord.Index().Lookup(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if !ok || day.Len() != 4 {
		t.Fatalf("expected four indexed items, got %v", day)
	}

	if _, err := coord.SyncRange(context.Background(), from, to); err != nil {
		t.Fatalf("second SyncRange: %v", err)
	}
	if transfers := coord.Cache().Transfers(); transfers != 2 {
		t.Fatalf("expected no new transfers, got %d", transfers)
	}
	if diff := cmp.Diff(want, listDir(t, dayDir)); diff != "" {
		t.Fatalf("output changed on resync (-want +got):\n%s", diff)
	}
}

func TestPlanDoesNotDownloadMedia(t *testing.T) {
	f := newFixture(t)
	coord, err := mediasync.Build(context.Background(), newConfig(t, f), nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	report, err := coord.Plan(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	var names []string
	for _, item := range report.Days[0].Items {
		names = append(names, item.Name)
	}
	want := []string{"01-01 - Song 8.mp4", "02-01 - Picture.jpg", "00-00 - Song 20.mp4", "03-01 - welcome.jpg"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
	// Only the publication archive is fetched.
	if f.requests.Load() != 1 {
		t.Fatalf("expected one file request, got %d", f.requests.Load())
	}
}

func TestChangeDateLayoutRenamesFolders(t *testing.T) {
	f := newFixture(t)
	cfg := newConfig(t, f)
	coord, err := mediasync.Build(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := coord.SyncRange(context.Background(), from, to); err != nil {
		t.Fatalf("SyncRange: %v", err)
	}

	renamed, err := coord.ChangeDateLayout(context.Background(), "20060102")
	if err != nil {
		t.Fatalf("ChangeDateLayout: %v", err)
	}
	// output day folder, congregation media folder, hidden folder
	if renamed != 3 {
		t.Fatalf("renamed = %d", renamed)
	}
	if got := coord.DayDir(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)); got != filepath.Join(cfg.Paths.OutputDir, "E", "20240102") {
		t.Fatalf("DayDir = %q", got)
	}
	if _, err := os.Stat(filepath.Join(cfg.Congregation.LocalDir, "Media", "20240102", "welcome.jpg")); err != nil {
		t.Fatalf("expected congregation folder renamed: %v", err)
	}

	report, err := coord.Plan(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Plan after rename: %v", err)
	}
	_, hidden, _ := report.Totals()
	if hidden != 1 {
		t.Fatalf("expected hidden marker to survive rename, got %d", hidden)
	}
}

func TestClearCacheEmptiesCache(t *testing.T) {
	f := newFixture(t)
	coord, err := mediasync.Build(context.Background(), newConfig(t, f), nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := coord.SyncRange(context.Background(), from, to); err != nil {
		t.Fatalf("SyncRange: %v", err)
	}

	if err := coord.ClearCache(context.Background()); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	stats, err := coord.Cache().Stats()
	if err != nil || stats.Files != 0 {
		t.Fatalf("expected empty cache, got %+v, %v", stats, err)
	}
	if len(coord.Index().Days()) != 0 {
		t.Fatal("expected index reset")
	}

	if _, err := coord.SyncRange(context.Background(), from, to); err != nil {
		t.Fatalf("SyncRange after clear: %v", err)
	}
	if coord.Cache().Transfers() != 4 {
		t.Fatalf("expected archive and song downloaded again, got %d transfers", coord.Cache().Transfers())
	}
}

func TestSyncRangeKeepsOutputWhenOffline(t *testing.T) {
	f := newFixture(t)
	f.offline.Store(true)
	cfg := newConfig(t, f)
	coord, err := mediasync.Build(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dayDir := filepath.Join(cfg.Paths.OutputDir, "E", "2024-01-02")
	testsupport.WriteFile(t, filepath.Join(dayDir, "01-01 - Song 8.mp4"), 300)

	report, err := coord.SyncRange(context.Background(), from, to)
	if err != nil {
		t.Fatalf("SyncRange: %v", err)
	}
	midweek := report.Days[0]
	if !errors.Is(midweek.Err, services.ErrNetwork) || mediasync.ScheduleMissing(midweek.Err) {
		t.Fatalf("expected network failure for the day, got %v", midweek.Err)
	}
	if services.Kind(midweek.Err) != "network" {
		t.Fatalf("kind = %q", services.Kind(midweek.Err))
	}
	if midweek.Removed != 0 || len(midweek.Items) != 0 {
		t.Fatalf("offline day should be left alone, got removed=%d items=%d", midweek.Removed, len(midweek.Items))
	}
	if diff := cmp.Diff([]string{"01-01 - Song 8.mp4"}, listDir(t, dayDir)); diff != "" {
		t.Fatalf("output changed while offline (-want +got):\n%s", diff)
	}
}
