package mediacache_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"meetingmedia/internal/mediacache"
	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/progress"
	"meetingmedia/internal/services"
	"meetingmedia/internal/testsupport"
)

type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string][]byte
	calls   atomic.Int64
	release chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	f.mu.Lock()
	body, ok := f.bodies[url]
	f.mu.Unlock()
	if !ok {
		return nil, 0, services.Wrap(services.ErrUnavailable, url, "download", errors.New("missing"))
	}
	return io.NopCloser(bytes.NewReader(body)), int64(len(body)), nil
}

func songFile(url string, size int64) mediaindex.File {
	return mediaindex.File{Title: "Song 1", URL: url, Size: size, Pub: "sjjm", Track: 1, Lang: "E", Kind: mediaindex.KindVideo}
}

func TestEnsureLocalDownloadsOnce(t *testing.T) {
	url := "https://cdn.example/sjjm_E_001_r720P.mp4"
	fetcher := &fakeFetcher{bodies: map[string][]byte{url: bytes.Repeat([]byte("a"), 1000)}}
	cache := mediacache.New(t.TempDir(), fetcher, nil)
	file := songFile(url, 1000)

	first, err := cache.EnsureLocal(context.Background(), file)
	if err != nil {
		t.Fatalf("EnsureLocal: %v", err)
	}
	second, err := cache.EnsureLocal(context.Background(), file)
	if err != nil {
		t.Fatalf("EnsureLocal again: %v", err)
	}
	if first != second {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one transfer, got %d", got)
	}
	want := filepath.Join(cache.PublicationsDir(), "E", "sjjm", "0", "1", "sjjm_E_001_r720P.mp4")
	if first != want {
		t.Fatalf("cache path = %q, want %q", first, want)
	}
}

func TestEnsureLocalUsesExistingCopy(t *testing.T) {
	url := "https://cdn.example/sjjm_E_001_r720P.mp4"
	fetcher := &fakeFetcher{bodies: map[string][]byte{}}
	cache := mediacache.New(t.TempDir(), fetcher, nil)
	file := songFile(url, 1000)
	testsupport.WriteFile(t, cache.Path(file), 1000)

	for i := 0; i < 2; i++ {
		path, err := cache.EnsureLocal(context.Background(), file)
		if err != nil {
			t.Fatalf("EnsureLocal #%d: %v", i, err)
		}
		if path != cache.Path(file) {
			t.Fatalf("unexpected path %q", path)
		}
	}
	if got := fetcher.calls.Load(); got != 0 {
		t.Fatalf("expected zero downloads, got %d", got)
	}
}

func TestEnsureLocalRedownloadsOnSizeMismatch(t *testing.T) {
	url := "https://cdn.example/a.mp4"
	fetcher := &fakeFetcher{bodies: map[string][]byte{url: bytes.Repeat([]byte("b"), 1000)}}
	cache := mediacache.New(t.TempDir(), fetcher, nil)
	file := songFile(url, 1000)
	testsupport.WriteFile(t, cache.Path(file), 400)

	path, err := cache.EnsureLocal(context.Background(), file)
	if err != nil {
		t.Fatalf("EnsureLocal: %v", err)
	}
	if !mediacache.Valid(path, 1000) || fetcher.calls.Load() != 1 {
		t.Fatalf("expected one re-download, calls=%d", fetcher.calls.Load())
	}
}

func TestEnsureLocalIntegrityMismatch(t *testing.T) {
	url := "https://cdn.example/short.mp4"
	fetcher := &fakeFetcher{bodies: map[string][]byte{url: []byte("short")}}
	cache := mediacache.New(t.TempDir(), fetcher, nil)

	_, err := cache.EnsureLocal(context.Background(), songFile(url, 1000))
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity mismatch, got %v", err)
	}
	if _, statErr := os.Stat(cache.Path(songFile(url, 1000))); !os.IsNotExist(statErr) {
		t.Fatal("expected truncated download to be removed")
	}
}

func TestEnsureLocalSharesInFlightTransfer(t *testing.T) {
	defer goleak.VerifyNone(t)

	url := "https://cdn.example/shared.mp4"
	fetcher := &fakeFetcher{
		bodies:  map[string][]byte{url: bytes.Repeat([]byte("c"), 2048)},
		release: make(chan struct{}),
	}
	cache := mediacache.New(t.TempDir(), fetcher, nil)
	file := songFile(url, 2048)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.EnsureLocal(context.Background(), file)
			errs <- err
		}()
	}
	// Let every caller join the in-flight request before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("EnsureLocal: %v", err)
		}
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected one shared transfer, got %d", got)
	}
}

func TestEnsureLocalTransferSurvivesCallerCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	url := "https://cdn.example/slow.mp4"
	fetcher := &fakeFetcher{
		bodies:  map[string][]byte{url: bytes.Repeat([]byte("d"), 10)},
		release: make(chan struct{}),
	}
	cache := mediacache.New(t.TempDir(), fetcher, nil)
	file := songFile(url, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.EnsureLocal(ctx, file)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected caller to observe cancellation, got %v", err)
	}

	close(fetcher.release)
	path, err := cache.EnsureLocal(context.Background(), file)
	if err != nil {
		t.Fatalf("EnsureLocal after cancel: %v", err)
	}
	if !mediacache.Valid(path, 10) {
		t.Fatal("expected transfer to have populated the cache")
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected the original transfer to be reused, got %d calls", got)
	}
}

func TestEnsureLocalExtractsArchives(t *testing.T) {
	url := "https://cdn.example/mwb_E_202401.jwpub"
	data := testsupport.ArchiveBytes(t, "mwb_E_202401.db", testsupport.CurrentSchema, map[string][]byte{"pic.jpg": []byte("jpg")})
	fetcher := &fakeFetcher{bodies: map[string][]byte{url: data}}
	cache := mediacache.New(t.TempDir(), fetcher, nil)
	file := mediaindex.File{URL: url, Size: int64(len(data)), Pub: "mwb", Issue: "202401", Lang: "E"}

	path, err := cache.EnsureLocal(context.Background(), file)
	if err != nil {
		t.Fatalf("EnsureLocal: %v", err)
	}
	dir := filepath.Dir(path)
	for _, name := range []string{"mwb_E_202401.db", "pic.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected extracted %s: %v", name, err)
		}
	}
}

func TestEnsureLocalReportsProgress(t *testing.T) {
	url := "https://cdn.example/p.mp4"
	fetcher := &fakeFetcher{bodies: map[string][]byte{url: bytes.Repeat([]byte("e"), 300)}}
	cache := mediacache.New(t.TempDir(), fetcher, nil)

	var last [2]int64
	tracker := progress.NewTracker(func(loaded, total int64, global bool) {
		if global {
			last = [2]int64{loaded, total}
		}
	})
	ctx := progress.WithBranch(context.Background(), tracker.Branch("download"))
	if _, err := cache.EnsureLocal(ctx, songFile(url, 300)); err != nil {
		t.Fatal(err)
	}
	if last != [2]int64{300, 300} {
		t.Fatalf("last aggregate = %v, want [300 300]", last)
	}
}

func TestEnsureLocalLocalFile(t *testing.T) {
	cache := mediacache.New(t.TempDir(), &fakeFetcher{}, nil)
	local := filepath.Join(t.TempDir(), "img.jpg")
	testsupport.WriteFile(t, local, 10)

	path, err := cache.EnsureLocal(context.Background(), mediaindex.File{LocalPath: local})
	if err != nil || path != local {
		t.Fatalf("EnsureLocal = %q, %v", path, err)
	}
	if _, err := cache.EnsureLocal(context.Background(), mediaindex.File{LocalPath: local + ".missing"}); !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestStatsAndClear(t *testing.T) {
	url := "https://cdn.example/s.mp4"
	fetcher := &fakeFetcher{bodies: map[string][]byte{url: bytes.Repeat([]byte("f"), 64)}}
	cache := mediacache.New(t.TempDir(), fetcher, nil)
	if _, err := cache.EnsureLocal(context.Background(), songFile(url, 64)); err != nil {
		t.Fatal(err)
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Files != 1 || stats.Bytes != 64 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	hooked := false
	if err := cache.Clear(context.Background(), func() { hooked = true }); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if !hooked {
		t.Fatal("expected Clear to run the hook")
	}
	stats, err = cache.Stats()
	if err != nil || stats.Files != 0 {
		t.Fatalf("expected empty cache, got %+v, %v", stats, err)
	}
}

func TestExclusiveLockWaitsForShared(t *testing.T) {
	cache := mediacache.New(t.TempDir(), &fakeFetcher{}, nil)
	unlock, err := cache.LockShared(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := cache.LockExclusive(ctx); err == nil {
		t.Fatal("expected exclusive lock to wait while a shared lock is held")
	}

	unlock()
	release, err := cache.LockExclusive(context.Background())
	if err != nil {
		t.Fatalf("LockExclusive after release: %v", err)
	}
	release()
}

func TestSchemeFetcherRoutesByPrefix(t *testing.T) {
	web := &fakeFetcher{bodies: map[string][]byte{"https://cdn.example/a.mp4": []byte("web")}}
	dav := &fakeFetcher{bodies: map[string][]byte{"webdav://Media/2024-01-02/b.mp4": []byte("dav")}}
	router := mediacache.NewSchemeFetcher(web)
	router.Handle("webdav://", dav)

	for url, want := range map[string]string{
		"https://cdn.example/a.mp4":       "web",
		"webdav://Media/2024-01-02/b.mp4": "dav",
	} {
		body, _, err := router.Fetch(context.Background(), url)
		if err != nil {
			t.Fatalf("Fetch(%s): %v", url, err)
		}
		got, _ := io.ReadAll(body)
		body.Close()
		if string(got) != want {
			t.Fatalf("Fetch(%s) = %q, want %q", url, got, want)
		}
	}
	if web.calls.Load() != 1 || dav.calls.Load() != 1 {
		t.Fatalf("web=%d dav=%d", web.calls.Load(), dav.calls.Load())
	}
}
