package mediacache

import (
	"os"
	"path/filepath"
	"testing"

	"meetingmedia/internal/testsupport"
)

func TestOutputName(t *testing.T) {
	got := OutputName(OrderPrefix(1, 2), "Song 151: He Will Call", "MP4")
	if got != "01-02 - Song 151- He Will Call.mp4" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestPlaceCopiesNewFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.mp4")
	testsupport.WriteFile(t, src, 100)
	dest := t.TempDir()

	path, copied, err := Place(src, dest, "01-01 - Song.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if !copied || path != filepath.Join(dest, "01-01 - Song.mp4") {
		t.Fatalf("unexpected placement %q copied=%v", path, copied)
	}
}

func TestPlaceRenamesMatchingSuffix(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.mp4")
	testsupport.WriteFile(t, src, 100)
	dest := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dest, "03-01 - Song.mp4"), 100)

	path, copied, err := Place(src, dest, "02-01 - Song.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if copied {
		t.Fatal("expected rename instead of copy")
	}
	if _, err := os.Stat(filepath.Join(dest, "03-01 - Song.mp4")); !os.IsNotExist(err) {
		t.Fatal("expected old name to be gone")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected renamed file: %v", err)
	}
}

func TestPlaceCopiesWhenSizeDiffers(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.mp4")
	testsupport.WriteFile(t, src, 100)
	dest := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dest, "03-01 - Song.mp4"), 50)

	_, copied, err := Place(src, dest, "02-01 - Song.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if !copied {
		t.Fatal("expected copy when sizes differ")
	}
}

func TestPlaceTreatsSVGAsMatch(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.svg")
	testsupport.WriteFile(t, src, 100)
	dest := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dest, "05-02 - Diagram.svg"), 7)

	_, copied, err := Place(src, dest, "01-02 - Diagram.svg")
	if err != nil {
		t.Fatal(err)
	}
	if copied {
		t.Fatal("expected svg to be reused regardless of size")
	}
}

func TestRemoveMatchingIgnoresPrefix(t *testing.T) {
	dest := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dest, "04-02 - Song.mp4"), 10)
	testsupport.WriteFile(t, filepath.Join(dest, "04-03 - Other.mp4"), 10)

	n, err := RemoveMatching(dest, "01-01 - Song.mp4")
	if err != nil || n != 1 {
		t.Fatalf("RemoveMatching = %d, %v", n, err)
	}
	if _, err := os.Stat(filepath.Join(dest, "04-03 - Other.mp4")); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
}

func TestPruneKeepsUnprefixedFiles(t *testing.T) {
	dest := t.TempDir()
	for _, name := range []string{"01-01 - Keep.mp4", "01-02 - Stale.mp4", "notes.txt"} {
		testsupport.WriteFile(t, filepath.Join(dest, name), 10)
	}

	n, err := Prune(dest, []string{filepath.Join(dest, "01-01 - Keep.mp4")})
	if err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	for name, want := range map[string]bool{"01-01 - Keep.mp4": true, "01-02 - Stale.mp4": false, "notes.txt": true} {
		_, err := os.Stat(filepath.Join(dest, name))
		if (err == nil) != want {
			t.Fatalf("%s present=%v, want %v", name, err == nil, want)
		}
	}
}

func TestPruneMissingDir(t *testing.T) {
	if n, err := Prune(filepath.Join(t.TempDir(), "missing"), nil); err != nil || n != 0 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
}
