package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path (and its parents) holding size bytes of filler, at
// least one. Media fixtures only need a plausible size on disk, so the
// content is the first letter of the file name repeated.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	fill := byte('x')
	if name := filepath.Base(path); name != "" {
		fill = name[0]
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{fill}, int(max(size, 1))), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
}
