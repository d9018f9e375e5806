package mediacache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"meetingmedia/internal/fileutil"
	"meetingmedia/internal/textutil"
)

// PrefixLen is the length of the "NN-NN" order prefix on output names.
const PrefixLen = 5

// OrderPrefix renders the order prefix for the nth part and mth item.
func OrderPrefix(part, item int) string {
	return fmt.Sprintf("%02d-%02d", part, item)
}

// OutputName builds "<prefix> - <title><ext>".
func OutputName(prefix, title, ext string) string {
	title = textutil.SanitizeFileName(title)
	if title == "" {
		title = "media"
	}
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s - %s%s", prefix, title, ext)
}

func nameSuffix(name string) string {
	if len(name) <= PrefixLen {
		return textutil.NormalizeName(name)
	}
	return textutil.NormalizeName(name[PrefixLen:])
}

// Place puts src into destDir as name. When destDir already holds a file
// whose name matches beyond the order prefix and whose size matches src (or
// which is an SVG, which is always treated as a match), that file is renamed
// to name instead of copying again. It returns the placed path and whether
// bytes were copied.
func Place(src, destDir, name string) (string, bool, error) {
	target := filepath.Join(destDir, name)
	srcSize, ok := fileutil.Size(src)
	if !ok {
		return "", false, fmt.Errorf("place %s: source missing", src)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", false, fmt.Errorf("create output dir: %w", err)
	}

	entries, err := os.ReadDir(destDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("read output dir: %w", err)
	}
	suffix := nameSuffix(name)
	isSVG := strings.EqualFold(filepath.Ext(name), ".svg")
	for _, entry := range entries {
		if entry.IsDir() || nameSuffix(entry.Name()) != suffix {
			continue
		}
		existing := filepath.Join(destDir, entry.Name())
		size, ok := fileutil.Size(existing)
		if !ok || (!isSVG && size != srcSize) {
			continue
		}
		if entry.Name() == name {
			return target, false, nil
		}
		if err := os.Rename(existing, target); err != nil {
			return "", false, fmt.Errorf("rename %s: %w", entry.Name(), err)
		}
		return target, false, nil
	}

	if err := fileutil.LinkOrCopy(src, target); err != nil {
		return "", false, fmt.Errorf("place %s: %w", name, err)
	}
	return target, true, nil
}

// RemoveFile deletes path, ignoring a missing file.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

var prefixed = regexp.MustCompile(`^\d{2}-\d{2} - `)

// RemoveMatching deletes files in destDir whose name matches name beyond
// the order prefix and returns how many were removed.
func RemoveMatching(destDir, name string) (int, error) {
	entries, err := os.ReadDir(destDir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	suffix := nameSuffix(name)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || nameSuffix(entry.Name()) != suffix {
			continue
		}
		if err := RemoveFile(filepath.Join(destDir, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Prune deletes order-prefixed files in destDir that are not in keep.
// Files without an order prefix were not placed by a sync and are left.
func Prune(destDir string, keep []string) (int, error) {
	entries, err := os.ReadDir(destDir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	kept := make(map[string]bool, len(keep))
	for _, name := range keep {
		kept[filepath.Base(name)] = true
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || kept[entry.Name()] || !prefixed.MatchString(entry.Name()) {
			continue
		}
		if err := RemoveFile(filepath.Join(destDir, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
