package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"meetingmedia/internal/fileutil"
	"meetingmedia/internal/services"
)

// ContentsEntry names the inner payload inside the outer container.
const ContentsEntry = "contents"

var (
	// ErrNoContents reports an outer container without a "contents" entry.
	ErrNoContents = errors.New("missing contents entry")
	// ErrMemberNotFound reports that no member satisfied the request.
	ErrMemberNotFound = errors.New("member not found")
)

// Match selects members by name.
type Match func(name string) bool

// ByExtension matches members whose extension is one of exts (case-insensitive,
// with or without the leading dot).
func ByExtension(exts ...string) Match {
	want := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			want["."+ext] = struct{}{}
		}
	}
	return func(name string) bool {
		_, ok := want[strings.ToLower(path.Ext(name))]
		return ok
	}
}

// ByName matches a member by exact base name.
func ByName(name string) Match {
	return func(candidate string) bool {
		return path.Base(candidate) == name
	}
}

// payload is an opened inner zip along with whatever keeps it readable.
type payload struct {
	reader *zip.Reader
	closer io.Closer
}

func (p *payload) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// openPayload opens the outer container and returns a reader over the inner
// zip. A stored (uncompressed) contents entry is read through a section of
// the outer file so nothing is buffered; a deflated entry must be inflated
// into memory because zip.Reader needs random access.
func openPayload(archivePath string) (*payload, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	outer, err := zip.NewReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read container: %w", err)
	}

	var contents *zip.File
	for _, f := range outer.File {
		if f.Name == ContentsEntry {
			contents = f
			break
		}
	}
	if contents == nil {
		file.Close()
		return nil, ErrNoContents
	}

	if contents.Method == zip.Store {
		offset, err := contents.DataOffset()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("locate contents: %w", err)
		}
		size := int64(contents.UncompressedSize64)
		inner, err := zip.NewReader(io.NewSectionReader(file, offset, size), size)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("read contents: %w", err)
		}
		return &payload{reader: inner, closer: file}, nil
	}

	rc, err := contents.Open()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("open contents: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("inflate contents: %w", err)
	}
	inner, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read contents: %w", err)
	}
	return &payload{reader: inner}, nil
}

func wrap(archivePath, operation string, err error) error {
	return services.Wrap(services.ErrExtraction, filepath.Base(archivePath), operation, err)
}

// Members lists the names inside the inner payload.
func Members(archivePath string) ([]string, error) {
	p, err := openPayload(archivePath)
	if err != nil {
		return nil, wrap(archivePath, "list members", err)
	}
	defer p.Close()

	names := make([]string, 0, len(p.reader.File))
	for _, f := range p.reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// ReadMember returns the bytes and name of the first member accepted by match.
func ReadMember(archivePath string, match Match) ([]byte, string, error) {
	p, err := openPayload(archivePath)
	if err != nil {
		return nil, "", wrap(archivePath, "read member", err)
	}
	defer p.Close()

	for _, f := range p.reader.File {
		if f.FileInfo().IsDir() || !match(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", wrap(archivePath, "read member", fmt.Errorf("%s: %w", f.Name, err))
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, "", wrap(archivePath, "read member", fmt.Errorf("%s: %w", f.Name, err))
		}
		return data, f.Name, nil
	}
	return nil, "", wrap(archivePath, "read member", ErrMemberNotFound)
}

// ExtractDatabase writes the single .db member into destDir and returns its path.
func ExtractDatabase(archivePath, destDir string) (string, error) {
	p, err := openPayload(archivePath)
	if err != nil {
		return "", wrap(archivePath, "extract database", err)
	}
	defer p.Close()

	isDB := ByExtension("db")
	for _, f := range p.reader.File {
		if f.FileInfo().IsDir() || !isDB(f.Name) {
			continue
		}
		target := filepath.Join(destDir, path.Base(f.Name))
		if err := extractFile(f, target); err != nil {
			return "", wrap(archivePath, "extract database", err)
		}
		return target, nil
	}
	return "", wrap(archivePath, "extract database", fmt.Errorf("database: %w", ErrMemberNotFound))
}

// ManifestName records which files the last ExtractAll wrote into a directory.
const ManifestName = ".members"

// ExtractAll writes every member into destDir, flattening nested paths, and
// returns the written paths. Members written by a previous extraction that
// are absent from this archive are removed, so re-extracting a newer
// revision never leaves stale members behind. Other files in destDir are
// left alone.
func ExtractAll(archivePath, destDir string) ([]string, error) {
	p, err := openPayload(archivePath)
	if err != nil {
		return nil, wrap(archivePath, "extract", err)
	}
	defer p.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, wrap(archivePath, "extract", err)
	}
	previous := readManifest(destDir)

	written := make([]string, 0, len(p.reader.File))
	names := make([]string, 0, len(p.reader.File))
	current := make(map[string]struct{}, len(p.reader.File))
	for _, f := range p.reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		if name == "." || name == "/" || name == ".." || name == ManifestName {
			continue
		}
		target := filepath.Join(destDir, name)
		if err := extractFile(f, target); err != nil {
			return written, wrap(archivePath, "extract", err)
		}
		current[name] = struct{}{}
		names = append(names, name)
		written = append(written, target)
	}

	for _, name := range previous {
		if _, ok := current[name]; ok || name == filepath.Base(archivePath) {
			continue
		}
		_ = os.Remove(filepath.Join(destDir, name))
	}
	manifest := strings.NewReader(strings.Join(names, "\n") + "\n")
	if _, err := fileutil.WriteAtomic(filepath.Join(destDir, ManifestName), manifest); err != nil {
		return written, wrap(archivePath, "extract", err)
	}
	return written, nil
}

// Extracted reports whether destDir holds a completed extraction.
func Extracted(destDir string) bool {
	_, ok := fileutil.Size(filepath.Join(destDir, ManifestName))
	return ok
}

func readManifest(dir string) []string {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.ContainsAny(line, `/\\`) {
			names = append(names, line)
		}
	}
	return names
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	defer rc.Close()
	if _, err := fileutil.WriteAtomic(target, rc); err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	return nil
}
