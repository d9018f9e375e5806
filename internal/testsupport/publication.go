package testsupport

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"testing"

	_ "modernc.org/sqlite"
)

// CurrentSchema is the two-table multimedia layout with every optional column.
var CurrentSchema = []string{
	`CREATE TABLE Document (DocumentId INTEGER PRIMARY KEY, MepsDocumentId INTEGER, Class INTEGER, Title TEXT)`,
	`CREATE TABLE DatedText (DatedTextId INTEGER PRIMARY KEY, DocumentId INTEGER, FirstDateOffset INTEGER, LastDateOffset INTEGER)`,
	`CREATE TABLE Multimedia (MultimediaId INTEGER PRIMARY KEY, CategoryType INTEGER, KeySymbol TEXT, Track INTEGER, IssueTagNumber INTEGER, MepsDocumentId INTEGER, MimeType TEXT, FilePath TEXT, Label TEXT, Caption TEXT, SuppressZoom INTEGER)`,
	`CREATE TABLE DocumentMultimedia (DocumentMultimediaId INTEGER PRIMARY KEY, DocumentId INTEGER, MultimediaId INTEGER, BeginParagraphOrdinal INTEGER)`,
	`CREATE TABLE RefPublication (RefPublicationId INTEGER PRIMARY KEY, UndatedSymbol TEXT, IssueTagNumber INTEGER)`,
	`CREATE TABLE Extract (ExtractId INTEGER PRIMARY KEY, RefMepsDocumentId INTEGER, RefPublicationId INTEGER, RefBeginParagraphOrdinal INTEGER, RefEndParagraphOrdinal INTEGER)`,
	`CREATE TABLE DocumentExtract (DocumentExtractId INTEGER PRIMARY KEY, DocumentId INTEGER, ExtractId INTEGER, BeginParagraphOrdinal INTEGER, EndParagraphOrdinal INTEGER)`,
	`CREATE TABLE InternalLink (InternalLinkId INTEGER PRIMARY KEY, MepsDocumentId INTEGER)`,
	`CREATE TABLE DocumentInternalLink (DocumentInternalLinkId INTEGER PRIMARY KEY, DocumentId INTEGER, InternalLinkId INTEGER, BeginParagraphOrdinal INTEGER)`,
	`CREATE TABLE Question (QuestionId INTEGER PRIMARY KEY, DocumentId INTEGER, TargetParagraphOrdinal INTEGER, TargetParagraphNumberLabel TEXT)`,
}

// LegacySchema keeps document links on Multimedia and lacks optional columns.
var LegacySchema = []string{
	`CREATE TABLE Document (DocumentId INTEGER PRIMARY KEY, MepsDocumentId INTEGER, Class INTEGER, Title TEXT)`,
	`CREATE TABLE DatedText (DatedTextId INTEGER PRIMARY KEY, DocumentId INTEGER, FirstDateOffset INTEGER, LastDateOffset INTEGER)`,
	`CREATE TABLE Multimedia (MultimediaId INTEGER PRIMARY KEY, DocumentId INTEGER, BeginParagraphOrdinal INTEGER, CategoryType INTEGER, KeySymbol TEXT, Track INTEGER, IssueTagNumber INTEGER, MepsDocumentId INTEGER, MimeType TEXT, FilePath TEXT, Label TEXT, Caption TEXT)`,
	`CREATE TABLE RefPublication (RefPublicationId INTEGER PRIMARY KEY, UndatedSymbol TEXT, IssueTagNumber INTEGER)`,
	`CREATE TABLE Extract (ExtractId INTEGER PRIMARY KEY, RefMepsDocumentId INTEGER, RefPublicationId INTEGER)`,
	`CREATE TABLE DocumentExtract (DocumentExtractId INTEGER PRIMARY KEY, DocumentId INTEGER, ExtractId INTEGER, BeginParagraphOrdinal INTEGER, EndParagraphOrdinal INTEGER)`,
}

// CreateDatabase writes a sqlite database at path by running statements in order.
func CreateDatabase(t testing.TB, path string, statements ...string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite %s: %v", path, err)
	}
	defer db.Close()

	ctx := context.Background()
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

// ArchiveOptions tune how BuildArchive lays out the container.
type ArchiveOptions struct {
	// DeflateContents compresses the inner payload inside the outer zip.
	DeflateContents bool
	// OmitContents writes the members directly into the outer zip.
	OmitContents bool
}

// BuildArchive writes a publication archive at archivePath whose inner
// payload holds members.
func BuildArchive(t testing.TB, archivePath string, members map[string][]byte, opts ArchiveOptions) {
	t.Helper()

	inner := zipBytes(t, members, zip.Deflate)
	outerMembers := map[string][]byte{"manifest.json": []byte(`{"name":"fixture"}`)}
	if opts.OmitContents {
		for name, data := range members {
			outerMembers[name] = data
		}
	} else {
		outerMembers["contents"] = inner
	}
	method := zip.Store
	if opts.DeflateContents {
		method = zip.Deflate
	}
	data := zipBytes(t, outerMembers, method)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", archivePath, err)
	}
	if err := os.WriteFile(archivePath, data, 0o644); err != nil {
		t.Fatalf("write archive %s: %v", archivePath, err)
	}
}

// BuildPublication creates a database from statements and packs it, along
// with extra members, into a publication archive at archivePath. The
// database member is named dbName.
func BuildPublication(t testing.TB, archivePath, dbName string, statements []string, extra map[string][]byte) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), dbName)
	CreateDatabase(t, dbPath, statements...)
	dbBytes, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("read db: %v", err)
	}
	members := map[string][]byte{dbName: dbBytes}
	for name, data := range extra {
		members[name] = data
	}
	BuildArchive(t, archivePath, members, ArchiveOptions{})
}

// ArchiveBytes returns the bytes of a publication archive built from
// statements, for serving from an httptest server.
func ArchiveBytes(t testing.TB, dbName string, statements []string, extra map[string][]byte) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.jwpub")
	BuildPublication(t, path, dbName, statements, extra)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	return data
}

func zipBytes(t testing.TB, members map[string][]byte, method uint16) []byte {
	t.Helper()

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(members[name]); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
