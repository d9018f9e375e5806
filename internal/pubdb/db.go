package pubdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"meetingmedia/internal/services"
)

// Capabilities records which optional schema features a database carries.
type Capabilities struct {
	// LegacyMultimedia is set when DocumentMultimedia is absent and
	// Multimedia carries DocumentId/BeginParagraphOrdinal directly.
	LegacyMultimedia bool
	// SuppressFlag is set when Multimedia.SuppressZoom exists.
	SuppressFlag bool
	// TargetParagraph is set when Question.TargetParagraphNumberLabel exists.
	TargetParagraph bool
	// ExtractRange is set when Extract carries referenced paragraph bounds.
	ExtractRange bool
}

// DB is an opened publication database.
type DB struct {
	db     *sql.DB
	path   string
	caps   Capabilities
	tables map[string]bool
}

// Open opens the database at path read-only and probes its capabilities.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: "mode=ro&_pragma=busy_timeout(5000)"}
	sqlDB, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, filepath.Base(path), "open database", err)
	}
	d := &DB{db: sqlDB, path: path}
	if err := d.probe(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, services.Wrap(services.ErrExtraction, filepath.Base(path), "probe schema", err)
	}
	return d, nil
}

// Close releases the connection pool.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Capabilities returns the schema features detected at open time.
func (d *DB) Capabilities() Capabilities { return d.caps }

func (d *DB) probe(ctx context.Context) error {
	tables, err := Query(ctx, d, "SELECT name FROM sqlite_master WHERE type = 'table'", scanString)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(tables))
	for _, name := range tables {
		present[name] = true
	}
	d.tables = present
	if !present["Document"] || !present["Multimedia"] {
		return errors.New("not a publication database")
	}
	d.caps.LegacyMultimedia = !present["DocumentMultimedia"]

	if d.caps.SuppressFlag, err = d.hasColumn(ctx, "Multimedia", "SuppressZoom"); err != nil {
		return err
	}
	if present["Question"] {
		if d.caps.TargetParagraph, err = d.hasColumn(ctx, "Question", "TargetParagraphNumberLabel"); err != nil {
			return err
		}
	}
	if present["Extract"] && present["DocumentExtract"] {
		begin, err := d.hasColumn(ctx, "Extract", "RefBeginParagraphOrdinal")
		if err != nil {
			return err
		}
		end, err := d.hasColumn(ctx, "Extract", "RefEndParagraphOrdinal")
		if err != nil {
			return err
		}
		d.caps.ExtractRange = begin && end
	}
	return nil
}

func (d *DB) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			typeStr string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("scan table info %s: %w", table, err)
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Query runs a read-only query and maps each row through scan.
func Query[T any](ctx context.Context, d *DB, query string, scan func(*sql.Rows) (T, error), args ...any) ([]T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		value, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

func scanString(rows *sql.Rows) (string, error) {
	var value string
	err := rows.Scan(&value)
	return value, err
}

// IssueKey renders an IssueTagNumber the way the media-links API and the
// cache layout expect it: 20240100 becomes "202401", zero becomes "0".
func IssueKey(issueTag int) string {
	if issueTag <= 0 {
		return "0"
	}
	key := strconv.Itoa(issueTag)
	if len(key) == 8 && strings.HasSuffix(key, "00") {
		return key[:6]
	}
	return key
}
