package pubdb

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// ClassAdministrative marks documents that internal links never pull media from.
const ClassAdministrative = 94

// Document is a row of the Document table.
type Document struct {
	ID     int
	MepsID int
	Class  int
	Title  string
}

// MediaRow describes one multimedia item attached to a document paragraph.
type MediaRow struct {
	MultimediaID   int
	DocumentID     int
	Ordinal        int
	CategoryType   int
	KeySymbol      string
	Track          int
	IssueTag       int
	MepsDocumentID int
	MimeType       string
	FilePath       string
	Label          string
	Caption        string
	ParagraphLabel string
}

// Remote reports whether the row points at a media-links resource rather
// than a file packed in the archive.
func (m MediaRow) Remote() bool {
	return m.KeySymbol != "" || m.MepsDocumentID != 0
}

// IsImage reports whether the row describes a still image.
func (m MediaRow) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(m.MimeType), "image/")
}

// ExtractRow describes a quoted excerpt of another publication.
type ExtractRow struct {
	ExtractID       int
	DocumentID      int
	BeginOrdinal    int
	EndOrdinal      int
	RefMepsDocID    int
	Symbol          string
	IssueTag        int
	RefBeginOrdinal int
	RefEndOrdinal   int
}

// HasRange reports whether the extract limits itself to referenced paragraphs.
func (e ExtractRow) HasRange() bool {
	return e.RefBeginOrdinal > 0 || e.RefEndOrdinal > 0
}

// InRange reports whether ordinal falls inside the extract's referenced
// paragraph range. Extracts without a range accept every ordinal.
func (e ExtractRow) InRange(ordinal int) bool {
	if !e.HasRange() {
		return true
	}
	end := e.RefEndOrdinal
	if end == 0 {
		end = e.RefBeginOrdinal
	}
	return ordinal >= e.RefBeginOrdinal && ordinal <= end
}

// LinkRow is an internal link from a document paragraph to another document.
type LinkRow struct {
	DocumentID     int
	Ordinal        int
	MepsDocumentID int
}

func scanDocument(rows *sql.Rows) (Document, error) {
	var doc Document
	var title sql.NullString
	if err := rows.Scan(&doc.ID, &doc.MepsID, &doc.Class, &title); err != nil {
		return doc, err
	}
	doc.Title = title.String
	return doc, nil
}

func firstDocument(docs []Document, err error) (Document, bool, error) {
	if err != nil || len(docs) == 0 {
		return Document{}, false, err
	}
	return docs[0], true, nil
}

// DatedDocument returns the document whose DatedText range contains day.
func (d *DB) DatedDocument(ctx context.Context, day time.Time) (Document, bool, error) {
	if !d.tables["DatedText"] {
		return Document{}, false, nil
	}
	offset := day.Year()*10000 + int(day.Month())*100 + day.Day()
	return firstDocument(Query(ctx, d, `
		SELECT Document.DocumentId, Document.MepsDocumentId, Document.Class, Document.Title
		FROM DatedText
		INNER JOIN Document ON Document.DocumentId = DatedText.DocumentId
		WHERE DatedText.FirstDateOffset <= ? AND DatedText.LastDateOffset >= ?
		ORDER BY DatedText.FirstDateOffset
		LIMIT 1`, scanDocument, offset, offset))
}

// Document returns the document with the given DocumentId.
func (d *DB) Document(ctx context.Context, docID int) (Document, bool, error) {
	return firstDocument(Query(ctx, d, `
		SELECT DocumentId, MepsDocumentId, Class, Title FROM Document WHERE DocumentId = ?`,
		scanDocument, docID))
}

// DocumentByMepsID returns the document carrying the given MEPS document id.
func (d *DB) DocumentByMepsID(ctx context.Context, mepsID int) (Document, bool, error) {
	return firstDocument(Query(ctx, d, `
		SELECT DocumentId, MepsDocumentId, Class, Title FROM Document WHERE MepsDocumentId = ?`,
		scanDocument, mepsID))
}

// Multimedia lists the media attached to docID ordered by paragraph ordinal.
func (d *DB) Multimedia(ctx context.Context, docID int) ([]MediaRow, error) {
	var b strings.Builder
	b.WriteString(`SELECT m.MultimediaId, `)
	if d.caps.LegacyMultimedia {
		b.WriteString(`m.DocumentId, IFNULL(m.BeginParagraphOrdinal, 0), `)
	} else {
		b.WriteString(`dm.DocumentId, IFNULL(dm.BeginParagraphOrdinal, 0), `)
	}
	b.WriteString(`IFNULL(m.CategoryType, 0), IFNULL(m.KeySymbol, ''), IFNULL(m.Track, 0),
		IFNULL(m.IssueTagNumber, 0), IFNULL(m.MepsDocumentId, 0), IFNULL(m.MimeType, ''),
		IFNULL(m.FilePath, ''), IFNULL(m.Label, ''), IFNULL(m.Caption, ''), `)
	if d.caps.TargetParagraph {
		b.WriteString(`IFNULL(q.TargetParagraphNumberLabel, '') `)
	} else {
		b.WriteString(`'' `)
	}
	if d.caps.LegacyMultimedia {
		b.WriteString(`FROM Multimedia m `)
	} else {
		b.WriteString(`FROM DocumentMultimedia dm INNER JOIN Multimedia m ON m.MultimediaId = dm.MultimediaId `)
	}
	if d.caps.TargetParagraph {
		owner := "dm"
		if d.caps.LegacyMultimedia {
			owner = "m"
		}
		b.WriteString(`LEFT JOIN Question q ON q.DocumentId = ` + owner + `.DocumentId AND q.TargetParagraphOrdinal = ` + owner + `.BeginParagraphOrdinal `)
	}
	if d.caps.LegacyMultimedia {
		b.WriteString(`WHERE m.DocumentId = ? `)
	} else {
		b.WriteString(`WHERE dm.DocumentId = ? `)
	}
	b.WriteString(`AND IFNULL(m.CategoryType, 0) <> ? `)
	if d.caps.SuppressFlag {
		b.WriteString(`AND IFNULL(m.SuppressZoom, 0) = 0 `)
	}
	if d.caps.LegacyMultimedia {
		b.WriteString(`ORDER BY m.BeginParagraphOrdinal, m.MultimediaId`)
	} else {
		b.WriteString(`ORDER BY dm.BeginParagraphOrdinal, m.MultimediaId`)
	}

	return Query(ctx, d, b.String(), func(rows *sql.Rows) (MediaRow, error) {
		var row MediaRow
		err := rows.Scan(&row.MultimediaID, &row.DocumentID, &row.Ordinal, &row.CategoryType,
			&row.KeySymbol, &row.Track, &row.IssueTag, &row.MepsDocumentID, &row.MimeType,
			&row.FilePath, &row.Label, &row.Caption, &row.ParagraphLabel)
		return row, err
	}, docID, CategoryCoverArt)
}

// CategoryCoverArt is the multimedia category of publication cover images.
const CategoryCoverArt = 9

// Extracts lists the extracts quoted by docID ordered by paragraph ordinal.
// Extracts whose symbol is in excludeSymbols are omitted.
func (d *DB) Extracts(ctx context.Context, docID int, excludeSymbols ...string) ([]ExtractRow, error) {
	if !d.tables["DocumentExtract"] || !d.tables["RefPublication"] {
		return nil, nil
	}
	rangeCols := `0, 0`
	if d.caps.ExtractRange {
		rangeCols = `IFNULL(e.RefBeginParagraphOrdinal, 0), IFNULL(e.RefEndParagraphOrdinal, 0)`
	}
	query := `
		SELECT e.ExtractId, de.DocumentId, IFNULL(de.BeginParagraphOrdinal, 0), IFNULL(de.EndParagraphOrdinal, 0),
			IFNULL(e.RefMepsDocumentId, 0), IFNULL(rp.UndatedSymbol, ''), IFNULL(rp.IssueTagNumber, 0), ` + rangeCols + `
		FROM DocumentExtract de
		INNER JOIN Extract e ON e.ExtractId = de.ExtractId
		INNER JOIN RefPublication rp ON rp.RefPublicationId = e.RefPublicationId
		WHERE de.DocumentId = ?`
	args := []any{docID}
	if len(excludeSymbols) > 0 {
		query += ` AND rp.UndatedSymbol NOT IN (?` + strings.Repeat(`, ?`, len(excludeSymbols)-1) + `)`
		for _, symbol := range excludeSymbols {
			args = append(args, symbol)
		}
	}
	query += ` ORDER BY de.BeginParagraphOrdinal, e.ExtractId`

	return Query(ctx, d, query, func(rows *sql.Rows) (ExtractRow, error) {
		var row ExtractRow
		err := rows.Scan(&row.ExtractID, &row.DocumentID, &row.BeginOrdinal, &row.EndOrdinal,
			&row.RefMepsDocID, &row.Symbol, &row.IssueTag, &row.RefBeginOrdinal, &row.RefEndOrdinal)
		return row, err
	}, args...)
}

// InternalLinks lists the same-publication links from docID, skipping links
// into administrative documents.
func (d *DB) InternalLinks(ctx context.Context, docID int) ([]LinkRow, error) {
	if !d.tables["DocumentInternalLink"] || !d.tables["InternalLink"] {
		return nil, nil
	}
	return Query(ctx, d, `
		SELECT dil.DocumentId, IFNULL(dil.BeginParagraphOrdinal, 0), il.MepsDocumentId
		FROM DocumentInternalLink dil
		INNER JOIN InternalLink il ON il.InternalLinkId = dil.InternalLinkId
		INNER JOIN Document target ON target.MepsDocumentId = il.MepsDocumentId
		WHERE dil.DocumentId = ? AND target.Class <> ?
		ORDER BY dil.BeginParagraphOrdinal, il.InternalLinkId`,
		func(rows *sql.Rows) (LinkRow, error) {
			var row LinkRow
			err := rows.Scan(&row.DocumentID, &row.Ordinal, &row.MepsDocumentID)
			return row, err
		}, docID, ClassAdministrative)
}
