// Package pubdb runs typed, read-only queries against a publication database.
//
// Two schema generations exist. Legacy databases keep the document link and
// paragraph ordinal on the Multimedia table itself; current ones join through
// DocumentMultimedia. Optional columns (Multimedia.SuppressZoom,
// Question.TargetParagraphNumberLabel, Extract.RefBeginParagraphOrdinal) are
// probed once when the database is opened and recorded in Capabilities;
// queries consult that record instead of re-probing, and a missing column
// simply disables the filter that depends on it.
package pubdb
