// Package archive opens publication archives.
//
// A publication archive is a zip container whose "contents" entry is itself a
// zip holding one sqlite database plus images and other binary members.
// Callers ask for the database, for a single member chosen by a Match
// predicate, or for the whole payload when an archive is extracted into the
// publication cache. Failures are reported as services.ErrExtraction tagged
// with the archive file name.
package archive
