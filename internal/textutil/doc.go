// Package textutil provides filename and label helpers shared by the cache,
// placement, and override layers.
//
// Output files are named after publication titles that arrive in any script,
// so names are NFC-normalised before unsafe characters are replaced. This
// keeps the duplicate-suppression comparison stable across stores that
// decompose accented characters (macOS, some WebDAV servers).
package textutil
