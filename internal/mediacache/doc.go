// Package mediacache materialises resolved media on disk.
//
// Publication-sourced files are cached under
// <app_dir>/Publications/<lang>/<pub>/<issue>/<track>/<file>, so the same
// remote asset used on two dates shares one copy. A cached copy is valid when
// it exists and its size matches the expected size; it is never re-hashed.
// Downloads are keyed by URL through a singleflight group, so concurrent
// requests for one URL share a single transfer, and a started transfer runs
// to completion even when the requesting caller gives up. Publication
// archives are extracted in place as soon as they land.
//
// Cached files are then placed into the dated output folder, reusing an
// existing output file with the same name suffix and size when one exists.
package mediacache
