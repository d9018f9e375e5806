// Package overrides reads and writes the congregation override store and
// reconciles it with assembled meeting media.
//
// The store is a small file tree, served over WebDAV or from a local
// directory:
//
//	Media/<date>/<file>      congregation uploads for one meeting date
//	Media/Recurring/<file>   uploads shown at every meeting
//	Hidden/<date>/<name>     empty markers hiding an item by file name
//
// Date folders are named with the configured date layout, so changing the
// layout means renaming folders (RenameDateFolders).
package overrides
