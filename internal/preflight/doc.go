// Package preflight provides readiness checks for the filesystem paths and
// remote services a sync depends on.
//
// The CLI "check" command runs RunAll and renders one status line per
// result. Checks for disabled features are skipped.
package preflight
