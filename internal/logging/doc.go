// Package logging assembles structured slog loggers and formatting helpers used
// across the media engine.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so resolution and sync code can
// tag log lines with meeting dates, publication keys, and sync run IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
