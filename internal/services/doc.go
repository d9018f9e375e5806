// Package services defines shared utilities consumed by the resolution,
// assembly, and sync layers.
//
// Key responsibilities:
//   - Context helpers that stamp meeting dates, publication keys, and sync
//     run identifiers for logging.
//   - Structured error markers plus the Wrap helper that attach the offending
//     resource (filename, publication key, or URL) to every failure so
//     callers can tell offline from missing content and name what failed.
//
// Item-level failures (extraction, unavailable, network, integrity) never
// abort sibling work; IsItemLevel lets callers make that decision uniformly.
package services
