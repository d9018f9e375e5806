// Package mediasync drives a sync pass over a date range: locate each
// meeting's document, assemble its media, merge congregation overrides,
// download into the cache, and place numbered copies into the output tree.
//
// Item failures are collected per item and never stop their siblings. A
// pass holds the cache lock in shared mode for its whole duration so that
// ClearCache, which needs it exclusively, cannot run underneath it.
package mediasync
