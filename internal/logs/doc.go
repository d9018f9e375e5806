// Package logs reads the meetingmedia log file for the CLI.
//
// Last returns the final N lines, optionally filtered by a substring such as
// a run id or a meeting date, with bounded memory. Follow polls from an
// offset and emits appended lines until its context ends; a file that
// shrinks (truncated or rotated) is re-read from the start.
package logs
