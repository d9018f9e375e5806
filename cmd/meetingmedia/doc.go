// Package main hosts the meetingmedia CLI.
//
// The Cobra command tree loads configuration once, builds a sync
// coordinator on demand, and renders results as tables or status lines.
// Commands stay thin: resolution, caching, and placement live in the
// internal packages.
package main
