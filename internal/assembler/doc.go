// Package assembler builds the ordered media list for one meeting document.
//
// Assembly runs in three steps. Discovery walks the document in a fixed
// order: its own multimedia, then the media of quoted extracts (each opened
// from its own publication), then the media of internal links, followed
// recursively with a visited set so that cyclic links terminate. Resolution
// then turns every discovered reference into files concurrently, recording
// each failure without cancelling siblings. Finally the files are inserted
// into the day in discovery order, so completion order never changes
// presentation order, and the index drops duplicates reached through two
// paths.
package assembler
