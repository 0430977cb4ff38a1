package progress

import (
	"regexp"
	"strconv"
)

// These mirror clangd's verbose stderr log lines. TS stands in for
// whatever timestamp format clangd emits between the level letter and the
// message; we don't need to parse it, only skip past it.
var (
	reIndexingStarted = regexp.MustCompile(`^V\S*\s+Indexing (.+?) \(digest:=(.+?)\)`)
	reIndexingDone     = regexp.MustCompile(`^I\S*\s+Indexed (.+?) \((\d+) symbols?, (\d+) refs?, \d+ files?\)`)
	reStdlibStarted    = regexp.MustCompile(`^I\S*\s+Indexing (.+?) standard library in the context of (.+)`)
	reStdlibDone       = regexp.MustCompile(`^I\S*\s+Indexed (.+?) standard library: (\d+) symbols?, (\d+) filtered`)
)

// ParseStderrLine classifies a single clangd stderr line into an Event.
// It is pure and allocation-light: no I/O, no logging, safe to fuzz. Lines
// that match none of the four known shapes return (Event{}, false).
func ParseStderrLine(line string) (Event, bool) {
	if m := reIndexingStarted.FindStringSubmatch(line); m != nil {
		return Event{Kind: FileIndexingStarted, Path: m[1], Digest: m[2]}, true
	}
	if m := reIndexingDone.FindStringSubmatch(line); m != nil {
		symbols, _ := strconv.Atoi(m[2])
		refs, _ := strconv.Atoi(m[3])
		return Event{Kind: FileIndexingCompleted, Path: m[1], Symbols: symbols, Refs: refs}, true
	}
	if m := reStdlibStarted.FindStringSubmatch(line); m != nil {
		return Event{Kind: StandardLibraryStarted, Path: m[1], Context: m[2]}, true
	}
	if m := reStdlibDone.FindStringSubmatch(line); m != nil {
		symbols, _ := strconv.Atoi(m[2])
		filtered, _ := strconv.Atoi(m[3])
		return Event{Kind: StandardLibraryCompleted, Path: m[1], LibSymbols: symbols, LibFiltered: filtered}, true
	}
	return Event{}, false
}
