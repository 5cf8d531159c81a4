package ort

import "sort"

// logMessage is one accumulated diagnostic for a path.
type logMessage struct {
	text                 string
	skipUnderRemergeDiff bool
}

// Log is the per-path diagnostic accumulator of spec.md §4.8: append-only
// during collection and resolution, drained (sorted by path) once the
// merge finishes.
type Log struct {
	byPath map[string][]logMessage
}

// NewLog creates an empty diagnostic log.
func NewLog() *Log {
	return &Log{byPath: make(map[string][]logMessage)}
}

// Add appends a message for path.
func (l *Log) Add(path, message string) {
	l.byPath[path] = append(l.byPath[path], logMessage{text: message})
}

// AddSkipRemergeDiff appends a message flagged to be skipped by a
// remerge-diff presentation (used for messages that are only meaningful in
// the context of the merge run itself, e.g. informational notes about
// degraded-mode rename handling).
func (l *Log) AddSkipRemergeDiff(path, message string) {
	l.byPath[path] = append(l.byPath[path], logMessage{text: message, skipUnderRemergeDiff: true})
}

// LogEntry is one drained (path, messages) pair.
type LogEntry struct {
	Path     string
	Messages []string
}

// Drain returns all messages sorted by path, in append order within a path.
// skipRemergeDiff, if true, omits messages added via AddSkipRemergeDiff.
func (l *Log) Drain(skipRemergeDiff bool) []LogEntry {
	paths := make([]string, 0, len(l.byPath))
	for p := range l.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]LogEntry, 0, len(paths))
	for _, p := range paths {
		var msgs []string
		for _, m := range l.byPath[p] {
			if skipRemergeDiff && m.skipUnderRemergeDiff {
				continue
			}
			msgs = append(msgs, m.text)
		}
		if len(msgs) == 0 {
			continue
		}
		out = append(out, LogEntry{Path: p, Messages: msgs})
	}
	return out
}

// Merge absorbs another log's messages into l, appending them after l's own
// messages for each path. The recursive driver (C7) does not call it: its
// inner merges of merge bases write into the same *Log directly.
func (l *Log) Merge(other *Log) {
	for p, msgs := range other.byPath {
		l.byPath[p] = append(l.byPath[p], msgs...)
	}
}
