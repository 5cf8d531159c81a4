package ort

// Table is the path table of spec.md §3/§4.1: a map from interned full path
// to Entry, covering both files and every intermediate directory the
// collector visited.
//
// Interning: Table owns a single canonical string per distinct path. Two
// calls to intern(p) for equal p return string values that share the same
// underlying byte array, so pointer-identity checks on the backing array
// hold — this is what lets Pathnames[i] back-references
// stay valid after a path is removed from the live entries map: Go's
// garbage collector keeps the backing array alive as long as any Pathnames
// reference does, which is exactly the "deferred free list" spec.md's
// design notes ask for in a manually-managed language.
type Table struct {
	interned map[string]string
	entries  map[string]*Entry
}

// NewTable creates an empty path table.
func NewTable() *Table {
	return &Table{
		interned: make(map[string]string),
		entries:  make(map[string]*Entry),
	}
}

func (t *Table) intern(path string) string {
	if canon, ok := t.interned[path]; ok {
		return canon
	}
	t.interned[path] = path
	return path
}

// Insert interns path and stores entry under it, setting entry's own
// bookkeeping key to the interned string. Returns the interned path.
func (t *Table) Insert(path string, entry *Entry) string {
	canon := t.intern(path)
	entry.path = canon
	t.entries[canon] = entry
	return canon
}

// Get looks up the entry at path, if any.
func (t *Table) Get(path string) (*Entry, bool) {
	e, ok := t.entries[path]
	return e, ok
}

// ForEach visits every (path, entry) pair. Iteration order is unspecified;
// callers that need sorted order use Paths() + Get, or the writer's own
// sort (see writer.go).
func (t *Table) ForEach(fn func(path string, e *Entry)) {
	for p, e := range t.entries {
		fn(p, e)
	}
}

// Paths returns every path currently in the table, in map order (the
// caller is expected to sort if order matters).
func (t *Table) Paths() []string {
	out := make([]string, 0, len(t.entries))
	for p := range t.entries {
		out = append(out, p)
	}
	return out
}

// Len reports the number of entries in the table.
func (t *Table) Len() int { return len(t.entries) }

// Remove deletes path from the live table. The interned string itself is
// not released — any Entry.Pathnames[i] still referencing it remains valid,
// per the interning note above.
func (t *Table) Remove(path string) {
	delete(t.entries, path)
}

// IsConflicted reports whether e represents a still-unresolved conflict.
// It exists mainly so callers don't need to remember that "conflicted" is
// spelled "not Clean".
func IsConflicted(e *Entry) bool { return !e.Clean }

// ConflictedPaths returns the conflicted-set view of spec.md §3: the
// subset of paths whose entry is still conflicted. Computed on demand
// rather than maintained incrementally, since C4 only runs once per merge
// and the cost is linear in table size either way; callers that need it
// repeatedly (index reconciliation) should call it once and keep the slice.
func (t *Table) ConflictedPaths() []string {
	var out []string
	for p, e := range t.entries {
		if IsConflicted(e) {
			out = append(out, p)
		}
	}
	return out
}
