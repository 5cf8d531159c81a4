package ort

import (
	"path"
	"sort"
	"strings"

	"github.com/basilisk-scm/got/pkg/object"
)

// writerItem is one (path, entry) pair pulled out of the table for the
// bottom-up pass of spec.md §4.5.
type writerItem struct {
	path  string
	entry *Entry
}

// versionSlot is one pending (basename, entry) record in the directory
// accumulator's currently-open directories.
type versionSlot struct {
	name  string
	entry *Entry
}

// dirFrame marks where in versions a directory's own entries begin.
type dirFrame struct {
	dir   string
	start int
}

// writer is the bottom-up tree writer of spec.md §4.5. It walks the table
// in reverse base_name_compare order over full paths, resolving each
// conflicted entry as it is visited and assembling the result tree one
// directory at a time via a directory accumulator (versions/offsets).
type writer struct {
	store    Store
	table    *Table
	resolver *resolver

	versions []versionSlot
	offsets  []dirFrame
	lastDir  string
	hasLast  bool

	rootHash    object.Hash
	rootWritten bool

	conflicted map[string]bool
}

func newWriter(store Store, table *Table, r *resolver) *writer {
	return &writer{store: store, table: table, resolver: r, conflicted: make(map[string]bool)}
}

// run executes the full bottom-up pass and returns the result tree's id.
func (w *writer) run() (object.Hash, error) {
	// Establish the root frame up front so even an empty table produces a
	// (possibly empty) root tree rather than never opening one.
	if err := w.closeDirectory(""); err != nil {
		return "", err
	}

	items := w.sortedItems()
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]

		if err := w.closeDirectory(it.entry.directory); err != nil {
			return "", err
		}

		if !it.entry.Clean {
			stillConflicted, err := w.resolver.resolveEntry(it.path, it.entry)
			if err != nil {
				return "", err
			}
			if stillConflicted {
				w.conflicted[it.path] = true
			}
		}

		w.versions = append(w.versions, versionSlot{name: path.Base(it.path), entry: it.entry})
	}

	if err := w.closeDirectory(""); err != nil {
		return "", err
	}

	if len(w.offsets) != 1 || w.offsets[0].dir != "" || w.offsets[0].start != 0 {
		panic("ort: internal error: directory accumulator accounting mismatch at termination")
	}

	if err := w.closeOneLevel(); err != nil {
		return "", err
	}
	if !w.rootWritten {
		hash, err := w.store.WriteTree(&object.TreeObj{})
		if err != nil {
			return "", err
		}
		w.rootHash = hash
		w.rootWritten = true
	}
	return w.rootHash, nil
}

func (w *writer) sortedItems() []writerItem {
	items := make([]writerItem, 0, w.table.Len())
	w.table.ForEach(func(p string, e *Entry) {
		items = append(items, writerItem{path: p, entry: e})
	})
	sort.Slice(items, func(i, j int) bool {
		return dfPathLess(items[i].path, looksLikeDir(items[i].entry), items[j].path, looksLikeDir(items[j].entry))
	})
	return items
}

// dfPathLess orders two full paths as if a directory path carried a
// trailing "/", guaranteeing a D/F-conflicted path (one that is a file on
// one side and a directory on another) sorts immediately before the paths
// of the directory side's descendants.
func dfPathLess(aPath string, aDir bool, bPath string, bDir bool) bool {
	a, b := aPath, bPath
	if aDir {
		a += "/"
	}
	if bDir {
		b += "/"
	}
	if a == b {
		return len(aPath) < len(bPath)
	}
	return a < b
}

func looksLikeDir(e *Entry) bool {
	if e.Clean {
		return e.Result.IsDir()
	}
	return e.DirMask != 0
}

// isStrictPrefixDir reports whether parent is a strict ancestor directory
// of child. The root directory ("") is an ancestor of every non-root path.
func isStrictPrefixDir(parent, child string) bool {
	if parent == "" {
		return child != ""
	}
	return strings.HasPrefix(child, parent+"/")
}

// closeDirectory moves the accumulator's "currently open directory" state
// to newDir, closing (serializing) every directory on the path from the
// previously open directory up to their common ancestor along the way, and
// opening a frame for every directory level between that ancestor and
// newDir (reverse iteration can jump straight from a directory to a
// grandchild or deeper descendant, since the shallower intermediate
// directory's own entry sorts after its descendants and so is visited
// later).
func (w *writer) closeDirectory(newDir string) error {
	for {
		if w.hasLast && w.lastDir == newDir {
			return nil
		}
		if !w.hasLast {
			// Nothing open at all: push the root frame plus every level
			// down to newDir.
			start := len(w.versions)
			w.offsets = append(w.offsets, dirFrame{dir: "", start: start})
			for _, seg := range dirSegmentsBetween("", newDir) {
				w.offsets = append(w.offsets, dirFrame{dir: seg, start: start})
			}
			w.lastDir = newDir
			w.hasLast = true
			return nil
		}
		if isStrictPrefixDir(w.lastDir, newDir) {
			start := len(w.versions)
			for _, seg := range dirSegmentsBetween(w.lastDir, newDir) {
				w.offsets = append(w.offsets, dirFrame{dir: seg, start: start})
			}
			w.lastDir = newDir
			w.hasLast = true
			return nil
		}
		if err := w.closeOneLevel(); err != nil {
			return err
		}
	}
}

// dirSegmentsBetween returns every directory path strictly between
// ancestor and target, inclusive of target, ordered shallowest first.
// ancestor must be "" or a strict ancestor of target.
func dirSegmentsBetween(ancestor, target string) []string {
	rest := target
	if ancestor != "" {
		rest = strings.TrimPrefix(target, ancestor+"/")
	}
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, "/")
	out := make([]string, 0, len(parts))
	cur := ancestor
	for _, p := range parts {
		if cur == "" {
			cur = p
		} else {
			cur = cur + "/" + p
		}
		out = append(out, cur)
	}
	return out
}

// closeOneLevel pops the innermost open directory frame, serializes its
// accumulated entries into a tree object (or marks it absent if it ended up
// empty), and writes the result into that directory's own Entry (or, for
// the root frame, into w.rootHash).
func (w *writer) closeOneLevel() error {
	n := len(w.offsets)
	frame := w.offsets[n-1]
	w.offsets = w.offsets[:n-1]

	var dirEntry *Entry
	if frame.dir != "" {
		dirEntry, _ = w.table.Get(frame.dir)
	}

	if len(w.versions) == frame.start {
		if dirEntry != nil {
			dirEntry.IsNull = true
			dirEntry.Result = Version{}
		} else {
			hash, err := w.store.WriteTree(&object.TreeObj{})
			if err != nil {
				return err
			}
			w.rootHash = hash
			w.rootWritten = true
		}
	} else {
		slice := w.versions[frame.start:]
		hash, err := w.serializeDirectory(slice)
		if err != nil {
			return err
		}
		if dirEntry != nil {
			dirEntry.Result = Version{OID: hash, Mode: object.TreeModeDir}
			dirEntry.IsNull = false
		} else {
			w.rootHash = hash
			w.rootWritten = true
		}
	}
	w.versions = w.versions[:frame.start]

	if len(w.offsets) == 0 {
		w.hasLast = false
		w.lastDir = ""
	} else {
		w.lastDir = w.offsets[len(w.offsets)-1].dir
		w.hasLast = true
	}
	return nil
}

// serializeDirectory builds and writes the tree object for one directory's
// accumulated children, in base_name_compare order, dropping any child
// whose resolved version is null or absent.
func (w *writer) serializeDirectory(slice []versionSlot) (object.Hash, error) {
	sorted := append([]versionSlot(nil), slice...)
	sort.Slice(sorted, func(i, j int) bool {
		return object.BaseNameLess(sorted[i].name, looksLikeDir(sorted[i].entry), sorted[j].name, looksLikeDir(sorted[j].entry))
	})

	var entries []object.TreeEntry
	for _, s := range sorted {
		if s.entry.IsNull || s.entry.Result.IsAbsent() {
			continue
		}
		te := object.TreeEntry{Name: s.name}
		if s.entry.Result.IsDir() {
			te.IsDir = true
			te.SubtreeHash = s.entry.Result.OID
		} else {
			te.Mode = s.entry.Result.Mode
			te.BlobHash = s.entry.Result.OID
		}
		entries = append(entries, te)
	}
	return w.store.WriteTree(&object.TreeObj{Entries: entries})
}
