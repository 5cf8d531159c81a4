package ort

import (
	"fmt"
	"sort"

	"github.com/basilisk-scm/got/pkg/object"
)

// IndexWriter is the narrow view of a caller's index that the reconciler
// (C6) needs. pkg/ort stays independent of pkg/repo by talking only to
// this interface; pkg/repo implements it over its own Staging type.
//
// OriginalLen and Path together let Reconcile binary-search the index as
// it stood before any conflict-stage entries were appended — appended
// entries land past OriginalLen and are not sorted until Finish, exactly
// as spec.md §4.6 requires.
type IndexWriter interface {
	OriginalLen() int
	Path(i int) string
	MarkRemoved(i int)
	AppendStage(path string, stage int, mode string, oid object.Hash)
	Finish() error
}

// Reconcile rewrites idx to surface the merge's remaining conflicts, per
// spec.md §4.6. Call it after the caller has checked out result.Tree.
//
// TODO: entries the caller has marked skip-worktree need an extra pass to
// write out the physical file; Reconcile does not do this.
func Reconcile(idx IndexWriter, table *Table, conflictedPaths []string) error {
	n := idx.OriginalLen()
	for _, p := range conflictedPaths {
		e, ok := table.Get(p)
		if !ok {
			panic(fmt.Sprintf("ort: internal error: conflicted path %q missing from table during reconciliation", p))
		}

		i, found := binarySearchIndex(idx, n, p)
		if found {
			idx.MarkRemoved(i)
		} else if e.FileMask != 0b001 {
			panic(fmt.Sprintf("ort: internal error: conflicted path %q absent from index but filemask=%03b (expected deleted-on-both)", p, e.FileMask))
		}

		for s := SideBase; s <= SideTheirs; s++ {
			if e.FileMask.Has(s) {
				v := e.Stage(s)
				idx.AppendStage(p, int(s)+1, v.Mode, v.OID)
			}
		}
	}
	return idx.Finish()
}

// binarySearchIndex assumes idx.Path(0..n) is sorted ascending by plain
// string comparison, the "cache-name comparator" of spec.md §4.6 — got's
// index has no stage-ordering subtlety within a single path, unlike a
// git index that can hold multiple stages per path simultaneously at
// lookup time, so plain path comparison suffices here.
func binarySearchIndex(idx IndexWriter, n int, path string) (int, bool) {
	i := sort.Search(n, func(i int) bool { return idx.Path(i) >= path })
	if i < n && idx.Path(i) == path {
		return i, true
	}
	return 0, false
}
