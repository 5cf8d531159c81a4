package repo

import (
	"sort"

	"github.com/basilisk-scm/got/pkg/object"
	"github.com/basilisk-scm/got/pkg/ort"
)

// stagingIndexWriter adapts a Staging to ort.IndexWriter. It snapshots the
// staging's stage-0 paths in sorted order at construction time, exactly
// the "restricted to the original index length" index spec.md §4.6
// requires, so entries appended mid-reconciliation never shift the binary
// search's view of the original index.
type stagingIndexWriter struct {
	stg *Staging

	originalPaths []string
}

// newStagingIndexWriter returns an ort.IndexWriter backed by stg.
func newStagingIndexWriter(stg *Staging) *stagingIndexWriter {
	paths := make([]string, 0, len(stg.Entries))
	for p := range stg.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return &stagingIndexWriter{stg: stg, originalPaths: paths}
}

func (w *stagingIndexWriter) OriginalLen() int { return len(w.originalPaths) }

func (w *stagingIndexWriter) Path(i int) string { return w.originalPaths[i] }

// MarkRemoved would drop a conflicted path's stage-0 entry under a literal
// git index model. Staging instead keeps it (flagged via AppendStage) so
// Status and the CLI can report a conflict without reading Conflicts.
func (w *stagingIndexWriter) MarkRemoved(i int) {}

// AppendStage records one side of a conflicted path, both in the full
// ConflictEntry bookkeeping (Stages, keyed 1/2/3) and, for the common
// single-pair case, by flagging the existing stage-0 entry directly.
func (w *stagingIndexWriter) AppendStage(path string, stage int, mode string, oid object.Hash) {
	ce := w.stg.Conflicts[path]
	if ce == nil {
		ce = &ConflictEntry{Path: path, Stages: make(map[int]ConflictStage)}
		w.stg.Conflicts[path] = ce
	}
	ce.Stages[stage] = ConflictStage{Mode: mode, BlobHash: oid}

	se := w.stg.Entries[path]
	if se == nil {
		se = &StagingEntry{Path: path}
		w.stg.Entries[path] = se
	}
	se.Conflict = true
	switch stage {
	case 1:
		se.BaseBlobHash = oid
	case 2:
		se.OursBlobHash = oid
	case 3:
		se.TheirsBlobHash = oid
	}
}

func (w *stagingIndexWriter) Finish() error { return nil }

// reconcileMergeIndex applies ort.Reconcile against stg for the given
// conflicted paths, per spec.md §4.6. Call it after checking out
// result.Tree.
func reconcileMergeIndex(stg *Staging, table *ort.Table, conflictedPaths []string) error {
	w := newStagingIndexWriter(stg)
	return ort.Reconcile(w, table, conflictedPaths)
}
