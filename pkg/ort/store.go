package ort

import "github.com/basilisk-scm/got/pkg/object"

// Store is the object-store handle of spec.md §6: the minimal surface the
// engine needs to read trees and commits and to write the trees it
// produces. *object.Store satisfies this directly.
type Store interface {
	ReadTree(h object.Hash) (*object.TreeObj, error)
	WriteTree(tr *object.TreeObj) (object.Hash, error)
	ReadCommit(h object.Hash) (*object.CommitObj, error)
	HashAlgo() object.HashAlgo
}

// ContentMergeHook is the "both-sides-modify" content merge hook of
// spec.md §4.4: given a conflicted file's path and its three versions, it
// may produce a merged Version and whether that merge is clean. It receives
// a single path for all three sides; per-side pathnames are not passed. The engine never reads blob bytes itself; pkg/repo supplies
// the concrete hook (blob read -> pkg/merge.MergeFiles -> blob write).
//
// A nil hook leaves such entries conflicted with side1's content, the
// "degraded mode" spec.md calls out explicitly.
type ContentMergeHook func(path string, base, side1, side2 Version) (merged Version, clean bool, err error)
