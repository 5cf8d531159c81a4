package ort

import "github.com/basilisk-scm/got/pkg/object"

// RenameDetector is the hook of spec.md §4.3. Given the populated path
// table and the three trees, it may rewrite conflicted entries to reflect
// detected renames (moving a side's version from one path to another and
// updating that entry's Pathnames), and reports whether the rewrite left
// the merge clean.
//
// The core only specifies this interface; an actual similarity-based
// rename detector (content hashing, scoring, the RenameScore/RenameLimit
// knobs in Options) is out of scope here, same as the diff algorithm and
// blob merger — spec.md §1 lists rename detection as an external
// collaborator the core treats as a correct-but-degraded stub.
type RenameDetector interface {
	Detect(table *Table, baseTree, side1Tree, side2Tree object.Hash) (clean bool, err error)
}

// NoRenameDetector is the stub RenameDetector: it never mutates the table
// and always reports clean, i.e. "no renames found, nothing to reconsider".
type NoRenameDetector struct{}

func (NoRenameDetector) Detect(_ *Table, _, _, _ object.Hash) (bool, error) {
	return true, nil
}
