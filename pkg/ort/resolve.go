package ort

import (
	"fmt"

	"github.com/basilisk-scm/got/pkg/object"
)

// resolver carries the state the decision table of spec.md §4.4 needs that
// isn't local to a single entry: which branch a modify/delete conflict
// should keep (call depth) and the hook for the both-sides-modify case.
type resolver struct {
	hook         ContentMergeHook
	callDepth    int
	branch1Label string
	branch2Label string
	log          *Log
}

func modeClass(mode string) int {
	switch mode {
	case object.TreeModeDir:
		return 0
	case object.TreeModeSymlink:
		return 2
	case object.TreeModeSubmodule:
		return 3
	default:
		return 1 // regular file, executable or not
	}
}

func typesDiffer(a, b Version) bool { return modeClass(a.Mode) != modeClass(b.Mode) }

// resolveEntry applies spec.md §4.4's decision table to a conflicted entry.
// It mutates e in place (Result, IsNull, and — if the path resolves
// cleanly — Clean) and returns whether the path is still conflicted.
// Called only on entries where e.Clean is already false; the caller (the
// writer, C5) never invokes this on entries the collector already marked
// Clean.
func (r *resolver) resolveEntry(path string, e *Entry) (stillConflicted bool, err error) {
	switch {
	case e.FileMask == 0:
		// Directory-only: nothing to resolve here; the writer fills in
		// Result/IsNull for this path when it closes the directory.
		e.Clean = true
		return false, nil

	case e.FileMask != 0 && e.DirMask != 0:
		// D/F conflict shell: reserved hook (unimplemented beyond
		// flagging, per spec.md §9's open questions). Keep side1's file
		// content if present, else side2's.
		result := e.Stages[SideOurs]
		if result.IsAbsent() {
			result = e.Stages[SideTheirs]
		}
		e.Result = result
		e.IsNull = result.IsAbsent()
		r.log.Add(path, fmt.Sprintf("CONFLICT (directory/file): there is a directory with name %q in one revision and a file with the same name in another", path))
		return true, nil

	case e.MatchMask == 0b110:
		// side1 == side2, neither matches base (this includes both sides
		// adding the same version, and both sides deleting the path).
		e.Result = e.Stages[SideOurs]
		e.IsNull = e.Result.IsAbsent()
		e.Clean = true
		return false, nil

	case e.MatchMask == 0b011 || e.MatchMask == 0b101:
		// Exactly one side changed from base; take the changed side.
		changed := e.Stages[SideTheirs]
		if e.MatchMask == 0b101 {
			changed = e.Stages[SideOurs]
		}
		e.Result = changed
		e.IsNull = changed.IsAbsent()
		e.Clean = true
		return false, nil

	case e.FileMask == 0b011 || e.FileMask == 0b101:
		return r.resolveModifyDelete(path, e)

	case e.FileMask == 0b010 || e.FileMask == 0b100:
		// Added on exactly one side (DF already excluded above).
		adding := SideOurs
		if e.FileMask == 0b100 {
			adding = SideTheirs
		}
		e.Result = e.Stages[adding]
		e.IsNull = false
		e.Clean = true
		return false, nil

	case e.FileMask == 0b001:
		// Deleted on both sides.
		e.Result = Version{}
		e.IsNull = true
		e.Clean = true
		return false, nil

	case e.FileMask >= 0b110 && typesDiffer(e.Stages[SideOurs], e.Stages[SideTheirs]):
		// Type change (file<->symlink<->submodule): reserved hook.
		e.Result = e.Stages[SideOurs]
		e.IsNull = false
		r.log.Add(path, fmt.Sprintf("CONFLICT (file type change): %s had its type changed in both revisions", path))
		return true, nil

	case e.FileMask >= 0b110:
		return r.resolveContentMerge(path, e)

	default:
		panic(fmt.Sprintf("ort: internal error: resolver decision table did not match filemask=%03b dirmask=%03b matchmask=%03b", e.FileMask, e.DirMask, e.MatchMask))
	}
}

func (r *resolver) resolveModifyDelete(path string, e *Entry) (bool, error) {
	modifiedSide := SideOurs
	modifiedLabel, deletedLabel := r.branch1Label, r.branch2Label
	if e.FileMask == 0b101 {
		modifiedSide = SideTheirs
		modifiedLabel, deletedLabel = r.branch2Label, r.branch1Label
	}

	// At the top-level call, keep the modified side's content; in
	// recursive (merge-of-bases) calls, fall back to base — spec.md §4.4
	// and §4.7's note that call_depth is the only place base wins over a
	// side.
	if r.callDepth == 0 {
		e.Result = e.Stages[modifiedSide]
	} else {
		e.Result = e.Stages[SideBase]
	}
	e.IsNull = e.Result.IsAbsent()

	r.log.Add(path, fmt.Sprintf(
		"CONFLICT (modify/delete): %s deleted in %s and modified in %s. Version %s of %s left in tree.",
		path, deletedLabel, modifiedLabel, modifiedLabel, path,
	))
	return true, nil
}

func (r *resolver) resolveContentMerge(path string, e *Entry) (bool, error) {
	if r.hook == nil {
		// Degraded mode: no content-merge hook configured.
		e.Result = e.Stages[SideOurs]
		e.IsNull = false
		r.log.Add(path, fmt.Sprintf("CONFLICT (content): Merge conflict in %s", path))
		return true, nil
	}

	merged, clean, err := r.hook(path, e.Stages[SideBase], e.Stages[SideOurs], e.Stages[SideTheirs])
	if err != nil {
		return true, fmt.Errorf("content merge hook %q: %w", path, err)
	}
	e.Result = merged
	e.IsNull = merged.IsAbsent()
	if clean {
		e.Clean = true
		return false, nil
	}
	r.log.Add(path, fmt.Sprintf("CONFLICT (content): Merge conflict in %s", path))
	return true, nil
}
