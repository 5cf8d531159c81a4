package ort

import (
	"fmt"

	"github.com/basilisk-scm/got/pkg/object"
)

// RecursiveVariant selects how merge_recursive-style callers want conflicts
// in files skewed when a recursive merge of bases would otherwise leave a
// genuine content conflict — spec.md §6's recursive_variant knob.
type RecursiveVariant int

const (
	RecursiveVariantNormal RecursiveVariant = iota
	RecursiveVariantOurs
	RecursiveVariantTheirs
)

// MaxRenameScore is the upper bound spec.md §6 places on Options.RenameScore.
const MaxRenameScore = 100

// Options is the merge options input of spec.md §6, validated once at
// context creation.
type Options struct {
	Branch1Label string
	Branch2Label string

	DetectRenames    bool
	RenameLimit      int // >= -1; -1 means "no limit"
	RenameScore      int // in [0, MaxRenameScore]
	RecursiveVariant RecursiveVariant
	Verbosity        int    // in [0, 5]
	DiffAlgorithm    string // defaulted to "histogram"

	// Ancestor is the label the log attaches to the merge base.
	// MergeIncoreRecursive sets it internally; Validate defaults it to
	// "merge base" for callers of MergeIncoreNonrecursive that leave it
	// unset.
	Ancestor string

	// Hook and RenameDetector are the two external collaborators spec.md
	// §1 calls out. A nil Hook runs in degraded mode (see resolve.go); a
	// nil RenameDetector defaults to NoRenameDetector.
	Hook           ContentMergeHook
	RenameDetector RenameDetector
}

// Validate checks the constraints spec.md §6 places on Options, filling in
// defaults where the zero value isn't itself a valid setting.
func (o *Options) Validate() error {
	if o.Branch1Label == "" {
		o.Branch1Label = "HEAD"
	}
	if o.Branch2Label == "" {
		o.Branch2Label = "merge"
	}
	if o.RenameLimit < -1 {
		return fmt.Errorf("ort: options: rename_limit must be >= -1, got %d", o.RenameLimit)
	}
	if o.RenameScore < 0 || o.RenameScore > MaxRenameScore {
		return fmt.Errorf("ort: options: rename_score must be in [0, %d], got %d", MaxRenameScore, o.RenameScore)
	}
	if o.Verbosity < 0 || o.Verbosity > 5 {
		return fmt.Errorf("ort: options: verbosity must be in [0, 5], got %d", o.Verbosity)
	}
	if o.DiffAlgorithm == "" {
		o.DiffAlgorithm = "histogram"
	}
	if o.RenameDetector == nil {
		o.RenameDetector = NoRenameDetector{}
	}
	if o.Ancestor == "" {
		o.Ancestor = "merge base"
	}
	return nil
}

// Context is the merge context of spec.md §3/§5: the resources a single
// top-level call to MergeIncoreNonrecursive or MergeIncoreRecursive owns.
type Context struct {
	store     Store
	opt       *Options
	table     *Table
	log       *Log
	callDepth int
}

// Result is the merge result of spec.md §6.
type Result struct {
	Tree object.Hash

	// Clean is true if fully clean, false if conflicts remain. Hard failures are
	// reported as a Go error instead of Clean == -1 — idiomatic Go has no
	// use for a sentinel "failure" value here.
	Clean bool

	Conflicted []string
	ctx        *Context
}

// Finalize releases the merge context. Go's garbage collector does the
// actual reclamation; Finalize exists so callers have the symmetric
// create/release pair spec.md's resource-lifetime model describes, and so
// a future context that does hold a non-GC'd resource (an open file, a
// store transaction) has somewhere to put that cleanup.
func (r *Result) Finalize() {
	r.ctx = nil
}

// Log returns the result's diagnostic log, for draining by the caller
// (merge_switch_to_result in spec.md terms).
func (r *Result) Log() *Log {
	if r.ctx == nil {
		return NewLog()
	}
	return r.ctx.log
}

// Table returns the path table backing this result, so a caller that needs
// a conflicted path's per-side stages (to populate an index) can look up
// its Entry directly. Valid only before Finalize.
func (r *Result) Table() *Table {
	if r.ctx == nil {
		return NewTable()
	}
	return r.ctx.table
}

// MergeIncoreNonrecursive implements spec.md §6's merge_incore_nonrecursive
// entry point: a single three-way merge of baseTree against side1Tree and
// side2Tree, with no recursive base handling. If the caller leaves
// opt.Ancestor unset, Validate defaults it to "merge base".
func MergeIncoreNonrecursive(store Store, opt *Options, baseTree, side1Tree, side2Tree object.Hash) (*Result, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	ctx := &Context{store: store, opt: opt, table: NewTable(), log: NewLog()}
	return ctx.run(baseTree, side1Tree, side2Tree)
}

func (ctx *Context) run(baseTree, side1Tree, side2Tree object.Hash) (*Result, error) {
	if err := Collect(ctx.store, ctx.table, ctx.log, baseTree, side1Tree, side2Tree); err != nil {
		return nil, fmt.Errorf("ort: merge (base=%s side1=%s side2=%s): %w", baseTree, side1Tree, side2Tree, err)
	}

	if _, err := ctx.opt.RenameDetector.Detect(ctx.table, baseTree, side1Tree, side2Tree); err != nil {
		return nil, fmt.Errorf("ort: merge: rename detection: %w", err)
	}

	r := &resolver{
		hook:         ctx.opt.Hook,
		callDepth:    ctx.callDepth,
		branch1Label: ctx.opt.Branch1Label,
		branch2Label: ctx.opt.Branch2Label,
		log:          ctx.log,
	}
	w := newWriter(ctx.store, ctx.table, r)
	treeHash, err := w.run()
	if err != nil {
		return nil, fmt.Errorf("ort: merge: write result tree: %w", err)
	}

	conflicted := ctx.table.ConflictedPaths()
	for p := range w.conflicted {
		conflicted = append(conflicted, p)
	}
	conflicted = dedupSorted(conflicted)

	return &Result{
		Tree:       treeHash,
		Clean:      len(conflicted) == 0,
		Conflicted: conflicted,
		ctx:        ctx,
	}, nil
}

func dedupSorted(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// virtualCommit is the in-memory stand-in for spec.md §4.7's "virtual
// commit" fabricated when reducing multiple merge bases: it never touches
// the object store, since only its Tree and Label matter to the driver.
type virtualCommit struct {
	tree  object.Hash
	label string
}

// MergeIncoreRecursive implements spec.md §6's merge_incore_recursive entry
// point and §4.7's algorithm: given zero or more merge bases, reduce them
// to a single virtual ancestor by recursively merging them pairwise, then
// run the non-recursive merge against the two real heads.
//
// bases may be nil or empty (no common ancestor); side1Commit and
// side2Commit are full commits (not trees) because the recursive step
// needs each base's tree, obtained by reading the commit.
func MergeIncoreRecursive(store Store, opt *Options, bases []object.Hash, side1Commit, side2Commit object.Hash) (*Result, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}

	side1, err := store.ReadCommit(side1Commit)
	if err != nil {
		return nil, fmt.Errorf("ort: merge: read side1 commit %s: %w", side1Commit, err)
	}
	side2, err := store.ReadCommit(side2Commit)
	if err != nil {
		return nil, fmt.Errorf("ort: merge: read side2 commit %s: %w", side2Commit, err)
	}

	ctx := &Context{store: store, opt: opt, table: NewTable(), log: NewLog()}

	ancestor, err := ctx.resolveAncestor(bases)
	if err != nil {
		return nil, err
	}

	opt.Ancestor = ancestor.label
	return ctx.run(ancestor.tree, side1.TreeHash, side2.TreeHash)
}

// resolveAncestor reduces bases to a single virtual commit per spec.md
// §4.7 steps 1-4.
func (ctx *Context) resolveAncestor(bases []object.Hash) (virtualCommit, error) {
	if len(bases) == 0 {
		hash, err := ctx.store.WriteTree(&object.TreeObj{})
		if err != nil {
			return virtualCommit{}, fmt.Errorf("ort: merge: write empty tree: %w", err)
		}
		return virtualCommit{tree: hash, label: "empty tree"}, nil
	}

	b0, err := ctx.store.ReadCommit(bases[0])
	if err != nil {
		return virtualCommit{}, fmt.Errorf("ort: merge: read merge base %s: %w", bases[0], err)
	}
	prev := virtualCommit{tree: b0.TreeHash, label: shortLabel(bases[0])}
	if len(bases) == 1 {
		return prev, nil
	}

	savedBranch1, savedBranch2 := ctx.opt.Branch1Label, ctx.opt.Branch2Label
	for _, bHash := range bases[1:] {
		bCommit, err := ctx.store.ReadCommit(bHash)
		if err != nil {
			return virtualCommit{}, fmt.Errorf("ort: merge: read merge base %s: %w", bHash, err)
		}
		b := bCommit.TreeHash
		ctx.callDepth++
		ctx.opt.Branch1Label = "Temporary merge branch 1"
		ctx.opt.Branch2Label = "Temporary merge branch 2"

		innerOpt := &Options{
			Branch1Label:     ctx.opt.Branch1Label,
			Branch2Label:     ctx.opt.Branch2Label,
			DetectRenames:    ctx.opt.DetectRenames,
			RenameLimit:      ctx.opt.RenameLimit,
			RenameScore:      ctx.opt.RenameScore,
			RecursiveVariant: ctx.opt.RecursiveVariant,
			Verbosity:        ctx.opt.Verbosity,
			DiffAlgorithm:    ctx.opt.DiffAlgorithm,
			Hook:             ctx.opt.Hook,
			RenameDetector:   ctx.opt.RenameDetector,
			Ancestor:         "merge-base",
		}
		// prev is a synthesized virtual commit with no real parent history
		// (it may be the literal empty tree), so there is no ancestry to
		// search for a base between it and b: the inner call always falls
		// back to the empty-tree virtual ancestor, per spec.md §4.7 step 2.
		innerCtx := &Context{store: ctx.store, opt: innerOpt, table: NewTable(), log: ctx.log, callDepth: ctx.callDepth}
		innerAncestor, err := innerCtx.resolveAncestor(nil)
		if err != nil {
			return virtualCommit{}, err
		}
		innerResult, err := innerCtx.run(innerAncestor.tree, prev.tree, b)
		if err != nil {
			return virtualCommit{}, fmt.Errorf("ort: merge: recursive base reduction: %w", err)
		}

		ctx.opt.Branch1Label, ctx.opt.Branch2Label = savedBranch1, savedBranch2
		ctx.callDepth--

		prev = virtualCommit{tree: innerResult.Tree, label: "merged common ancestors"}

		// Clear the path table and conflicted set for the next iteration
		// but keep the log, per spec.md §4.7 step 3's last bullet.
		ctx.table = NewTable()
	}
	return prev, nil
}

func shortLabel(h object.Hash) string {
	s := string(h)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
