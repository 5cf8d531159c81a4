package ort

import (
	"fmt"
	"path"
	"sort"

	"github.com/basilisk-scm/got/pkg/object"
)

// Collect is the tree co-traversal collector of spec.md §4.2. It walks
// baseTree, side1Tree, and side2Tree together in lockstep, sorted-name
// order, and populates table with one Entry per path the walk visits.
//
// On any tree-read failure, collection aborts and a single error naming
// all three root tree ids is returned — spec.md's failure clause for this
// component.
func Collect(store Store, table *Table, log *Log, baseTree, side1Tree, side2Tree object.Hash) error {
	c := &collector{store: store, table: table, log: log, subtreeCache: make(map[object.Hash][]object.TreeEntry)}
	if err := c.walk("", baseTree, side1Tree, side2Tree); err != nil {
		return fmt.Errorf("ort: collect trees (base=%s side1=%s side2=%s): %w", baseTree, side1Tree, side2Tree, err)
	}
	return nil
}

type collector struct {
	store Store
	table *Table
	log   *Log

	// Subtrees that matched across sides at their parent are read once and
	// reused, per spec.md's "reuse the same tree descriptor" optimization.
	subtreeCache map[object.Hash][]object.TreeEntry
}

func (c *collector) readEntries(h object.Hash) ([]object.TreeEntry, error) {
	if h == "" {
		return nil, nil
	}
	if cached, ok := c.subtreeCache[h]; ok {
		return cached, nil
	}
	tr, err := c.store.ReadTree(h)
	if err != nil {
		return nil, err
	}
	entries := append([]object.TreeEntry(nil), tr.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	c.subtreeCache[h] = entries
	return entries, nil
}

func versionOf(e *object.TreeEntry) Version {
	if e == nil {
		return Version{}
	}
	if e.IsDir {
		return Version{OID: e.SubtreeHash, Mode: object.TreeModeDir}
	}
	mode := e.Mode
	if mode == "" {
		mode = object.TreeModeFile
	}
	return Version{OID: e.BlobHash, Mode: mode}
}

// matchMask computes spec.md §4.2 step 2's three-bit mask.
func matchMask(base, side1, side2 Version) Mask {
	baseMatches1 := base.Equal(side1)
	baseMatches2 := base.Equal(side2)
	sidesMatch := side1.Equal(side2)

	switch {
	case baseMatches1 && baseMatches2:
		return AllSides // 7
	case baseMatches1:
		return Mask(0b011) // base == side1 only
	case baseMatches2:
		return Mask(0b101) // base == side2 only
	case sidesMatch:
		return Mask(0b110) // sides match, neither matches base
	default:
		return 0
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// walk co-traverses one directory level across the three sides and
// recurses into subtrees as needed.
func (c *collector) walk(prefix string, baseH, side1H, side2H object.Hash) error {
	baseEntries, err := c.readEntries(baseH)
	if err != nil {
		return err
	}
	side1Entries, err := c.readEntries(side1H)
	if err != nil {
		return err
	}
	side2Entries, err := c.readEntries(side2H)
	if err != nil {
		return err
	}

	i, j, k := 0, 0, 0
	for i < len(baseEntries) || j < len(side1Entries) || k < len(side2Entries) {
		name := nextName(baseEntries, i, side1Entries, j, side2Entries, k)

		var bE, s1E, s2E *object.TreeEntry
		if i < len(baseEntries) && baseEntries[i].Name == name {
			bE = &baseEntries[i]
			i++
		}
		if j < len(side1Entries) && side1Entries[j].Name == name {
			s1E = &side1Entries[j]
			j++
		}
		if k < len(side2Entries) && side2Entries[k].Name == name {
			s2E = &side2Entries[k]
			k++
		}

		if err := c.visit(prefix, name, bE, s1E, s2E); err != nil {
			return err
		}
	}
	return nil
}

func nextName(base []object.TreeEntry, i int, side1 []object.TreeEntry, j int, side2 []object.TreeEntry, k int) string {
	var best string
	have := false
	consider := func(n string) {
		if !have || n < best {
			best = n
			have = true
		}
	}
	if i < len(base) {
		consider(base[i].Name)
	}
	if j < len(side1) {
		consider(side1[j].Name)
	}
	if k < len(side2) {
		consider(side2[k].Name)
	}
	return best
}

func (c *collector) visit(prefix, name string, bE, s1E, s2E *object.TreeEntry) error {
	fullPath := joinPath(prefix, name)

	baseVer := versionOf(bE)
	side1Ver := versionOf(s1E)
	side2Ver := versionOf(s2E)
	mm := matchMask(baseVer, side1Ver, side2Ver)

	if mm == AllSides {
		// Identical on all three sides: short-circuit, do not recurse even
		// if this is a directory — the entire subtree is untouched.
		c.table.Insert(fullPath, &Entry{
			Result:    baseVer,
			IsNull:    baseVer.IsAbsent(),
			Clean:     true,
			directory: prefix,
		})
		return nil
	}

	var fileMask, dirMask Mask
	for side, e := range [3]*object.TreeEntry{bE, s1E, s2E} {
		if e == nil {
			continue
		}
		if e.IsDir {
			dirMask = dirMask.With(Side(side))
		} else {
			fileMask = fileMask.With(Side(side))
		}
	}

	entry := &Entry{
		Clean:      false,
		Stages:     [3]Version{baseVer, side1Ver, side2Ver},
		DFConflict: fileMask != 0 && dirMask != 0,
		FileMask:   fileMask,
		DirMask:    dirMask,
		MatchMask:  mm,
		IsNull:     dirMask != 0, // tentative; corrected by the writer (C5)
		directory:  prefix,
	}
	canon := c.table.Insert(fullPath, entry)
	entry.Pathnames = [3]string{canon, canon, canon}
	if err := entry.checkInvariants(); err != nil {
		panic(fmt.Sprintf("ort: internal error: %s: %v", fullPath, err))
	}

	if dirMask == 0 {
		return nil
	}

	var bSub, s1Sub, s2Sub object.Hash
	if bE != nil && bE.IsDir {
		bSub = bE.SubtreeHash
	}
	if s1E != nil && s1E.IsDir {
		s1Sub = s1E.SubtreeHash
	}
	if s2E != nil && s2E.IsDir {
		s2Sub = s2E.SubtreeHash
	}
	return c.walk(canon, bSub, s1Sub, s2Sub)
}
