package repo

import (
	"container/heap"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/basilisk-scm/got/pkg/merge"
	"github.com/basilisk-scm/got/pkg/object"
	"github.com/basilisk-scm/got/pkg/ort"
)

// FileMergeReport records the merge outcome for a single file.
type FileMergeReport struct {
	Path          string
	Status        string // "clean", "conflict", "added", "deleted"
	EntityCount   int
	ConflictCount int
	// Messages holds the engine's drained diagnostic log for this path
	// (e.g. "CONFLICT (modify/delete): ..."), in the order they were
	// recorded during collection and resolution.
	Messages []string
}

// MergeReport is the overall result of a repository-level merge.
type MergeReport struct {
	Files          []FileMergeReport
	HasConflicts   bool
	TotalConflicts int
	MergeCommit    object.Hash // set if auto-committed (clean merge)
}

const (
	maxMergeBaseBFSSteps = 1_000_000
	maxMergeBaseBFSDepth = 1_000_000
)

// These vars allow tests to tighten safety limits without affecting
// production defaults.
var (
	mergeBaseBFSStepsLimit = maxMergeBaseBFSSteps
	mergeBaseBFSDepthLimit = maxMergeBaseBFSDepth
)

type mergeBaseTraversalQueueItem struct {
	hash  object.Hash
	depth int
}

func mergeBaseTraversalLimits() (maxSteps int, maxDepth int) {
	maxSteps = normalizeMergeBaseTraversalLimit(mergeBaseBFSStepsLimit, maxMergeBaseBFSSteps)
	maxDepth = normalizeMergeBaseTraversalLimit(mergeBaseBFSDepthLimit, maxMergeBaseBFSDepth)

	return maxSteps, maxDepth
}

func normalizeMergeBaseTraversalLimit(limit, hardMax int) int {
	// Keep safety defaults as hard bounds; test hooks may only tighten.
	if limit <= 0 || limit > hardMax {
		return hardMax
	}
	return limit
}

func mergeBaseStepsLimitError(limit int) error {
	return fmt.Errorf("find merge base: traversal exceeded maximum steps (%d)", limit)
}

func mergeBaseDepthLimitError(limit int) error {
	return fmt.Errorf("find merge base: traversal exceeded maximum depth (%d)", limit)
}

// FindMergeBase finds a single common ancestor of two commits. It uses
// cached generation numbers for pruning, fast ancestor checks for linear
// histories, and a memoized pair cache for repeated queries.
//
// When the history is criss-crossed and two branches share more than one
// best common ancestor, FindMergeBase still returns just one of them; use
// FindMergeBases for the full non-redundant set the ort merge driver needs.
func (r *Repo) FindMergeBase(a, b object.Hash) (object.Hash, error) {
	if a == "" || b == "" {
		return "", nil
	}
	if a == b {
		return a, nil
	}

	state := r.getMergeTraversalState()
	if cached, ok := state.loadMergeBase(a, b); ok {
		if cached.found {
			return cached.base, nil
		}
		return "", nil
	}

	genA, err := state.generation(r, a)
	if err != nil {
		return "", err
	}
	genB, err := state.generation(r, b)
	if err != nil {
		return "", err
	}

	// Fast path: one side already contains the other.
	if genA <= genB {
		isAncestor, err := r.isAncestorWithGeneration(state, a, b, genA, genB)
		if err != nil {
			return "", err
		}
		if isAncestor {
			state.storeMergeBase(a, b, a, true)
			return a, nil
		}
		isAncestor, err = r.isAncestorWithGeneration(state, b, a, genB, genA)
		if err != nil {
			return "", err
		}
		if isAncestor {
			state.storeMergeBase(a, b, b, true)
			return b, nil
		}
	} else {
		isAncestor, err := r.isAncestorWithGeneration(state, b, a, genB, genA)
		if err != nil {
			return "", err
		}
		if isAncestor {
			state.storeMergeBase(a, b, b, true)
			return b, nil
		}
		isAncestor, err = r.isAncestorWithGeneration(state, a, b, genA, genB)
		if err != nil {
			return "", err
		}
		if isAncestor {
			state.storeMergeBase(a, b, a, true)
			return a, nil
		}
	}

	base, found, err := r.findMergeBaseWithPruning(state, a, b, genA, genB)
	if err != nil {
		return "", err
	}
	state.storeMergeBase(a, b, base, found)
	if !found {
		return "", nil
	}
	return base, nil
}

func (r *Repo) isAncestorWithGeneration(state *mergeBaseTraversalState, ancestor, descendant object.Hash, ancestorGeneration, descendantGeneration uint64) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	if ancestorGeneration > descendantGeneration {
		return false, nil
	}

	maxSteps, maxDepth := mergeBaseTraversalLimits()
	visited := map[object.Hash]struct{}{descendant: {}}
	queue := []mergeBaseTraversalQueueItem{{hash: descendant, depth: 0}}
	steps := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		steps++
		if steps > maxSteps {
			return false, mergeBaseStepsLimitError(maxSteps)
		}
		if item.depth > maxDepth {
			return false, mergeBaseDepthLimitError(maxDepth)
		}

		cur := item.hash
		if cur == ancestor {
			return true, nil
		}

		curGeneration, err := state.generation(r, cur)
		if err != nil {
			return false, err
		}
		if curGeneration <= ancestorGeneration {
			continue
		}

		commit, err := state.readCommit(r, cur)
		if err != nil {
			return false, err
		}
		for _, p := range commit.Parents {
			if p == "" {
				continue
			}
			if _, seen := visited[p]; seen {
				continue
			}
			parentGeneration, err := state.generation(r, p)
			if err != nil {
				return false, err
			}
			if parentGeneration < ancestorGeneration {
				continue
			}
			childDepth := item.depth + 1
			if childDepth > maxDepth {
				return false, mergeBaseDepthLimitError(maxDepth)
			}
			visited[p] = struct{}{}
			queue = append(queue, mergeBaseTraversalQueueItem{hash: p, depth: childDepth})
		}
	}

	return false, nil
}

func (r *Repo) findMergeBaseWithPruning(state *mergeBaseTraversalState, a, b object.Hash, genA, genB uint64) (object.Hash, bool, error) {
	maxSteps, maxDepth := mergeBaseTraversalLimits()

	visitedA := map[object.Hash]struct{}{a: {}}
	visitedB := map[object.Hash]struct{}{b: {}}
	depthA := map[object.Hash]int{a: 0}
	depthB := map[object.Hash]int{b: 0}

	queueA := mergeBaseMaxHeap{{hash: a, generation: genA}}
	queueB := mergeBaseMaxHeap{{hash: b, generation: genB}}
	heap.Init(&queueA)
	heap.Init(&queueB)

	best := object.Hash("")
	var bestGeneration uint64
	steps := 0

	for queueA.Len() > 0 || queueB.Len() > 0 {
		if best != "" {
			topA, okA := queueA.Peek()
			topB, okB := queueB.Peek()
			if (!okA || topA.generation < bestGeneration) && (!okB || topB.generation < bestGeneration) {
				break
			}
		}

		traverseA := false
		switch {
		case queueA.Len() == 0:
			traverseA = false
		case queueB.Len() == 0:
			traverseA = true
		default:
			topA := queueA[0]
			topB := queueB[0]
			if topA.generation > topB.generation {
				traverseA = true
			} else if topA.generation < topB.generation {
				traverseA = false
			} else {
				traverseA = topA.hash <= topB.hash
			}
		}

		var item mergeBaseQueueItem
		if traverseA {
			item = heap.Pop(&queueA).(mergeBaseQueueItem)
		} else {
			item = heap.Pop(&queueB).(mergeBaseQueueItem)
		}

		steps++
		if steps > maxSteps {
			return "", false, mergeBaseStepsLimitError(maxSteps)
		}
		if best != "" && item.generation < bestGeneration {
			continue
		}

		itemDepth := 0
		if traverseA {
			itemDepth = depthA[item.hash]
		} else {
			itemDepth = depthB[item.hash]
		}
		if itemDepth > maxDepth {
			return "", false, mergeBaseDepthLimitError(maxDepth)
		}

		if traverseA {
			if _, seen := visitedB[item.hash]; seen {
				best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, item.hash, item.generation)
			}
		} else {
			if _, seen := visitedA[item.hash]; seen {
				best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, item.hash, item.generation)
			}
		}

		commit, err := state.readCommit(r, item.hash)
		if err != nil {
			return "", false, err
		}

		for _, p := range commit.Parents {
			if p == "" {
				continue
			}

			parentGeneration, err := state.generation(r, p)
			if err != nil {
				return "", false, err
			}
			if best != "" && parentGeneration < bestGeneration {
				continue
			}

			childDepth := itemDepth + 1
			if childDepth > maxDepth {
				return "", false, mergeBaseDepthLimitError(maxDepth)
			}

			if traverseA {
				if _, seen := visitedA[p]; seen {
					continue
				}
				visitedA[p] = struct{}{}
				depthA[p] = childDepth
				heap.Push(&queueA, mergeBaseQueueItem{hash: p, generation: parentGeneration})
				if _, seen := visitedB[p]; seen {
					best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, p, parentGeneration)
				}
			} else {
				if _, seen := visitedB[p]; seen {
					continue
				}
				visitedB[p] = struct{}{}
				depthB[p] = childDepth
				heap.Push(&queueB, mergeBaseQueueItem{hash: p, generation: parentGeneration})
				if _, seen := visitedA[p]; seen {
					best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, p, parentGeneration)
				}
			}
		}
	}

	if best == "" {
		return "", false, nil
	}
	return best, true, nil
}

func chooseBetterMergeBase(best object.Hash, bestGeneration uint64, candidate object.Hash, candidateGeneration uint64) (object.Hash, uint64) {
	if best == "" {
		return candidate, candidateGeneration
	}
	if candidateGeneration > bestGeneration {
		return candidate, candidateGeneration
	}
	if candidateGeneration < bestGeneration {
		return best, bestGeneration
	}
	if candidate < best {
		return candidate, candidateGeneration
	}
	return best, bestGeneration
}

func (r *Repo) mergeOptionsPath() string {
	return filepath.Join(r.GotDir, "merge.toml")
}

// Merge merges the named branch into the current HEAD, using the pkg/ort
// three-way tree merge engine.
//
// Algorithm:
//  1. Resolve current HEAD and branch name to commit hashes.
//  2. FindMergeBases(headHash, branchHash) — every non-redundant common
//     ancestor, so a criss-cross history is handled correctly.
//  3. Run ort.MergeIncoreRecursive, which reduces the bases to a single
//     virtual ancestor and three-way merges it against HEAD and the branch.
//  4. Check out the resulting tree into the working directory and rebuild
//     staging from it.
//  5. If clean: auto-commit with two parents. If conflicts remain:
//     reconcile the index into git-style stage 1/2/3 entries and leave
//     HEAD untouched.
func (r *Repo) Merge(branchName string) (*MergeReport, error) {
	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("merge: resolve HEAD: %w", err)
	}
	branchHash, err := r.ResolveRef("refs/heads/" + branchName)
	if err != nil {
		return nil, fmt.Errorf("merge: resolve branch %q: %w", branchName, err)
	}

	bases, err := r.FindMergeBases(headHash, branchHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	fo, err := ort.ReadFileOptions(r.mergeOptionsPath())
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	ourLabel := "HEAD"
	if cur, err := r.CurrentBranch(); err == nil && cur != "" {
		ourLabel = cur
	}

	conflictCounts := make(map[string]int)
	opt, err := fo.ToOptions(ourLabel, branchName, r.contentMergeHook(conflictCounts), nil)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	result, err := ort.MergeIncoreRecursive(r.Store, opt, bases, headHash, branchHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	defer result.Finalize()

	return r.applyMergeResult(result, headHash, branchHash, branchName, conflictCounts)
}

// applyMergeResult checks out result.Tree, rebuilds staging (reconciling
// remaining conflicts into stage 1/2/3 entries), and, if the merge is
// clean, creates the merge commit.
func (r *Repo) applyMergeResult(result *ort.Result, headHash, branchHash object.Hash, branchName string, conflictCounts map[string]int) (*MergeReport, error) {
	headCommit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return nil, fmt.Errorf("merge: read head commit: %w", err)
	}
	oursFiles, err := r.FlattenTree(headCommit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten ours tree: %w", err)
	}
	resultFiles, err := r.FlattenTree(result.Tree)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten result tree: %w", err)
	}

	oursMap := indexByPath(oursFiles)
	resultMap := indexByPath(resultFiles)
	conflictedSet := make(map[string]bool, len(result.Conflicted))
	for _, p := range result.Conflicted {
		conflictedSet[p] = true
	}

	// Remove files tracked before the merge that no longer exist in the
	// result tree.
	for path := range r.trackedFiles() {
		if _, ok := resultMap[path]; ok {
			continue
		}
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("merge: remove %q: %w", path, err)
		}
		r.removeEmptyParents(filepath.Dir(absPath))
	}

	// Write every file the result tree names.
	stg := &Staging{Entries: make(map[string]*StagingEntry, len(resultFiles)), Conflicts: make(map[string]*ConflictEntry)}
	for _, f := range resultFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("merge: mkdir for %q: %w", f.Path, err)
		}
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return nil, fmt.Errorf("merge: read blob for %q: %w", f.Path, err)
		}
		if err := os.WriteFile(absPath, blob.Data, filePermFromMode(f.Mode)); err != nil {
			return nil, fmt.Errorf("merge: write %q: %w", f.Path, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("merge: stat %q: %w", f.Path, err)
		}
		stg.Entries[f.Path] = &StagingEntry{
			Path:     f.Path,
			BlobHash: f.BlobHash,
			Mode:     normalizeFileMode(f.Mode),
			ModTime:  info.ModTime().Unix(),
			Size:     info.Size(),
		}
	}

	if err := reconcileMergeIndex(stg, result.Table(), result.Conflicted); err != nil {
		return nil, fmt.Errorf("merge: reconcile index: %w", err)
	}
	if err := r.WriteStaging(stg); err != nil {
		return nil, fmt.Errorf("merge: write staging: %w", err)
	}

	logByPath := make(map[string][]string)
	for _, entry := range result.Log().Drain(false) {
		logByPath[entry.Path] = entry.Messages
	}

	report := &MergeReport{}
	for _, path := range mergedPathUnion(oursMap, resultMap, conflictedSet) {
		_, inResult := resultMap[path]
		_, inOurs := oursMap[path]
		messages := logByPath[path]

		switch {
		case conflictedSet[path]:
			count := conflictCounts[path]
			if count == 0 {
				count = 1
			}
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "conflict", ConflictCount: count, Messages: messages})
			report.HasConflicts = true
			report.TotalConflicts += count
		case !inResult && inOurs:
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "deleted", Messages: messages})
		case inResult && !inOurs:
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "added", Messages: messages})
		default:
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "clean", Messages: messages})
		}
	}

	if !report.HasConflicts {
		mergeHash, err := r.commitMerge(
			fmt.Sprintf("Merge branch '%s'", branchName),
			"got-merge",
			headHash,
			branchHash,
		)
		if err != nil {
			return nil, fmt.Errorf("merge: commit: %w", err)
		}
		report.MergeCommit = mergeHash
	}

	r.invalidateStatusCache()
	return report, nil
}

// mergedPathUnion returns the sorted union of every path touched by a
// merge: everything tracked beforehand, everything the result tree names,
// and every path left in conflict.
func mergedPathUnion(ours, result map[string]TreeFileEntry, conflicted map[string]bool) []string {
	seen := make(map[string]bool, len(ours)+len(result)+len(conflicted))
	for p := range ours {
		seen[p] = true
	}
	for p := range result {
		seen[p] = true
	}
	for p := range conflicted {
		seen[p] = true
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// contentMergeHook bridges the engine's ContentMergeHook to pkg/merge's
// structural merger: read each side's blob, run the structural three-way
// merge, write the result back as a blob. conflictCounts records the
// structural conflict-marker count per path so the caller's report can
// surface it (the engine itself only tracks clean/conflicted, not how many
// markers a conflicted file carries).
func (r *Repo) contentMergeHook(conflictCounts map[string]int) ort.ContentMergeHook {
	return func(path string, base, side1, side2 ort.Version) (ort.Version, bool, error) {
		baseData, err := r.readBlobDataOrEmpty(base.OID)
		if err != nil {
			return ort.Version{}, false, fmt.Errorf("read base %q: %w", path, err)
		}
		oursData, err := r.readBlobDataOrEmpty(side1.OID)
		if err != nil {
			return ort.Version{}, false, fmt.Errorf("read ours %q: %w", path, err)
		}
		theirsData, err := r.readBlobDataOrEmpty(side2.OID)
		if err != nil {
			return ort.Version{}, false, fmt.Errorf("read theirs %q: %w", path, err)
		}

		result, err := merge.MergeFiles(path, baseData, oursData, theirsData)
		if err != nil {
			return ort.Version{}, false, fmt.Errorf("structural merge %q: %w", path, err)
		}

		blobHash, err := r.Store.WriteBlob(&object.Blob{Data: result.Merged})
		if err != nil {
			return ort.Version{}, false, fmt.Errorf("write merged blob %q: %w", path, err)
		}

		mode := side1.Mode
		if mode == "" {
			mode = side2.Mode
		}
		if result.HasConflicts {
			conflictCounts[path] = result.ConflictCount
		}
		return ort.Version{OID: blobHash, Mode: mode}, !result.HasConflicts, nil
	}
}

// readBlobDataOrEmpty reads a blob's data, treating an empty hash (an
// absent side) as empty content rather than a lookup error.
func (r *Repo) readBlobDataOrEmpty(h object.Hash) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	return r.readBlobData(h)
}

// commitMerge creates a commit with two parents (for merge commits).
// This is similar to Commit() but takes explicit parent hashes instead
// of deriving them from HEAD.
func (r *Repo) commitMerge(message, author string, parent1, parent2 object.Hash) (object.Hash, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("merge commit: %w", err)
	}
	if len(stg.Entries) == 0 {
		return "", fmt.Errorf("merge commit: nothing staged")
	}

	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("merge commit: %w", err)
	}

	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   []object.Hash{parent1, parent2},
		Author:    author,
		Timestamp: time.Now().Unix(),
		Message:   message,
	}

	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("merge commit: write: %w", err)
	}

	// Update current branch ref.
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("merge commit: read HEAD: %w", err)
	}
	if strings.HasPrefix(head, "refs/") {
		if err := r.UpdateRefCAS(head, commitHash, parent1); err != nil {
			return "", fmt.Errorf("merge commit: update ref %q: %w", head, err)
		}
	} else {
		if err := r.UpdateRefCAS("HEAD", commitHash, parent1); err != nil {
			return "", fmt.Errorf("merge commit: update detached HEAD: %w", err)
		}
	}

	r.invalidateStatusCache()

	return commitHash, nil
}

// readBlobData reads a blob from the store and returns its raw data.
func (r *Repo) readBlobData(h object.Hash) ([]byte, error) {
	blob, err := r.Store.ReadBlob(h)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	return blob.Data, nil
}

// indexByPath creates a map from file path to TreeFileEntry.
func indexByPath(entries []TreeFileEntry) map[string]TreeFileEntry {
	m := make(map[string]TreeFileEntry, len(entries))
	for _, e := range entries {
		m[e.Path] = e
	}
	return m
}
