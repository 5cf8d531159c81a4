package repo

import (
	"fmt"

	"github.com/basilisk-scm/got/pkg/object"
)

// FindMergeBases returns every non-redundant common ancestor of a and b —
// the generalization FindMergeBase's single-result BFS needs for
// criss-cross histories, where two branches share more than one "best"
// common ancestor and the merge engine must reduce all of them into a
// single virtual ancestor (see pkg/ort's recursive driver).
//
// "Non-redundant" means no returned base is itself an ancestor of another
// returned base; such a base carries no information the other doesn't
// already include. The result order is unspecified beyond that.
func (r *Repo) FindMergeBases(a, b object.Hash) ([]object.Hash, error) {
	if a == "" || b == "" {
		return nil, nil
	}
	if a == b {
		return []object.Hash{a}, nil
	}

	state := r.getMergeTraversalState()

	genA, err := state.generation(r, a)
	if err != nil {
		return nil, err
	}
	genB, err := state.generation(r, b)
	if err != nil {
		return nil, err
	}

	candidates, err := r.allCommonAncestors(state, a, b, genA, genB)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return r.pruneRedundantAncestors(state, candidates)
}

// allCommonAncestors walks back from both a and b, recording every commit
// reachable from both. Unlike FindMergeBase's generation-ordered search, it
// uses plain FIFO queues with no generation pruning and walks both
// histories to the end, keeping every common commit rather than only the
// best one.
func (r *Repo) allCommonAncestors(state *mergeBaseTraversalState, a, b object.Hash, genA, genB uint64) ([]object.Hash, error) {
	maxSteps, maxDepth := mergeBaseTraversalLimits()

	visitedA := map[object.Hash]struct{}{a: {}}
	visitedB := map[object.Hash]struct{}{b: {}}
	queueA := []mergeBaseTraversalQueueItem{{hash: a, depth: 0}}
	queueB := []mergeBaseTraversalQueueItem{{hash: b, depth: 0}}

	common := map[object.Hash]struct{}{}
	if _, ok := visitedB[a]; ok {
		common[a] = struct{}{}
	}
	if _, ok := visitedA[b]; ok {
		common[b] = struct{}{}
	}

	steps := 0
	for len(queueA) > 0 || len(queueB) > 0 {
		if len(queueA) > 0 {
			item := queueA[0]
			queueA = queueA[1:]
			steps++
			if steps > maxSteps {
				return nil, mergeBaseStepsLimitError(maxSteps)
			}
			if item.depth > maxDepth {
				return nil, mergeBaseDepthLimitError(maxDepth)
			}
			commit, err := state.readCommit(r, item.hash)
			if err != nil {
				return nil, err
			}
			for _, p := range commit.Parents {
				if p == "" {
					continue
				}
				if _, seen := visitedA[p]; seen {
					continue
				}
				visitedA[p] = struct{}{}
				if _, seen := visitedB[p]; seen {
					common[p] = struct{}{}
				}
				queueA = append(queueA, mergeBaseTraversalQueueItem{hash: p, depth: item.depth + 1})
			}
		}
		if len(queueB) > 0 {
			item := queueB[0]
			queueB = queueB[1:]
			steps++
			if steps > maxSteps {
				return nil, mergeBaseStepsLimitError(maxSteps)
			}
			if item.depth > maxDepth {
				return nil, mergeBaseDepthLimitError(maxDepth)
			}
			commit, err := state.readCommit(r, item.hash)
			if err != nil {
				return nil, err
			}
			for _, p := range commit.Parents {
				if p == "" {
					continue
				}
				if _, seen := visitedB[p]; seen {
					continue
				}
				visitedB[p] = struct{}{}
				if _, seen := visitedA[p]; seen {
					common[p] = struct{}{}
				}
				queueB = append(queueB, mergeBaseTraversalQueueItem{hash: p, depth: item.depth + 1})
			}
		}
	}

	out := make([]object.Hash, 0, len(common))
	for h := range common {
		out = append(out, h)
	}
	return out, nil
}

// pruneRedundantAncestors drops any candidate that is itself an ancestor of
// another candidate, leaving only the "best" (most recent) common
// ancestors.
func (r *Repo) pruneRedundantAncestors(state *mergeBaseTraversalState, candidates []object.Hash) ([]object.Hash, error) {
	if len(candidates) <= 1 {
		return candidates, nil
	}

	redundant := make(map[object.Hash]bool, len(candidates))
	for i, ci := range candidates {
		if redundant[ci] {
			continue
		}
		for j, cj := range candidates {
			if i == j || redundant[cj] {
				continue
			}
			isAncestor, err := r.isAncestorOf(state, ci, cj)
			if err != nil {
				return nil, fmt.Errorf("find merge bases: %w", err)
			}
			if isAncestor {
				redundant[ci] = true
				break
			}
		}
	}

	out := make([]object.Hash, 0, len(candidates))
	for _, c := range candidates {
		if !redundant[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// isAncestorOf reports whether ancestor is reachable from descendant by
// following parent links.
func (r *Repo) isAncestorOf(state *mergeBaseTraversalState, ancestor, descendant object.Hash) (bool, error) {
	genAncestor, err := state.generation(r, ancestor)
	if err != nil {
		return false, err
	}
	genDescendant, err := state.generation(r, descendant)
	if err != nil {
		return false, err
	}
	return r.isAncestorWithGeneration(state, ancestor, descendant, genAncestor, genDescendant)
}
