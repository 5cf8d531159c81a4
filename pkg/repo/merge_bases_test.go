package repo

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/basilisk-scm/got/pkg/object"
)

func TestFindMergeBasesSingleAncestor(t *testing.T) {
	r, dir := setupMergeRepo(t)

	commitA, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	commitB := commitMainGo(t, r, dir, `package main

func A() { println("a") }

func B() { println("b") }
`, "commit B")

	bases, err := r.FindMergeBases(commitA, commitB)
	if err != nil {
		t.Fatalf("FindMergeBases: %v", err)
	}
	if len(bases) != 1 || bases[0] != commitA {
		t.Errorf("FindMergeBases(A, B) = %v, want [%s]", bases, commitA)
	}
}

func TestFindMergeBasesSameCommit(t *testing.T) {
	r, _ := setupMergeRepo(t)
	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	bases, err := r.FindMergeBases(head, head)
	if err != nil {
		t.Fatalf("FindMergeBases: %v", err)
	}
	if len(bases) != 1 || bases[0] != head {
		t.Errorf("FindMergeBases(x, x) = %v, want [%s]", bases, head)
	}
}

// TestFindMergeBasesCrissCross builds the classic criss-cross history: two
// branches A and B merged into each other in both directions (M1 = A
// merged with B, M2 = B merged with A), then each side advances one more
// commit past its merge. A and B are both ancestors of both tips and
// neither is an ancestor of the other, so both must come back as
// non-redundant merge bases of the two tip commits.
func TestFindMergeBasesCrissCross(t *testing.T) {
	r, dir := setupMergeRepo(t)

	// On main: add func C.
	commitA := commitMainGo(t, r, dir, `package main

func A() { println("a") }

func C() { println("c") }
`, "main adds C")

	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	// On feature: add func D (disjoint from C, so both merge directions
	// below are clean).
	commitB := commitMainGo(t, r, dir, `package main

func A() { println("a") }

func D() { println("d") }
`, "feature adds D")

	if err := r.CreateBranch("cross1", commitA); err != nil {
		t.Fatalf("CreateBranch(cross1): %v", err)
	}
	if err := r.CreateBranch("cross2", commitB); err != nil {
		t.Fatalf("CreateBranch(cross2): %v", err)
	}

	if err := r.Checkout("cross1"); err != nil {
		t.Fatalf("Checkout(cross1): %v", err)
	}
	report1, err := r.Merge("feature")
	if err != nil {
		t.Fatalf("Merge(feature) on cross1: %v", err)
	}
	if report1.HasConflicts {
		t.Fatalf("expected a clean merge on cross1, got conflicts: %+v", report1)
	}
	m1 := report1.MergeCommit

	if err := r.Checkout("cross2"); err != nil {
		t.Fatalf("Checkout(cross2): %v", err)
	}
	report2, err := r.Merge("main")
	if err != nil {
		t.Fatalf("Merge(main) on cross2: %v", err)
	}
	if report2.HasConflicts {
		t.Fatalf("expected a clean merge on cross2, got conflicts: %+v", report2)
	}
	m2 := report2.MergeCommit

	if m1 == m2 {
		t.Fatal("expected the two independent merge commits to differ")
	}

	if err := r.Checkout("cross1"); err != nil {
		t.Fatalf("Checkout(cross1): %v", err)
	}
	tipC := commitMainGo(t, r, dir, `package main

func A() { println("a") }

func C() { println("c") }

func D() { println("d") }

func E() { println("e-on-cross1") }
`, "cross1 adds E")

	if err := r.Checkout("cross2"); err != nil {
		t.Fatalf("Checkout(cross2): %v", err)
	}
	tipD := commitMainGo(t, r, dir, `package main

func A() { println("a") }

func C() { println("c") }

func D() { println("d") }

func F() { println("f-on-cross2") }
`, "cross2 adds F")

	bases, err := r.FindMergeBases(tipC, tipD)
	if err != nil {
		t.Fatalf("FindMergeBases(criss-cross): %v", err)
	}

	got := append([]object.Hash(nil), bases...)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := []object.Hash{commitA, commitB}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	if len(got) != len(want) {
		t.Fatalf("FindMergeBases(criss-cross) = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("FindMergeBases(criss-cross) = %v, want %v", got, want)
		}
	}
}

func TestFindMergeBasesUnrelatedHistories(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644); err != nil {
		t.Fatalf("write a.go: %v", err)
	}
	if err := r.Add([]string{"a.go"}); err != nil {
		t.Fatalf("Add a.go: %v", err)
	}
	commitA, err := r.Commit("unrelated commit", "test-author")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// A commit with no shared history: a plain object.CommitObj with no
	// parents at all, written directly rather than through Repo.Commit
	// (which always chains off the current branch).
	treeHash, err := r.BuildTree(&Staging{Entries: map[string]*StagingEntry{}})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	commitB, err := r.Store.WriteCommit(&object.CommitObj{TreeHash: treeHash, Message: "orphan commit"})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	bases, err := r.FindMergeBases(commitA, commitB)
	if err != nil {
		t.Fatalf("FindMergeBases: %v", err)
	}
	if len(bases) != 0 {
		t.Errorf("FindMergeBases(unrelated) = %v, want none", bases)
	}
}
