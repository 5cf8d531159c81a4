package ort

import "testing"

func TestLogDrainSortsByPath(t *testing.T) {
	log := NewLog()
	log.Add("z.go", "second")
	log.Add("a.go", "first")
	log.Add("a.go", "first-again")

	entries := log.Drain(false)
	if len(entries) != 2 {
		t.Fatalf("expected 2 path entries, got %d", len(entries))
	}
	if entries[0].Path != "a.go" || entries[1].Path != "z.go" {
		t.Errorf("expected sorted [a.go, z.go], got [%s, %s]", entries[0].Path, entries[1].Path)
	}
	if len(entries[0].Messages) != 2 {
		t.Errorf("expected 2 messages for a.go, got %d", len(entries[0].Messages))
	}
}

func TestLogDrainSkipsUnderRemergeDiff(t *testing.T) {
	log := NewLog()
	log.Add("f.go", "always shown")
	log.AddSkipRemergeDiff("f.go", "only in full mode")

	full := log.Drain(false)
	if len(full[0].Messages) != 2 {
		t.Errorf("expected 2 messages without skipping, got %d", len(full[0].Messages))
	}

	trimmed := log.Drain(true)
	if len(trimmed[0].Messages) != 1 || trimmed[0].Messages[0] != "always shown" {
		t.Errorf("expected only the non-skip message, got %+v", trimmed[0].Messages)
	}
}

func TestLogDrainOmitsPathsWithNoMessages(t *testing.T) {
	log := NewLog()
	log.AddSkipRemergeDiff("only-skip.go", "hidden")

	trimmed := log.Drain(true)
	if len(trimmed) != 0 {
		t.Errorf("expected a path left with zero visible messages to be omitted, got %+v", trimmed)
	}
}

func TestLogMerge(t *testing.T) {
	a := NewLog()
	a.Add("x.go", "from a")
	b := NewLog()
	b.Add("x.go", "from b")
	b.Add("y.go", "only in b")

	a.Merge(b)
	entries := a.Drain(false)
	if len(entries) != 2 {
		t.Fatalf("expected x.go and y.go after merge, got %+v", entries)
	}
	if len(entries[0].Messages) != 2 {
		t.Errorf("expected x.go to carry both messages after merge, got %+v", entries[0].Messages)
	}
}
