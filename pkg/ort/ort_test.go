package ort

import (
	"testing"

	"github.com/basilisk-scm/got/pkg/object"
)

// newTestStore creates a fresh disk-backed object store rooted at a temp
// directory, the same construction every pkg/object/pkg/repo test uses.
func newTestStore(t *testing.T) *object.Store {
	t.Helper()
	return object.NewStore(t.TempDir())
}

// writeBlob is a small helper so test fixtures can write a file's content
// in one line.
func writeBlob(t *testing.T, store *object.Store, data string) object.Hash {
	t.Helper()
	h, err := store.WriteBlob(&object.Blob{Data: []byte(data)})
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	return h
}

// fileEntry builds a regular-file TreeEntry at mode 100644.
func fileEntry(name string, blob object.Hash) object.TreeEntry {
	return object.TreeEntry{Name: name, Mode: object.TreeModeFile, BlobHash: blob}
}

// dirEntry builds a subtree TreeEntry.
func dirEntry(name string, subtree object.Hash) object.TreeEntry {
	return object.TreeEntry{Name: name, IsDir: true, SubtreeHash: subtree}
}

// writeTree is a small helper around store.WriteTree for fixture brevity.
func writeTree(t *testing.T, store *object.Store, entries ...object.TreeEntry) object.Hash {
	t.Helper()
	h, err := store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		t.Fatalf("write tree: %v", err)
	}
	return h
}
