package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-256 of the envelope "type len\0content",
// mirroring Git's object hashing but with SHA-256.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashAlgo describes the object hash in use. RawSize is the width of the
// hash in bytes (not hex characters); EmptyTreeOID is the id of a tree
// object with no entries, precomputed because callers that short-circuit on
// an empty tree need it without a store round-trip.
type HashAlgo struct {
	RawSize      int
	EmptyTreeOID Hash
}

var sha256Algo = HashAlgo{
	RawSize:      sha256.Size,
	EmptyTreeOID: HashObject(TypeTree, nil),
}

// SHA256Algo returns the hash algorithm descriptor for this store's object
// format. got only ever hashes with SHA-256, but callers that are generic
// over hash width (e.g. the merge engine) take this as a parameter rather
// than hardcoding it.
func SHA256Algo() HashAlgo {
	return sha256Algo
}
