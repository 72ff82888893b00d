// Package corpus loads the document manifest into a single bounded text corpus.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Entry maps a logical document name to its source path.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Manifest is the ordered, fixed set of documents to load. Order is the order
// documents appear in the combined text.
type Manifest []Entry

// NewManifest copies entries so later changes by the caller cannot leak in.
func NewManifest(entries ...Entry) Manifest {
	return append(Manifest(nil), entries...)
}

// Key returns a stable content hash of the manifest. Same names and paths in the
// same order always yield the same key.
func (m Manifest) Key() string {
	h := sha256.New()
	for _, e := range m {
		h.Write([]byte(e.Name))
		h.Write([]byte{0})
		h.Write([]byte(filepath.Clean(e.Path)))
		h.Write([]byte{0})
	}
	return "manifest:" + hex.EncodeToString(h.Sum(nil))
}

// Paths returns the source paths in manifest order.
func (m Manifest) Paths() []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Path
	}
	return out
}
