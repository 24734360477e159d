// Package patch holds the artifact data model shared by the create and apply
// pipelines, plus the error taxonomy both sides report through.
package patch

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/keshon/dirpatch/internal/digest"
)

// FormatVersion is the manifest version written by this build.
const FormatVersion = 1

// FileRecord describes one regular file found by a scan.
type FileRecord struct {
	Path string        `json:"path"`
	Size int64         `json:"size"`
	Hash digest.Digest `json:"hash"`
	Mode os.FileMode   `json:"mode"`
}

// Kind is the change category of a manifest entry.
type Kind string

const (
	KindAdded        Kind = "added"
	KindRemoved      Kind = "removed"
	KindModifiedFull Kind = "modified_full"
	KindModifiedDiff Kind = "modified_diff"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAdded, KindRemoved, KindModifiedFull, KindModifiedDiff:
		return true
	}
	return false
}

// Writes reports whether applying the entry produces a file at its path.
func (k Kind) Writes() bool { return k != KindRemoved }

// Locator points at a payload blob inside the artifact.
type Locator struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Entry is one per-file change.
//
// For modified_diff, Size and Hash describe the file after the patch and
// BaseHash the file the diff applies to. For removed, BaseHash is the hash the
// file had in the source tree.
type Entry struct {
	Kind     Kind          `json:"kind"`
	Path     string        `json:"path"`
	Size     int64         `json:"size,omitempty"`
	Hash     digest.Digest `json:"hash,omitzero"`
	BaseHash digest.Digest `json:"base_hash,omitzero"`
	Mode     os.FileMode   `json:"mode,omitempty"`
	Payload  *Locator      `json:"payload,omitempty"`
}

// CheckFile must hash-match on the live tree before anything is applied.
type CheckFile struct {
	Path string        `json:"path"`
	Hash digest.Digest `json:"hash"`
}

// Manifest is the artifact's table of contents.
type Manifest struct {
	FormatVersion int            `json:"format_version"`
	CheckFiles    []CheckFile    `json:"check_files"`
	Exclusions    ExclusionRules `json:"exclusions"`
	DiffMode      bool           `json:"diff_mode"`
	Entries       []Entry        `json:"entries"`
}

// Change pairs an entry with where its payload comes from while creating.
// Source is a native path to the target file for full-content entries; Diff
// holds the encoded diff for modified_diff.
type Change struct {
	Entry  Entry
	Source string
	Diff   []byte
}

// Lookup returns the entry for path.
func (m *Manifest) Lookup(p string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.Path == p {
			return e, true
		}
	}
	return Entry{}, false
}

// Counts tallies entries per kind.
func (m *Manifest) Counts() map[Kind]int {
	out := make(map[Kind]int, 4)
	for _, e := range m.Entries {
		out[e.Kind]++
	}
	return out
}

// ValidPath reports whether p is a clean, relative, slash-separated path that
// stays inside the tree root.
func ValidPath(p string) bool {
	if p == "" || p == "." || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	if path.Clean(p) != p {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

// Validate checks structural invariants of a decoded manifest.
func (m *Manifest) Validate() error {
	if m.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported format version %d", m.FormatVersion)
	}

	for _, cf := range m.CheckFiles {
		if !ValidPath(cf.Path) {
			return fmt.Errorf("invalid check file path %q", cf.Path)
		}
		if cf.Hash.IsZero() {
			return fmt.Errorf("check file %q: missing hash", cf.Path)
		}
	}

	seen := make(map[string]bool, len(m.Entries))
	blobs := make(map[string]bool, len(m.Entries))
	written := make(map[string]bool, len(m.Entries))
	for _, e := range m.Entries {
		if !ValidPath(e.Path) {
			return fmt.Errorf("invalid entry path %q", e.Path)
		}
		if seen[e.Path] {
			return fmt.Errorf("duplicate entry path %q", e.Path)
		}
		seen[e.Path] = true

		if err := e.validate(); err != nil {
			return fmt.Errorf("entry %q: %w", e.Path, err)
		}
		if e.Payload != nil {
			if blobs[e.Payload.Name] {
				return fmt.Errorf("entry %q: payload %q shared with another entry", e.Path, e.Payload.Name)
			}
			blobs[e.Payload.Name] = true
		}
		if e.Kind.Writes() {
			written[e.Path] = true
		}
	}

	// one written path may not be a directory of another
	for p := range written {
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			if written[dir] {
				return fmt.Errorf("entry %q: parent %q is also written as a file", p, dir)
			}
		}
	}
	return nil
}

func (e Entry) validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Kind == KindRemoved {
		if e.Payload != nil {
			return fmt.Errorf("removed entry carries a payload")
		}
		return nil
	}

	if e.Hash.IsZero() {
		return fmt.Errorf("missing target hash")
	}
	if e.Size < 0 {
		return fmt.Errorf("negative size")
	}
	if e.Payload == nil || e.Payload.Name == "" {
		return fmt.Errorf("missing payload locator")
	}
	if e.Payload.Checksum == "" {
		return fmt.Errorf("missing payload checksum")
	}
	switch e.Kind {
	case KindAdded, KindModifiedFull:
		if e.Payload.Size != e.Size {
			return fmt.Errorf("payload size %d does not match file size %d", e.Payload.Size, e.Size)
		}
	case KindModifiedDiff:
		if e.BaseHash.IsZero() {
			return fmt.Errorf("missing base hash")
		}
	}
	return nil
}

// SortChanges orders changes by path.
func SortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Entry.Path < changes[j].Entry.Path
	})
}
