// Package inventory scans a directory tree into hashed file records.
package inventory

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/keshon/dirpatch/internal/config"
	"github.com/keshon/dirpatch/internal/digest"
	"github.com/keshon/dirpatch/internal/fs"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/scheduler"
	"github.com/keshon/dirpatch/internal/util"
)

type (
	ExclusionRules = patch.ExclusionRules
	FileRecord     = patch.FileRecord
)

// Inventory is the set of files found under Root, keyed by slash-separated
// relative path.
type Inventory struct {
	Root  string
	Rules ExclusionRules
	Files map[string]FileRecord
}

// Paths returns every file path in sorted order.
func (inv *Inventory) Paths() []string {
	return util.SortedKeys(inv.Files)
}

func (inv *Inventory) Get(rel string) (FileRecord, bool) {
	r, ok := inv.Files[rel]
	return r, ok
}

// Abs resolves rel against the inventory root.
func (inv *Inventory) Abs(rel string) string {
	return fs.Join(inv.Root, rel)
}

// Scan walks root and hashes every regular file the rules keep. Symlinks and
// other special files are skipped. Directories are listed sequentially and
// file hashing runs on pool.
func Scan(ctx context.Context, fsys fs.FS, root string, rules ExclusionRules, pool *scheduler.Pool) (*Inventory, error) {
	rules = rules.Normalize()

	fi, err := fsys.Stat(root)
	if err != nil {
		return nil, &patch.ScanError{Path: root, Err: err}
	}
	if !fi.IsDir() {
		return nil, &patch.ScanError{Path: root, Err: fmt.Errorf("not a directory")}
	}

	var files []string
	if err := walk(ctx, fsys, root, "", rules, &files); err != nil {
		return nil, err
	}

	inv := &Inventory{Root: root, Rules: rules, Files: make(map[string]FileRecord, len(files))}
	var mu sync.Mutex
	err = pool.Each(ctx, len(files), func(ctx context.Context, i int) error {
		rel := files[i]
		abs := fs.Join(root, rel)
		st, err := fsys.Stat(abs)
		if err != nil {
			return &patch.ScanError{Path: rel, Err: err}
		}
		sum, n, err := digest.File(fsys, abs)
		if err != nil {
			return &patch.ScanError{Path: rel, Err: err}
		}
		rec := FileRecord{Path: rel, Size: n, Hash: sum, Mode: st.Mode().Perm()}
		mu.Lock()
		inv.Files[rel] = rec
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func walk(ctx context.Context, fsys fs.FS, root, rel string, rules ExclusionRules, out *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := root
	if rel != "" {
		dir = fs.Join(root, rel)
	}
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return &patch.ScanError{Path: displayPath(rel), Err: err}
	}
	for _, e := range entries {
		child := e.Name()
		if rel != "" {
			child = path.Join(rel, e.Name())
		}
		switch {
		case e.IsDir():
			if rules.Excluded(child, true) {
				continue
			}
			if err := walk(ctx, fsys, root, child, rules, out); err != nil {
				return err
			}
		case e.Type().IsRegular():
			if rules.Excluded(child, false) || isTemp(e.Name()) {
				continue
			}
			*out = append(*out, child)
		}
	}
	return nil
}

// isTemp matches leftovers of an interrupted atomic write.
func isTemp(name string) bool {
	ok, _ := path.Match(config.TempPattern, name)
	return ok
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}
