// Package classify turns two inventories into an ordered change list.
package classify

import (
	"context"
	"fmt"

	"github.com/keshon/dirpatch/internal/config"
	"github.com/keshon/dirpatch/internal/digest"
	"github.com/keshon/dirpatch/internal/fs"
	"github.com/keshon/dirpatch/internal/inventory"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/scheduler"
	"github.com/keshon/dirpatch/internal/textdiff"
)

type Options struct {
	// DiffMode lets modified text files ship as line diffs.
	DiffMode bool
	// DiffRatio is the largest payload/target size ratio a diff may have.
	// Zero means config.DefaultDiffRatio.
	DiffRatio float64
}

// Classify compares src against dst. Paths only in dst are added, only in src
// removed, and in both with different hashes modified. The result is sorted
// by path.
func Classify(ctx context.Context, fsys fs.FS, src, dst *inventory.Inventory, opts Options, pool *scheduler.Pool) ([]patch.Change, error) {
	if opts.DiffRatio <= 0 {
		opts.DiffRatio = config.DefaultDiffRatio
	}

	var changes []patch.Change
	var modified []int

	for _, p := range dst.Paths() {
		d := dst.Files[p]
		s, ok := src.Files[p]
		switch {
		case !ok:
			changes = append(changes, fullChange(patch.KindAdded, dst, d))
		case s.Hash != d.Hash:
			modified = append(modified, len(changes))
			c := fullChange(patch.KindModifiedFull, dst, d)
			c.Entry.BaseHash = s.Hash
			changes = append(changes, c)
		}
	}
	for _, p := range src.Paths() {
		if _, ok := dst.Files[p]; ok {
			continue
		}
		changes = append(changes, patch.Change{Entry: patch.Entry{
			Kind:     patch.KindRemoved,
			Path:     p,
			BaseHash: src.Files[p].Hash,
		}})
	}

	if opts.DiffMode && len(modified) > 0 {
		err := pool.Each(ctx, len(modified), func(ctx context.Context, i int) error {
			c := &changes[modified[i]]
			return tryDiff(fsys, src, dst, c, opts.DiffRatio)
		})
		if err != nil {
			return nil, err
		}
	}

	patch.SortChanges(changes)
	return changes, nil
}

func fullChange(kind patch.Kind, dst *inventory.Inventory, rec inventory.FileRecord) patch.Change {
	return patch.Change{
		Entry: patch.Entry{
			Kind: kind,
			Path: rec.Path,
			Size: rec.Size,
			Hash: rec.Hash,
			Mode: rec.Mode,
		},
		Source: dst.Abs(rec.Path),
	}
}

// tryDiff converts c into a modified_diff change when the diff pays off.
func tryDiff(fsys fs.FS, src, dst *inventory.Inventory, c *patch.Change, ratio float64) error {
	p := c.Entry.Path
	s, d := src.Files[p], dst.Files[p]
	if s.Size > textdiff.MaxTextSize || d.Size > textdiff.MaxTextSize {
		return nil
	}

	base, err := readExpected(fsys, src.Abs(p), s)
	if err != nil {
		return err
	}
	target, err := readExpected(fsys, dst.Abs(p), d)
	if err != nil {
		return err
	}

	payload, ok := textdiff.Decide(base, target, ratio)
	if !ok {
		return nil
	}
	c.Entry.Kind = patch.KindModifiedDiff
	c.Diff = payload
	c.Source = ""
	return nil
}

func readExpected(fsys fs.FS, abs string, rec inventory.FileRecord) ([]byte, error) {
	data, err := fsys.ReadFile(abs)
	if err != nil {
		return nil, &patch.ScanError{Path: rec.Path, Err: err}
	}
	if digest.Sum(data) != rec.Hash {
		return nil, &patch.ScanError{Path: rec.Path, Err: fmt.Errorf("file changed since it was scanned")}
	}
	return data, nil
}
