// Package verify checks a live tree against a manifest before anything is
// mutated.
package verify

import (
	"context"
	"sort"

	"github.com/keshon/dirpatch/internal/digest"
	"github.com/keshon/dirpatch/internal/fs"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/scheduler"
)

// CheckFiles hashes every check file under root. A check file passes when it
// matches the hash recorded at creation, or when it is already in the state
// the patch would leave it in. All failures are reported together in a
// *patch.VerificationFailed.
func CheckFiles(ctx context.Context, fsys fs.FS, root string, m *patch.Manifest, pool *scheduler.Pool, hashes *digest.Cache) error {
	results := make([]*patch.CheckFailure, len(m.CheckFiles))

	err := pool.Each(ctx, len(m.CheckFiles), func(ctx context.Context, i int) error {
		cf := m.CheckFiles[i]
		entry, touched := m.Lookup(cf.Path)

		sum, _, err := hashes.File(fsys, fs.Join(root, cf.Path))
		switch {
		case err != nil && fsys.IsNotExist(err):
			if touched && entry.Kind == patch.KindRemoved {
				return nil
			}
			results[i] = &patch.CheckFailure{Path: cf.Path, Reason: patch.ReasonMissing, Err: err}
		case err != nil:
			results[i] = &patch.CheckFailure{Path: cf.Path, Reason: patch.ReasonUnreadable, Err: err}
		case sum == cf.Hash:
		case touched && entry.Kind.Writes() && sum == entry.Hash:
		default:
			results[i] = &patch.CheckFailure{Path: cf.Path, Reason: patch.ReasonMismatch}
		}
		return nil
	})
	if err != nil {
		return err
	}

	var failures []patch.CheckFailure
	for _, r := range results {
		if r != nil {
			failures = append(failures, *r)
		}
	}
	if len(failures) == 0 {
		return nil
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	return &patch.VerificationFailed{Failures: failures}
}

// Preflight hashes the live file of every modified_diff entry and returns the
// entries whose file matches neither the diff base nor the diff result. A
// missing file is stale with a zero Actual hash.
func Preflight(ctx context.Context, fsys fs.FS, root string, m *patch.Manifest, pool *scheduler.Pool, hashes *digest.Cache) ([]*patch.StaleBaseError, error) {
	var diffs []patch.Entry
	for _, e := range m.Entries {
		if e.Kind == patch.KindModifiedDiff {
			diffs = append(diffs, e)
		}
	}
	results := make([]*patch.StaleBaseError, len(diffs))

	err := pool.Each(ctx, len(diffs), func(ctx context.Context, i int) error {
		e := diffs[i]
		sum, _, err := hashes.File(fsys, fs.Join(root, e.Path))
		if err != nil {
			if fsys.IsNotExist(err) {
				results[i] = &patch.StaleBaseError{Path: e.Path, Expected: e.BaseHash}
				return nil
			}
			return &patch.ApplyIOError{Path: e.Path, Op: "hash", Err: err}
		}
		if sum != e.BaseHash && sum != e.Hash {
			results[i] = &patch.StaleBaseError{Path: e.Path, Expected: e.BaseHash, Actual: sum}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var stale []*patch.StaleBaseError
	for _, r := range results {
		if r != nil {
			stale = append(stale, r)
		}
	}
	return stale, nil
}
