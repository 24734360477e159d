// Package apply replays a patch artifact against a live directory tree.
package apply

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"sync/atomic"

	"github.com/keshon/dirpatch/internal/config"
	"github.com/keshon/dirpatch/internal/digest"
	"github.com/keshon/dirpatch/internal/fs"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/scheduler"
	"github.com/keshon/dirpatch/internal/verify"
)

// Source is an opened artifact.
type Source interface {
	Manifest() *patch.Manifest
	OpenPayload(e patch.Entry) (io.ReadCloser, error)
}

// Progress receives one tick per finished entry.
type Progress interface {
	Increment()
}

// Policy controls how an apply run reacts to failures.
type Policy struct {
	// AllowPartial applies what it can when some diff bases are stale. When
	// false, any stale base aborts the run before the first write.
	AllowPartial bool
	// MaxFailures cancels the run once more entries than this have failed.
	// Zero means no limit.
	MaxFailures int
}

// Engine applies manifests to the tree at Root.
type Engine struct {
	FS       fs.FS
	Root     string
	Pool     *scheduler.Pool
	Policy   Policy
	Logger   *slog.Logger
	Progress Progress
	Hashes   *digest.Cache
}

// Run verifies the live tree and applies every entry of src.
//
// Verification failures and, unless AllowPartial is set, stale diff bases are
// returned before anything is written. Removals run before writes so a path
// can change between file and directory. Per-entry failures are recorded in
// the report; the returned error is only set for run-level problems.
func (e *Engine) Run(ctx context.Context, src Source) (*patch.Report, error) {
	m := src.Manifest()
	log := config.OrDiscard(e.Logger)

	if err := verify.CheckFiles(ctx, e.FS, e.Root, m, e.Pool, e.Hashes); err != nil {
		return nil, err
	}
	if !e.Policy.AllowPartial {
		stale, err := verify.Preflight(ctx, e.FS, e.Root, m, e.Pool, e.Hashes)
		if err != nil {
			return nil, err
		}
		if len(stale) > 0 {
			errs := make([]error, len(stale))
			for i, s := range stale {
				errs[i] = s
			}
			return nil, errors.Join(errs...)
		}
	}

	report := &patch.Report{Outcomes: make([]patch.Outcome, len(m.Entries))}
	var removals, writes []int
	for i, entry := range m.Entries {
		report.Outcomes[i] = patch.Outcome{
			Path:   entry.Path,
			Kind:   entry.Kind,
			Status: patch.StatusSkipped,
			Reason: patch.ReasonAborted,
		}
		if entry.Kind == patch.KindRemoved {
			removals = append(removals, i)
		} else {
			writes = append(writes, i)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var failed atomic.Int64
	var tripped atomic.Bool
	wave := func(idx []int) {
		_ = e.Pool.Each(runCtx, len(idx), func(ctx context.Context, k int) error {
			i := idx[k]
			out := e.applyEntry(ctx, src, m.Entries[i])
			report.Outcomes[i] = out
			if e.Progress != nil {
				e.Progress.Increment()
			}

			switch out.Status {
			case patch.StatusFailed:
				log.Warn("entry failed", "path", out.Path, "kind", out.Kind, "err", out.Err)
				n := failed.Add(1)
				if e.Policy.MaxFailures > 0 && n > int64(e.Policy.MaxFailures) && !tripped.Swap(true) {
					log.Error("failure threshold exceeded, cancelling", "failures", n, "max", e.Policy.MaxFailures)
					cancel()
				}
			default:
				log.Debug("entry done", "path", out.Path, "kind", out.Kind, "status", out.Status, "reason", out.Reason)
			}
			return nil
		})
	}

	wave(removals)
	e.pruneDirs(m, report, log)
	if runCtx.Err() == nil {
		wave(writes)
	}

	if tripped.Load() {
		return report, fmt.Errorf("%d of %d entries failed: %w", report.Failed(), len(m.Entries), patch.ErrFailureThreshold)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (e *Engine) applyEntry(ctx context.Context, src Source, entry patch.Entry) patch.Outcome {
	out := patch.Outcome{Path: entry.Path, Kind: entry.Kind}
	if ctx.Err() != nil {
		out.Status, out.Reason = patch.StatusSkipped, patch.ReasonAborted
		return out
	}

	var (
		reason string
		err    error
	)
	switch entry.Kind {
	case patch.KindRemoved:
		reason, err = e.remove(entry)
	case patch.KindAdded, patch.KindModifiedFull:
		reason, err = e.writeFull(ctx, src, entry)
	case patch.KindModifiedDiff:
		reason, err = e.writeDiff(ctx, src, entry)
	default:
		err = fmt.Errorf("unknown entry kind %q", entry.Kind)
	}

	switch {
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		out.Status, out.Reason = patch.StatusSkipped, patch.ReasonAborted
	case err != nil:
		out.Status, out.Err = patch.StatusFailed, err
		out.Reason = err.Error()
		if errors.Is(err, patch.ErrStaleBase) {
			out.Reason = patch.ReasonStaleBase
		}
	case reason != "":
		out.Status, out.Reason = patch.StatusSkipped, reason
	default:
		out.Status = patch.StatusApplied
	}
	return out
}

// liveHash hashes the file at abs. ok is false when nothing is there.
func (e *Engine) liveHash(rel, abs string) (sum digest.Digest, ok bool, err error) {
	fi, err := e.FS.Stat(abs)
	if err != nil {
		if e.FS.IsNotExist(err) {
			return digest.Digest{}, false, nil
		}
		return digest.Digest{}, false, &patch.ApplyIOError{Path: rel, Op: "stat", Err: err}
	}
	if fi.IsDir() {
		return digest.Digest{}, true, nil
	}
	sum, _, err = e.Hashes.File(e.FS, abs)
	if err != nil {
		return digest.Digest{}, false, &patch.ApplyIOError{Path: rel, Op: "hash", Err: err}
	}
	return sum, true, nil
}

func (e *Engine) remove(entry patch.Entry) (string, error) {
	abs := fs.Join(e.Root, entry.Path)
	fi, err := e.FS.Stat(abs)
	if err != nil {
		if e.FS.IsNotExist(err) {
			return patch.ReasonAlreadyAbsent, nil
		}
		return "", &patch.ApplyIOError{Path: entry.Path, Op: "stat", Err: err}
	}
	if fi.IsDir() {
		return "", &patch.ApplyIOError{Path: entry.Path, Op: "remove", Err: errors.New("is a directory")}
	}
	if err := e.FS.Remove(abs); err != nil && !e.FS.IsNotExist(err) {
		return "", &patch.ApplyIOError{Path: entry.Path, Op: "remove", Err: err}
	}
	e.Hashes.Forget(abs)
	return "", nil
}

// pruneDirs removes directories left empty by removals, deepest first, up to
// but not including the root. Failures are logged and otherwise ignored.
func (e *Engine) pruneDirs(m *patch.Manifest, report *patch.Report, log *slog.Logger) {
	seen := map[string]bool{}
	var dirs []string
	for i, entry := range m.Entries {
		if entry.Kind != patch.KindRemoved {
			continue
		}
		o := report.Outcomes[i]
		if o.Status == patch.StatusFailed || o.Reason == patch.ReasonAborted {
			continue
		}
		for d := path.Dir(entry.Path); d != "." && !seen[d]; d = path.Dir(d) {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	// deeper paths first; equal depth in reverse lexical order
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := depth(dirs[i]), depth(dirs[j])
		if di != dj {
			return di > dj
		}
		return dirs[i] > dirs[j]
	})

	for _, d := range dirs {
		abs := fs.Join(e.Root, d)
		entries, err := e.FS.ReadDir(abs)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := e.FS.Remove(abs); err != nil {
			log.Debug("prune failed", "dir", d, "err", err)
			continue
		}
		log.Debug("pruned empty directory", "dir", d)
	}
}

func depth(p string) int {
	n := 1
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			n++
		}
	}
	return n
}
