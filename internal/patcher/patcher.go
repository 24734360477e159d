// Package patcher wires scanning, classification, encoding and apply into
// the create, apply, verify and inspect pipelines used by the CLI.
package patcher

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/keshon/dirpatch/internal/apply"
	"github.com/keshon/dirpatch/internal/archive"
	"github.com/keshon/dirpatch/internal/classify"
	"github.com/keshon/dirpatch/internal/config"
	"github.com/keshon/dirpatch/internal/digest"
	"github.com/keshon/dirpatch/internal/fs"
	"github.com/keshon/dirpatch/internal/inventory"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/scheduler"
	"github.com/keshon/dirpatch/internal/verify"
)

// CreateOptions configure Create. Zero FS, Pool and Logger get defaults.
type CreateOptions struct {
	SourceDir  string
	TargetDir  string
	Output     string
	CheckFiles []string
	Exclusions patch.ExclusionRules
	DiffMode   bool
	DiffRatio  float64
	Overwrite  bool
	Stub       string

	FS     fs.FS
	Pool   *scheduler.Pool
	Logger *slog.Logger
}

// CreateResult summarises a written artifact.
type CreateResult struct {
	Output      string
	Manifest    *patch.Manifest
	Counts      map[patch.Kind]int
	SourceFiles int
	TargetFiles int
}

// Create builds an artifact turning SourceDir into TargetDir.
func Create(ctx context.Context, opts CreateOptions) (*CreateResult, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewOSFS()
	}
	pool := opts.Pool
	if pool == nil {
		pool = scheduler.New(config.DefaultIOThreads())
	}
	log := config.OrDiscard(opts.Logger)
	rules := opts.Exclusions.Normalize()

	log.Debug("scanning source", "dir", opts.SourceDir)
	src, err := inventory.Scan(ctx, fsys, opts.SourceDir, rules, pool)
	if err != nil {
		return nil, err
	}
	log.Debug("scanning target", "dir", opts.TargetDir)
	dst, err := inventory.Scan(ctx, fsys, opts.TargetDir, rules, pool)
	if err != nil {
		return nil, err
	}

	checks, err := checkFiles(fsys, src, opts.CheckFiles)
	if err != nil {
		return nil, err
	}

	changes, err := classify.Classify(ctx, fsys, src, dst, classify.Options{
		DiffMode:  opts.DiffMode,
		DiffRatio: opts.DiffRatio,
	}, pool)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, patch.ErrNoChanges
	}

	m := &patch.Manifest{CheckFiles: checks, Exclusions: rules, DiffMode: opts.DiffMode}
	err = archive.CreateFile(ctx, fsys, opts.Output, m, changes, pool, archive.FileOptions{
		Overwrite: opts.Overwrite,
		Stub:      opts.Stub,
	})
	if err != nil {
		return nil, err
	}

	res := &CreateResult{
		Output:      opts.Output,
		Manifest:    m,
		Counts:      m.Counts(),
		SourceFiles: len(src.Files),
		TargetFiles: len(dst.Files),
	}
	log.Info("artifact written",
		"output", opts.Output,
		"entries", len(m.Entries),
		"added", res.Counts[patch.KindAdded],
		"removed", res.Counts[patch.KindRemoved],
		"modified_full", res.Counts[patch.KindModifiedFull],
		"modified_diff", res.Counts[patch.KindModifiedDiff],
	)
	return res, nil
}

// checkFiles resolves the requested check paths against the source scan.
// Paths the scan left out, such as excluded or hidden files, are hashed
// directly from the source directory.
func checkFiles(fsys fs.FS, src *inventory.Inventory, paths []string) ([]patch.CheckFile, error) {
	seen := map[string]bool{}
	out := make([]patch.CheckFile, 0, len(paths))
	for _, p := range paths {
		rel := path.Clean(strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(p)), "./"))
		if !patch.ValidPath(rel) {
			return nil, fmt.Errorf("check file %q: path must be relative to the source directory", p)
		}
		if seen[rel] {
			continue
		}
		seen[rel] = true
		if rec, ok := src.Get(rel); ok {
			out = append(out, patch.CheckFile{Path: rel, Hash: rec.Hash})
			continue
		}
		sum, err := hashUnscanned(fsys, src.Abs(rel))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rel, err)
		}
		out = append(out, patch.CheckFile{Path: rel, Hash: sum})
	}
	return out, nil
}

func hashUnscanned(fsys fs.FS, abs string) (digest.Digest, error) {
	fi, err := fsys.Stat(abs)
	switch {
	case err != nil && fsys.IsNotExist(err):
		return digest.Digest{}, patch.ErrCheckFileMissing
	case err != nil:
		return digest.Digest{}, err
	case !fi.Mode().IsRegular():
		return digest.Digest{}, patch.ErrCheckFileMissing
	}
	sum, _, err := digest.File(fsys, abs)
	return sum, err
}

// ApplyOptions configure Apply and Verify. Root defaults to the artifact's
// directory.
type ApplyOptions struct {
	Artifact string
	Root     string
	Policy   apply.Policy

	FS       fs.FS
	Pool     *scheduler.Pool
	Logger   *slog.Logger
	Progress apply.Progress
}

func (o ApplyOptions) withDefaults() ApplyOptions {
	if o.FS == nil {
		o.FS = fs.NewOSFS()
	}
	if o.Pool == nil {
		o.Pool = scheduler.New(config.DefaultIOThreads())
	}
	if o.Root == "" {
		o.Root = filepath.Dir(o.Artifact)
	}
	o.Logger = config.OrDiscard(o.Logger)
	return o
}

// Apply opens the artifact and applies it to Root.
func Apply(ctx context.Context, opts ApplyOptions) (*patch.Report, error) {
	opts = opts.withDefaults()
	a, err := archive.Open(opts.Artifact)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	eng := &apply.Engine{
		FS:       opts.FS,
		Root:     opts.Root,
		Pool:     opts.Pool,
		Policy:   opts.Policy,
		Logger:   opts.Logger,
		Progress: opts.Progress,
		Hashes:   digest.NewCache(config.HashCacheSize),
	}
	opts.Logger.Debug("applying artifact", "artifact", opts.Artifact, "root", opts.Root,
		"entries", len(a.Manifest().Entries), "workers", opts.Pool.Size())
	report, err := eng.Run(ctx, a)
	if report != nil {
		opts.Logger.Info("apply finished", "applied", report.Applied(), "skipped", report.Skipped(), "failed", report.Failed())
	}
	return report, err
}

// Verify runs the pre-apply checks without touching the tree. Check-file
// failures are returned as the error; stale diff bases are listed.
func Verify(ctx context.Context, opts ApplyOptions) ([]*patch.StaleBaseError, error) {
	opts = opts.withDefaults()
	a, err := archive.Open(opts.Artifact)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	m := a.Manifest()
	hashes := digest.NewCache(config.HashCacheSize)
	if err := verify.CheckFiles(ctx, opts.FS, opts.Root, m, opts.Pool, hashes); err != nil {
		return nil, err
	}
	return verify.Preflight(ctx, opts.FS, opts.Root, m, opts.Pool, hashes)
}

// Inspect returns the manifest of the artifact at path.
func Inspect(path string) (*patch.Manifest, error) {
	a, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.Manifest(), nil
}
