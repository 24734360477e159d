package apply

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/keshon/dirpatch/internal/config"
	"github.com/keshon/dirpatch/internal/digest"
	"github.com/keshon/dirpatch/internal/fs"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/textdiff"
)

const defaultMode os.FileMode = 0o644

func (e *Engine) writeFull(ctx context.Context, src Source, entry patch.Entry) (string, error) {
	abs := fs.Join(e.Root, entry.Path)
	live, exists, err := e.liveHash(entry.Path, abs)
	if err != nil {
		return "", err
	}
	if exists && live == entry.Hash {
		return patch.ReasonAlreadyApplied, nil
	}

	rc, err := src.OpenPayload(entry)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return "", e.writeAtomic(ctx, entry, abs, rc)
}

func (e *Engine) writeDiff(ctx context.Context, src Source, entry patch.Entry) (string, error) {
	abs := fs.Join(e.Root, entry.Path)
	live, exists, err := e.liveHash(entry.Path, abs)
	if err != nil {
		return "", err
	}
	switch {
	case exists && live == entry.Hash:
		return patch.ReasonAlreadyApplied, nil
	case !exists || live != entry.BaseHash:
		return "", &patch.StaleBaseError{Path: entry.Path, Expected: entry.BaseHash, Actual: live}
	}

	base, err := e.FS.ReadFile(abs)
	if err != nil {
		return "", &patch.ApplyIOError{Path: entry.Path, Op: "read", Err: err}
	}
	if digest.Sum(base) != entry.BaseHash {
		// changed between hashing and reading
		return "", &patch.StaleBaseError{Path: entry.Path, Expected: entry.BaseHash, Actual: digest.Sum(base)}
	}

	rc, err := src.OpenPayload(entry)
	if err != nil {
		return "", err
	}
	payload, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return "", err
	}
	ops, err := textdiff.Decode(payload)
	if err != nil {
		return "", patch.Corrupt("diff for "+entry.Path, err)
	}
	out, err := textdiff.Apply(base, ops)
	if err != nil {
		return "", patch.Corrupt("diff for "+entry.Path, err)
	}
	return "", e.writeAtomic(ctx, entry, abs, bytes.NewReader(out))
}

// writeAtomic streams r into a temp file next to abs, checks the result
// against the entry's hash and size, then renames it over abs. The temp file
// is removed on every failure path.
func (e *Engine) writeAtomic(ctx context.Context, entry patch.Entry, abs string, r io.Reader) (err error) {
	dir := filepath.Dir(abs)
	if err := e.FS.MkdirAll(dir, 0o755); err != nil {
		return &patch.ApplyIOError{Path: entry.Path, Op: "mkdir", Err: err}
	}

	tmp, tmpPath, err := e.FS.CreateTempFile(dir, config.TempPattern)
	if err != nil {
		return &patch.ApplyIOError{Path: entry.Path, Op: "create temp", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = e.FS.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), ctxReader{ctx: ctx, r: r})
	if err != nil {
		tmp.Close()
		if errors.Is(err, patch.ErrCorruptArtifact) || ctx.Err() != nil {
			return err
		}
		return &patch.ApplyIOError{Path: entry.Path, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &patch.ApplyIOError{Path: entry.Path, Op: "write", Err: err}
	}

	var got digest.Digest
	copy(got[:], h.Sum(nil))
	if got != entry.Hash || n != entry.Size {
		return patch.Corrupt(fmt.Sprintf("content of %s does not match its manifest hash", entry.Path), nil)
	}

	mode := entry.Mode.Perm()
	if mode == 0 {
		mode = defaultMode
	}
	if err := e.FS.Chmod(tmpPath, mode); err != nil {
		return &patch.ApplyIOError{Path: entry.Path, Op: "chmod", Err: err}
	}
	if err := e.FS.Rename(tmpPath, abs); err != nil {
		return &patch.ApplyIOError{Path: entry.Path, Op: "rename", Err: err}
	}
	committed = true
	e.Hashes.Forget(abs)
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
