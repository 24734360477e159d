package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"github.com/keshon/dirpatch/internal/config"
	"github.com/keshon/dirpatch/internal/digest"
	"github.com/keshon/dirpatch/internal/fs"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/scheduler"
)

// Write encodes changes into w. m supplies the header fields; its Entries are
// replaced by the entries of changes with payload locators filled in.
//
// Full-content payloads are read twice: once on pool to compute checksums for
// the manifest, then sequentially while the archive is written. Both reads
// must see the content that was scanned, otherwise an EncodeError is returned.
func Write(ctx context.Context, w io.Writer, m *patch.Manifest, changes []patch.Change, fsys fs.FS, pool *scheduler.Pool) error {
	entries := make([]patch.Entry, len(changes))
	next := 0
	for i, c := range changes {
		entries[i] = c.Entry
		entries[i].Payload = nil
		if c.Entry.Kind.Writes() {
			entries[i].Payload = &patch.Locator{Name: PayloadName(next)}
			next++
		}
	}

	err := pool.Each(ctx, len(changes), func(ctx context.Context, i int) error {
		e := &entries[i]
		if e.Payload == nil {
			return nil
		}
		c := changes[i]
		if c.Entry.Kind == patch.KindModifiedDiff {
			e.Payload.Size = int64(len(c.Diff))
			e.Payload.Checksum = Checksum(c.Diff)
			return nil
		}
		sum, n, err := hashSource(ctx, fsys, c)
		if err != nil {
			return err
		}
		e.Payload.Size = n
		e.Payload.Checksum = sum
		return nil
	})
	if err != nil {
		return err
	}

	m.FormatVersion = patch.FormatVersion
	m.Entries = entries
	if m.CheckFiles == nil {
		m.CheckFiles = []patch.CheckFile{}
	}
	if err := m.Validate(); err != nil {
		return &patch.EncodeError{Path: ManifestName, Err: err}
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(MethodZstd, zstd.ZipCompressor(zstd.WithEncoderConcurrency(1)))

	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &patch.EncodeError{Path: ManifestName, Err: err}
	}
	mw, err := zw.CreateHeader(header(ManifestName, zip.Deflate))
	if err != nil {
		return &patch.EncodeError{Path: ManifestName, Err: err}
	}
	if _, err := mw.Write(body); err != nil {
		return &patch.EncodeError{Path: ManifestName, Err: err}
	}

	for i, e := range entries {
		if e.Payload == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		method := MethodZstd
		if e.Payload.Size == 0 {
			method = zip.Store
		}
		pw, err := zw.CreateHeader(header(e.Payload.Name, method))
		if err != nil {
			return &patch.EncodeError{Path: e.Path, Err: err}
		}
		if err := writePayload(ctx, pw, fsys, changes[i], e); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return &patch.EncodeError{Path: ManifestName, Err: err}
	}
	return nil
}

func header(name string, method uint16) *zip.FileHeader {
	fh := &zip.FileHeader{Name: name, Method: method}
	fh.SetMode(0o644)
	return fh
}

// hashSource streams a full-content source through xxh3 and SHA-256 and
// checks it still matches the scanned record.
func hashSource(ctx context.Context, fsys fs.FS, c patch.Change) (string, int64, error) {
	f, err := fsys.Open(c.Source)
	if err != nil {
		return "", 0, &patch.EncodeError{Path: c.Entry.Path, Err: err}
	}
	defer f.Close()

	xh := xxh3.New()
	sh := sha256.New()
	n, err := io.Copy(io.MultiWriter(xh, sh), ctxReader{ctx: ctx, r: f})
	if err != nil {
		return "", n, &patch.EncodeError{Path: c.Entry.Path, Err: err}
	}
	var got digest.Digest
	copy(got[:], sh.Sum(nil))
	if got != c.Entry.Hash || n != c.Entry.Size {
		return "", n, &patch.EncodeError{Path: c.Entry.Path, Err: fmt.Errorf("file changed since it was scanned")}
	}
	return checksum(xh), n, nil
}

func writePayload(ctx context.Context, w io.Writer, fsys fs.FS, c patch.Change, e patch.Entry) error {
	var src io.Reader
	if c.Entry.Kind == patch.KindModifiedDiff {
		src = bytes.NewReader(c.Diff)
	} else {
		f, err := fsys.Open(c.Source)
		if err != nil {
			return &patch.EncodeError{Path: e.Path, Err: err}
		}
		defer f.Close()
		src = f
	}

	xh := xxh3.New()
	n, err := io.Copy(io.MultiWriter(w, xh), ctxReader{ctx: ctx, r: src})
	if err != nil {
		return &patch.EncodeError{Path: e.Path, Err: err}
	}
	if n != e.Payload.Size || checksum(xh) != e.Payload.Checksum {
		return &patch.EncodeError{Path: e.Path, Err: fmt.Errorf("file changed while writing the artifact")}
	}
	return nil
}

// FileOptions control CreateFile.
type FileOptions struct {
	Overwrite bool
	// Stub, when set, is a native path to an executable the artifact is
	// appended to.
	Stub string
}

// CreateFile writes the artifact to dest through a temp file in the same
// directory and renames it into place. Nothing is left at dest on failure.
func CreateFile(ctx context.Context, fsys fs.FS, dest string, m *patch.Manifest, changes []patch.Change, pool *scheduler.Pool, opts FileOptions) (err error) {
	if fsys.Exists(dest) && !opts.Overwrite {
		return fmt.Errorf("%s: %w", dest, patch.ErrOutputExists)
	}

	tmp, tmpPath, err := fsys.CreateTempFile(filepath.Dir(dest), config.TempPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = fsys.Remove(tmpPath)
		}
	}()

	if err := writeArtifact(ctx, tmp, fsys, m, changes, pool, opts.Stub); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := fsys.Chmod(tmpPath, modeFor(opts.Stub)); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := fsys.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("rename %s: %w", dest, err)
	}
	committed = true
	return nil
}

func writeArtifact(ctx context.Context, w io.Writer, fsys fs.FS, m *patch.Manifest, changes []patch.Change, pool *scheduler.Pool, stub string) error {
	if stub == "" {
		return Write(ctx, w, m, changes, fsys, pool)
	}
	sf, err := fsys.Open(stub)
	if err != nil {
		return fmt.Errorf("open stub: %w", err)
	}
	defer sf.Close()
	if _, err := io.Copy(w, sf); err != nil {
		return fmt.Errorf("copy stub: %w", err)
	}
	cw := &countingWriter{w: w}
	if err := Write(ctx, cw, m, changes, fsys, pool); err != nil {
		return err
	}
	return writeTrailer(w, cw.n)
}

func modeFor(stub string) os.FileMode {
	if stub != "" {
		return 0o755
	}
	return 0o644
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

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
