package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
	"golang.org/x/exp/mmap"

	"github.com/keshon/dirpatch/internal/patch"
)

// Artifact is an opened, validated patch artifact.
type Artifact struct {
	closer   io.Closer
	files    map[string]*zip.File
	manifest *patch.Manifest
	embedded bool
}

// Open memory-maps the artifact at path. Files carrying a stub are
// recognised by their trailer; anything else is read as a bare zip.
func Open(path string) (*Artifact, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact %q: %w", path, err)
	}
	a, err := OpenReader(ra, int64(ra.Len()))
	if err != nil {
		ra.Close()
		return nil, err
	}
	a.closer = ra
	return a, nil
}

// HasEmbedded reports whether the file at path carries an appended artifact.
func HasEmbedded(path string) bool {
	ra, err := mmap.Open(path)
	if err != nil {
		return false
	}
	defer ra.Close()
	return HasTrailer(ra, int64(ra.Len()))
}

// OpenReader reads an artifact from ra. The caller keeps ra open until the
// Artifact is no longer used.
func OpenReader(ra io.ReaderAt, size int64) (*Artifact, error) {
	n, embedded, err := readTrailer(ra, size)
	if err != nil {
		return nil, patch.Corrupt("bad trailer", err)
	}
	var section *io.SectionReader
	if embedded {
		section = io.NewSectionReader(ra, size-int64(trailerSize)-n, n)
	} else {
		section = io.NewSectionReader(ra, 0, size)
	}

	zr, err := zip.NewReader(section, section.Size())
	if err != nil {
		return nil, patch.Corrupt("not a zip archive", err)
	}
	zr.RegisterDecompressor(MethodZstd, zstd.ZipDecompressor())

	a := &Artifact{files: make(map[string]*zip.File, len(zr.File)), embedded: embedded}
	for _, f := range zr.File {
		if _, dup := a.files[f.Name]; dup {
			return nil, patch.Corrupt("duplicate member "+f.Name, nil)
		}
		a.files[f.Name] = f
	}

	m, err := a.readManifest()
	if err != nil {
		return nil, err
	}
	for _, e := range m.Entries {
		if e.Payload == nil {
			continue
		}
		f, ok := a.files[e.Payload.Name]
		if !ok {
			return nil, patch.Corrupt(fmt.Sprintf("missing payload %s for %s", e.Payload.Name, e.Path), nil)
		}
		if f.UncompressedSize64 != uint64(e.Payload.Size) {
			return nil, patch.Corrupt(fmt.Sprintf("payload %s size mismatch", e.Payload.Name), nil)
		}
	}
	a.manifest = m
	return a, nil
}

func (a *Artifact) readManifest() (*patch.Manifest, error) {
	f, ok := a.files[ManifestName]
	if !ok {
		return nil, patch.Corrupt("missing "+ManifestName, nil)
	}
	if f.UncompressedSize64 > maxManifestSize {
		return nil, patch.Corrupt("manifest too large", nil)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, patch.Corrupt("open manifest", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxManifestSize+1))
	if err != nil {
		return nil, patch.Corrupt("read manifest", err)
	}

	var m patch.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, patch.Corrupt("decode manifest", err)
	}
	if err := m.Validate(); err != nil {
		return nil, patch.Corrupt("invalid manifest", err)
	}
	return &m, nil
}

func (a *Artifact) Manifest() *patch.Manifest { return a.manifest }

// Embedded reports whether the artifact was found behind a stub.
func (a *Artifact) Embedded() bool { return a.embedded }

// OpenPayload streams the decompressed payload of e. The reader returns a
// CorruptArtifactError at EOF if size or checksum do not match the manifest.
func (a *Artifact) OpenPayload(e patch.Entry) (io.ReadCloser, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("entry %s has no payload", e.Path)
	}
	f, ok := a.files[e.Payload.Name]
	if !ok {
		return nil, patch.Corrupt("missing payload "+e.Payload.Name, nil)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, patch.Corrupt("open payload "+e.Payload.Name, err)
	}
	return &verifyingReader{rc: rc, h: xxh3.New(), loc: *e.Payload}, nil
}

// ReadPayload returns the whole verified payload of e.
func (a *Artifact) ReadPayload(e patch.Entry) ([]byte, error) {
	rc, err := a.OpenPayload(e)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (a *Artifact) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

type verifyingReader struct {
	rc  io.ReadCloser
	h   *xxh3.Hasher
	loc patch.Locator
	n   int64
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.rc.Read(p)
	v.n += int64(n)
	v.h.Write(p[:n])
	if v.n > v.loc.Size {
		return n, patch.Corrupt(fmt.Sprintf("payload %s longer than %d bytes", v.loc.Name, v.loc.Size), nil)
	}
	switch {
	case errors.Is(err, io.EOF):
		if v.n != v.loc.Size {
			return n, patch.Corrupt(fmt.Sprintf("payload %s truncated", v.loc.Name), io.ErrUnexpectedEOF)
		}
		if checksum(v.h) != v.loc.Checksum {
			return n, patch.Corrupt(fmt.Sprintf("payload %s checksum mismatch", v.loc.Name), nil)
		}
		return n, io.EOF
	case err != nil:
		return n, patch.Corrupt("read payload "+v.loc.Name, err)
	}
	return n, nil
}

func (v *verifyingReader) Close() error { return v.rc.Close() }
