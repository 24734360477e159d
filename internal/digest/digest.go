// Package digest fingerprints file content with SHA-256.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/keshon/dirpatch/internal/fs"
)

// Size is the length of a Digest in bytes.
const Size = sha256.Size

// Digest is a SHA-256 content hash. The zero value means "unknown".
type Digest [Size]byte

// Sum hashes data.
func Sum(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// Reader hashes everything r yields and returns the number of bytes read.
func Reader(r io.Reader) (Digest, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, n, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, n, nil
}

// File streams the file at path through the hasher.
func File(fsys fs.FS, path string) (Digest, int64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return Digest{}, 0, err
	}
	defer f.Close()
	return Reader(f)
}

// Parse decodes a 64-character hex string.
func Parse(s string) (Digest, error) {
	var d Digest
	if len(s) != hex.EncodedLen(Size) {
		return d, fmt.Errorf("invalid digest length %d", len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return d, nil
}

func (d Digest) IsZero() bool { return d == Digest{} }

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short returns the first 12 hex characters, for log lines.
func (d Digest) Short() string { return d.String()[:12] }

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	p, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = p
	return nil
}
