package fs

import (
	"bytes"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

// BillyFS adapts a go-billy filesystem to FS.
//
// Every call is serialized through one mutex: billy's in-memory backend is not
// safe for concurrent use, and the scheduler fans work out across goroutines.
// Open reads the whole file while holding the lock.
type BillyFS struct {
	mu sync.Mutex
	fs billy.Filesystem
}

// NewBillyFS wraps an existing billy filesystem.
func NewBillyFS(fsys billy.Filesystem) *BillyFS {
	return &BillyFS{fs: fsys}
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *BillyFS {
	return NewBillyFS(memfs.New())
}

// Raw exposes the wrapped billy filesystem.
func (b *BillyFS) Raw() billy.Filesystem { return b.fs }

func (b *BillyFS) Open(path string) (io.ReadCloser, error) {
	data, err := b.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *BillyFS) ReadFile(path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fi, err := b.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, &os.PathError{Op: "read", Path: path, Err: errors.New("is a directory")}
	}
	return util.ReadFile(b.fs, path)
}

func (b *BillyFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return util.WriteFile(b.fs, path, data, perm)
}

func (b *BillyFS) MkdirAll(path string, perm os.FileMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fs.MkdirAll(path, perm)
}

func (b *BillyFS) Remove(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fs.Remove(path)
}

func (b *BillyFS) Rename(oldPath, newPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fs.Rename(oldPath, newPath)
}

// Chmod is a no-op when the backend cannot change modes.
func (b *BillyFS) Chmod(path string, mode os.FileMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.fs.(billy.Change)
	if !ok {
		return nil
	}
	return ch.Chmod(path, mode)
}

func (b *BillyFS) Stat(path string) (os.FileInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fs.Stat(path)
}

func (b *BillyFS) ReadDir(path string) ([]os.DirEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	infos, err := b.fs.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]os.DirEntry, 0, len(infos))
	for _, fi := range infos {
		out = append(out, iofs.FileInfoToDirEntry(fi))
	}
	return out, nil
}

// CreateTempFile buffers writes and stores the file on Close.
func (b *BillyFS) CreateTempFile(dir, pattern string) (io.WriteCloser, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := b.fs.TempFile(dir, strings.ReplaceAll(pattern, "*", ""))
	if err != nil {
		return nil, "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return nil, "", err
	}
	wc := &memWriteCloser{
		buf: &bytes.Buffer{},
		onClose: func(data []byte) error {
			return b.WriteFile(name, data, 0o600)
		},
	}
	return wc, name, nil
}

type memWriteCloser struct {
	buf     *bytes.Buffer
	onClose func([]byte) error
	closed  bool
}

func (m *memWriteCloser) Write(p []byte) (int, error) {
	if m.closed {
		return 0, os.ErrClosed
	}
	return m.buf.Write(p)
}

func (m *memWriteCloser) Close() error {
	if m.closed {
		return os.ErrClosed
	}
	m.closed = true
	return m.onClose(m.buf.Bytes())
}

func (b *BillyFS) IsNotExist(err error) bool {
	return errors.Is(err, iofs.ErrNotExist)
}

func (b *BillyFS) IsDir(path string) bool {
	fi, err := b.Stat(path)
	return err == nil && fi.IsDir()
}

func (b *BillyFS) Exists(path string) bool {
	_, err := b.Stat(path)
	return err == nil
}
