package fs

import (
	"io"
	"os"
	"path/filepath"
)

// FS abstracts filesystem operations.
//
// Paths are native paths. Callers that track slash-separated relative paths
// join them onto a root with Join.
type FS interface {
	Open(path string) (io.ReadCloser, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(path string) error
	Rename(oldPath, newPath string) error
	Chmod(path string, mode os.FileMode) error
	Stat(path string) (os.FileInfo, error)
	ReadDir(path string) ([]os.DirEntry, error)
	CreateTempFile(dir, pattern string) (io.WriteCloser, string, error)
	IsNotExist(err error) bool
	Exists(path string) bool
	IsDir(path string) bool
}

// Join resolves a slash-separated relative path against root.
func Join(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
