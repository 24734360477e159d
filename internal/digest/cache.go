package digest

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/keshon/dirpatch/internal/fs"
)

type cacheKey struct {
	path    string
	size    int64
	modTime time.Time
}

type cacheEntry struct {
	key cacheKey
	sum Digest
}

// Cache memoizes live-file hashes keyed by path, size and modification time.
// A nil *Cache hashes without memoizing. Safe for concurrent use.
type Cache struct {
	lru *lru.Cache[string, cacheEntry]
}

// NewCache returns a cache holding up to size entries.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		// only returned for non-positive sizes
		panic(err)
	}
	return &Cache{lru: c}
}

// File returns the digest of path, reusing a previous result while the file's
// size and modification time are unchanged.
func (c *Cache) File(fsys fs.FS, path string) (Digest, int64, error) {
	if c == nil {
		return File(fsys, path)
	}
	fi, err := fsys.Stat(path)
	if err != nil {
		return Digest{}, 0, err
	}
	key := cacheKey{path: path, size: fi.Size(), modTime: fi.ModTime()}
	if e, ok := c.lru.Get(path); ok && e.key == key {
		return e.sum, key.size, nil
	}
	sum, n, err := File(fsys, path)
	if err != nil {
		return Digest{}, n, err
	}
	if n == key.size {
		c.lru.Add(path, cacheEntry{key: key, sum: sum})
	}
	return sum, n, nil
}

// Forget drops any memoized hash for path.
func (c *Cache) Forget(path string) {
	if c == nil {
		return
	}
	c.lru.Remove(path)
}

// Len reports the number of memoized entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
