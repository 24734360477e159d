package digest_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keshon/dirpatch/internal/digest"
	"github.com/keshon/dirpatch/internal/fs"
)

func TestCacheReusesAndInvalidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	c := digest.NewCache(8)
	osfs := fs.NewOSFS()

	d1, _, err := c.File(osfs, path)
	require.NoError(t, err)
	require.Equal(t, digest.Sum([]byte("one")), d1)
	require.Equal(t, 1, c.Len())

	// different size and a later mtime both change the key
	require.NoError(t, os.WriteFile(path, []byte("three"), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	d2, _, err := c.File(osfs, path)
	require.NoError(t, err)
	require.Equal(t, digest.Sum([]byte("three")), d2)

	c.Forget(path)
	require.Equal(t, 0, c.Len())
}

func TestNilCacheHashesDirectly(t *testing.T) {
	m := fs.NewMemFS()
	require.NoError(t, m.WriteFile("/x", []byte("data"), 0o644))

	var c *digest.Cache
	d, n, err := c.File(m, "/x")
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.Equal(t, digest.Sum([]byte("data")), d)
	c.Forget("/x")
	require.Zero(t, c.Len())
}

func TestCacheMissingFile(t *testing.T) {
	m := fs.NewMemFS()
	c := digest.NewCache(4)
	_, _, err := c.File(m, "/nope")
	require.Error(t, err)
	require.True(t, m.IsNotExist(err))
}
