package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/keshon/dirpatch/internal/command"
	"github.com/keshon/dirpatch/internal/config"
	"github.com/keshon/dirpatch/internal/patch"
)

func init() {
	color.NoColor = true
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	env := command.Env{
		Config: config.Config{IOThreads: 2},
		Stdin:  strings.NewReader(""),
		Stdout: &out,
		Stderr: &out,
	}
	err := command.Execute(context.Background(), env, args)
	return out.String(), err
}

func longText(edit string) string {
	var b strings.Builder
	for i := range 200 {
		if i == 100 && edit != "" {
			b.WriteString(edit + "\n")
			continue
		}
		fmt.Fprintf(&b, "line %d of a reasonably long text file\n", i)
	}
	return b.String()
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(body), 0o644))
	}
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

type fixture struct {
	src, dst, artifact string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		src:      filepath.Join(dir, "src"),
		dst:      filepath.Join(dir, "dst"),
		artifact: filepath.Join(dir, "update.dpz"),
	}
	base := map[string]string{
		"app.txt":       longText(""),
		"old.bin":       "\x00\x01\x02",
		"conf/keep.ini": "k=1\n",
	}
	writeTree(t, f.src, base)
	writeTree(t, f.dst, map[string]string{
		"app.txt":       longText("changed"),
		"conf/keep.ini": "k=1\n",
		"new/added.txt": "fresh\n",
	})

	out, err := run(t, "create", "-s", f.src, "-t", f.dst, "-o", f.artifact, "--check", "conf/keep.ini")
	require.NoError(t, err, out)
	require.Contains(t, out, "Created")
	return f
}

func copySource(t *testing.T, f fixture) string {
	t.Helper()
	work := filepath.Join(t.TempDir(), "work")
	writeTree(t, work, map[string]string{
		"app.txt":       readFile(t, filepath.Join(f.src, "app.txt")),
		"old.bin":       readFile(t, filepath.Join(f.src, "old.bin")),
		"conf/keep.ini": readFile(t, filepath.Join(f.src, "conf", "keep.ini")),
	})
	return work
}

func TestCreateInspectVerifyApply(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, "inspect", "-p", f.artifact, "--json")
	require.NoError(t, err)
	var m patch.Manifest
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	require.Len(t, m.Entries, 3)
	require.Len(t, m.CheckFiles, 1)
	e, ok := m.Lookup("app.txt")
	require.True(t, ok)
	require.Equal(t, patch.KindModifiedDiff, e.Kind)

	out, err = run(t, "inspect", "-p", f.artifact)
	require.NoError(t, err)
	require.Contains(t, out, "new/added.txt")
	require.Contains(t, out, "conf/keep.ini")

	work := copySource(t, f)
	out, err = run(t, "verify", "-p", f.artifact, "-d", work)
	require.NoError(t, err)
	require.Contains(t, out, "OK")

	out, err = run(t, "apply", "-p", f.artifact, "-d", work, "-y")
	require.NoError(t, err, out)
	require.Contains(t, out, "Applied: 3")

	require.Equal(t, readFile(t, filepath.Join(f.dst, "app.txt")), readFile(t, filepath.Join(work, "app.txt")))
	require.Equal(t, "fresh\n", readFile(t, filepath.Join(work, "new", "added.txt")))
	require.NoFileExists(t, filepath.Join(work, "old.bin"))

	out, err = run(t, "apply", "-p", f.artifact, "-d", work)
	require.NoError(t, err, out)
	require.Contains(t, out, "Applied: 0")
}

func TestStaleTreeIsRefused(t *testing.T) {
	f := newFixture(t)
	work := copySource(t, f)
	writeTree(t, work, map[string]string{"app.txt": longText("edited locally")})

	out, err := run(t, "verify", "-p", f.artifact, "-d", work)
	require.ErrorIs(t, err, patch.ErrStaleBase)
	require.Contains(t, out, "app.txt")

	_, err = run(t, "apply", "-p", f.artifact, "-d", work, "-y")
	require.ErrorIs(t, err, patch.ErrStaleBase)
	require.NoFileExists(t, filepath.Join(work, "new", "added.txt"))
	require.FileExists(t, filepath.Join(work, "old.bin"))

	out, err = run(t, "apply", "-p", f.artifact, "-d", work, "-y", "--partial")
	require.Error(t, err)
	require.Contains(t, out, "Failed: 1")
	require.FileExists(t, filepath.Join(work, "new", "added.txt"))
	require.Equal(t, longText("edited locally"), readFile(t, filepath.Join(work, "app.txt")))
}

func TestCheckFileMismatch(t *testing.T) {
	f := newFixture(t)
	work := copySource(t, f)
	writeTree(t, work, map[string]string{"conf/keep.ini": "k=2\n"})

	_, err := run(t, "apply", "-p", f.artifact, "-d", work, "-y")
	require.ErrorIs(t, err, patch.ErrVerificationFailed)
	require.FileExists(t, filepath.Join(work, "old.bin"))
}

func TestCreateErrors(t *testing.T) {
	f := newFixture(t)

	_, err := run(t, "create", "-s", f.src)
	require.Error(t, err)

	_, err = run(t, "create", "-s", f.src, "-t", f.dst, "-o", f.artifact)
	require.ErrorIs(t, err, patch.ErrOutputExists)

	out, err := run(t, "create", "-s", f.src, "-t", f.src, "-o", filepath.Join(t.TempDir(), "none.dpz"))
	require.NoError(t, err)
	require.Contains(t, out, "identical")
}

func TestHelp(t *testing.T) {
	out, err := run(t, "help")
	require.NoError(t, err)
	for _, name := range []string{"apply", "create", "help", "inspect", "verify"} {
		require.Contains(t, out, name)
	}

	out, err = run(t, "help", "apply")
	require.NoError(t, err)
	require.Contains(t, out, "Usage:")
	require.Contains(t, out, "--partial")

	_, err = run(t, "help", "nope")
	require.ErrorIs(t, err, command.ErrUnknownCommand)
}
