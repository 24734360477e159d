package fs_test

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/keshon/dirpatch/internal/fs"
)

func TestHookOverrides(t *testing.T) {
	// open hook
	orig := fs.GetOpen()
	defer fs.SetOpen(orig)

	called := false
	fs.SetOpen(func(path string) (*os.File, error) {
		called = true
		return nil, errors.New("open-error")
	})

	_, err := fs.NewOSFS().Open("x")
	if !called {
		t.Fatal("Open hook not called")
	}
	if err == nil || err.Error() != "open-error" {
		t.Fatalf("unexpected error: %v", err)
	}

	// readFile hook
	origRF := fs.GetReadFile()
	defer fs.SetReadFile(origRF)

	called = false
	fs.SetReadFile(func(path string) ([]byte, error) {
		called = true
		return []byte("ok"), nil
	})
	out, err := fs.NewOSFS().ReadFile("y")
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "ok" {
		t.Fatalf("expected ok, got %s", out)
	}
	if !called {
		t.Fatal("ReadFile hook not called")
	}

	// chmod hook
	origCh := fs.GetChmod()
	defer fs.SetChmod(origCh)

	called = false
	fs.SetChmod(func(path string, mode os.FileMode) error {
		called = true
		if path != "bin/run" || mode != 0o755 {
			t.Fatalf("unexpected chmod args %q %v", path, mode)
		}
		return nil
	})
	if err := fs.NewOSFS().Chmod("bin/run", 0o755); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("Chmod hook not called")
	}

	// createTemp hook
	origTmp := fs.GetCreateTemp()
	defer fs.SetCreateTemp(origTmp)

	called = false
	fs.SetCreateTemp(func(dir, pattern string) (io.WriteCloser, string, error) {
		called = true
		return nil, "tmpfile", errors.New("tmp-err")
	})
	_, _, err = fs.NewOSFS().CreateTempFile("d", "p")
	if err == nil || err.Error() != "tmp-err" {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("CreateTemp hook not called")
	}

	// isNotExist hook
	origNE := fs.GetIsNotExist()
	defer fs.SetIsNotExist(origNE)

	called = false
	fs.SetIsNotExist(func(err error) bool {
		called = true
		return true
	})
	if !fs.NewOSFS().IsNotExist(errors.New("x")) {
		t.Fatal("expected true from IsNotExist hook")
	}
	if !called {
		t.Fatal("IsNotExist hook not called")
	}
}
