package patch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatchPattern_Basics(t *testing.T) {
	cases := []struct {
		pat  string
		path string
		want bool
	}{
		// exact
		{"foo.txt", "foo.txt", true},
		{"foo.txt", "bar.txt", false},

		// wildcard *
		{"*.txt", "foo.txt", true},
		{"*.txt", "bar.log", false},
		{"foo*", "foobar", true},
		{"foo*", "barfoo", false},

		// single-char ?
		{"file?.txt", "file1.txt", true},
		{"file?.txt", "file12.txt", false},

		// nested paths
		{"dir/*.txt", "dir/foo.txt", true},
		{"dir/*.txt", "dir/sub/foo.txt", false},

		// double-star recursive
		{"dir/**", "dir/foo.txt", true},
		{"dir/**", "dir/sub/deep/foo.txt", true},
		{"dir/**", "other/foo.txt", false},

		// double-star in middle
		{"dir/**/foo.txt", "dir/foo.txt", true},
		{"dir/**/foo.txt", "dir/a/b/c/foo.txt", true},
		{"dir/**/foo.txt", "dir/bar/baz.txt", false},

		// leading **
		{"**/*.txt", "a.txt", true},
		{"**/*.txt", "a/b/c.txt", true},
		{"**/*.txt", "a/b/c.log", false},
		{"**/foo.txt", "a/b/c/bar.txt", false},

		// odd ones
		{"", "", true},
		{"", "foo", false},
		{"**", "foo/bar", true},
		{"foo/**/bar", "bar/foo/bar", false},
	}

	for _, tt := range cases {
		got := matchPattern(tt.pat, tt.path)
		if got != tt.want {
			t.Errorf("pattern %q path %q => got %v, want %v", tt.pat, tt.path, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	in := ExclusionRules{
		Extensions: []string{"LOG", ".tmp", ".log", " ", ".tar.gz"},
		Dirs:       []string{"node_modules/", "build", "build", "/cache/tmp/"},
		Patterns:   []string{"logs/**/", "*.bak"},
		SkipHidden: true,
	}
	want := ExclusionRules{
		Extensions: []string{".log", ".tar.gz", ".tmp"},
		Dirs:       []string{"build", "cache/tmp", "node_modules"},
		Patterns:   []string{"*.bak", "logs/**"},
		SkipHidden: true,
	}
	if diff := cmp.Diff(want, in.Normalize()); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}

	// idempotent
	if diff := cmp.Diff(want, want.Normalize()); diff != "" {
		t.Errorf("Normalize not idempotent (-want +got):\n%s", diff)
	}
}

func TestExcluded(t *testing.T) {
	rules := ExclusionRules{
		Extensions: []string{".tmp", "tar.gz"},
		Dirs:       []string{"node_modules", "cache/tmp"},
		Patterns:   []string{"*.bak", "logs/**", "docs/*.draft"},
		SkipHidden: true,
	}.Normalize()

	cases := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"main.go", false, false},
		{"a/b/x.TMP", false, true},
		{"dist/app.tar.gz", false, true},
		{"dist/app.gz", false, false},

		{"node_modules", true, true},
		{"web/node_modules/x.js", false, true},
		{"node_modules.txt", false, false},

		{"cache/tmp", true, true},
		{"cache/tmp/x", false, true},
		{"cache/other/x", false, false},
		{"sub/cache/tmp/x", false, false},

		{"old.bak", false, true},
		{"deep/dir/old.bak", false, true},
		{"logs/app.log", false, true},
		{"logs", true, true},
		{"docs/intro.draft", false, true},
		{"docs/sub/intro.draft", false, false},

		{".git", true, true},
		{"src/.env", false, true},
		{"src/env", false, false},

		// extension rules do not prune directories
		{"things.tmp", true, false},
	}

	for _, tt := range cases {
		if got := rules.Excluded(tt.path, tt.isDir); got != tt.want {
			t.Errorf("Excluded(%q, dir=%v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}

func TestExcludedZeroRules(t *testing.T) {
	var r ExclusionRules
	for _, p := range []string{".hidden", "a/b.tmp", "node_modules/x"} {
		if r.Excluded(p, false) {
			t.Errorf("zero rules excluded %q", p)
		}
	}
}
