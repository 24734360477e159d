package patch

import (
	"path"
	"sort"
	"strings"
)

// ExclusionRules select files that neither scan sees. Both trees of a create
// run are scanned with the same rules and the rules travel in the manifest.
type ExclusionRules struct {
	Extensions []string `json:"extensions"`
	Dirs       []string `json:"dirs"`
	Patterns   []string `json:"patterns"`
	SkipHidden bool     `json:"skip_hidden"`
}

// Normalize returns a copy with sorted, deduplicated lists. Extensions are
// lower-cased and dot-prefixed; dirs and patterns lose surrounding slashes.
func (r ExclusionRules) Normalize() ExclusionRules {
	out := ExclusionRules{SkipHidden: r.SkipHidden}
	out.Extensions = normalizeList(r.Extensions, func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || s == "." {
			return ""
		}
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		return s
	})
	out.Dirs = normalizeList(r.Dirs, func(s string) string {
		return strings.Trim(strings.ReplaceAll(strings.TrimSpace(s), "\\", "/"), "/")
	})
	out.Patterns = normalizeList(r.Patterns, func(s string) string {
		return strings.TrimSuffix(strings.ReplaceAll(strings.TrimSpace(s), "\\", "/"), "/")
	})
	return out
}

func normalizeList(in []string, fn func(string) string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = fn(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Excluded reports whether the slash-separated relative path rel is excluded.
// Extension rules only apply to files.
func (r ExclusionRules) Excluded(rel string, isDir bool) bool {
	if rel == "" || rel == "." {
		return false
	}
	segs := strings.Split(rel, "/")

	if r.SkipHidden {
		for _, s := range segs {
			if strings.HasPrefix(s, ".") {
				return true
			}
		}
	}

	if !isDir {
		lower := strings.ToLower(segs[len(segs)-1])
		for _, ext := range r.Extensions {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}
	}

	// a file's own name is not a directory name
	dirSegs := segs
	if !isDir {
		dirSegs = segs[:len(segs)-1]
	}
	for _, d := range r.Dirs {
		if strings.Contains(d, "/") {
			dirPath := strings.Join(dirSegs, "/")
			if dirPath == d || strings.HasPrefix(dirPath, d+"/") {
				return true
			}
			continue
		}
		for _, s := range dirSegs {
			if s == d {
				return true
			}
		}
	}

	for _, p := range r.Patterns {
		if matchRule(p, rel, segs) {
			return true
		}
	}
	return false
}

// matchRule applies a pattern the way gitignore does: without a slash it
// matches any single path segment, with one it is anchored at the root.
func matchRule(pattern, rel string, segs []string) bool {
	if !strings.Contains(pattern, "/") {
		for _, s := range segs {
			if ok, _ := path.Match(pattern, s); ok {
				return true
			}
		}
		return false
	}
	return matchPattern(strings.TrimPrefix(pattern, "/"), rel)
}

// matchPattern handles *, ?, and ** like Git
func matchPattern(pattern, p string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(p, "/"))
}

// matchSegments matches pattern segments recursively
func matchSegments(pats, parts []string) bool {
	for len(pats) > 0 {
		p := pats[0]
		pats = pats[1:]

		if p == "**" {
			if len(pats) == 0 {
				return true // trailing ** matches anything
			}
			for i := 0; i <= len(parts); i++ {
				if matchSegments(pats, parts[i:]) {
					return true
				}
			}
			return false
		}

		if len(parts) == 0 {
			return false
		}

		ok, _ := path.Match(p, parts[0])
		if !ok {
			return false
		}

		parts = parts[1:]
	}

	return len(parts) == 0
}
