package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Root is one workspace folder the library resolves relative paths
// against.
type Root struct {
	Name string
	Path string // absolute, cleaned
}

// resolvePath implements spec.md §4.6.1's path resolution: a relative
// path resolves against the roots (it must exist under exactly one of
// them, except that with a single root a path existing nowhere resolves
// against that root), an absolute path is accepted as-is with a
// warning if it escapes every root.
func resolvePath(roots []Root, path string) (resolved string, escaped bool, err error) {
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		for _, r := range roots {
			if within(r.Path, clean) {
				return clean, false, nil
			}
		}
		return clean, true, nil
	}

	var matches []string
	for _, r := range roots {
		candidate := filepath.Clean(filepath.Join(r.Path, path))
		if _, err := os.Stat(candidate); err == nil {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		if len(roots) == 1 {
			return filepath.Clean(filepath.Join(roots[0].Path, path)), false, nil
		}
		return "", false, fmt.Errorf("workspace: %q does not exist under any root", path)
	case 1:
		return matches[0], false, nil
	default:
		return "", false, fmt.Errorf("%w: %q matches %v", ErrAmbiguousRoot, path, matches)
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (len(rel) > 0 && rel[0] != '.' && !filepath.IsAbs(rel))
}
