package bench

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// SelectEvery keeps the files at indices 0, ratio, 2*ratio, ... which yields
// ceil(len(files)/ratio) entries. A ratio below 1 is treated as 1.
func SelectEvery(files []string, ratio int) []string {
	if ratio < 1 {
		ratio = 1
	}

	selected := make([]string, 0, (len(files)+ratio-1)/ratio)
	for i := 0; i < len(files); i += ratio {
		selected = append(selected, files[i])
	}

	return selected
}

// Exclude drops files whose path relative to root, absolute path or base name
// matches one of the glob patterns. Paths are matched slash separated. Blank
// patterns and lines starting with # are ignored.
func Exclude(root string, files []string, patterns []string) ([]string, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}

		g, err := glob.Compile(filepath.ToSlash(pattern), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}

	if len(globs) == 0 {
		return files, nil
	}

	kept := make([]string, 0, len(files))
	for _, f := range files {
		if !matchAny(globs, root, f) {
			kept = append(kept, f)
		}
	}

	return kept, nil
}

func matchAny(globs []glob.Glob, root, path string) bool {
	candidates := []string{filepath.ToSlash(path), filepath.Base(path)}
	if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		candidates = append(candidates, filepath.ToSlash(rel))
	}

	for _, g := range globs {
		for _, c := range candidates {
			if g.Match(c) {
				return true
			}
		}
	}

	return false
}
