package watcher

import (
	"os"
	"path/filepath"

	"github.com/Leantar/fswatchbench/modules/notifier"
)

// FilterSet is an immutable set of absolute file paths. It has no mutators so
// it can be read from backend goroutines without locking.
type FilterSet struct {
	paths map[string]struct{}
	files int
}

// NewFilterSet keeps the candidates that exist and are regular files right now.
// Each file is stored both as given (made absolute) and with symlinks
// resolved, since some backends report paths below the resolved root.
func NewFilterSet(candidates []string) FilterSet {
	paths := make(map[string]struct{}, len(candidates))
	files := 0

	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		p, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			resolved = p
		}

		if _, seen := paths[resolved]; !seen {
			files++
		}
		paths[p] = struct{}{}
		paths[resolved] = struct{}{}
	}

	return FilterSet{paths: paths, files: files}
}

// Len is the number of distinct files in the set.
func (f FilterSet) Len() int {
	return f.files
}

func (f FilterSet) Contains(path string) bool {
	_, ok := f.paths[path]
	return ok
}

// Match reports whether any of the event's paths is in the set.
func (f FilterSet) Match(e notifier.Event) bool {
	for _, p := range e.Paths {
		if f.Contains(p) {
			return true
		}
	}

	return false
}

// Filter forwards errors unconditionally and events only when they touch a
// path in set. Dropped events leave no trace.
func Filter(set FilterSet, next notifier.Handler) notifier.Handler {
	return func(r notifier.Result) {
		if r.IsErr() || set.Match(r.Event) {
			next(r)
		}
	}
}
