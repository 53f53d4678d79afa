package watcher

import (
	"os"
	"path/filepath"
)

// CollectFiles returns every regular file below root, depth first in lexical
// order. Directories that cannot be read are skipped, so the result may be
// partial. Symlinks are neither returned nor followed.
func CollectFiles(root string) []string {
	var files []string
	collectFiles(root, &files)

	return files
}

func collectFiles(dir string, files *[]string) {
	// On error ReadDir still returns what it read before failing.
	entries, _ := os.ReadDir(dir)

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		switch {
		case entry.IsDir():
			collectFiles(path, files)
		case entry.Type().IsRegular():
			*files = append(*files, path)
		}
	}
}
