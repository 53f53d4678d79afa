// Package fixture builds throwaway directory trees for watch tests.
package fixture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Leantar/fswatchbench/models"
)

// Copy recreates the tree below src at dst. Only directories and regular files
// are copied.
func Copy(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", src, err)
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dst, err)
	}

	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		switch {
		case entry.IsDir():
			if err := Copy(from, to); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := copyFile(from, to); err != nil {
				return err
			}
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return out.Close()
}

// Verify compares the regular files of src and dst by relative path and blake3
// content hash.
func Verify(src, dst string) error {
	want, err := hashTree(src)
	if err != nil {
		return err
	}

	got, err := hashTree(dst)
	if err != nil {
		return err
	}

	if len(want) != len(got) {
		return fmt.Errorf("file count mismatch: %s has %d, %s has %d", src, len(want), dst, len(got))
	}

	for rel, hash := range want {
		if got[rel] != hash {
			return fmt.Errorf("content mismatch for %s", rel)
		}
	}

	return nil
}

func hashTree(root string) (map[string]string, error) {
	hashes := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		hashes[rel], err = models.HashFile(path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hash tree %s: %w", root, err)
	}

	return hashes, nil
}

// Remove deletes dir and everything below it. A missing dir is not an error.
func Remove(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}

	return nil
}
