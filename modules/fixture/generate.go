package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Shape describes a generated tree. Every directory holds Files files and,
// above Depth, Dirs subdirectories.
type Shape struct {
	Depth int
	Dirs  int
	Files int
}

func DefaultShape() Shape {
	return Shape{Depth: 2, Dirs: 4, Files: 10}
}

// FileCount is the number of files Generate creates for s.
func (s Shape) FileCount() int {
	total, level := 0, 1
	for d := 0; d <= s.Depth; d++ {
		total += level * s.Files
		level *= s.Dirs
	}

	return total
}

// Generate creates a tree of shape s below root and returns how many files it
// wrote.
func Generate(root string, s Shape) (int, error) {
	if s.Depth < 0 || s.Dirs < 0 || s.Files < 0 {
		return 0, errors.New("shape values must not be negative")
	}

	return generate(root, s, 0)
}

func generate(dir string, s Shape, depth int) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	written := 0
	for i := 0; i < s.Files; i++ {
		path := filepath.Join(dir, fmt.Sprintf("file_%03d.txt", i))
		content := fmt.Sprintf("// generated file %d at depth %d\n", i, depth)

		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written++
	}

	if depth >= s.Depth {
		return written, nil
	}

	for i := 0; i < s.Dirs; i++ {
		n, err := generate(filepath.Join(dir, fmt.Sprintf("dir_%02d", i)), s, depth+1)
		written += n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}
