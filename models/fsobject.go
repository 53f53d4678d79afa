package models

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/zeebo/blake3"
)

// FsObject is a point-in-time snapshot of a filesystem entry.
type FsObject struct {
	Path     string
	Hash     string
	Size     int64
	Created  int64
	Modified int64
	Uid      uint32
	Gid      uint32
	Mode     uint32
	Regular  bool
	Missing  bool
}

// Snapshot is like NewFsObject but reports a vanished path as Missing instead
// of failing, which is the normal state right after a remove event.
func Snapshot(path string) (FsObject, error) {
	obj, err := NewFsObject(path)
	if errors.Is(err, fs.ErrNotExist) {
		return FsObject{Path: path, Missing: true}, nil
	}

	return obj, err
}

// HashFile returns the hex encoded blake3 digest of the file content.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (o FsObject) ShortHash() string {
	if len(o.Hash) > 12 {
		return o.Hash[:12]
	}

	return o.Hash
}
