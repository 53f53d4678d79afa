//go:build darwin || linux

package models

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	S_IFMT  = 0o0170000
	S_IFREG = 0o0100000
)

// NewFsObject stats path without following symlinks and hashes it when it is
// a regular file.
func NewFsObject(path string) (FsObject, error) {
	var stat unix.Stat_t

	err := unix.Lstat(path, &stat)
	if err != nil {
		return FsObject{}, fmt.Errorf("failed to stat path: %w", err)
	}

	created, modified := statTimes(&stat)

	obj := FsObject{
		Path:     path,
		Size:     stat.Size,
		Created:  created,
		Modified: modified,
		Uid:      stat.Uid,
		Gid:      stat.Gid,
		Mode:     uint32(stat.Mode),
		Regular:  stat.Mode&S_IFMT == S_IFREG,
	}

	if obj.Regular {
		obj.Hash, err = HashFile(path)
		if err != nil {
			return FsObject{}, err
		}
	}

	return obj, nil
}
