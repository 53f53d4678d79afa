//go:build windows

package models

import (
	"fmt"
	"os"
	windows "syscall"
	"time"
)

func NewFsObject(path string) (FsObject, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return FsObject{}, fmt.Errorf("failed to stat path: %w", err)
	}

	stat := info.Sys().(*windows.Win32FileAttributeData)
	created := time.Unix(0, stat.CreationTime.Nanoseconds()).Unix()
	modified := time.Unix(0, stat.LastWriteTime.Nanoseconds()).Unix()

	obj := FsObject{
		Path:     path,
		Size:     info.Size(),
		Created:  created,
		Modified: modified,
		Mode:     uint32(info.Mode()),
		Regular:  info.Mode().IsRegular(),
	}

	if obj.Regular {
		obj.Hash, err = HashFile(path)
		if err != nil {
			return FsObject{}, err
		}
	}

	return obj, nil
}
