package models

import "golang.org/x/sys/unix"

func statTimes(stat *unix.Stat_t) (created, modified int64) {
	created, _ = stat.Birthtimespec.Unix()
	modified, _ = stat.Mtimespec.Unix()

	return created, modified
}
