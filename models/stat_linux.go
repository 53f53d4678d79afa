package models

import "golang.org/x/sys/unix"

func statTimes(stat *unix.Stat_t) (created, modified int64) {
	created, _ = stat.Ctim.Unix()
	modified, _ = stat.Mtim.Unix()

	return created, modified
}
