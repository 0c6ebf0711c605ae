//go:build linux

package secure

import "golang.org/x/sys/unix"

// memlockLimit returns the soft RLIMIT_MEMLOCK in bytes.
func memlockLimit() (uint64, bool) {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &limit); err != nil {
		return 0, false
	}
	return limit.Cur, true
}
