//go:build !linux

package secure

func memlockLimit() (uint64, bool) {
	return 0, false
}
