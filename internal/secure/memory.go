package secure

import (
	"fmt"
	"sync"

	"github.com/awnumar/memcall"
)

// Memory is the OS capability behind a Buffer: allocate a region outside
// the Go heap, lock and unlock it against swap, and free it.
type Memory interface {
	Alloc(size int) ([]byte, error)
	Lock(region []byte) error
	Unlock(region []byte) error
	Free(region []byte) error
}

// SystemMemory implements Memory with mmap/mlock through memcall.
type SystemMemory struct{}

// Alloc maps a fresh anonymous region of size bytes.
func (SystemMemory) Alloc(size int) ([]byte, error) {
	region, err := memcall.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("secure: alloc failed: %w", err)
	}

	return region, nil
}

// Lock locks region into physical memory.
func (SystemMemory) Lock(region []byte) error {
	return memcall.Lock(region)
}

// Unlock releases the lock taken by Lock.
func (SystemMemory) Unlock(region []byte) error {
	return memcall.Unlock(region)
}

// Free unmaps region.
func (SystemMemory) Free(region []byte) error {
	return memcall.Free(region)
}

var (
	initOnce sync.Once
	initErr  error
)

// Init disables core dumps for the process and reports whether that
// worked. memguard's package init has already attempted it but discards
// the error. Init is called on the first buffer construction of every
// Allocator; repeated calls return the first result without side effects.
//
// memcall.Lock also marks each locked region MADV_DONTDUMP on Linux.
func Init() error {
	initOnce.Do(func() {
		if err := memcall.DisableCoreDumps(); err != nil {
			initErr = fmt.Errorf("secure: disabling core dumps: %w", err)
		}
	})
	return initErr
}
