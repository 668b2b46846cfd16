//go:build (linux || darwin || freebsd || openbsd || netbsd || dragonfly || solaris) && !weealloc_static_only

package weealloc

import (
	"golang.org/x/sys/unix"
)

// unixPages grows the address space with anonymous mmap regions. Every
// region handed out by Grow is leaked (never munmap'd): the allocator never
// returns pages to the OS, matching the grow-only heap model the rest of
// this package assumes.
type unixPages struct{}

// NewUnixPageSource returns a PageSource backed by anonymous mmap, the
// conventional choice on Unix-like hosts.
func NewUnixPageSource() PageSource { return unixPages{} }

func (unixPages) Grow(n Pages) (uintptr, error) {
	size := uintptr(n.Bytes())
	if size == 0 {
		return 0, ErrOutOfMemory
	}
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, ErrOutOfMemory
	}
	return addrOfSlice(b), nil
}
