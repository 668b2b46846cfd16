//go:build windows && !weealloc_static_only

package weealloc

import (
	"golang.org/x/sys/windows"
)

// windowsPages grows the address space with VirtualAlloc, committing
// pages directly rather than going through a file mapping: there is no
// shared-memory requirement here, just private, growable, never-freed
// address space.
type windowsPages struct{}

// NewWindowsPageSource returns a PageSource backed by VirtualAlloc.
func NewWindowsPageSource() PageSource { return windowsPages{} }

func (windowsPages) Grow(n Pages) (uintptr, error) {
	size := uintptr(n.Bytes())
	if size == 0 {
		return 0, ErrOutOfMemory
	}
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, ErrOutOfMemory
	}
	return addr, nil
}
