package weealloc

import "unsafe"

// cellHeaderSize is the size in bytes of a CellHeader: exactly two machine
// words, matching the physical layout every cell in the heap carries
// whether it is currently allocated or free.
const cellHeaderSize = 2 * uintptr(WordSize)

const (
	// cellAllocated, stolen from next_sibling's low bit, marks a cell as
	// currently handed out to a caller.
	cellAllocated uintptr = 0x1
	// cellNextInvalid, stolen from next_sibling's second-lowest bit,
	// marks a cell as the last physical cell in its contiguous block:
	// its next_sibling value is the address one past the block's end,
	// not the address of a real cell.
	cellNextInvalid uintptr = 0x2
	cellTagMask     uintptr = 0x3
	cellPtrMask     uintptr = ^cellTagMask
)

// CellHeader is the two-word header physically preceding every allocation
// this package hands out, whether it is currently allocated or sitting on a
// free list. It forms an intrusive doubly-linked list over the raw bytes of
// a page: next_sibling and prev_sibling are addresses of the physically
// adjacent cells, with the allocated and "last in block" flags stolen from
// next_sibling's two low bits (every cell is word-aligned, so those bits
// are otherwise always zero).
type CellHeader struct {
	nextSibling uintptr
	prevSibling uintptr
}

// cellAt reinterprets the memory at addr as a CellHeader.
func cellAt(addr uintptr) *CellHeader { return (*CellHeader)(unsafe.Pointer(addr)) }

func (c *CellHeader) addr() uintptr { return uintptr(unsafe.Pointer(c)) }

// dataAddr returns the address of the byte immediately following the
// header, i.e. where this cell's usable data begins.
func (c *CellHeader) dataAddr() uintptr { return c.addr() + cellHeaderSize }

// Data returns a pointer to this cell's usable data region.
func (c *CellHeader) Data() unsafe.Pointer { return unsafe.Pointer(c.dataAddr()) }

func (c *CellHeader) isAllocated() bool { return c.nextSibling&cellAllocated != 0 }

func (c *CellHeader) setAllocated() { c.nextSibling |= cellAllocated }

func (c *CellHeader) setFree() { c.nextSibling &^= cellAllocated }

func (c *CellHeader) nextCellIsInvalid() bool { return c.nextSibling&cellNextInvalid != 0 }

// nextUnchecked returns next_sibling with its tag bits masked off, even
// when nextCellIsInvalid is set (in which case the result is the address
// one past the end of this cell's containing block, not a real cell).
func (c *CellHeader) nextUnchecked() uintptr { return c.nextSibling & cellPtrMask }

// next returns the address of the physically next cell, and false if this
// cell is the last one in its block.
func (c *CellHeader) next() (uintptr, bool) {
	if c.nextCellIsInvalid() {
		return 0, false
	}
	return c.nextUnchecked(), true
}

// prev returns the address of the physically previous cell, and false if
// this cell is the first one in its block.
func (c *CellHeader) prev() (uintptr, bool) {
	if c.prevSibling == 0 {
		return 0, false
	}
	return c.prevSibling, true
}

// setNext rewrites next_sibling's address bits, preserving whatever tag
// bits were already set.
func (c *CellHeader) setNext(addr uintptr) {
	c.nextSibling = (addr &^ cellTagMask) | (c.nextSibling & cellTagMask)
}

func (c *CellHeader) setPrev(addr uintptr) { c.prevSibling = addr }

// size returns the number of usable data bytes in this cell: the distance
// from just past its header to the start of the physically next cell (or,
// if it is the last cell in its block, to the block's end address, which
// nextUnchecked also yields thanks to the invalid-bit convention).
func (c *CellHeader) size() Bytes {
	return Bytes(c.nextUnchecked() - c.dataAddr())
}

