package weealloc

import "unsafe"

const (
	// freeCanMerge, stolen from a FreeCell's own next_free_raw low bit,
	// records that this cell's physical previous neighbor is also free
	// and that the two should be merged into one the next time the
	// free list carrying this cell is walked. It is only ever set when
	// next_free (masked) happens to equal this cell's own prev_sibling.
	freeCanMerge uintptr = 0x1
	freePtrMask  uintptr = ^uintptr(0x1)
)

// freePattern bytes are written over a cell's data region while it is on a
// free list, and checked for corruption when the cell is handed back out.
// Only compiled to do real work in a weealloc_debug build.
const (
	mainFreePattern      byte = 0x57 // 'W'
	sizeClassFreePattern byte = 0x35 // '5'
)

// FreeCell is a CellHeader plus one more machine word, next_free_raw, used
// only while the cell sits on a singly-linked free list. Because
// CellHeader is embedded first, a *CellHeader known to be free can always
// be reinterpreted as a *FreeCell and vice versa: the two views share the
// same two leading words, and the extra word only matters while the cell
// is actually on a free list.
type FreeCell struct {
	CellHeader
	nextFreeRaw uintptr
}

func freeCellAt(addr uintptr) *FreeCell { return (*FreeCell)(unsafe.Pointer(addr)) }

func (f *FreeCell) addr() uintptr { return uintptr(unsafe.Pointer(f)) }

func (f *FreeCell) nextFreeCanMerge() bool { return f.nextFreeRaw&freeCanMerge != 0 }

func (f *FreeCell) setNextFreeCanMerge() { f.nextFreeRaw |= freeCanMerge }

// nextFree returns the (masked) address of the next cell in this free
// list, or 0 if this is the last one.
func (f *FreeCell) nextFree() uintptr { return f.nextFreeRaw & freePtrMask }

// newFreeCellAt initializes a brand new FreeCell at addr, covering
// [addr, end) physically, with prevPhysical as its physical predecessor
// (0 if none) and invalid set if this cell is the last one in its block.
// The cell is not linked into any free list; the caller does that.
func newFreeCellAt(addr, end, prevPhysical uintptr, invalid bool, policy allocPolicy) *FreeCell {
	f := freeCellAt(addr)
	tag := uintptr(0)
	if invalid {
		tag = cellNextInvalid
	}
	f.nextSibling = (end &^ cellTagMask) | tag
	f.prevSibling = prevPhysical
	f.nextFreeRaw = 0
	writeFreePattern(f, policy)
	return f
}

// intoAllocatedCell marks f as allocated and returns the header view of the
// same memory. Any debug-build poisoning is checked before being
// overwritten, to catch use-after-free writes into cells that were still on
// a free list.
func (f *FreeCell) intoAllocatedCell(policy allocPolicy) *CellHeader {
	checkFreePattern(f, policy)
	f.setAllocated()
	return &f.CellHeader
}

// intoFreeCell marks c as free, poisons its data region in debug builds,
// and returns the free-list view of the same memory. next_free_raw starts
// cleared; the caller links it into whatever free list it belongs on.
func (c *CellHeader) intoFreeCell(policy allocPolicy) *FreeCell {
	c.setFree()
	f := (*FreeCell)(unsafe.Pointer(c))
	f.nextFreeRaw = 0
	writeFreePattern(f, policy)
	return f
}

// tailData returns the portion of f's data region beyond its first word,
// the only part that is actually free to poison: the first word is
// next_free_raw, live and in use for as long as f sits on a free list.
func tailData(f *FreeCell) []byte {
	size := f.CellHeader.size()
	if size <= WordSize {
		return nil
	}
	return bytesAt(f.CellHeader.dataAddr()+uintptr(WordSize), int(size-WordSize))
}

// writeFreePattern overwrites f's tail data (everything beyond the
// next-free word) with policy's free pattern byte. A no-op outside of
// weealloc_debug builds.
func writeFreePattern(f *FreeCell, policy allocPolicy) {
	if !debugBuild {
		return
	}
	pattern := policy.freePattern()
	tail := tailData(f)
	for i := range tail {
		tail[i] = pattern
	}
}

// checkFreePattern verifies f's tail data still holds policy's free
// pattern, panicking if something wrote into memory that was supposed to be
// untouched while free. A no-op outside of weealloc_debug builds.
func checkFreePattern(f *FreeCell, policy allocPolicy) {
	if !debugBuild {
		return
	}
	pattern := policy.freePattern()
	for _, got := range tailData(f) {
		extraAssert(got == pattern, "free cell corrupted while on free list (want %#x, got %#x)", pattern, got)
	}
}
