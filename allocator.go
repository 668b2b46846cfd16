package weealloc

import "unsafe"

// Layout describes the size and alignment of a requested allocation, the
// same pair of facts every allocator interface ultimately needs. Align must
// be a power of two and at least 1; Size may be zero.
type Layout struct {
	Size  Bytes
	Align Bytes
}

// WordLayout is a convenience Layout for a size-byte allocation with no
// alignment requirement beyond the natural machine word.
func WordLayout(size Bytes) Layout { return Layout{Size: size, Align: WordSize} }

// Allocator is a complete, self-contained heap: a main free list backed by
// a PageSource, and 256 size-class free lists that refill themselves from
// the main list. The zero value is not usable; construct one with
// NewAllocator.
type Allocator struct {
	main        Exclusive[uintptr]
	sizeClasses sizeClasses
	pages       PageSource
}

// NewAllocator constructs an Allocator backed by pages. lock selects the
// Exclusive backend used to guard every free list: pass
// NewMutexExclusive[uintptr] for a conventional multi-threaded host,
// NewNoopExclusive[uintptr] for a single-threaded one, and so on.
func NewAllocator(pages PageSource, lock func(uintptr) *Exclusive[uintptr]) *Allocator {
	a := &Allocator{pages: pages}
	a.main = *lock(0)
	for i := range a.sizeClasses.lists {
		a.sizeClasses.lists[i] = *lock(0)
	}
	return a
}

// effectiveAlign clamps align up to at least a machine word: every cell is
// word-aligned by construction (the header itself requires it), so no
// split or whole-cell match can ever honor less than that anyway.
func effectiveAlign(align Bytes) Bytes {
	if align < WordSize {
		return WordSize
	}
	return align
}

// Alloc returns a pointer to layout.Size freshly allocated bytes, aligned
// to layout.Align, or an error if that's not possible. The returned memory
// is uninitialized. A zero-size request returns the non-null pointer whose
// address is layout.Align itself (the same value on every such call); it
// may be passed to Dealloc with the same Layout, which ignores it, and may
// not be read from or written to.
func (a *Allocator) Alloc(layout Layout) (unsafe.Pointer, error) {
	if layout.Align == 0 || !isPowerOfTwo(uintptr(layout.Align)) {
		return nil, ErrInvalidLayout
	}
	if layout.Size == 0 {
		return unsafe.Pointer(uintptr(layout.Align)), nil
	}

	words, ok := layout.Size.checkedRoundUpToWords()
	if !ok {
		return nil, ErrOutOfMemory
	}
	align := effectiveAlign(layout.Align)

	head, policy, classWords := a.routeWords(words, align)
	reqWords := words
	if classWords != 0 {
		reqWords = classWords
	}

	return withExclusiveAccessErr(head, func(h *uintptr) (unsafe.Pointer, error) {
		return allocWithRefill(reqWords, align, h, policy)
	})
}

// routeWords picks the free list and policy that a word count and
// alignment belong to. Dealloc must route the same words/align pair that
// Alloc used to produce the pointer being freed: cells allocated from a
// size-class list are only ever valid to return to that same list.
// classWords is the size-class's own word count (and thus the actual
// request size after routing), or 0 when the main list is used and no
// rounding up to a class occurred.
func (a *Allocator) routeWords(words Words, align Bytes) (*Exclusive[uintptr], allocPolicy, Words) {
	if idx, ok := classFor(words); ok && align <= WordSize {
		return &a.sizeClasses.lists[idx], sizeClassPolicy{words: Words(idx + 1), main: &a.main, pages: a.pages}, Words(idx + 1)
	}
	return &a.main, mainAllocPolicy{pages: a.pages}, 0
}

// Dealloc returns ptr, previously obtained from Alloc(layout), to the free
// list it came from. Passing a mismatched layout, a pointer not obtained
// from this Allocator, or the same pointer twice are all caller errors with
// undefined results, exactly as with any manual allocator.
func (a *Allocator) Dealloc(ptr unsafe.Pointer, layout Layout) {
	if ptr == nil || layout.Size == 0 {
		return
	}
	words := layout.Size.RoundUpToWords()
	align := effectiveAlign(layout.Align)

	head, policy, _ := a.routeWords(words, align)
	withExclusiveAccess(head, func(h *uintptr) struct{} {
		deallocInto(ptr, h, policy)
		return struct{}{}
	})
}

// Malloc allocates n word-aligned bytes, in the manner of C's malloc: no
// explicit Layout, no way to request anything but natural alignment. It
// returns nil on failure instead of an error, matching the convention the
// rest of this convenience layer follows.
func (a *Allocator) Malloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	ptr, err := a.Alloc(WordLayout(Bytes(n)))
	if err != nil {
		return nil
	}
	return bytesAt(uintptr(ptr), n)
}

// Calloc is Malloc followed by zeroing, in one call.
func (a *Allocator) Calloc(n int) []byte {
	b := a.Malloc(n)
	if b == nil {
		return nil
	}
	clear(b)
	return b
}

// Free returns a slice obtained from Malloc, Calloc, or Realloc to the
// allocator. b's length must be unchanged since it was obtained; slicing it
// down first and freeing the result is a caller error.
func (a *Allocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	a.Dealloc(unsafe.Pointer(&b[0]), WordLayout(Bytes(len(b))))
}

// Realloc resizes b to n bytes, copying the overlapping prefix and freeing
// the original. It returns nil without freeing b if the new allocation
// fails.
func (a *Allocator) Realloc(b []byte, n int) []byte {
	if n <= 0 {
		a.Free(b)
		return nil
	}
	next := a.Malloc(n)
	if next == nil {
		return nil
	}
	copy(next, b)
	a.Free(b)
	return next
}

// UsableSize returns the number of bytes actually reserved for the
// allocation b points into, which may be larger than the size originally
// requested (size-classed allocations are always rounded up to a whole
// number of words, and up to 256 words are rounded up to the owning class).
func (a *Allocator) UsableSize(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	addr := uintptr(unsafe.Pointer(&b[0])) - cellHeaderSize
	return int(cellAt(addr).size())
}
