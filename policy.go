package weealloc

// allocPolicy is the small capability interface that lets the main free
// list and the 256 size-class free lists share the same walk, first-fit,
// split, and refill code while differing in exactly four ways: how they
// obtain more memory when they run dry, how small a leftover cell they're
// willing to produce when splitting, whether freeing merges with free
// neighbors, and what byte they poison free memory with in debug builds.
type allocPolicy interface {
	// newCellForFreeList is called when a free list has nothing that can
	// satisfy the current request and must be refilled. It returns a
	// brand new, unlinked FreeCell sized to comfortably serve at least
	// one allocation of size words at align bytes.
	newCellForFreeList(size Words, align Bytes) (*FreeCell, error)

	// minCellSize is the smallest remainder a split is allowed to leave
	// behind for a request of size words. Below this, the policy would
	// rather hand the whole candidate cell to the caller than carve off
	// a sliver too small to ever be reused.
	minCellSize(size Words) Words

	// shouldMergeAdjacentFreeCells reports whether freeing a cell under
	// this policy should attempt to merge it with free physical
	// neighbors. The main list does; size-class lists never do, since
	// every cell on a size-class list is already exactly the class's
	// size and merging would just produce an oddly-sized cell nothing
	// else on that list could use.
	shouldMergeAdjacentFreeCells() bool

	// freePattern is the byte used to poison a cell's data region while
	// it sits on this policy's free list (debug builds only).
	freePattern() byte
}

// mainMinCellWords is the smallest remainder the main list's splitter will
// leave behind, in words of payload: the leftover keeps at least two words
// of data, so it stands on its own as a free cell that a future allocation
// can still find and use. Splitting any finer than this would produce slivers too small
// to ever be worth tracking.
const mainMinCellWords = Words(2)

// mainAllocPolicy governs the allocator's main free list: the catch-all
// list used for size-classed requests too large for any size-class list,
// and the list every size-class list refills itself from.
type mainAllocPolicy struct {
	pages PageSource
}

func (p mainAllocPolicy) minCellSize(Words) Words { return mainMinCellWords }

func (p mainAllocPolicy) shouldMergeAdjacentFreeCells() bool { return true }

func (p mainAllocPolicy) freePattern() byte { return mainFreePattern }

// newCellForFreeList asks the PageSource for enough whole pages to cover
// max(size, (align + min_cell_size) * 2) bytes of payload plus one header,
// per the refill sizing spec: comfortably larger than the immediate request
// so that a single page fault doesn't become a recurring cost, and large
// enough that even a maximally-misaligned candidate can still be split to
// satisfy align.
func (p mainAllocPolicy) newCellForFreeList(size Words, align Bytes) (*FreeCell, error) {
	minCell := p.minCellSize(size).Bytes()
	wanted := size.Bytes()
	alt := (align + minCell) * 2
	if alt > wanted {
		wanted = alt
	}
	wanted += Bytes(cellHeaderSize)

	pages, ok := wanted.checkedRoundUpToPages()
	if !ok {
		return nil, ErrOutOfMemory
	}
	addr, err := p.pages.Grow(pages)
	if err != nil {
		return nil, err
	}
	end := addr + uintptr(pages.Bytes())
	return newFreeCellAt(addr, end, 0, true, p), nil
}
