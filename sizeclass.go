package weealloc

// numSizeClasses is the number of size-class free lists: one for every
// allocation size from 1 to 256 words inclusive. Requests larger than 256
// words always go straight to the main free list.
const numSizeClasses = 256

// maxSizeClassWords is the largest request, in words, eligible for a
// size-class list.
const maxSizeClassWords = Words(numSizeClasses)

// sizeClassChunkFloor is the smallest chunk, in bytes, a size-class list
// will ever request from the main list on refill, regardless of how small
// the class itself is: refilling one word at a time from the main list
// would thrash it.
const sizeClassChunkFloor = Bytes(8192)

// sizeClasses holds the 256 size-class free lists, indexed by
// (words requested - 1). Each is independently lockable so that threads
// requesting different sizes don't contend with each other or with the
// main list, except when a size-class list needs to refill itself — which
// always goes through the main list's own lock.
type sizeClasses struct {
	lists [numSizeClasses]Exclusive[uintptr]
}

// classFor reports the size-class list index for a word count, and whether
// that word count is eligible for size classing at all.
func classFor(words Words) (int, bool) {
	if words < 1 || words > maxSizeClassWords {
		return 0, false
	}
	return int(words) - 1, true
}

// sizeClassPolicy governs a single size-class free list. Every request on
// a size-class list is exactly `words` words, so minCellSize is set to the
// class's own size: a split only happens when the remainder can still
// serve another request of this class. The net effect of running the
// ordinary split logic under this policy is that a single large refill
// chunk, placed whole on the list, gets carved one tail-split at a time
// into `words`-sized cells as requests come in. The last piece of a chunk,
// once too small to split, is handed out whole and may be somewhat larger
// than `words` words.
type sizeClassPolicy struct {
	words Words
	main  *Exclusive[uintptr]
	pages PageSource
}

func (p sizeClassPolicy) minCellSize(Words) Words { return p.words }

func (p sizeClassPolicy) shouldMergeAdjacentFreeCells() bool { return false }

func (p sizeClassPolicy) freePattern() byte { return sizeClassFreePattern }

// newCellForFreeList refills this size class by pulling one large chunk
// off the main free list: max((words+header words)^2, sizeClassChunkFloor)
// words' worth, so that one chunk holds at least words+header words cells
// of this class. Going
// through the main list (rather than straight to the PageSource) is what
// keeps the main list as the single point of contact with the OS/VM: the
// order of lock acquisition is always size-class list first, main list
// second, never the reverse, which is what rules out a deadlock between
// two size-class lists refilling at once.
func (p sizeClassPolicy) newCellForFreeList(words Words, align Bytes) (*FreeCell, error) {
	cellWords := words + Bytes(cellHeaderSize).RoundUpToWords()
	chunkWords := cellWords * cellWords
	if floor := sizeClassChunkFloor.RoundUpToWords(); chunkWords < floor {
		chunkWords = floor
	}

	main := mainAllocPolicy{pages: p.pages}
	return withExclusiveAccessErr(p.main, func(head *uintptr) (*FreeCell, error) {
		ptr, err := allocWithRefill(chunkWords, Bytes(WordSize), head, main)
		if err != nil {
			return nil, err
		}
		addr := uintptr(ptr) - cellHeaderSize
		c := cellAt(addr)
		// The cell we just pulled off the main list is allocated; turn
		// it back into a free cell so it can be linked onto this size
		// class's list and then split down to size by ordinary
		// first-fit/split on subsequent requests. Re-poison with this
		// class's own free pattern: it's about to live on a
		// size-class list, not the main one.
		return c.intoFreeCell(p), nil
	})
}
