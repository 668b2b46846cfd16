package weealloc

import "unsafe"

// freeSlot is the location of a pointer into a singly-linked free list: the
// list's head variable, or some other free cell's own next_free_raw field.
// Whichever it is, the value stored there is a (possibly CAN_MERGE-tagged)
// address of the next cell in the list, or 0 for the end of the list.
type freeSlot = *uintptr

func slotTarget(slot freeSlot) *FreeCell {
	addr := *slot & freePtrMask
	if addr == 0 {
		return nil
	}
	return freeCellAt(addr)
}

// insertAtHead pushes cell onto the front of the free list rooted at head.
func insertAtHead(head *uintptr, cell *FreeCell) {
	extraAssert(!cell.nextFreeCanMerge(), "freshly unlinked cell must not carry CAN_MERGE")
	cell.nextFreeRaw = *head
	*head = cell.addr()
}

// walkFreeList walks the free list rooted at head, lazily merging any run
// of CAN_MERGE-flagged cells with their physical predecessor as it goes,
// and calls visit on each (possibly just-merged) candidate in turn. visit
// returns (result, true) to stop the walk and have it returned, or
// (_, false) to keep walking. If the list is exhausted without visit ever
// returning true, walkFreeList returns errNotFound.
func walkFreeList(head *uintptr, policy allocPolicy, visit func(previous *uintptr, cur *FreeCell) (unsafe.Pointer, bool)) (unsafe.Pointer, error) {
	previous := head
	for {
		cur := slotTarget(previous)
		if cur == nil {
			return nil, errNotFound
		}

		for cur.nextFreeCanMerge() {
			prevAddr, ok := cur.CellHeader.prev()
			extraAssert(ok, "CAN_MERGE cell must have a physical predecessor")
			prevAdjacent := freeCellAt(prevAddr)

			prevAdjacent.CellHeader.nextSibling = cur.CellHeader.nextSibling
			if nextAddr, ok := cur.CellHeader.next(); ok {
				cellAt(nextAddr).setPrev(prevAddr)
			}
			*previous = prevAddr
			cur = prevAdjacent
			writeFreePattern(cur, policy)
		}

		if p, ok := visit(previous, cur); ok {
			return p, nil
		}
		previous = &cur.nextFreeRaw
	}
}

// trySplitTail attempts to carve an allocation of sizeBytes, aligned to
// align, off the tail end of c, leaving c (now shrunk) on the free list.
// It returns the newly carved, now-allocated cell, or nil if c doesn't have
// enough slack to split (either too small outright, or the remainder after
// carving would be smaller than policy's minimum cell size).
func (c *FreeCell) trySplitTail(sizeBytes, align Bytes, policy allocPolicy) *CellHeader {
	end := c.CellHeader.nextUnchecked()
	splitData := (end - uintptr(sizeBytes)) &^ (uintptr(align) - 1)
	minCell := uintptr(policy.minCellSize(sizeBytes.RoundUpToWords()).Bytes())
	if c.CellHeader.dataAddr()+cellHeaderSize+minCell > splitData {
		return nil
	}

	invalidBit := c.CellHeader.nextSibling & cellNextInvalid
	nextAddr, hasNext := c.CellHeader.next()

	newAddr := splitData - cellHeaderSize
	newCell := cellAt(newAddr)
	newCell.nextSibling = (end &^ cellTagMask) | invalidBit
	newCell.prevSibling = c.addr()

	if hasNext {
		cellAt(nextAddr).setPrev(newAddr)
	}
	c.CellHeader.nextSibling = newAddr &^ cellTagMask

	newCell.setAllocated()
	return newCell
}

// allocFirstFit walks the free list rooted at head looking for the first
// cell that can satisfy an allocation of sizeWords words aligned to
// alignBytes, splitting it if there's slack to spare. It returns
// errNotFound if no cell in the list can serve the request.
func allocFirstFit(sizeWords Words, alignBytes Bytes, head *uintptr, policy allocPolicy) (unsafe.Pointer, error) {
	sizeBytes := sizeWords.Bytes()
	return walkFreeList(head, policy, func(previous *uintptr, cur *FreeCell) (unsafe.Pointer, bool) {
		if cur.CellHeader.size() < sizeBytes {
			return nil, false
		}

		if newCell := cur.trySplitTail(sizeBytes, alignBytes, policy); newCell != nil {
			return newCell.Data(), true
		}

		if cur.CellHeader.dataAddr()%uintptr(alignBytes) == 0 {
			*previous = cur.nextFree()
			allocated := cur.intoAllocatedCell(policy)
			return allocated.Data(), true
		}

		return nil, false
	})
}

// allocWithRefill is allocFirstFit, but refills the free list from policy
// and retries exactly once if the first pass finds nothing. The retry is
// expected to always succeed: newCellForFreeList is specified to produce a
// cell large enough to satisfy the very request that triggered the refill,
// so failure there is a policy bug, not a normal runtime condition.
func allocWithRefill(sizeWords Words, alignBytes Bytes, head *uintptr, policy allocPolicy) (unsafe.Pointer, error) {
	p, err := allocFirstFit(sizeWords, alignBytes, head, policy)
	if err == nil {
		return p, nil
	}
	if err != errNotFound {
		return nil, err
	}

	cell, err := policy.newCellForFreeList(sizeWords, alignBytes)
	if err != nil {
		return nil, err
	}
	insertAtHead(head, cell)

	p, err = allocFirstFit(sizeWords, alignBytes, head, policy)
	if err != nil {
		panic("weealloc: refill cell failed to satisfy the allocation that triggered it")
	}
	return p, nil
}

// deallocInto returns ptr (the data pointer of an allocation made from the
// free list rooted at head under policy) to that free list, merging it
// with free physical neighbors when policy calls for it.
func deallocInto(ptr unsafe.Pointer, head *uintptr, policy allocPolicy) {
	cellAddr := uintptr(ptr) - cellHeaderSize
	c := cellAt(cellAddr)
	extraAssert(c.isAllocated(), "dealloc of a cell that isn't marked allocated")

	free := c.intoFreeCell(policy)

	if !policy.shouldMergeAdjacentFreeCells() {
		insertAtHead(head, free)
		return
	}

	if prevAddr, ok := free.CellHeader.prev(); ok {
		prevHeader := cellAt(prevAddr)
		if !prevHeader.isAllocated() {
			// The physical predecessor is free and already on this
			// free list. Absorb this cell into it and leave the free
			// list itself untouched.
			prevHeader.nextSibling = free.CellHeader.nextSibling
			if nextAddr, ok := free.CellHeader.next(); ok {
				cellAt(nextAddr).setPrev(prevAddr)
			}
			writeFreePattern(freeCellAt(prevAddr), policy)
			return
		}
	}

	if nextAddr, ok := free.CellHeader.next(); ok {
		nextHeader := cellAt(nextAddr)
		if !nextHeader.isAllocated() {
			// The physical successor is free. Rather than merge right
			// now (which would require re-pointing the successor's
			// free-list predecessor, which we don't have a pointer to), insert
			// this cell into the free list immediately after its
			// successor and flag the successor as CAN_MERGE: the next
			// time this list is walked, walkFreeList will perform the
			// actual physical merge lazily.
			nextFreeCell := freeCellAt(nextAddr)
			free.nextFreeRaw = nextFreeCell.nextFree()
			nextFreeCell.nextFreeRaw = free.addr()
			nextFreeCell.setNextFreeCanMerge()
			return
		}
	}

	insertAtHead(head, free)
}
